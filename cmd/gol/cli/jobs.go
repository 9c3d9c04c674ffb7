package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/gol-logistics/gol-portal/jobs"
)

// EmailEnqueuer queues transactional email.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for the email queue.
type JobsCLI struct {
	client    EmailEnqueuer
	inspector jobs.QueueInspector
}

// NewJobsCLI initialises the CLI helpers.
func NewJobsCLI(client EmailEnqueuer, inspector jobs.QueueInspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the metrics of the default queue. A queue that has
// never received a task reports zeroes.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return stats, nil
	}
	if err != nil {
		return QueueStats{}, err
	}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// SendTestEmail enqueues a probe message to verify worker delivery.
func (c *JobsCLI) SendTestEmail(ctx context.Context, to string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:       strings.TrimSpace(to),
		Subject:  "GOL Logistics test message",
		Body:     "This message confirms that the GOL Logistics mail worker is delivering email.",
		Template: "test",
	})
}

// JobsOptions configures the jobs command.
type JobsOptions struct {
	Action     string
	To         string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// RunJobs executes a jobs sub-action and returns the process exit code.
func RunJobs(ctx context.Context, c *JobsCLI, opts JobsOptions) int {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	switch opts.Action {
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return 1
		}
		if opts.JSONOutput {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(stats); err != nil {
				fmt.Fprintf(stderr, "jobs stats: %v\n", err)
				return 1
			}
			return 0
		}
		fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
		return 0
	case "test-email":
		if strings.TrimSpace(opts.To) == "" {
			fmt.Fprintln(stderr, "jobs test-email: -to is required")
			return 2
		}
		info, err := c.SendTestEmail(ctx, opts.To)
		if err != nil {
			fmt.Fprintf(stderr, "jobs test-email: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "enqueued %s on %s\n", info.ID, info.Queue)
		return 0
	default:
		fmt.Fprintf(stderr, "jobs: unknown action %q (want stats or test-email)\n", opts.Action)
		return 2
	}
}
