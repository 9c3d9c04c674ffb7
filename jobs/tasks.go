package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gol-logistics/gol-portal/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"

	emailMaxRetry = 8
	emailTimeout  = 30 * time.Second
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Template string `json:"template,omitempty"`
}

// Validate rejects payloads that can never be delivered.
func (p SendEmailPayload) Validate() error {
	switch {
	case strings.TrimSpace(p.To) == "":
		return errors.New("send email: recipient required")
	case strings.ContainsAny(p.To, "\r\n"), strings.ContainsAny(p.Subject, "\r\n"):
		return errors.New("send email: header injection")
	case p.Subject == "":
		return errors.New("send email: subject required")
	}
	return nil
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(emailMaxRetry), asynq.Timeout(emailTimeout)), nil
}

// EmailSender delivers one message.
type EmailSender interface {
	Send(ctx context.Context, payload SendEmailPayload) error
}

// NewSendEmailHandler processes TaskTypeSendEmail tasks with sender.
// Malformed payloads are dropped without retry.
func NewSendEmailHandler(sender EmailSender, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeSendEmail)
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
		}
		tracker.Template(payload.Template)
		if err := payload.Validate(); err != nil {
			return tracker.End(fmt.Errorf("%v: %w", err, asynq.SkipRetry))
		}
		if err := sender.Send(ctx, payload); err != nil {
			logger.Warn("send email", slog.String("template", payload.Template), slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("email sent", slog.String("template", payload.Template))
		return tracker.End(nil)
	}
}
