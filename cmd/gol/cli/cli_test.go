package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/jobs"
)

type stubRegistrar struct {
	actor *identity.Principal
	input identity.RegisterInput
	role  identity.Role
	err   error
}

func (s *stubRegistrar) Register(ctx context.Context, actor *identity.Principal, in identity.RegisterInput, role identity.Role) (*identity.Principal, error) {
	s.actor, s.input, s.role = actor, in, role
	if s.err != nil {
		return nil, s.err
	}
	return &identity.Principal{ID: "acc-1", Role: role, Email: in.Email, Username: in.Username, Status: identity.StatusActive}, nil
}

func TestCreateRootSuccess(t *testing.T) {
	reg := &stubRegistrar{}
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := CreateRoot(context.Background(), reg, CreateRootOptions{
		Email: "root@gol.test", Username: "root", Password: "password1",
		Stdout: stdout, Stderr: stderr,
	})
	require.Zero(t, code)
	require.Empty(t, stderr.String())
	require.Equal(t, identity.RoleRoot, reg.role)
	require.Same(t, Operator, reg.actor)
	require.Equal(t, "password1", reg.input.PasswordConfirm)
	require.Contains(t, stdout.String(), "created Administrator account root (acc-1)")
}

func TestCreateRootRequiresFlags(t *testing.T) {
	reg := &stubRegistrar{}
	stderr := new(bytes.Buffer)
	code := CreateRoot(context.Background(), reg, CreateRootOptions{Email: "root@gol.test", Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), "required")
	require.Nil(t, reg.actor)
}

func TestCreateRootReportsValidation(t *testing.T) {
	reg := &stubRegistrar{err: &identity.ValidationError{Fields: map[string]string{
		"username": "or email is already registered",
		"email":    "or username is already registered",
	}}}
	stderr := new(bytes.Buffer)
	code := CreateRoot(context.Background(), reg, CreateRootOptions{
		Email: "root@gol.test", Username: "root", Password: "password1",
		Stdout: new(bytes.Buffer), Stderr: stderr,
	})
	require.Equal(t, 2, code)
	require.Equal(t, "create-root: email or username is already registered\ncreate-root: username or email is already registered\n", stderr.String())

	reg.err = errors.New("dial tcp")
	stderr.Reset()
	code = CreateRoot(context.Background(), reg, CreateRootOptions{
		Email: "root@gol.test", Username: "root", Password: "password1",
		Stdout: new(bytes.Buffer), Stderr: stderr,
	})
	require.Equal(t, 1, code)
}

type stubEnqueuer struct {
	payload jobs.SendEmailPayload
}

func (s *stubEnqueuer) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	s.payload = payload
	return &asynq.TaskInfo{ID: "task-1", Queue: jobs.QueueDefault}, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestRunJobsStatsJSON(t *testing.T) {
	c := NewJobsCLI(nil, stubInspector{info: &asynq.QueueInfo{Pending: 4, Retry: 1}})
	stdout := new(bytes.Buffer)
	code := RunJobs(context.Background(), c, JobsOptions{Action: "stats", JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, code)

	var stats QueueStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	require.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 4, Retry: 1}, stats)
}

func TestInspectQueueMissingQueue(t *testing.T) {
	stats, err := NewJobsCLI(nil, stubInspector{err: asynq.ErrQueueNotFound}).InspectQueue(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.Pending)

	_, err = NewJobsCLI(nil, stubInspector{err: errors.New("dial tcp")}).InspectQueue(context.Background())
	require.Error(t, err)
}

func TestRunJobsTestEmail(t *testing.T) {
	enq := &stubEnqueuer{}
	c := NewJobsCLI(enq, nil)
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	require.Equal(t, 2, RunJobs(context.Background(), c, JobsOptions{Action: "test-email", Stdout: stdout, Stderr: stderr}))

	code := RunJobs(context.Background(), c, JobsOptions{Action: "test-email", To: " ops@gol.test ", Stdout: stdout, Stderr: stderr})
	require.Zero(t, code)
	require.Equal(t, "ops@gol.test", enq.payload.To)
	require.Contains(t, stdout.String(), "enqueued task-1 on default")

	require.Equal(t, 2, RunJobs(context.Background(), c, JobsOptions{Action: "purge", Stdout: stdout, Stderr: stderr}))
}
