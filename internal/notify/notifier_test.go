package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/internal/logistics"
	"github.com/gol-logistics/gol-portal/jobs"
)

type queueStub struct {
	payloads []jobs.SendEmailPayload
	err      error
}

func (q *queueStub) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	q.payloads = append(q.payloads, payload)
	if q.err != nil {
		return nil, q.err
	}
	return &asynq.TaskInfo{ID: "t1", Queue: jobs.QueueDefault}, nil
}

func TestWelcomeMerchantMentionsReview(t *testing.T) {
	q := &queueStub{}
	n := NewNotifier(q, nil, "https://portal.gol.test/")
	n.Welcome(context.Background(), "m@example.com", "", identity.RoleMerchant)

	require.Len(t, q.payloads, 1)
	p := q.payloads[0]
	assert.Equal(t, "m@example.com", p.To)
	assert.Equal(t, "welcome", p.Template)
	assert.Contains(t, p.Body, "Hello m@example.com")
	assert.Contains(t, p.Body, "review")
	assert.Contains(t, p.Body, "https://portal.gol.test/client/login")
}

func TestPasswordResetCode(t *testing.T) {
	q := &queueStub{}
	NewNotifier(q, nil, "").PasswordResetCode(context.Background(), "c@example.com", "123456")
	require.Len(t, q.payloads, 1)
	assert.Contains(t, q.payloads[0].Body, "123456")
	assert.Contains(t, q.payloads[0].Body, "10 minutes")
}

func TestOrderConfirmation(t *testing.T) {
	q := &queueStub{}
	n := NewNotifier(q, nil, "https://portal.gol.test")
	n.OrderConfirmation(context.Background(), "c@example.com", logistics.Order{
		ID: "o1", Reference: "GOL-250101-ABCDEF", Service: logistics.ServiceFreight, Origin: "Jakarta", Destination: "Medan",
		Expand: logistics.OrderExpand{Provider: &logistics.Provider{Name: "Harbour Freight"}},
	})
	require.Len(t, q.payloads, 1)
	assert.Equal(t, "Order GOL-250101-ABCDEF received", q.payloads[0].Subject)
	assert.Contains(t, q.payloads[0].Body, "Harbour Freight")
	assert.Contains(t, q.payloads[0].Body, "https://portal.gol.test/customer/orders/o1")
}

func TestEnqueueFailureIsSwallowed(t *testing.T) {
	q := &queueStub{err: errors.New("redis down")}
	n := NewNotifier(q, nil, "")
	assert.NotPanics(t, func() {
		n.ServiceRequestConfirmation(context.Background(), "c@example.com", logistics.ServiceRequest{Type: "Inspection"})
	})
	assert.Len(t, q.payloads, 1)
}

func TestNoRecipientNoEmail(t *testing.T) {
	q := &queueStub{}
	NewNotifier(q, nil, "").Welcome(context.Background(), "", "x", identity.RoleCustomer)
	assert.Empty(t, q.payloads)

	var nilNotifier *Notifier
	assert.NotPanics(t, func() { nilNotifier.PasswordResetCode(context.Background(), "a@example.com", "1") })
}

func TestMailerSend(t *testing.T) {
	m := NewMailer(MailerConfig{Host: "smtp.example.com", Port: 587, User: "noreply@gol.test", Password: "pw"})
	var got *email.Email
	var gotAddr string
	m.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		got, gotAddr = e, addr
		return nil
	}
	err := m.Send(context.Background(), jobs.SendEmailPayload{To: "c@example.com", Subject: "Hi", Body: "body", Template: "welcome"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@gol.test", got.From)
	assert.Equal(t, []string{"c@example.com"}, got.To)
	assert.Equal(t, "body", string(got.Text))

	m.send = func(*email.Email, string, smtp.Auth) error { return errors.New("421") }
	assert.Error(t, m.Send(context.Background(), jobs.SendEmailPayload{To: "c@example.com", Subject: "Hi"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, jobs.SendEmailPayload{To: "c@example.com", Subject: "Hi"}), context.Canceled)
}
