// Package notify delivers user facing messages: flash toasts on the current
// session and transactional email through the job queue.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/internal/logistics"
	"github.com/gol-logistics/gol-portal/internal/shared"
	"github.com/gol-logistics/gol-portal/jobs"
)

// Enqueuer hands an email to the job queue.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Notifier builds the portal's transactional emails and enqueues them.
type Notifier struct {
	queue     Enqueuer
	logger    *slog.Logger
	publicURL string
}

// NewNotifier constructs a Notifier. publicURL prefixes links in emails.
func NewNotifier(queue Enqueuer, logger *slog.Logger, publicURL string) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{queue: queue, logger: logger, publicURL: strings.TrimRight(publicURL, "/")}
}

var (
	_ identity.Notifications  = (*Notifier)(nil)
	_ logistics.Notifications = (*Notifier)(nil)
)

// Toast queues a flash message on the request's session.
func (n *Notifier) Toast(ctx context.Context, kind, message string) {
	shared.AddFlash(ctx, kind, message)
}

// Welcome greets a newly registered account.
func (n *Notifier) Welcome(ctx context.Context, to, name string, role identity.Role) {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", nameOr(name, to))
	fmt.Fprintf(&b, "your %s account on the GOL portal has been created.\n", role.Label())
	if role == identity.RoleMerchant {
		b.WriteString("A GOL moderator will review it shortly. You can already sign in and complete your profile.\n")
	}
	fmt.Fprintf(&b, "\nSign in: %s%s\n", n.publicURL, role.LoginPath())
	n.send(ctx, "welcome", jobs.SendEmailPayload{To: to, Subject: "Welcome to GOL", Body: b.String()})
}

// PasswordResetCode emails a one-time reset code.
func (n *Notifier) PasswordResetCode(ctx context.Context, to, code string) {
	body := fmt.Sprintf("Your GOL password reset code is %s.\n\nIt expires in %d minutes. If you did not ask for it, ignore this email.\n",
		code, int(identity.OTPTTL.Minutes()))
	n.send(ctx, "password_reset", jobs.SendEmailPayload{To: to, Subject: "Your GOL reset code", Body: body})
}

// OrderConfirmation confirms a booked order.
func (n *Notifier) OrderConfirmation(ctx context.Context, to string, order logistics.Order) {
	var b strings.Builder
	fmt.Fprintf(&b, "We received your order %s.\n\n", order.Reference)
	fmt.Fprintf(&b, "Service: %s\nFrom: %s\nTo: %s\n", order.Service, order.Origin, order.Destination)
	if order.Expand.Provider != nil {
		fmt.Fprintf(&b, "Provider: %s\n", order.Expand.Provider.Name)
	}
	fmt.Fprintf(&b, "\nTrack it at %s/customer/orders/%s\n", n.publicURL, order.ID)
	n.send(ctx, "order_confirmation", jobs.SendEmailPayload{To: to, Subject: "Order " + order.Reference + " received", Body: b.String()})
}

// ServiceRequestConfirmation confirms a filed service request.
func (n *Notifier) ServiceRequestConfirmation(ctx context.Context, to string, request logistics.ServiceRequest) {
	body := fmt.Sprintf("We received your %s request.\n\nIts status is %s. We will email you when it changes.\n\n%s/customer/requests\n",
		request.Type, request.Status, n.publicURL)
	n.send(ctx, "service_request_confirmation", jobs.SendEmailPayload{To: to, Subject: "Service request received", Body: body})
}

// send enqueues the email. Failures are logged and never reach the caller.
func (n *Notifier) send(ctx context.Context, template string, payload jobs.SendEmailPayload) {
	if n == nil || n.queue == nil || payload.To == "" {
		return
	}
	payload.Template = template
	if _, err := n.queue.EnqueueSendEmail(ctx, payload); err != nil {
		n.logger.Warn("enqueue email", slog.String("template", template), slog.Any("error", err))
	}
}

func nameOr(name, fallback string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return fallback
}
