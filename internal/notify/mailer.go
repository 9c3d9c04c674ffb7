package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"

	"github.com/gol-logistics/gol-portal/jobs"
)

// MailerConfig holds SMTP settings.
type MailerConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Mailer delivers queued emails over SMTP.
type Mailer struct {
	from string
	addr string
	auth smtp.Auth
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewMailer constructs a Mailer. Authentication is skipped when no user is set.
func NewMailer(cfg MailerConfig) *Mailer {
	m := &Mailer{
		from: cfg.From,
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		send: func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
	if m.from == "" {
		m.from = cfg.User
	}
	if cfg.User != "" {
		m.auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return m
}

var _ jobs.EmailSender = (*Mailer)(nil)

// Send implements jobs.EmailSender.
func (m *Mailer) Send(ctx context.Context, payload jobs.SendEmailPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{payload.To}
	e.Subject = payload.Subject
	e.Text = []byte(payload.Body)
	if err := m.send(e, m.addr, m.auth); err != nil {
		return fmt.Errorf("mailer: send %s: %w", payload.Template, err)
	}
	return nil
}
