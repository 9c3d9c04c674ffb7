package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions written by the portal.
const (
	AuditLogin       = "Login"
	AuditFailedLogin = "FailedLogin"
	AuditLogout      = "Logout"
	AuditRegister    = "Register"
	AuditCreate      = "Create"
	AuditUpdate      = "Update"
	AuditDelete      = "Delete"
	AuditReset       = "PasswordReset"
)

// AuditEntry is one append-only row of the audit trail.
type AuditEntry struct {
	Action    string
	Module    string
	SubModule string
	ActorID   string
	Actor     string
	Details   map[string]any
	At        time.Time
}

// AuditSink accepts audit entries.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool, now: time.Now}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Action == "" || entry.Module == "" {
		return errors.New("audit entry requires action/module")
	}
	if entry.At.IsZero() {
		entry.At = l.now().UTC()
	}
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (action, module, sub_module, actor_id, actor, details, occurred_at)
VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7)`,
		entry.Action, entry.Module, entry.SubModule, entry.ActorID, entry.Actor, details, entry.At)
	if err != nil {
		return Unavailable("audit record", err)
	}
	return nil
}

var _ AuditSink = (*AuditLogger)(nil)
