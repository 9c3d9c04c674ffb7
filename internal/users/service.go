package users

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/internal/shared"
)

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, actor *identity.Principal, in identity.RegisterInput, role identity.Role) (*identity.Principal, error)
}

// Service handles account administration. Every operation requires Root.
type Service struct {
	repo      identity.Repository
	registrar Registrar
	audit     shared.AuditSink
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo identity.Repository, registrar Registrar, audit shared.AuditSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, registrar: registrar, audit: audit, logger: logger}
}

// List returns one page of accounts matching q.
func (s *Service) List(ctx context.Context, actor *identity.Principal, q ListQuery) (ListResult, error) {
	if !actor.Is(identity.RoleRoot) {
		return ListResult{}, shared.ErrForbidden
	}
	filter := identity.AccountFilter{Search: strings.TrimSpace(q.Search), Limit: PerPage}
	if role, err := identity.ParseRole(q.Role); err == nil {
		filter.Role = &role
	} else {
		q.Role = ""
	}
	if status, err := identity.ParseStatus(q.Status); err == nil {
		filter.Status = &status
	} else {
		q.Status = ""
	}
	if q.Page < 1 {
		q.Page = 1
	}
	filter.Offset = (q.Page - 1) * PerPage

	accounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Accounts: accounts, Pagination: shared.NewPagination(q.Page, PerPage, total), Query: q}, nil
}

// SetStatus approves or suspends an account. Administrators cannot change
// their own status.
func (s *Service) SetStatus(ctx context.Context, actor *identity.Principal, id string, status identity.Status) (*identity.Account, error) {
	if !actor.Is(identity.RoleRoot) {
		return nil, shared.ErrForbidden
	}
	if !status.Valid() {
		return nil, &identity.ValidationError{Fields: map[string]string{"status": "is invalid"}}
	}
	if id == actor.ID {
		return nil, shared.ErrForbidden
	}
	acct, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct.Status == status {
		return acct, nil
	}
	updated, err := s.repo.UpdateRoleStatus(ctx, id, acct.Role, status)
	if err != nil {
		return nil, err
	}
	s.record(ctx, shared.AuditEntry{
		Action:    shared.AuditUpdate,
		Module:    AuditModule,
		SubModule: acct.Role.Portal(),
		ActorID:   actor.ID,
		Actor:     actor.DisplayName(),
		Details:   map[string]any{"account": id, "email": acct.Email, "from": string(acct.Status), "to": string(status)},
	})
	return updated, nil
}

// CreateStaff registers an internal account on behalf of the administrator.
func (s *Service) CreateStaff(ctx context.Context, actor *identity.Principal, in identity.RegisterInput, role identity.Role) (*identity.Principal, error) {
	if !actor.Is(identity.RoleRoot) {
		return nil, shared.ErrForbidden
	}
	if !role.Internal() {
		return nil, &identity.ValidationError{Fields: map[string]string{"role": "must be a GOL role"}}
	}
	return s.registrar.Register(ctx, actor, in, role)
}

func (s *Service) record(ctx context.Context, entry shared.AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", entry.Action), slog.Any("error", err))
	}
}
