package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/gol-logistics/gol-portal/internal/shared"
)

// AuditModule is the audit module name for identity events.
const AuditModule = "Auth"

// ErrOAuthNotLinked is returned when an external identity's email already
// belongs to an account that was never linked to that provider.
var ErrOAuthNotLinked = errors.New("identity: email registered without this provider")

// EventRecorder counts authentication events.
type EventRecorder interface {
	AuthEvent(event string)
}

// Notifications delivers identity related messages to account holders.
type Notifications interface {
	Welcome(ctx context.Context, to, name string, role Role)
	PasswordResetCode(ctx context.Context, to, code string)
}

// LoginInput is a credential sign-in attempt against one portal.
type LoginInput struct {
	Identifier   string `validate:"required,max=254"`
	Password     string `validate:"required"`
	ExpectedRole Role
	Remember     bool
}

// OAuthResult reports the outcome of an OAuth sign-in.
type OAuthResult struct {
	Authenticated bool
	Principal     *Principal
	Created       bool
}

// Resolver owns the authentication rules and is the only writer of State.
type Resolver struct {
	repo      Repository
	audit     shared.AuditSink
	events    EventRecorder
	notify    Notifications
	otp       *OTPStore
	logger    *slog.Logger
	validator *validator.Validate
	now       func() time.Time
	cost      int
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithEvents attaches an auth event counter.
func WithEvents(events EventRecorder) ResolverOption {
	return func(r *Resolver) { r.events = events }
}

// WithNotifications attaches the outbound message channel.
func WithNotifications(n Notifications) ResolverOption {
	return func(r *Resolver) { r.notify = n }
}

// WithOTPStore enables password reset codes.
func WithOTPStore(store *OTPStore) ResolverOption {
	return func(r *Resolver) { r.otp = store }
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) ResolverOption {
	return func(r *Resolver) { r.cost = cost }
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository, audit shared.AuditSink, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		repo:      repo,
		audit:     audit,
		logger:    logger,
		validator: validator.New(),
		now:       time.Now,
		cost:      bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Login verifies credentials and the portal role. Every failure is audited as
// FailedLogin and leaves st untouched.
func (r *Resolver) Login(ctx context.Context, st *State, in LoginInput) (*Principal, error) {
	portal := in.ExpectedRole.Portal()
	fail := func(reason string, err error) (*Principal, error) {
		r.record(ctx, shared.AuditEntry{
			Action:    shared.AuditFailedLogin,
			Module:    AuditModule,
			SubModule: portal,
			Actor:     strings.TrimSpace(in.Identifier),
			Details:   map[string]any{"reason": reason},
		})
		if errors.Is(err, shared.ErrRoleMismatch) {
			r.event("role_mismatch")
		} else {
			r.event("failed_login")
		}
		return nil, err
	}

	if !in.ExpectedRole.Valid() {
		return fail("unknown portal role", shared.ErrRoleMismatch)
	}
	if err := ValidateStruct(r.validator, in); err != nil {
		return fail("malformed", shared.ErrInvalidCredentials)
	}

	acct, err := r.repo.FindByIdentifier(ctx, in.Identifier)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return fail("unknown identifier", shared.ErrInvalidCredentials)
	case err != nil:
		return nil, err
	}
	if acct.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(in.Password)) != nil {
		return fail("bad password", shared.ErrInvalidCredentials)
	}
	if acct.Status == StatusSuspended {
		return fail("suspended", shared.ErrInvalidCredentials)
	}
	if acct.Role != in.ExpectedRole {
		return fail("role "+acct.Role.String()+" at "+portal+" portal", shared.ErrRoleMismatch)
	}

	p := acct.Principal()
	st.set(p, in.Remember)
	r.record(ctx, shared.AuditEntry{
		Action:    shared.AuditLogin,
		Module:    AuditModule,
		SubModule: portal,
		ActorID:   p.ID,
		Actor:     p.DisplayName(),
		Details:   map[string]any{"rememberMe": in.Remember},
	})
	r.event("login")
	return p, nil
}

// LoginWithOAuth completes an OAuth code exchange. An unknown external
// identity becomes a new account with the requested role in Pending status.
// Accounts are matched by provider subject only. An existing account must
// already carry role.
func (r *Resolver) LoginWithOAuth(ctx context.Context, st *State, provider OAuthProvider, code string, role Role) (OAuthResult, error) {
	if !role.Valid() || role.Internal() {
		return OAuthResult{}, shared.ErrRoleMismatch
	}
	ident, err := provider.Exchange(ctx, code)
	if err != nil {
		r.event("failed_login")
		return OAuthResult{}, fmt.Errorf("oauth exchange: %w", err)
	}

	acct, err := r.repo.FindByOAuth(ctx, provider.Name(), ident.Subject)
	created := false
	switch {
	case errors.Is(err, shared.ErrNotFound):
		acct, err = r.repo.Create(ctx, NewAccount{
			Email:         ident.Email,
			Username:      usernameFromEmail(ident.Email, ident.Subject),
			Role:          role,
			Status:        StatusPending,
			Profile:       Profile{Name: ident.Name},
			OAuthProvider: provider.Name(),
			OAuthSubject:  ident.Subject,
		})
		if errors.Is(err, ErrDuplicateAccount) {
			r.failedOAuth(ctx, ident.Email, role, "not linked")
			return OAuthResult{}, ErrOAuthNotLinked
		}
		if err != nil {
			return OAuthResult{}, err
		}
		created = true
		r.record(ctx, shared.AuditEntry{
			Action:    shared.AuditRegister,
			Module:    AuditModule,
			SubModule: role.Portal(),
			ActorID:   acct.ID,
			Actor:     acct.Email,
			Details:   map[string]any{"provider": provider.Name()},
		})
	case err != nil:
		return OAuthResult{}, err
	}

	if acct.Status == StatusSuspended {
		r.failedOAuth(ctx, acct.Email, role, "suspended")
		return OAuthResult{}, shared.ErrInvalidCredentials
	}
	if acct.Role != role {
		r.failedOAuth(ctx, acct.Email, role, "role "+acct.Role.String())
		r.event("role_mismatch")
		return OAuthResult{}, shared.ErrRoleMismatch
	}

	p := acct.Principal()
	st.set(p, false)
	r.record(ctx, shared.AuditEntry{
		Action:    shared.AuditLogin,
		Module:    AuditModule,
		SubModule: role.Portal(),
		ActorID:   p.ID,
		Actor:     p.DisplayName(),
		Details:   map[string]any{"provider": provider.Name()},
	})
	r.event("oauth_login")
	if created && r.notify != nil {
		r.notify.Welcome(ctx, p.Email, p.DisplayName(), p.Role)
	}
	return OAuthResult{Authenticated: true, Principal: p, Created: created}, nil
}

func (r *Resolver) failedOAuth(ctx context.Context, email string, role Role, reason string) {
	r.record(ctx, shared.AuditEntry{
		Action:    shared.AuditFailedLogin,
		Module:    AuditModule,
		SubModule: role.Portal(),
		Actor:     email,
		Details:   map[string]any{"reason": reason, "oauth": true},
	})
}

// Register creates an account without signing it in. actor is the Root
// principal when an administrator creates the account, nil for self-service.
func (r *Resolver) Register(ctx context.Context, actor *Principal, in RegisterInput, role Role) (*Principal, error) {
	if !role.Valid() {
		return nil, fieldError("role", "is invalid")
	}
	if role.Internal() && !actor.Is(RoleRoot) {
		return nil, shared.ErrForbidden
	}
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := ValidateStruct(r.validator, in); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), r.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acct, err := r.repo.Create(ctx, NewAccount{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         role,
		Status:       initialStatus(role),
		Profile:      Profile{Name: strings.TrimSpace(in.Name), Phone: strings.TrimSpace(in.Phone), Company: strings.TrimSpace(in.Company)},
	})
	if errors.Is(err, ErrDuplicateAccount) {
		return nil, &ValidationError{Fields: map[string]string{
			"email":    "or username is already registered",
			"username": "or email is already registered",
		}}
	}
	if err != nil {
		return nil, err
	}

	p := acct.Principal()
	entry := shared.AuditEntry{
		Action:    shared.AuditRegister,
		Module:    AuditModule,
		SubModule: role.Portal(),
		ActorID:   p.ID,
		Actor:     p.Email,
		Details:   map[string]any{"role": role.String(), "status": string(p.Status)},
	}
	if actor != nil {
		entry.ActorID = actor.ID
		entry.Actor = actor.DisplayName()
		entry.Details["account"] = p.ID
	}
	r.record(ctx, entry)
	r.event("register")
	if r.notify != nil {
		r.notify.Welcome(ctx, p.Email, p.DisplayName(), p.Role)
	}
	return p, nil
}

// initialStatus is the status a freshly registered account starts in.
func initialStatus(role Role) Status {
	switch role {
	case RoleMerchant:
		return StatusPending
	case RoleCustomer, RoleGOLStaff, RoleGOLMod, RoleRoot:
		return StatusActive
	default:
		return StatusPending
	}
}

// Logout records the Logout entry for the current principal and then clears
// the state. It is a no-op for anonymous sessions.
func (r *Resolver) Logout(ctx context.Context, st *State) {
	p := st.Principal()
	if p == nil {
		st.clear()
		return
	}
	r.record(ctx, shared.AuditEntry{
		Action:    shared.AuditLogout,
		Module:    AuditModule,
		SubModule: p.Role.Portal(),
		ActorID:   p.ID,
		Actor:     p.DisplayName(),
	})
	r.event("logout")
	st.clear()
}

// UpdateProfile patches the signed-in principal's profile.
func (r *Resolver) UpdateProfile(ctx context.Context, st *State, in ProfileInput) (*Principal, error) {
	current := st.Principal()
	if current == nil {
		return nil, shared.ErrForbidden
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := ValidateStruct(r.validator, in); err != nil {
		return nil, err
	}
	acct, err := r.repo.UpdateProfile(ctx, current.ID, Profile{Name: in.Name, Phone: strings.TrimSpace(in.Phone), Company: strings.TrimSpace(in.Company)})
	if err != nil {
		return nil, err
	}
	p := acct.Principal()
	st.replace(p)
	r.record(ctx, shared.AuditEntry{
		Action:    shared.AuditUpdate,
		Module:    AuditModule,
		SubModule: "Profile",
		ActorID:   p.ID,
		Actor:     p.DisplayName(),
	})
	return p, nil
}

// RequestPasswordReset issues a one-time code to the account behind
// identifier when it belongs to portal. Unknown identifiers succeed silently.
func (r *Resolver) RequestPasswordReset(ctx context.Context, identifier, portal string) error {
	if r.otp == nil {
		return shared.ErrUnavailable
	}
	acct, err := r.repo.FindByIdentifier(ctx, identifier)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !roleInPortal(acct.Role, portal) || acct.Status == StatusSuspended {
		return nil
	}
	code, err := r.otp.Issue(ctx, acct.ID)
	if err != nil {
		return err
	}
	r.record(ctx, shared.AuditEntry{
		Action:    shared.AuditReset,
		Module:    AuditModule,
		SubModule: portal,
		ActorID:   acct.ID,
		Actor:     acct.Email,
		Details:   map[string]any{"stage": "requested"},
	})
	if r.notify != nil {
		r.notify.PasswordResetCode(ctx, acct.Email, code)
	}
	return nil
}

// ResetPassword verifies the code and replaces the password hash.
func (r *Resolver) ResetPassword(ctx context.Context, in ResetInput, portal string) error {
	if r.otp == nil {
		return shared.ErrUnavailable
	}
	if err := ValidateStruct(r.validator, in); err != nil {
		return err
	}
	invalid := fieldError("code", "is invalid or expired")
	acct, err := r.repo.FindByIdentifier(ctx, in.Identifier)
	if errors.Is(err, shared.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return err
	}
	if !roleInPortal(acct.Role, portal) {
		return invalid
	}
	ok, err := r.otp.Verify(ctx, acct.ID, in.Code)
	if err != nil {
		return err
	}
	if !ok {
		return invalid
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), r.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := r.repo.UpdatePassword(ctx, acct.ID, string(hash)); err != nil {
		return err
	}
	r.record(ctx, shared.AuditEntry{
		Action:    shared.AuditReset,
		Module:    AuditModule,
		SubModule: portal,
		ActorID:   acct.ID,
		Actor:     acct.Email,
		Details:   map[string]any{"stage": "completed"},
	})
	r.event("password_reset")
	return nil
}

func roleInPortal(role Role, portal string) bool {
	for _, candidate := range RolesForPortal(portal) {
		if candidate == role {
			return true
		}
	}
	return false
}

// record writes an audit entry. Audit failures are logged and never block
// the authentication flow.
func (r *Resolver) record(ctx context.Context, entry shared.AuditEntry) {
	if r.audit == nil {
		return
	}
	if entry.At.IsZero() {
		entry.At = r.now().UTC()
	}
	if err := r.audit.Record(ctx, entry); err != nil {
		r.logger.Warn("audit record", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

func (r *Resolver) event(name string) {
	if r.events != nil {
		r.events.AuthEvent(name)
	}
}

func usernameFromEmail(email, subject string) string {
	local := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		local = email[:i]
	}
	var b strings.Builder
	for _, c := range local {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	suffix := subject
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	name := b.String()
	if len(name) > 24 {
		name = name[:24]
	}
	return name + suffix
}
