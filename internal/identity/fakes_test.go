package identity

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/gol-logistics/gol-portal/internal/shared"
)

type memRepo struct {
	mu       sync.Mutex
	accounts map[string]*Account
	seq      int
}

func newMemRepo() *memRepo {
	return &memRepo{accounts: map[string]*Account{}}
}

func (m *memRepo) seed(t *testing.T, email, username, password string, role Role, status Status) *Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	acct, err := m.Create(context.Background(), NewAccount{
		Email: email, Username: username, PasswordHash: string(hash), Role: role, Status: status,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return acct
}

func (m *memRepo) FindByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := strings.ToLower(strings.TrimSpace(identifier))
	for _, a := range m.accounts {
		if strings.ToLower(a.Email) == id || strings.ToLower(a.Username) == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memRepo) FindByID(ctx context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, shared.ErrNotFound
}

func (m *memRepo) FindByOAuth(ctx context.Context, provider, subject string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.OAuthProvider == provider && a.OAuthSubject == subject {
			cp := *a
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memRepo) Create(ctx context.Context, in NewAccount) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, in.Email) || strings.EqualFold(a.Username, in.Username) {
			return nil, ErrDuplicateAccount
		}
	}
	m.seq++
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Account{
		ID:            "acct-" + strconv.Itoa(m.seq),
		Email:         in.Email,
		Username:      in.Username,
		PasswordHash:  in.PasswordHash,
		Role:          in.Role,
		Status:        in.Status,
		Profile:       in.Profile,
		OAuthProvider: in.OAuthProvider,
		OAuthSubject:  in.OAuthSubject,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.accounts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *memRepo) UpdateRoleStatus(ctx context.Context, id string, role Role, status Status) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	a.Role, a.Status = role, status
	cp := *a
	return &cp, nil
}

func (m *memRepo) UpdateProfile(ctx context.Context, id string, profile Profile) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	a.Profile = profile
	cp := *a
	return &cp, nil
}

func (m *memRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (m *memRepo) List(ctx context.Context, filter AccountFilter) ([]Account, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, *a)
	}
	return out, len(out), nil
}

type auditSpy struct {
	mu      sync.Mutex
	entries []shared.AuditEntry
	// principalAt captures the state's principal at record time.
	state       *State
	principalAt []*Principal
}

func (a *auditSpy) Record(ctx context.Context, entry shared.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	if a.state != nil {
		a.principalAt = append(a.principalAt, a.state.Principal())
	}
	return nil
}

func (a *auditSpy) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type eventSpy struct {
	events []string
}

func (e *eventSpy) AuthEvent(event string) {
	e.events = append(e.events, event)
}

type notifySpy struct {
	welcomes []string
	codes    map[string]string
}

func (n *notifySpy) Welcome(ctx context.Context, to, name string, role Role) {
	n.welcomes = append(n.welcomes, to+":"+role.String())
}

func (n *notifySpy) PasswordResetCode(ctx context.Context, to, code string) {
	if n.codes == nil {
		n.codes = map[string]string{}
	}
	n.codes[to] = code
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
