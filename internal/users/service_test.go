package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/internal/shared"
)

type repoStub struct {
	identity.Repository
	accounts map[string]identity.Account
	filter   identity.AccountFilter
	listErr  error
}

func (r *repoStub) FindByID(ctx context.Context, id string) (*identity.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (r *repoStub) UpdateRoleStatus(ctx context.Context, id string, role identity.Role, status identity.Status) (*identity.Account, error) {
	a := r.accounts[id]
	a.Role, a.Status = role, status
	r.accounts[id] = a
	return &a, nil
}

func (r *repoStub) List(ctx context.Context, filter identity.AccountFilter) ([]identity.Account, int, error) {
	r.filter = filter
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	out := make([]identity.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, 45, nil
}

type registrarStub struct {
	calls int
	role  identity.Role
	err   error
}

func (s *registrarStub) Register(ctx context.Context, actor *identity.Principal, in identity.RegisterInput, role identity.Role) (*identity.Principal, error) {
	s.calls++
	s.role = role
	if s.err != nil {
		return nil, s.err
	}
	return &identity.Principal{ID: "new", Role: role, Email: in.Email, Username: in.Username, Status: identity.StatusActive}, nil
}

type auditStub struct {
	entries []shared.AuditEntry
	err     error
}

func (a *auditStub) Record(ctx context.Context, entry shared.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return a.err
}

var (
	root      = &identity.Principal{ID: "root-1", Role: identity.RoleRoot, Username: "root"}
	moderator = &identity.Principal{ID: "mod-1", Role: identity.RoleGOLMod, Username: "mod"}
)

func newFixture() (*Service, *repoStub, *registrarStub, *auditStub) {
	repo := &repoStub{accounts: map[string]identity.Account{
		"root-1": {ID: "root-1", Username: "root", Role: identity.RoleRoot, Status: identity.StatusActive},
		"m-1":    {ID: "m-1", Username: "harbour", Email: "ops@harbour.test", Role: identity.RoleMerchant, Status: identity.StatusPending},
	}}
	reg := &registrarStub{}
	audit := &auditStub{}
	return NewService(repo, reg, audit, nil), repo, reg, audit
}

func TestListRequiresRoot(t *testing.T) {
	svc, _, _, _ := newFixture()
	_, err := svc.List(context.Background(), moderator, ListQuery{})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.List(context.Background(), nil, ListQuery{})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestListBuildsFilter(t *testing.T) {
	svc, repo, _, _ := newFixture()
	res, err := svc.List(context.Background(), root, ListQuery{Role: "Merchant", Status: "Bogus", Search: " harbour ", Page: 3})
	require.NoError(t, err)

	require.NotNil(t, repo.filter.Role)
	assert.Equal(t, identity.RoleMerchant, *repo.filter.Role)
	assert.Nil(t, repo.filter.Status)
	assert.Equal(t, "harbour", repo.filter.Search)
	assert.Equal(t, PerPage, repo.filter.Limit)
	assert.Equal(t, 40, repo.filter.Offset)

	assert.Equal(t, 3, res.Pagination.Page)
	assert.Equal(t, 3, res.Pagination.TotalPages)
	assert.False(t, res.Pagination.HasNext())
	assert.Empty(t, res.Query.Status)
}

func TestListPropagatesStoreFailure(t *testing.T) {
	svc, repo, _, _ := newFixture()
	repo.listErr = shared.Unavailable("list accounts", errors.New("conn refused"))
	_, err := svc.List(context.Background(), root, ListQuery{})
	assert.ErrorIs(t, err, shared.ErrUnavailable)
}

func TestSetStatus(t *testing.T) {
	cases := []struct {
		name   string
		actor  *identity.Principal
		id     string
		status identity.Status
		err    error
	}{
		{"approve merchant", root, "m-1", identity.StatusActive, nil},
		{"moderator forbidden", moderator, "m-1", identity.StatusActive, shared.ErrForbidden},
		{"own account", root, "root-1", identity.StatusSuspended, shared.ErrForbidden},
		{"unknown account", root, "nope", identity.StatusActive, shared.ErrNotFound},
		{"invalid status", root, "m-1", identity.Status("Deleted"), shared.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _, audit := newFixture()
			acct, err := svc.SetStatus(context.Background(), tc.actor, tc.id, tc.status)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Empty(t, audit.entries)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.status, acct.Status)
			assert.Equal(t, tc.status, repo.accounts[tc.id].Status)
			require.Len(t, audit.entries, 1)
			e := audit.entries[0]
			assert.Equal(t, shared.AuditUpdate, e.Action)
			assert.Equal(t, AuditModule, e.Module)
			assert.Equal(t, "client", e.SubModule)
			assert.Equal(t, "Pending", e.Details["from"])
			assert.Equal(t, "Active", e.Details["to"])
		})
	}
}

func TestSetStatusUnchangedIsNotAudited(t *testing.T) {
	svc, _, _, audit := newFixture()
	acct, err := svc.SetStatus(context.Background(), root, "m-1", identity.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusPending, acct.Status)
	assert.Empty(t, audit.entries)
}

func TestSetStatusAuditFailureDoesNotBlock(t *testing.T) {
	svc, _, _, audit := newFixture()
	audit.err = errors.New("audit down")
	_, err := svc.SetStatus(context.Background(), root, "m-1", identity.StatusSuspended)
	assert.NoError(t, err)
}

func TestCreateStaff(t *testing.T) {
	svc, _, reg, _ := newFixture()
	in := identity.RegisterInput{Email: "ops@gol.test", Username: "ops1", Password: "longenough", PasswordConfirm: "longenough"}

	p, err := svc.CreateStaff(context.Background(), root, in, identity.RoleGOLMod)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleGOLMod, p.Role)
	assert.Equal(t, identity.RoleGOLMod, reg.role)

	_, err = svc.CreateStaff(context.Background(), root, in, identity.RoleCustomer)
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateStaff(context.Background(), moderator, in, identity.RoleGOLStaff)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Equal(t, 1, reg.calls)
}
