package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gol-logistics/gol-portal/internal/identity"
)

type provider struct{ Author string }

type order struct {
	ID       string
	Customer string
	Provider *provider
}

type request struct {
	ID    string
	Order *order
}

var orderPolicy = Policy[order]{
	Customer: func(o order) (string, bool) { return o.Customer, o.Customer != "" },
	Merchant: func(o order) (string, bool) {
		if o.Provider == nil || o.Provider.Author == "" {
			return "", false
		}
		return o.Provider.Author, true
	},
}

var requestPolicy = Policy[request]{
	Customer: func(r request) (string, bool) {
		if r.Order == nil {
			return "", false
		}
		return orderPolicy.Customer(*r.Order)
	},
	Merchant: func(r request) (string, bool) {
		if r.Order == nil {
			return "", false
		}
		return orderPolicy.Merchant(*r.Order)
	},
}

func fixtures() []order {
	return []order{
		{ID: "o1", Customer: "cust-1", Provider: &provider{Author: "merch-1"}},
		{ID: "o2", Customer: "cust-2", Provider: &provider{Author: "merch-1"}},
		{ID: "o3", Customer: "cust-1", Provider: nil},
		{ID: "o4", Customer: "", Provider: &provider{Author: "merch-2"}},
		{ID: "o5", Customer: "cust-3", Provider: &provider{}},
	}
}

func ids(orders []order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
	}
	return out
}

func TestFilterCustomerSeesDirectOwnershipOnly(t *testing.T) {
	p := &identity.Principal{ID: "cust-1", Role: identity.RoleCustomer}
	got := Filter(fixtures(), p, orderPolicy)
	assert.Equal(t, []string{"o1", "o3"}, ids(got))
	for _, o := range got {
		assert.Equal(t, p.ID, o.Customer)
	}
}

func TestFilterMerchantFollowsProviderChain(t *testing.T) {
	p := &identity.Principal{ID: "merch-1", Role: identity.RoleMerchant}
	assert.Equal(t, []string{"o1", "o2"}, ids(Filter(fixtures(), p, orderPolicy)))

	reqs := []request{
		{ID: "r1", Order: &fixtures()[0]},
		{ID: "r2", Order: nil},
		{ID: "r3", Order: &order{ID: "ox", Provider: nil}},
		{ID: "r4", Order: &fixtures()[3]},
	}
	got := Filter(reqs, p, requestPolicy)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
}

func TestFilterInternalRolesSeeEverything(t *testing.T) {
	for _, role := range []identity.Role{identity.RoleGOLStaff, identity.RoleGOLMod, identity.RoleRoot} {
		p := &identity.Principal{ID: "staff", Role: role}
		assert.Equal(t, fixtures(), Filter(fixtures(), p, orderPolicy), role.String())
	}
}

func TestFilterFailsClosed(t *testing.T) {
	assert.Empty(t, Filter(fixtures(), nil, orderPolicy))
	assert.NotNil(t, Filter(fixtures(), nil, orderPolicy))
	assert.Empty(t, Filter(fixtures(), &identity.Principal{ID: "x", Role: identity.Role(9)}, orderPolicy))
	assert.Empty(t, Filter(fixtures(), &identity.Principal{Role: identity.RoleCustomer}, orderPolicy))

	// a policy without a merchant accessor hides everything from merchants
	custOnly := Policy[order]{Customer: orderPolicy.Customer}
	assert.Empty(t, Filter(fixtures(), &identity.Principal{ID: "merch-1", Role: identity.RoleMerchant}, custOnly))
}

func TestFilterNilAndEmptyInput(t *testing.T) {
	p := &identity.Principal{ID: "cust-1", Role: identity.RoleCustomer}
	assert.Nil(t, Filter[order](nil, p, orderPolicy))
	got := Filter([]order{}, p, orderPolicy)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestVisible(t *testing.T) {
	o := fixtures()[0]
	assert.True(t, Visible(o, &identity.Principal{ID: "cust-1", Role: identity.RoleCustomer}, orderPolicy))
	assert.False(t, Visible(o, &identity.Principal{ID: "cust-2", Role: identity.RoleCustomer}, orderPolicy))
	assert.True(t, Visible(o, &identity.Principal{ID: "merch-1", Role: identity.RoleMerchant}, orderPolicy))
	assert.False(t, Visible(o, &identity.Principal{ID: "cust-1", Role: identity.RoleMerchant}, orderPolicy))
	assert.False(t, Visible(o, nil, orderPolicy))
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, Scope{Kind: ScopeNone}, ScopeFor(nil))
	assert.Equal(t, Scope{Kind: ScopeCustomer, PrincipalID: "c"}, ScopeFor(&identity.Principal{ID: "c", Role: identity.RoleCustomer}))
	assert.Equal(t, Scope{Kind: ScopeMerchant, PrincipalID: "m"}, ScopeFor(&identity.Principal{ID: "m", Role: identity.RoleMerchant}))
	assert.Equal(t, ScopeAll, ScopeFor(&identity.Principal{ID: "s", Role: identity.RoleGOLMod}).Kind)
	assert.Equal(t, ScopeNone, ScopeFor(&identity.Principal{ID: "s", Role: identity.Role(0)}).Kind)
}

func TestScopeClause(t *testing.T) {
	clause, bind := ScopeFor(&identity.Principal{ID: "c", Role: identity.RoleCustomer}).Clause("o.customer_id", "p.author_id", 3)
	assert.Equal(t, "o.customer_id = $3::uuid", clause)
	assert.True(t, bind)

	clause, bind = ScopeFor(&identity.Principal{ID: "m", Role: identity.RoleMerchant}).Clause("o.customer_id", "p.author_id", 1)
	assert.Equal(t, "p.author_id = $1::uuid", clause)
	assert.True(t, bind)

	clause, bind = ScopeFor(&identity.Principal{ID: "r", Role: identity.RoleRoot}).Clause("a", "b", 1)
	assert.Equal(t, "TRUE", clause)
	assert.False(t, bind)

	clause, bind = ScopeFor(nil).Clause("a", "b", 1)
	assert.Equal(t, "FALSE", clause)
	assert.False(t, bind)
}
