package logistics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/internal/shared"
	"github.com/gol-logistics/gol-portal/internal/visibility"
)

const (
	customerID  = "11111111-1111-1111-1111-111111111111"
	otherID     = "22222222-2222-2222-2222-222222222222"
	merchantID  = "33333333-3333-3333-3333-333333333333"
	providerID  = "44444444-4444-4444-4444-444444444444"
	provider2ID = "55555555-5555-5555-5555-555555555555"
)

// memStore ignores the scope on purpose so the service's own filtering is
// what the tests observe.
type memStore struct {
	mu        sync.Mutex
	providers map[string]*Provider
	orders    []Order
	requests  []ServiceRequest
	jobs      []JobOrder
	pricing   []PricingRequest
	updates   []string
	deleted   []string
	fail      error
	scopes    []visibility.Scope
}

func newMemStore() *memStore {
	p1 := &Provider{ID: providerID, Name: "Harbour Freight", Author: merchantID, Type: ServiceFreight}
	p2 := &Provider{ID: provider2ID, Name: "Other Co", Author: "", Type: ServiceCFS}
	s := &memStore{providers: map[string]*Provider{providerID: p1, provider2ID: p2}}
	s.orders = []Order{
		{ID: "o1", Reference: "GOL-1", Customer: customerID, Provider: providerID, Status: StatusPending, Expand: OrderExpand{Provider: p1}},
		{ID: "o2", Reference: "GOL-2", Customer: otherID, Provider: provider2ID, Status: StatusAccepted, Expand: OrderExpand{Provider: p2}},
		{ID: "o3", Reference: "GOL-3", Customer: otherID, Provider: providerID, Status: StatusInProgress, Expand: OrderExpand{Provider: p1}},
	}
	s.requests = []ServiceRequest{
		{ID: "s1", Customer: customerID, Order: "o1", Status: StatusPending, Expand: ServiceRequestExpand{Order: &s.orders[0]}},
		{ID: "s2", Customer: otherID, Order: "o2", Status: StatusPending, Expand: ServiceRequestExpand{Order: &s.orders[1]}},
		{ID: "s3", Customer: otherID, Order: "o2", Status: StatusPending},
	}
	s.jobs = []JobOrder{
		{ID: "j1", Order: "o3", Status: StatusScheduled, Expand: JobOrderExpand{Order: &s.orders[2]}},
		{ID: "j2", Order: "o2", Status: StatusScheduled, Expand: JobOrderExpand{Order: &s.orders[1]}},
	}
	s.pricing = []PricingRequest{
		{ID: "q1", User: customerID, Provider: providerID, Status: StatusPending, Expand: PricingRequestExpand{Provider: p1}},
		{ID: "q2", User: otherID, Provider: provider2ID, Status: StatusPending, Expand: PricingRequestExpand{Provider: p2}},
	}
	return s
}

func (s *memStore) ListProviders(ctx context.Context) ([]Provider, error) {
	out := make([]Provider, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, *p)
	}
	return out, s.fail
}

func (s *memStore) GetProvider(ctx context.Context, id string) (*Provider, error) {
	if p, ok := s.providers[id]; ok {
		return p, nil
	}
	return nil, shared.ErrNotFound
}

func (s *memStore) ListOrders(ctx context.Context, scope visibility.Scope, filter ListFilter) ([]Order, error) {
	s.mu.Lock()
	s.scopes = append(s.scopes, scope)
	s.mu.Unlock()
	return append([]Order(nil), s.orders...), s.fail
}

func (s *memStore) GetOrder(ctx context.Context, scope visibility.Scope, id string) (*Order, error) {
	for i := range s.orders {
		if s.orders[i].ID == id {
			o := s.orders[i]
			return &o, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *memStore) CreateOrder(ctx context.Context, in NewOrder) (*Order, error) {
	o := Order{ID: "new-order", Reference: in.Reference, Customer: in.Customer, Provider: in.Provider,
		Service: in.Service, Origin: in.Origin, Destination: in.Destination, Status: StatusPending,
		Expand: OrderExpand{Provider: s.providers[in.Provider]}}
	s.orders = append(s.orders, o)
	return &o, nil
}

func (s *memStore) DeleteOrder(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memStore) ListServiceRequests(ctx context.Context, scope visibility.Scope, filter ListFilter) ([]ServiceRequest, error) {
	return append([]ServiceRequest(nil), s.requests...), s.fail
}

func (s *memStore) GetServiceRequest(ctx context.Context, scope visibility.Scope, id string) (*ServiceRequest, error) {
	for i := range s.requests {
		if s.requests[i].ID == id {
			sr := s.requests[i]
			return &sr, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *memStore) CreateServiceRequest(ctx context.Context, in NewServiceRequest) (*ServiceRequest, error) {
	sr := ServiceRequest{ID: "new-request", Customer: in.Customer, Order: in.Order, Type: in.Type, Status: StatusPending}
	return &sr, nil
}

func (s *memStore) ListJobOrders(ctx context.Context, scope visibility.Scope, filter ListFilter) ([]JobOrder, error) {
	return append([]JobOrder(nil), s.jobs...), s.fail
}

func (s *memStore) GetJobOrder(ctx context.Context, scope visibility.Scope, id string) (*JobOrder, error) {
	for i := range s.jobs {
		if s.jobs[i].ID == id {
			j := s.jobs[i]
			return &j, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *memStore) CreateJobOrder(ctx context.Context, orderID, reference string) (*JobOrder, error) {
	return &JobOrder{ID: "new-job", Order: orderID, Reference: reference, Status: StatusScheduled}, nil
}

func (s *memStore) ListPricingRequests(ctx context.Context, scope visibility.Scope, filter ListFilter) ([]PricingRequest, error) {
	return append([]PricingRequest(nil), s.pricing...), s.fail
}

func (s *memStore) GetPricingRequest(ctx context.Context, scope visibility.Scope, id string) (*PricingRequest, error) {
	for i := range s.pricing {
		if s.pricing[i].ID == id {
			pr := s.pricing[i]
			return &pr, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *memStore) CreatePricingRequest(ctx context.Context, in NewPricingRequest) (*PricingRequest, error) {
	return &PricingRequest{ID: "new-quote", User: in.User, Provider: in.Provider, Service: in.Service, Details: in.Details, Status: StatusPending}, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, kind Kind, id string, from, to Status) error {
	s.updates = append(s.updates, string(kind)+":"+id+":"+string(from)+"->"+string(to))
	return nil
}

type auditSpy struct {
	entries []shared.AuditEntry
	err     error
}

func (a *auditSpy) Record(ctx context.Context, entry shared.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return a.err
}

type notifySpy struct {
	orders   []string
	requests []string
}

func (n *notifySpy) OrderConfirmation(ctx context.Context, to string, order Order) {
	n.orders = append(n.orders, to+":"+order.Reference)
}

func (n *notifySpy) ServiceRequestConfirmation(ctx context.Context, to string, request ServiceRequest) {
	n.requests = append(n.requests, to+":"+request.ID)
}

func principal(id string, role identity.Role) *identity.Principal {
	return &identity.Principal{ID: id, Role: role, Email: id + "@example.com"}
}

func newTestService() (*Service, *memStore, *auditSpy, *notifySpy) {
	store := newMemStore()
	audit := &auditSpy{}
	notify := &notifySpy{}
	svc := NewService(store, audit, notify, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC) }
	return svc, store, audit, notify
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, id(item))
	}
	return out
}

func TestListOrdersFiltersByRole(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	orderID := func(o Order) string { return o.ID }

	got, err := svc.ListOrders(ctx, principal(customerID, identity.RoleCustomer), ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, ids(got, orderID))

	got, err = svc.ListOrders(ctx, principal(merchantID, identity.RoleMerchant), ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"o1", "o3"}, ids(got, orderID))

	got, err = svc.ListOrders(ctx, principal("staff", identity.RoleGOLStaff), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = svc.ListOrders(ctx, nil, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListJobsFollowsOrderChain(t *testing.T) {
	svc, _, _, _ := newTestService()
	jobID := func(j JobOrder) string { return j.ID }

	got, err := svc.ListJobOrders(context.Background(), principal(merchantID, identity.RoleMerchant), ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"j1"}, ids(got, jobID))

	got, err = svc.ListJobOrders(context.Background(), principal(otherID, identity.RoleCustomer), ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"j1", "j2"}, ids(got, jobID))
}

func TestListServiceRequestsMissingExpandHiddenFromMerchant(t *testing.T) {
	svc, _, _, _ := newTestService()
	got, err := svc.ListServiceRequests(context.Background(), principal(merchantID, identity.RoleMerchant), ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids(got, func(sr ServiceRequest) string { return sr.ID }))
}

func TestGetOrderOutsideScopeIsNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.GetOrder(context.Background(), principal(customerID, identity.RoleCustomer), "o2")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	o, err := svc.GetOrder(context.Background(), principal("root", identity.RoleRoot), "o2")
	require.NoError(t, err)
	assert.Equal(t, "GOL-2", o.Reference)
}

func TestCreateOrder(t *testing.T) {
	svc, _, audit, notify := newTestService()
	ctx := context.Background()
	in := OrderInput{ProviderID: providerID, Service: ServiceFreight, Origin: " Jakarta ", Destination: "Surabaya"}

	_, err := svc.CreateOrder(ctx, principal(merchantID, identity.RoleMerchant), in)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	o, err := svc.CreateOrder(ctx, principal(customerID, identity.RoleCustomer), in)
	require.NoError(t, err)
	assert.Equal(t, "Jakarta", o.Origin)
	assert.Regexp(t, `^GOL-250304-[0-9A-F]{6}$`, o.Reference)
	assert.Equal(t, StatusPending, o.Status)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, shared.AuditCreate, audit.entries[0].Action)
	assert.Equal(t, "Orders", audit.entries[0].Module)
	assert.Equal(t, customerID, audit.entries[0].ActorID)
	assert.Equal(t, []string{customerID + "@example.com:" + o.Reference}, notify.orders)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _, audit, _ := newTestService()
	p := principal(customerID, identity.RoleCustomer)

	_, err := svc.CreateOrder(context.Background(), p, OrderInput{ProviderID: "nope", Service: "Teleport"})
	require.ErrorIs(t, err, shared.ErrValidation)
	fields := identity.FieldErrors(err)
	assert.Contains(t, fields, "provider_id")
	assert.Contains(t, fields, "origin")
	assert.Equal(t, "is unknown", fields["service"])

	_, err = svc.CreateOrder(context.Background(), p, OrderInput{
		ProviderID: "66666666-6666-6666-6666-666666666666", Service: ServiceCFS, Origin: "A", Destination: "B",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "is unknown", identity.FieldErrors(err)["provider_id"])
	assert.Empty(t, audit.entries)
}

func TestCreateServiceRequestRequiresOwnOrder(t *testing.T) {
	svc, _, _, notify := newTestService()
	p := principal(customerID, identity.RoleCustomer)

	_, err := svc.CreateServiceRequest(context.Background(), p, ServiceRequestInput{OrderID: otherID, Type: "Inspection"})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "is not one of your orders", identity.FieldErrors(err)["order_id"])
	assert.Empty(t, notify.requests)
}

func TestUpdateStatus(t *testing.T) {
	cases := []struct {
		name    string
		p       *identity.Principal
		kind    Kind
		id      string
		to      Status
		wantErr error
	}{
		{"merchant accepts own order", principal(merchantID, identity.RoleMerchant), KindOrder, "o1", StatusAccepted, nil},
		{"merchant cannot see foreign order", principal(merchantID, identity.RoleMerchant), KindOrder, "o2", StatusCompleted, shared.ErrNotFound},
		{"customer cancels own order", principal(customerID, identity.RoleCustomer), KindOrder, "o1", StatusCancelled, nil},
		{"customer cannot accept", principal(customerID, identity.RoleCustomer), KindOrder, "o1", StatusAccepted, shared.ErrForbidden},
		{"staff invalid transition", principal("staff", identity.RoleGOLStaff), KindOrder, "o1", StatusCompleted, ErrInvalidTransition},
		{"staff moves job", principal("staff", identity.RoleGOLStaff), KindJobOrder, "j2", StatusInTransit, nil},
		{"customer closes quote", principal(customerID, identity.RoleCustomer), KindPricingRequest, "q1", StatusClosed, nil},
		{"nil principal", nil, KindOrder, "o1", StatusCancelled, shared.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, audit, _ := newTestService()
			err := svc.UpdateStatus(context.Background(), tc.p, tc.kind, tc.id, tc.to)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, store.updates)
				assert.Empty(t, audit.entries)
				return
			}
			require.NoError(t, err)
			require.Len(t, store.updates, 1)
			require.Len(t, audit.entries, 1)
			assert.Equal(t, shared.AuditUpdate, audit.entries[0].Action)
			assert.Equal(t, string(tc.to), audit.entries[0].Details["to"])
		})
	}
}

func TestAuditFailureDoesNotBlockMutation(t *testing.T) {
	svc, store, audit, _ := newTestService()
	audit.err = errors.New("audit down")
	err := svc.UpdateStatus(context.Background(), principal("mod", identity.RoleGOLMod), KindOrder, "o2", StatusInProgress)
	require.NoError(t, err)
	assert.Len(t, store.updates, 1)
}

func TestCreateJobOrder(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateJobOrder(ctx, principal(merchantID, identity.RoleMerchant), "o1")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.CreateJobOrder(ctx, principal("staff", identity.RoleGOLStaff), "o1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	j, err := svc.CreateJobOrder(ctx, principal("staff", identity.RoleGOLStaff), "o2")
	require.NoError(t, err)
	assert.Regexp(t, `^JO-250304-`, j.Reference)
	assert.Equal(t, StatusScheduled, j.Status)
}

func TestDeleteOrderRequiresModerator(t *testing.T) {
	svc, store, audit, _ := newTestService()
	ctx := context.Background()

	err := svc.DeleteOrder(ctx, principal("staff", identity.RoleGOLStaff), "o1")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	require.NoError(t, svc.DeleteOrder(ctx, principal("mod", identity.RoleGOLMod), "o1"))
	assert.Equal(t, []string{"o1"}, store.deleted)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, shared.AuditDelete, audit.entries[0].Action)
}

func TestDashboard(t *testing.T) {
	svc, _, _, _ := newTestService()
	dash, err := svc.Dashboard(context.Background(), principal(merchantID, identity.RoleMerchant))
	require.NoError(t, err)
	assert.Equal(t, 2, dash.Totals[KindOrder])
	assert.Equal(t, 1, dash.Totals[KindServiceRequest])
	assert.Equal(t, 1, dash.Totals[KindJobOrder])
	assert.Equal(t, 1, dash.Totals[KindPricingRequest])
	assert.Equal(t, 1, dash.Counts[KindOrder][StatusPending])
	assert.Len(t, dash.Recent, 2)
}

func TestDashboardPropagatesStoreFailure(t *testing.T) {
	svc, store, _, _ := newTestService()
	store.fail = shared.Unavailable("list", errors.New("connection refused"))
	_, err := svc.Dashboard(context.Background(), principal(customerID, identity.RoleCustomer))
	assert.ErrorIs(t, err, shared.ErrUnavailable)
}
