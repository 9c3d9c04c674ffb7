package logistics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gol-logistics/gol-portal/internal/platform/db"
	"github.com/gol-logistics/gol-portal/internal/shared"
	"github.com/gol-logistics/gol-portal/internal/visibility"
)

// ListFilter narrows record listings.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// NewOrder carries a validated order.
type NewOrder struct {
	Reference   string
	Customer    string
	Provider    string
	Service     ServiceType
	Origin      string
	Destination string
	Notes       string
}

// NewServiceRequest carries a validated service request.
type NewServiceRequest struct {
	Customer string
	Order    string
	Type     string
	Remarks  string
}

// NewPricingRequest carries a validated pricing request.
type NewPricingRequest struct {
	User     string
	Provider string
	Service  ServiceType
	Details  string
}

// Store is the record store. Every read takes the caller's scope and never
// returns rows outside it.
type Store interface {
	ListProviders(ctx context.Context) ([]Provider, error)
	GetProvider(ctx context.Context, id string) (*Provider, error)

	ListOrders(ctx context.Context, scope visibility.Scope, filter ListFilter) ([]Order, error)
	GetOrder(ctx context.Context, scope visibility.Scope, id string) (*Order, error)
	CreateOrder(ctx context.Context, in NewOrder) (*Order, error)
	DeleteOrder(ctx context.Context, id string) error

	ListServiceRequests(ctx context.Context, scope visibility.Scope, filter ListFilter) ([]ServiceRequest, error)
	GetServiceRequest(ctx context.Context, scope visibility.Scope, id string) (*ServiceRequest, error)
	CreateServiceRequest(ctx context.Context, in NewServiceRequest) (*ServiceRequest, error)

	ListJobOrders(ctx context.Context, scope visibility.Scope, filter ListFilter) ([]JobOrder, error)
	GetJobOrder(ctx context.Context, scope visibility.Scope, id string) (*JobOrder, error)
	CreateJobOrder(ctx context.Context, orderID, reference string) (*JobOrder, error)

	ListPricingRequests(ctx context.Context, scope visibility.Scope, filter ListFilter) ([]PricingRequest, error)
	GetPricingRequest(ctx context.Context, scope visibility.Scope, id string) (*PricingRequest, error)
	CreatePricingRequest(ctx context.Context, in NewPricingRequest) (*PricingRequest, error)

	UpdateStatus(ctx context.Context, kind Kind, id string, from, to Status) error
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PGStore.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const (
	providerColumns = `p.id::text, p.name, p.author_id::text, p.service_type`
	orderColumns    = `o.id::text, o.reference, o.customer_id::text, o.provider_id::text, o.service, o.status,
	o.origin, o.destination, COALESCE(o.notes, ''), o.created_at, o.updated_at`

	orderSelect = `SELECT ` + orderColumns + `, ` + providerColumns + `
FROM orders o LEFT JOIN providers p ON p.id = o.provider_id`
	requestSelect = `SELECT sr.id::text, sr.customer_id::text, sr.order_id::text, sr.type, sr.status,
	COALESCE(sr.remarks, ''), sr.created_at, sr.updated_at, ` + orderColumns + `, ` + providerColumns + `
FROM service_requests sr
LEFT JOIN orders o ON o.id = sr.order_id
LEFT JOIN providers p ON p.id = o.provider_id`
	jobSelect = `SELECT j.id::text, j.order_id::text, j.reference, j.status, j.created_at, j.updated_at,
	` + orderColumns + `, ` + providerColumns + `
FROM job_orders j
LEFT JOIN orders o ON o.id = j.order_id
LEFT JOIN providers p ON p.id = o.provider_id`
	pricingSelect = `SELECT pr.id::text, pr.user_id::text, pr.provider_id::text, pr.service, pr.details, pr.status,
	pr.created_at, pr.updated_at, ` + providerColumns + `
FROM pricing_requests pr LEFT JOIN providers p ON p.id = pr.provider_id`
)

// scope columns per collection: customer owner, merchant owner.
var scopeColumns = map[Kind][2]string{
	KindOrder:          {"o.customer_id", "p.author_id"},
	KindServiceRequest: {"sr.customer_id", "p.author_id"},
	KindJobOrder:       {"o.customer_id", "p.author_id"},
	KindPricingRequest: {"pr.user_id", "p.author_id"},
}

var tables = map[Kind]struct{ table, alias string }{
	KindOrder:          {"orders", "o"},
	KindServiceRequest: {"service_requests", "sr"},
	KindJobOrder:       {"job_orders", "j"},
	KindPricingRequest: {"pricing_requests", "pr"},
}

// where builds the scope and filter predicate. id, when set, selects one row.
func where(kind Kind, scope visibility.Scope, filter ListFilter, id string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	cols := scopeColumns[kind]
	clause, bind := scope.Clause(cols[0], cols[1], len(args)+1)
	if bind {
		args = append(args, scope.PrincipalID)
	}
	clauses = append(clauses, clause)
	alias := tables[kind].alias
	if id != "" {
		args = append(args, id)
		clauses = append(clauses, fmt.Sprintf("%s.id = $%d::uuid", alias, len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("%s.status = $%d", alias, len(args)))
	}
	sql := " WHERE " + strings.Join(clauses, " AND ")
	if id == "" {
		sql += fmt.Sprintf(" ORDER BY %s.created_at DESC", alias)
		if filter.Limit > 0 {
			args = append(args, filter.Limit, filter.Offset)
			sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
		}
	}
	return sql, args
}

// nullProvider receives LEFT JOINed provider columns.
type nullProvider struct {
	ID, Name, Author, Type *string
}

func (n *nullProvider) targets() []any {
	return []any{&n.ID, &n.Name, &n.Author, &n.Type}
}

func (n *nullProvider) value() *Provider {
	if n.ID == nil {
		return nil
	}
	return &Provider{ID: *n.ID, Name: deref(n.Name), Author: deref(n.Author), Type: ServiceType(deref(n.Type))}
}

// nullOrder receives LEFT JOINed order columns.
type nullOrder struct {
	ID, Reference, Customer, Provider, Service, Status, Origin, Destination, Notes *string
	CreatedAt, UpdatedAt                                                          *time.Time
}

func (n *nullOrder) targets() []any {
	return []any{&n.ID, &n.Reference, &n.Customer, &n.Provider, &n.Service, &n.Status,
		&n.Origin, &n.Destination, &n.Notes, &n.CreatedAt, &n.UpdatedAt}
}

func (n *nullOrder) value(provider *Provider) *Order {
	if n.ID == nil {
		return nil
	}
	o := &Order{
		ID:          *n.ID,
		Reference:   deref(n.Reference),
		Customer:    deref(n.Customer),
		Provider:    deref(n.Provider),
		Service:     ServiceType(deref(n.Service)),
		Status:      Status(deref(n.Status)),
		Origin:      deref(n.Origin),
		Destination: deref(n.Destination),
		Notes:       deref(n.Notes),
		Expand:      OrderExpand{Provider: provider},
	}
	if n.CreatedAt != nil {
		o.CreatedAt = *n.CreatedAt
	}
	if n.UpdatedAt != nil {
		o.UpdatedAt = *n.UpdatedAt
	}
	return o
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o nullOrder
		p nullProvider
	)
	if err := row.Scan(append(o.targets(), p.targets()...)...); err != nil {
		return nil, err
	}
	return o.value(p.value()), nil
}

func scanServiceRequest(row pgx.Row) (*ServiceRequest, error) {
	var (
		sr       ServiceRequest
		customer *string
		orderID  *string
		status   string
		o        nullOrder
		p        nullProvider
	)
	targets := []any{&sr.ID, &customer, &orderID, &sr.Type, &status, &sr.Remarks, &sr.CreatedAt, &sr.UpdatedAt}
	targets = append(targets, o.targets()...)
	targets = append(targets, p.targets()...)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	sr.Customer = deref(customer)
	sr.Order = deref(orderID)
	sr.Status = Status(status)
	sr.Expand.Order = o.value(p.value())
	return &sr, nil
}

func scanJobOrder(row pgx.Row) (*JobOrder, error) {
	var (
		j       JobOrder
		orderID *string
		status  string
		o       nullOrder
		p       nullProvider
	)
	targets := []any{&j.ID, &orderID, &j.Reference, &status, &j.CreatedAt, &j.UpdatedAt}
	targets = append(targets, o.targets()...)
	targets = append(targets, p.targets()...)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	j.Order = deref(orderID)
	j.Status = Status(status)
	j.Expand.Order = o.value(p.value())
	return &j, nil
}

func scanPricingRequest(row pgx.Row) (*PricingRequest, error) {
	var (
		pr       PricingRequest
		user     *string
		provider *string
		service  string
		status   string
		p        nullProvider
	)
	targets := []any{&pr.ID, &user, &provider, &service, &pr.Details, &status, &pr.CreatedAt, &pr.UpdatedAt}
	targets = append(targets, p.targets()...)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	pr.User = deref(user)
	pr.Provider = deref(provider)
	pr.Service = ServiceType(service)
	pr.Status = Status(status)
	pr.Expand.Provider = p.value()
	return &pr, nil
}

// list runs a scoped query. An empty scope short-circuits without a query.
func list[T any](ctx context.Context, pool *pgxpool.Pool, kind Kind, base string, scope visibility.Scope, filter ListFilter, scan func(pgx.Row) (*T, error)) ([]T, error) {
	if scope.Empty() {
		return []T{}, nil
	}
	clause, args := where(kind, scope, filter, "")
	rows, err := pool.Query(ctx, base+clause, args...)
	if err != nil {
		return nil, shared.Unavailable("list "+string(kind), err)
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, shared.Unavailable("scan "+string(kind), err)
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Unavailable("list "+string(kind), err)
	}
	return out, nil
}

// recordID canonicalises a path or form id. Anything that is not a uuid
// cannot name a row.
func recordID(id string) (string, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

func get[T any](ctx context.Context, pool *pgxpool.Pool, kind Kind, base string, scope visibility.Scope, id string, scan func(pgx.Row) (*T, error)) (*T, error) {
	key, ok := recordID(id)
	if scope.Empty() || !ok {
		return nil, shared.ErrNotFound
	}
	clause, args := where(kind, scope, ListFilter{}, key)
	item, err := scan(pool.QueryRow(ctx, base+clause, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, shared.Unavailable("get "+string(kind), err)
	}
	return item, nil
}

// ListProviders returns every provider by name.
func (s *PGStore) ListProviders(ctx context.Context) ([]Provider, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+providerColumns+` FROM providers p ORDER BY p.name`)
	if err != nil {
		return nil, shared.Unavailable("list providers", err)
	}
	defer rows.Close()
	out := []Provider{}
	for rows.Next() {
		var p nullProvider
		if err := rows.Scan(p.targets()...); err != nil {
			return nil, shared.Unavailable("scan provider", err)
		}
		if v := p.value(); v != nil {
			out = append(out, *v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Unavailable("list providers", err)
	}
	return out, nil
}

// GetProvider fetches a provider.
func (s *PGStore) GetProvider(ctx context.Context, id string) (*Provider, error) {
	key, ok := recordID(id)
	if !ok {
		return nil, shared.ErrNotFound
	}
	var p nullProvider
	err := s.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers p WHERE p.id = $1::uuid`, key).Scan(p.targets()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, shared.Unavailable("get provider", err)
	}
	return p.value(), nil
}

// ListOrders returns the orders within scope.
func (s *PGStore) ListOrders(ctx context.Context, scope visibility.Scope, filter ListFilter) ([]Order, error) {
	return list(ctx, s.pool, KindOrder, orderSelect, scope, filter, scanOrder)
}

// GetOrder fetches one order within scope.
func (s *PGStore) GetOrder(ctx context.Context, scope visibility.Scope, id string) (*Order, error) {
	return get(ctx, s.pool, KindOrder, orderSelect, scope, id, scanOrder)
}

// CreateOrder inserts an order in its initial status.
func (s *PGStore) CreateOrder(ctx context.Context, in NewOrder) (*Order, error) {
	var id string
	err := s.pool.QueryRow(ctx, `INSERT INTO orders (reference, customer_id, provider_id, service, status, origin, destination, notes)
VALUES ($1, $2::uuid, NULLIF($3, '')::uuid, $4, $5, $6, $7, NULLIF($8, '')) RETURNING id::text`,
		in.Reference, in.Customer, in.Provider, string(in.Service), string(initialStatus[KindOrder]),
		in.Origin, in.Destination, in.Notes).Scan(&id)
	if err != nil {
		return nil, shared.Unavailable("create order", err)
	}
	return s.GetOrder(ctx, visibility.Scope{Kind: visibility.ScopeAll}, id)
}

// DeleteOrder removes an order with its service requests and job orders.
func (s *PGStore) DeleteOrder(ctx context.Context, id string) error {
	id, ok := recordID(id)
	if !ok {
		return shared.ErrNotFound
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM service_requests WHERE order_id = $1::uuid`, id); err != nil {
			return shared.Unavailable("delete order requests", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM job_orders WHERE order_id = $1::uuid`, id); err != nil {
			return shared.Unavailable("delete order jobs", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1::uuid`, id)
		if err != nil {
			return shared.Unavailable("delete order", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// ListServiceRequests returns the service requests within scope.
func (s *PGStore) ListServiceRequests(ctx context.Context, scope visibility.Scope, filter ListFilter) ([]ServiceRequest, error) {
	return list(ctx, s.pool, KindServiceRequest, requestSelect, scope, filter, scanServiceRequest)
}

// GetServiceRequest fetches one service request within scope.
func (s *PGStore) GetServiceRequest(ctx context.Context, scope visibility.Scope, id string) (*ServiceRequest, error) {
	return get(ctx, s.pool, KindServiceRequest, requestSelect, scope, id, scanServiceRequest)
}

// CreateServiceRequest inserts a service request in its initial status.
func (s *PGStore) CreateServiceRequest(ctx context.Context, in NewServiceRequest) (*ServiceRequest, error) {
	var id string
	err := s.pool.QueryRow(ctx, `INSERT INTO service_requests (customer_id, order_id, type, status, remarks)
VALUES ($1::uuid, $2::uuid, $3, $4, NULLIF($5, '')) RETURNING id::text`,
		in.Customer, in.Order, in.Type, string(initialStatus[KindServiceRequest]), in.Remarks).Scan(&id)
	if err != nil {
		return nil, shared.Unavailable("create service request", err)
	}
	return s.GetServiceRequest(ctx, visibility.Scope{Kind: visibility.ScopeAll}, id)
}

// ListJobOrders returns the job orders within scope.
func (s *PGStore) ListJobOrders(ctx context.Context, scope visibility.Scope, filter ListFilter) ([]JobOrder, error) {
	return list(ctx, s.pool, KindJobOrder, jobSelect, scope, filter, scanJobOrder)
}

// GetJobOrder fetches one job order within scope.
func (s *PGStore) GetJobOrder(ctx context.Context, scope visibility.Scope, id string) (*JobOrder, error) {
	return get(ctx, s.pool, KindJobOrder, jobSelect, scope, id, scanJobOrder)
}

// CreateJobOrder inserts a job order for an order.
func (s *PGStore) CreateJobOrder(ctx context.Context, orderID, reference string) (*JobOrder, error) {
	var id string
	err := s.pool.QueryRow(ctx, `INSERT INTO job_orders (order_id, reference, status) VALUES ($1::uuid, $2, $3) RETURNING id::text`,
		orderID, reference, string(initialStatus[KindJobOrder])).Scan(&id)
	if err != nil {
		return nil, shared.Unavailable("create job order", err)
	}
	return s.GetJobOrder(ctx, visibility.Scope{Kind: visibility.ScopeAll}, id)
}

// ListPricingRequests returns the pricing requests within scope.
func (s *PGStore) ListPricingRequests(ctx context.Context, scope visibility.Scope, filter ListFilter) ([]PricingRequest, error) {
	return list(ctx, s.pool, KindPricingRequest, pricingSelect, scope, filter, scanPricingRequest)
}

// GetPricingRequest fetches one pricing request within scope.
func (s *PGStore) GetPricingRequest(ctx context.Context, scope visibility.Scope, id string) (*PricingRequest, error) {
	return get(ctx, s.pool, KindPricingRequest, pricingSelect, scope, id, scanPricingRequest)
}

// CreatePricingRequest inserts a pricing request in its initial status.
func (s *PGStore) CreatePricingRequest(ctx context.Context, in NewPricingRequest) (*PricingRequest, error) {
	var id string
	err := s.pool.QueryRow(ctx, `INSERT INTO pricing_requests (user_id, provider_id, service, details, status)
VALUES ($1::uuid, $2::uuid, $3, $4, $5) RETURNING id::text`,
		in.User, in.Provider, string(in.Service), in.Details, string(initialStatus[KindPricingRequest])).Scan(&id)
	if err != nil {
		return nil, shared.Unavailable("create pricing request", err)
	}
	return s.GetPricingRequest(ctx, visibility.Scope{Kind: visibility.ScopeAll}, id)
}

// UpdateStatus moves a record from one status to another. It fails with
// ErrInvalidTransition when the stored status no longer equals from.
func (s *PGStore) UpdateStatus(ctx context.Context, kind Kind, id string, from, to Status) error {
	t, ok := tables[kind]
	if !ok {
		return fmt.Errorf("logistics: unknown kind %q", kind)
	}
	id, ok = recordID(id)
	if !ok {
		return shared.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `UPDATE `+t.table+` SET status = $3, updated_at = now() WHERE id = $1::uuid AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return shared.Unavailable("update "+string(kind)+" status", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

var _ Store = (*PGStore)(nil)
