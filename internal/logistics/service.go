package logistics

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/internal/shared"
	"github.com/gol-logistics/gol-portal/internal/visibility"
)

// Notifications sends confirmations for newly created records.
type Notifications interface {
	OrderConfirmation(ctx context.Context, to string, order Order)
	ServiceRequestConfirmation(ctx context.Context, to string, request ServiceRequest)
}

// OrderInput is the order form.
type OrderInput struct {
	ProviderID  string      `validate:"required,uuid"`
	Service     ServiceType `validate:"required"`
	Origin      string      `validate:"required,max=200"`
	Destination string      `validate:"required,max=200"`
	Notes       string      `validate:"max=1000"`
}

// ServiceRequestInput is the service request form.
type ServiceRequestInput struct {
	OrderID string `validate:"required,uuid"`
	Type    string `validate:"required,max=80"`
	Remarks string `validate:"max=1000"`
}

// PricingRequestInput is the quote request form.
type PricingRequestInput struct {
	ProviderID string      `validate:"required,uuid"`
	Service    ServiceType `validate:"required"`
	Details    string      `validate:"required,max=2000"`
}

// Service applies visibility and mutation rules on top of the Store.
type Service struct {
	store     Store
	audit     shared.AuditSink
	notify    Notifications
	logger    *slog.Logger
	validator *validator.Validate
	now       func() time.Time
}

// NewService constructs a Service. notify may be nil.
func NewService(store Store, audit shared.AuditSink, notify Notifications, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		audit:     audit,
		notify:    notify,
		logger:    logger,
		validator: validator.New(),
		now:       time.Now,
	}
}

// Providers lists the providers a customer can book.
func (s *Service) Providers(ctx context.Context) ([]Provider, error) {
	return s.store.ListProviders(ctx)
}

// ListOrders returns the orders p may see.
func (s *Service) ListOrders(ctx context.Context, p *identity.Principal, filter ListFilter) ([]Order, error) {
	rows, err := s.store.ListOrders(ctx, visibility.ScopeFor(p), filter)
	if err != nil {
		return nil, err
	}
	return visibility.Filter(rows, p, OrderPolicy), nil
}

// ListServiceRequests returns the service requests p may see.
func (s *Service) ListServiceRequests(ctx context.Context, p *identity.Principal, filter ListFilter) ([]ServiceRequest, error) {
	rows, err := s.store.ListServiceRequests(ctx, visibility.ScopeFor(p), filter)
	if err != nil {
		return nil, err
	}
	return visibility.Filter(rows, p, ServiceRequestPolicy), nil
}

// ListJobOrders returns the job orders p may see.
func (s *Service) ListJobOrders(ctx context.Context, p *identity.Principal, filter ListFilter) ([]JobOrder, error) {
	rows, err := s.store.ListJobOrders(ctx, visibility.ScopeFor(p), filter)
	if err != nil {
		return nil, err
	}
	return visibility.Filter(rows, p, JobOrderPolicy), nil
}

// ListPricingRequests returns the pricing requests p may see.
func (s *Service) ListPricingRequests(ctx context.Context, p *identity.Principal, filter ListFilter) ([]PricingRequest, error) {
	rows, err := s.store.ListPricingRequests(ctx, visibility.ScopeFor(p), filter)
	if err != nil {
		return nil, err
	}
	return visibility.Filter(rows, p, PricingRequestPolicy), nil
}

// GetOrder returns one order p may see, or shared.ErrNotFound.
func (s *Service) GetOrder(ctx context.Context, p *identity.Principal, id string) (*Order, error) {
	o, err := s.store.GetOrder(ctx, visibility.ScopeFor(p), id)
	if err != nil {
		return nil, err
	}
	if !visibility.Visible(*o, p, OrderPolicy) {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

// GetServiceRequest returns one service request p may see.
func (s *Service) GetServiceRequest(ctx context.Context, p *identity.Principal, id string) (*ServiceRequest, error) {
	sr, err := s.store.GetServiceRequest(ctx, visibility.ScopeFor(p), id)
	if err != nil {
		return nil, err
	}
	if !visibility.Visible(*sr, p, ServiceRequestPolicy) {
		return nil, shared.ErrNotFound
	}
	return sr, nil
}

// CreateOrder books an order for the signed-in customer.
func (s *Service) CreateOrder(ctx context.Context, p *identity.Principal, in OrderInput) (*Order, error) {
	if !p.Is(identity.RoleCustomer) {
		return nil, shared.ErrForbidden
	}
	in.Origin = strings.TrimSpace(in.Origin)
	in.Destination = strings.TrimSpace(in.Destination)
	if err := s.validate(in, in.Service); err != nil {
		return nil, err
	}
	provider, err := s.store.GetProvider(ctx, in.ProviderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, &identity.ValidationError{Fields: map[string]string{"provider_id": "is unknown"}}
		}
		return nil, err
	}
	o, err := s.store.CreateOrder(ctx, NewOrder{
		Reference:   s.reference("GOL"),
		Customer:    p.ID,
		Provider:    provider.ID,
		Service:     in.Service,
		Origin:      in.Origin,
		Destination: in.Destination,
		Notes:       strings.TrimSpace(in.Notes),
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, shared.AuditCreate, KindOrder, map[string]any{"id": o.ID, "reference": o.Reference})
	if s.notify != nil {
		s.notify.OrderConfirmation(ctx, p.Email, *o)
	}
	return o, nil
}

// CreateServiceRequest files a request against one of the customer's orders.
func (s *Service) CreateServiceRequest(ctx context.Context, p *identity.Principal, in ServiceRequestInput) (*ServiceRequest, error) {
	if !p.Is(identity.RoleCustomer) {
		return nil, shared.ErrForbidden
	}
	in.Type = strings.TrimSpace(in.Type)
	if err := s.validate(in, ""); err != nil {
		return nil, err
	}
	order, err := s.GetOrder(ctx, p, in.OrderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, &identity.ValidationError{Fields: map[string]string{"order_id": "is not one of your orders"}}
		}
		return nil, err
	}
	sr, err := s.store.CreateServiceRequest(ctx, NewServiceRequest{
		Customer: p.ID,
		Order:    order.ID,
		Type:     in.Type,
		Remarks:  strings.TrimSpace(in.Remarks),
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, shared.AuditCreate, KindServiceRequest, map[string]any{"id": sr.ID, "order": sr.Order})
	if s.notify != nil {
		s.notify.ServiceRequestConfirmation(ctx, p.Email, *sr)
	}
	return sr, nil
}

// CreatePricingRequest asks a provider for a quote.
func (s *Service) CreatePricingRequest(ctx context.Context, p *identity.Principal, in PricingRequestInput) (*PricingRequest, error) {
	if !p.Is(identity.RoleCustomer) {
		return nil, shared.ErrForbidden
	}
	in.Details = strings.TrimSpace(in.Details)
	if err := s.validate(in, in.Service); err != nil {
		return nil, err
	}
	provider, err := s.store.GetProvider(ctx, in.ProviderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, &identity.ValidationError{Fields: map[string]string{"provider_id": "is unknown"}}
		}
		return nil, err
	}
	pr, err := s.store.CreatePricingRequest(ctx, NewPricingRequest{
		User:     p.ID,
		Provider: provider.ID,
		Service:  in.Service,
		Details:  in.Details,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, shared.AuditCreate, KindPricingRequest, map[string]any{"id": pr.ID, "provider": pr.Provider})
	return pr, nil
}

// CreateJobOrder opens a job order for an accepted or running order. GOL only.
func (s *Service) CreateJobOrder(ctx context.Context, p *identity.Principal, orderID string) (*JobOrder, error) {
	if p == nil || !p.Role.Internal() {
		return nil, shared.ErrForbidden
	}
	o, err := s.GetOrder(ctx, p, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusAccepted && o.Status != StatusInProgress {
		return nil, ErrInvalidTransition
	}
	j, err := s.store.CreateJobOrder(ctx, o.ID, s.reference("JO"))
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, shared.AuditCreate, KindJobOrder, map[string]any{"id": j.ID, "order": o.ID})
	return j, nil
}

// UpdateStatus moves a visible record to a new status when both the role
// and the lifecycle allow it.
func (s *Service) UpdateStatus(ctx context.Context, p *identity.Principal, kind Kind, id string, to Status) error {
	current, err := s.currentStatus(ctx, p, kind, id)
	if err != nil {
		return err
	}
	if !mayUpdate(p, kind, to) {
		return shared.ErrForbidden
	}
	if !CanTransition(kind, current, to) {
		return ErrInvalidTransition
	}
	if err := s.store.UpdateStatus(ctx, kind, id, current, to); err != nil {
		return err
	}
	s.record(ctx, p, shared.AuditUpdate, kind, map[string]any{"id": id, "from": string(current), "to": string(to)})
	return nil
}

// mayUpdate is the role side of status changes. Visibility is checked
// separately: merchants only reach records of their own providers.
func mayUpdate(p *identity.Principal, kind Kind, to Status) bool {
	switch p.Role {
	case identity.RoleGOLStaff, identity.RoleGOLMod, identity.RoleRoot:
		return true
	case identity.RoleMerchant:
		return true
	case identity.RoleCustomer:
		return (kind == KindOrder && to == StatusCancelled) || (kind == KindPricingRequest && to == StatusClosed)
	default:
		return false
	}
}

func (s *Service) currentStatus(ctx context.Context, p *identity.Principal, kind Kind, id string) (Status, error) {
	if p == nil {
		return "", shared.ErrForbidden
	}
	scope := visibility.ScopeFor(p)
	switch kind {
	case KindOrder:
		o, err := s.GetOrder(ctx, p, id)
		if err != nil {
			return "", err
		}
		return o.Status, nil
	case KindServiceRequest:
		sr, err := s.GetServiceRequest(ctx, p, id)
		if err != nil {
			return "", err
		}
		return sr.Status, nil
	case KindJobOrder:
		j, err := s.store.GetJobOrder(ctx, scope, id)
		if err != nil {
			return "", err
		}
		if !visibility.Visible(*j, p, JobOrderPolicy) {
			return "", shared.ErrNotFound
		}
		return j.Status, nil
	case KindPricingRequest:
		pr, err := s.store.GetPricingRequest(ctx, scope, id)
		if err != nil {
			return "", err
		}
		if !visibility.Visible(*pr, p, PricingRequestPolicy) {
			return "", shared.ErrNotFound
		}
		return pr.Status, nil
	default:
		return "", shared.ErrNotFound
	}
}

// DeleteOrder removes an order and its dependants. GOL moderators and Root only.
func (s *Service) DeleteOrder(ctx context.Context, p *identity.Principal, id string) error {
	if !p.Is(identity.RoleGOLMod) && !p.Is(identity.RoleRoot) {
		return shared.ErrForbidden
	}
	o, err := s.GetOrder(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteOrder(ctx, o.ID); err != nil {
		return err
	}
	s.record(ctx, p, shared.AuditDelete, KindOrder, map[string]any{"id": o.ID, "reference": o.Reference})
	return nil
}

// Dashboard summarises every collection p may see.
type Dashboard struct {
	Recent []Order                 `json:"recent"`
	Totals map[Kind]int            `json:"totals"`
	Counts map[Kind]map[Status]int `json:"counts"`
}

// Dashboard fetches the four collections concurrently and tallies them.
func (s *Service) Dashboard(ctx context.Context, p *identity.Principal) (*Dashboard, error) {
	var (
		orders   []Order
		requests []ServiceRequest
		jobs     []JobOrder
		pricing  []PricingRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orders, err = s.ListOrders(gctx, p, ListFilter{})
		return err
	})
	g.Go(func() (err error) {
		requests, err = s.ListServiceRequests(gctx, p, ListFilter{})
		return err
	})
	g.Go(func() (err error) {
		jobs, err = s.ListJobOrders(gctx, p, ListFilter{})
		return err
	})
	g.Go(func() (err error) {
		pricing, err = s.ListPricingRequests(gctx, p, ListFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	recent := orders
	if len(recent) > 5 {
		recent = recent[:5]
	}
	return &Dashboard{
		Recent: recent,
		Totals: map[Kind]int{
			KindOrder:          len(orders),
			KindServiceRequest: len(requests),
			KindJobOrder:       len(jobs),
			KindPricingRequest: len(pricing),
		},
		Counts: map[Kind]map[Status]int{
			KindOrder:          StatusCounts(orders, func(o Order) Status { return o.Status }),
			KindServiceRequest: StatusCounts(requests, func(r ServiceRequest) Status { return r.Status }),
			KindJobOrder:       StatusCounts(jobs, func(j JobOrder) Status { return j.Status }),
			KindPricingRequest: StatusCounts(pricing, func(r PricingRequest) Status { return r.Status }),
		},
	}, nil
}

func (s *Service) validate(in any, service ServiceType) error {
	err := identity.ValidateStruct(s.validator, in)
	if service != "" && !service.Valid() {
		fields := identity.FieldErrors(err)
		if fields == nil {
			if err != nil {
				return err
			}
			fields = map[string]string{}
		}
		fields["service"] = "is unknown"
		return &identity.ValidationError{Fields: fields}
	}
	return err
}

func (s *Service) reference(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return prefix + "-" + s.now().UTC().Format("060102") + "-" + suffix
}

func (s *Service) record(ctx context.Context, p *identity.Principal, action string, kind Kind, details map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditEntry{
		Action:    action,
		Module:    kind.AuditModule(),
		SubModule: p.Role.Portal(),
		ActorID:   p.ID,
		Actor:     p.DisplayName(),
		Details:   details,
		At:        s.now().UTC(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record", slog.String("module", entry.Module), slog.Any("error", err))
	}
}
