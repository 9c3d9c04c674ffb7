// Package logistics holds the portal's records: orders, service requests,
// job orders and pricing requests, together with the ownership accessors
// that decide who may see them.
package logistics

import (
	"fmt"
	"time"

	"github.com/gol-logistics/gol-portal/internal/shared"
)

// Kind names a record collection.
type Kind string

const (
	KindOrder          Kind = "orders"
	KindServiceRequest Kind = "requests"
	KindJobOrder       Kind = "jobs"
	KindPricingRequest Kind = "pricing"
)

// AuditModule is the audit trail module of the collection.
func (k Kind) AuditModule() string {
	switch k {
	case KindOrder:
		return "Orders"
	case KindServiceRequest:
		return "ServiceRequests"
	case KindJobOrder:
		return "JobOrders"
	case KindPricingRequest:
		return "PricingRequests"
	default:
		return "Logistics"
	}
}

// ServiceType is the logistics service an order or quote is for.
type ServiceType string

const (
	ServiceFreight   ServiceType = "Freight"
	ServiceCFS       ServiceType = "CFS"
	ServiceWarehouse ServiceType = "Warehouse"
	ServiceTransport ServiceType = "Transport"
	Service3PL       ServiceType = "3PL"
)

// ServiceTypes lists every service in display order.
func ServiceTypes() []ServiceType {
	return []ServiceType{ServiceFreight, ServiceCFS, ServiceWarehouse, ServiceTransport, Service3PL}
}

// Valid reports whether the service type is known.
func (s ServiceType) Valid() bool {
	switch s {
	case ServiceFreight, ServiceCFS, ServiceWarehouse, ServiceTransport, Service3PL:
		return true
	default:
		return false
	}
}

// Status is a record lifecycle state. Each Kind uses its own subset.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusAccepted   Status = "Accepted"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"

	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
	StatusDone     Status = "Done"

	StatusScheduled Status = "Scheduled"
	StatusInTransit Status = "InTransit"
	StatusDelivered Status = "Delivered"

	StatusQuoted Status = "Quoted"
	StatusClosed Status = "Closed"
)

var transitions = map[Kind]map[Status][]Status{
	KindOrder: {
		StatusPending:    {StatusAccepted, StatusCancelled},
		StatusAccepted:   {StatusInProgress, StatusCancelled},
		StatusInProgress: {StatusCompleted, StatusCancelled},
	},
	KindServiceRequest: {
		StatusPending:  {StatusApproved, StatusRejected},
		StatusApproved: {StatusDone},
	},
	KindJobOrder: {
		StatusScheduled: {StatusInTransit, StatusCancelled},
		StatusInTransit: {StatusDelivered},
	},
	KindPricingRequest: {
		StatusPending: {StatusQuoted, StatusClosed},
		StatusQuoted:  {StatusClosed},
	},
}

var initialStatus = map[Kind]Status{
	KindOrder:          StatusPending,
	KindServiceRequest: StatusPending,
	KindJobOrder:       StatusScheduled,
	KindPricingRequest: StatusPending,
}

// ErrInvalidTransition rejects a status change the lifecycle does not allow.
var ErrInvalidTransition = fmt.Errorf("%w: status change not allowed", shared.ErrValidation)

// CanTransition reports whether a record of kind may move from one status to another.
func CanTransition(kind Kind, from, to Status) bool {
	for _, next := range transitions[kind][from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from the current one.
func NextStatuses(kind Kind, from Status) []Status {
	return append([]Status(nil), transitions[kind][from]...)
}

// Statuses lists every status a record of kind can hold, initial first.
func Statuses(kind Kind) []Status {
	seen := map[Status]bool{}
	out := []Status{initialStatus[kind]}
	seen[initialStatus[kind]] = true
	queue := []Status{initialStatus[kind]}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range transitions[kind][cur] {
			if !seen[next] {
				seen[next] = true
				out = append(out, next)
				queue = append(queue, next)
			}
		}
	}
	return out
}

// Final reports whether no further transition is possible.
func Final(kind Kind, s Status) bool {
	return len(transitions[kind][s]) == 0
}

// Provider is a merchant's service offering. Author is the merchant account.
type Provider struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Author string      `json:"author"`
	Type   ServiceType `json:"type"`
}

// OrderExpand holds the relations fetched with an order.
type OrderExpand struct {
	Provider *Provider `json:"provider,omitempty"`
}

// Order is a customer's booking of a provider's service.
type Order struct {
	ID          string      `json:"id"`
	Reference   string      `json:"reference"`
	Customer    string      `json:"customer"`
	Provider    string      `json:"provider"`
	Service     ServiceType `json:"service"`
	Status      Status      `json:"status"`
	Origin      string      `json:"origin"`
	Destination string      `json:"destination"`
	Notes       string      `json:"notes,omitempty"`
	CreatedAt   time.Time   `json:"created"`
	UpdatedAt   time.Time   `json:"updated"`
	Expand      OrderExpand `json:"expand"`
}

// CustomerOwner returns the ordering customer.
func (o Order) CustomerOwner() (string, bool) {
	return o.Customer, o.Customer != ""
}

// MerchantOwner follows order -> provider -> author.
func (o Order) MerchantOwner() (string, bool) {
	if o.Expand.Provider == nil || o.Expand.Provider.Author == "" {
		return "", false
	}
	return o.Expand.Provider.Author, true
}

// ServiceRequestExpand holds the relations fetched with a service request.
type ServiceRequestExpand struct {
	Order *Order `json:"order,omitempty"`
}

// ServiceRequest asks for additional handling on an existing order.
type ServiceRequest struct {
	ID        string               `json:"id"`
	Customer  string               `json:"customer"`
	Order     string               `json:"order"`
	Type      string               `json:"type"`
	Status    Status               `json:"status"`
	Remarks   string               `json:"remarks,omitempty"`
	CreatedAt time.Time            `json:"created"`
	UpdatedAt time.Time            `json:"updated"`
	Expand    ServiceRequestExpand `json:"expand"`
}

// CustomerOwner returns the requesting customer.
func (s ServiceRequest) CustomerOwner() (string, bool) {
	return s.Customer, s.Customer != ""
}

// MerchantOwner follows request -> order -> provider -> author.
func (s ServiceRequest) MerchantOwner() (string, bool) {
	if s.Expand.Order == nil {
		return "", false
	}
	return s.Expand.Order.MerchantOwner()
}

// JobOrderExpand holds the relations fetched with a job order.
type JobOrderExpand struct {
	Order *Order `json:"order,omitempty"`
}

// JobOrder is the operational execution of an accepted order.
type JobOrder struct {
	ID        string         `json:"id"`
	Order     string         `json:"order"`
	Reference string         `json:"reference"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created"`
	UpdatedAt time.Time      `json:"updated"`
	Expand    JobOrderExpand `json:"expand"`
}

// CustomerOwner follows job -> order -> customer.
func (j JobOrder) CustomerOwner() (string, bool) {
	if j.Expand.Order == nil {
		return "", false
	}
	return j.Expand.Order.CustomerOwner()
}

// MerchantOwner follows job -> order -> provider -> author.
func (j JobOrder) MerchantOwner() (string, bool) {
	if j.Expand.Order == nil {
		return "", false
	}
	return j.Expand.Order.MerchantOwner()
}

// PricingRequestExpand holds the relations fetched with a pricing request.
type PricingRequestExpand struct {
	Provider *Provider `json:"provider,omitempty"`
}

// PricingRequest asks a provider for a quote.
type PricingRequest struct {
	ID        string               `json:"id"`
	User      string               `json:"user"`
	Provider  string               `json:"provider"`
	Service   ServiceType          `json:"service"`
	Details   string               `json:"details"`
	Status    Status               `json:"status"`
	CreatedAt time.Time            `json:"created"`
	UpdatedAt time.Time            `json:"updated"`
	Expand    PricingRequestExpand `json:"expand"`
}

// CustomerOwner returns the requesting user.
func (p PricingRequest) CustomerOwner() (string, bool) {
	return p.User, p.User != ""
}

// MerchantOwner follows pricing request -> provider -> author.
func (p PricingRequest) MerchantOwner() (string, bool) {
	if p.Expand.Provider == nil || p.Expand.Provider.Author == "" {
		return "", false
	}
	return p.Expand.Provider.Author, true
}

// StatusCounts tallies records by status.
func StatusCounts[T any](records []T, status func(T) Status) map[Status]int {
	counts := make(map[Status]int)
	for _, r := range records {
		counts[status(r)]++
	}
	return counts
}
