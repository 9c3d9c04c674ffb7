// Package visibility narrows record sets to what a principal may see.
//
// Customers see records they own directly. Merchants see records whose
// provider they authored, reached through one or more expanded relations.
// GOL staff, moderators and Root see everything. Anyone else sees nothing.
//
// The same rules exist twice: Filter and Visible apply them to fetched
// records, and Scope is what repositories turn into SQL so that rows outside
// the principal's reach are never read in the first place.
package visibility

import (
	"strconv"

	"github.com/gol-logistics/gol-portal/internal/identity"
)

// Owner resolves an ownership field of a record. ok is false when the field
// or any relation on the way to it is missing.
type Owner[T any] func(record T) (id string, ok bool)

// Policy holds the ownership accessors of one record type.
type Policy[T any] struct {
	Customer Owner[T]
	Merchant Owner[T]
}

// Visible reports whether p may see record.
func Visible[T any](record T, p *identity.Principal, policy Policy[T]) bool {
	if p == nil || p.ID == "" {
		return false
	}
	var owner Owner[T]
	switch p.Role {
	case identity.RoleGOLStaff, identity.RoleGOLMod, identity.RoleRoot:
		return true
	case identity.RoleCustomer:
		owner = policy.Customer
	case identity.RoleMerchant:
		owner = policy.Merchant
	default:
		return false
	}
	if owner == nil {
		return false
	}
	id, ok := owner(record)
	return ok && id == p.ID
}

// Filter returns the records p may see, preserving order. A nil input means
// nothing was fetched and yields nil; otherwise the result is never nil.
func Filter[T any](records []T, p *identity.Principal, policy Policy[T]) []T {
	if records == nil {
		return nil
	}
	out := make([]T, 0, len(records))
	for _, record := range records {
		if Visible(record, p, policy) {
			out = append(out, record)
		}
	}
	return out
}

// Kind is the shape of a principal's visibility.
type Kind int

const (
	// ScopeNone sees nothing.
	ScopeNone Kind = iota
	// ScopeCustomer sees directly owned records.
	ScopeCustomer
	// ScopeMerchant sees records of providers it authored.
	ScopeMerchant
	// ScopeAll sees every record.
	ScopeAll
)

// Scope is the server side form of the visibility rules.
type Scope struct {
	Kind        Kind
	PrincipalID string
}

// ScopeFor derives the scope of p.
func ScopeFor(p *identity.Principal) Scope {
	if p == nil || p.ID == "" {
		return Scope{Kind: ScopeNone}
	}
	switch p.Role {
	case identity.RoleCustomer:
		return Scope{Kind: ScopeCustomer, PrincipalID: p.ID}
	case identity.RoleMerchant:
		return Scope{Kind: ScopeMerchant, PrincipalID: p.ID}
	case identity.RoleGOLStaff, identity.RoleGOLMod, identity.RoleRoot:
		return Scope{Kind: ScopeAll, PrincipalID: p.ID}
	default:
		return Scope{Kind: ScopeNone}
	}
}

// Empty reports whether the scope can match nothing.
func (s Scope) Empty() bool {
	return s.Kind == ScopeNone || (s.Kind != ScopeAll && s.PrincipalID == "")
}

// Clause builds a SQL predicate for the scope. customerCol and merchantCol
// are column expressions holding the owner ids; arg is the placeholder index
// for PrincipalID. It returns the predicate and whether PrincipalID must be
// bound.
func (s Scope) Clause(customerCol, merchantCol string, arg int) (string, bool) {
	if s.Empty() {
		return "FALSE", false
	}
	switch s.Kind {
	case ScopeAll:
		return "TRUE", false
	case ScopeCustomer:
		return customerCol + " = $" + strconv.Itoa(arg) + "::uuid", true
	case ScopeMerchant:
		return merchantCol + " = $" + strconv.Itoa(arg) + "::uuid", true
	default:
		return "FALSE", false
	}
}
