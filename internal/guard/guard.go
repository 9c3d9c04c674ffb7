// Package guard decides whether a principal may reach a portal route.
//
// Authorize is a pure function evaluated on every request. A denied request
// is answered with a redirect; the guarded handler never runs.
package guard

import (
	"strings"

	"github.com/gol-logistics/gol-portal/internal/identity"
)

// Decision is the outcome of Authorize. A zero Redirect means Allow.
type Decision struct {
	Redirect string
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Allow is the permitting decision.
var Allow = Decision{}

// RedirectTo builds a denying decision.
func RedirectTo(target string) Decision {
	if target == "" {
		target = "/"
	}
	return Decision{Redirect: target}
}

// prefixRule maps a top-level path segment onto its login page and roles.
type prefixRule struct {
	prefix string
	login  string
	roles  []identity.Role
}

var prefixTable = []prefixRule{
	{prefix: "/customer", login: "/customer/login", roles: []identity.Role{identity.RoleCustomer}},
	{prefix: "/client", login: "/client/login", roles: []identity.Role{identity.RoleMerchant}},
	{prefix: "/gol", login: "/gol/login", roles: []identity.Role{identity.RoleGOLStaff, identity.RoleGOLMod}},
	{prefix: "/admin", login: "/admin/login", roles: []identity.Role{identity.RoleRoot}},
}

func matchPrefix(path string) (prefixRule, bool) {
	for _, rule := range prefixTable {
		if path == rule.prefix || strings.HasPrefix(path, rule.prefix+"/") {
			return rule, true
		}
	}
	return prefixRule{}, false
}

// LoginPathFor returns the login page for the portal that owns path, or "/".
func LoginPathFor(path string) string {
	if rule, ok := matchPrefix(path); ok {
		return rule.login
	}
	return "/"
}

// RolesForPath returns the static role set for path's portal, nil outside
// every portal.
func RolesForPath(path string) []identity.Role {
	if rule, ok := matchPrefix(path); ok {
		return append([]identity.Role(nil), rule.roles...)
	}
	return nil
}

// Authorize applies the ordered route rules:
//  1. no principal redirects to the login page of the path's portal;
//  2. Root is always allowed;
//  3. a non-empty allowed set requires membership;
//  4. otherwise the static prefix table decides.
//
// Denied principals are sent to their own dashboard.
func Authorize(p *identity.Principal, path string, allowed ...identity.Role) Decision {
	if p == nil || !p.Role.Valid() {
		return RedirectTo(LoginPathFor(path))
	}
	if p.Role == identity.RoleRoot {
		return Allow
	}
	roles := allowed
	if len(roles) == 0 {
		roles = RolesForPath(path)
	}
	for _, role := range roles {
		if role == p.Role {
			return Allow
		}
	}
	return RedirectTo(p.Role.DefaultDashboard())
}
