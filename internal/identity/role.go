package identity

import (
	"fmt"
	"strings"
)

// Role is the closed set of portal roles. The zero value is not a valid role.
type Role int

const (
	RoleCustomer Role = iota + 1
	RoleMerchant
	RoleGOLStaff
	RoleGOLMod
	RoleRoot
)

// Roles lists every role from lowest to highest privilege.
func Roles() []Role {
	return []Role{RoleCustomer, RoleMerchant, RoleGOLStaff, RoleGOLMod, RoleRoot}
}

// ParseRole maps the stored/wire name onto a Role.
func ParseRole(value string) (Role, error) {
	switch strings.TrimSpace(value) {
	case "Customer":
		return RoleCustomer, nil
	case "Merchant":
		return RoleMerchant, nil
	case "GOLStaff":
		return RoleGOLStaff, nil
	case "GOLMod":
		return RoleGOLMod, nil
	case "Root":
		return RoleRoot, nil
	default:
		return 0, fmt.Errorf("identity: unknown role %q", value)
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleMerchant, RoleGOLStaff, RoleGOLMod, RoleRoot:
		return true
	default:
		return false
	}
}

// String returns the stored name of the role.
func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "Customer"
	case RoleMerchant:
		return "Merchant"
	case RoleGOLStaff:
		return "GOLStaff"
	case RoleGOLMod:
		return "GOLMod"
	case RoleRoot:
		return "Root"
	default:
		return ""
	}
}

// Label is the human readable name used in templates.
func (r Role) Label() string {
	switch r {
	case RoleCustomer:
		return "Customer"
	case RoleMerchant:
		return "Client"
	case RoleGOLStaff:
		return "GOL Staff"
	case RoleGOLMod:
		return "GOL Moderator"
	case RoleRoot:
		return "Administrator"
	default:
		return "Unknown"
	}
}

// Level is the coarse hierarchy rank. It is never used for record filtering.
func (r Role) Level() int {
	switch r {
	case RoleCustomer:
		return 20
	case RoleMerchant:
		return 40
	case RoleGOLStaff:
		return 60
	case RoleGOLMod:
		return 80
	case RoleRoot:
		return 100
	default:
		return 0
	}
}

// AtLeast reports whether r ranks at or above other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r.Level() >= other.Level()
}

// Portal is the top-level URL segment serving the role.
func (r Role) Portal() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleMerchant:
		return "client"
	case RoleGOLStaff, RoleGOLMod:
		return "gol"
	case RoleRoot:
		return "admin"
	default:
		return ""
	}
}

// DefaultDashboard is where an authenticated principal lands.
func (r Role) DefaultDashboard() string {
	if portal := r.Portal(); portal != "" {
		return "/" + portal + "/dashboard"
	}
	return "/"
}

// LoginPath is the login page of the role's portal.
func (r Role) LoginPath() string {
	if portal := r.Portal(); portal != "" {
		return "/" + portal + "/login"
	}
	return "/"
}

// Internal reports whether the role belongs to GOL staff, who see every record.
func (r Role) Internal() bool {
	switch r {
	case RoleGOLStaff, RoleGOLMod, RoleRoot:
		return true
	default:
		return false
	}
}

// MarshalText stores the role by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("identity: invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText parses a stored role name.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RolesForPortal returns the roles that may sign in through the portal segment.
func RolesForPortal(portal string) []Role {
	switch portal {
	case "customer":
		return []Role{RoleCustomer}
	case "client":
		return []Role{RoleMerchant}
	case "gol":
		return []Role{RoleGOLStaff, RoleGOLMod}
	case "admin":
		return []Role{RoleRoot}
	default:
		return nil
	}
}
