package users

import (
	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/internal/shared"
)

// AuditModule is the audit module name for account administration.
const AuditModule = "Users"

// PerPage is the account list page size.
const PerPage = 20

// ListQuery narrows the account list.
type ListQuery struct {
	Role   string
	Status string
	Search string
	Page   int
}

// ListResult is one page of accounts.
type ListResult struct {
	Accounts   []identity.Account
	Pagination shared.Pagination
	Query      ListQuery
}

// StaffRoles are the roles an administrator may create directly.
func StaffRoles() []identity.Role {
	return []identity.Role{identity.RoleGOLStaff, identity.RoleGOLMod, identity.RoleRoot}
}
