package identity

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an account.
type Status string

const (
	StatusActive    Status = "Active"
	StatusPending   Status = "Pending"
	StatusSuspended Status = "Suspended"
)

// Valid reports whether the status is known.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusSuspended:
		return true
	default:
		return false
	}
}

// ParseStatus validates a stored or submitted status.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if !s.Valid() {
		return "", fmt.Errorf("identity: unknown status %q", value)
	}
	return s, nil
}

// Profile holds the mutable, non-security fields of an account.
type Profile struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

// Account is the stored user record.
type Account struct {
	ID            string
	Email         string
	Username      string
	PasswordHash  string
	Role          Role
	Status        Status
	Profile       Profile
	OAuthProvider string
	OAuthSubject  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Principal is the authenticated identity carried by a session.
type Principal struct {
	ID       string  `json:"id"`
	Role     Role    `json:"role"`
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Status   Status  `json:"status"`
	Profile  Profile `json:"profile"`
}

// Principal projects the account into its session-safe form.
func (a *Account) Principal() *Principal {
	if a == nil {
		return nil
	}
	return &Principal{
		ID:       a.ID,
		Role:     a.Role,
		Email:    a.Email,
		Username: a.Username,
		Status:   a.Status,
		Profile:  a.Profile,
	}
}

// DisplayName prefers the profile name over the username.
func (p *Principal) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Profile.Name != "" {
		return p.Profile.Name
	}
	if p.Username != "" {
		return p.Username
	}
	return p.Email
}

// Is reports whether p carries the role.
func (p *Principal) Is(role Role) bool {
	return p != nil && p.Role == role
}
