package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRoleMismatch indicates valid credentials presented to the wrong portal.
	ErrRoleMismatch = errors.New("role mismatch")
	// ErrValidation indicates user input failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the principal may not touch the record.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable indicates the record store or identity backend could not be reached.
	ErrUnavailable = errors.New("service unavailable")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// Unavailable wraps a driver level error so callers can match ErrUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// UserSafeMessage maps errors to text that can be shown in a toast.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email/username or password"
	case errors.Is(err, ErrRoleMismatch):
		return "This account cannot sign in to this portal"
	case errors.Is(err, ErrValidation):
		return "Please correct the highlighted fields"
	case errors.Is(err, ErrForbidden):
		return "You are not allowed to perform this action"
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found"
	case errors.Is(err, ErrUnavailable):
		return "The service is temporarily unavailable, please try again"
	default:
		return "Something went wrong, please try again"
	}
}
