package identity

import (
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/gol-logistics/gol-portal/internal/shared"
)

// ValidationError lists field level problems keyed by form field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return shared.ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return shared.ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets callers match shared.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == shared.ErrValidation
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// FieldErrors extracts the field map from err, or nil.
func FieldErrors(err error) map[string]string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

// RegisterInput is the self-service and admin registration payload.
type RegisterInput struct {
	Email           string `validate:"required,email,max=254"`
	Username        string `validate:"required,min=3,max=32,alphanum"`
	Password        string `validate:"required,min=8,max=72"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
	Name            string `validate:"omitempty,max=120"`
	Phone           string `validate:"omitempty,max=32"`
	Company         string `validate:"omitempty,max=120"`
}

// ProfileInput is the profile update payload.
type ProfileInput struct {
	Name    string `validate:"required,max=120"`
	Phone   string `validate:"omitempty,max=32"`
	Company string `validate:"omitempty,max=120"`
}

// ResetInput completes a password reset.
type ResetInput struct {
	Identifier      string `validate:"required"`
	Code            string `validate:"required,len=6,numeric"`
	Password        string `validate:"required,min=8,max=72"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
}

var messages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"min":      "is too short",
	"max":      "is too long",
	"len":      "has the wrong length",
	"numeric":  "must contain digits only",
	"alphanum": "may contain letters and digits only",
	"eqfield":  "does not match",
}

// ValidateStruct runs v over s and converts failures into a ValidationError.
func ValidateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		fields[formField(fe.Field())] = msg
	}
	return &ValidationError{Fields: fields}
}

// formField maps struct field names onto the snake_case names used by forms.
func formField(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		if unicode.IsUpper(r) {
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
			continue
		}
		b.WriteRune(r)
		prevLower = true
	}
	return b.String()
}
