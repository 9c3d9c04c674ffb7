package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/gol-logistics/gol-portal/internal/identity"
)

// Registrar creates accounts on behalf of an actor.
type Registrar interface {
	Register(ctx context.Context, actor *identity.Principal, in identity.RegisterInput, role identity.Role) (*identity.Principal, error)
}

// CreateRootOptions configures the create-root command.
type CreateRootOptions struct {
	Email    string
	Username string
	Password string
	Name     string
	Stdout   io.Writer
	Stderr   io.Writer
}

// Operator is the actor recorded in the audit trail for accounts created
// from the command line.
var Operator = &identity.Principal{Role: identity.RoleRoot, Username: "gol-cli", Status: identity.StatusActive}

// CreateRoot provisions an administrator account and returns the process
// exit code.
func CreateRoot(ctx context.Context, registrar Registrar, opts CreateRootOptions) int {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if registrar == nil {
		fmt.Fprintln(stderr, "create-root: registrar not configured")
		return 1
	}
	if strings.TrimSpace(opts.Email) == "" || strings.TrimSpace(opts.Username) == "" || opts.Password == "" {
		fmt.Fprintln(stderr, "create-root: -email, -username and -password are required")
		return 2
	}

	p, err := registrar.Register(ctx, Operator, identity.RegisterInput{
		Email:           opts.Email,
		Username:        opts.Username,
		Password:        opts.Password,
		PasswordConfirm: opts.Password,
		Name:            opts.Name,
	}, identity.RoleRoot)
	if err != nil {
		var verr *identity.ValidationError
		if errors.As(err, &verr) {
			for _, field := range slices.Sorted(maps.Keys(verr.Fields)) {
				fmt.Fprintf(stderr, "create-root: %s %s\n", field, verr.Fields[field])
			}
			return 2
		}
		fmt.Fprintf(stderr, "create-root: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "created %s account %s (%s)\n", p.Role.Label(), p.Username, p.ID)
	return 0
}
