package guard

import (
	"log/slog"
	"net/http"

	"github.com/gol-logistics/gol-portal/internal/identity"
)

// Require gates next behind Authorize. With no roles the static prefix
// table applies. Denials answer 303 with an empty body.
func Require(logger *slog.Logger, roles ...identity.Role) func(http.Handler) http.Handler {
	allowed := append([]identity.Role(nil), roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := identity.PrincipalFromContext(r.Context())
			decision := Authorize(p, r.URL.Path, allowed...)
			if decision.Allowed() {
				next.ServeHTTP(w, r)
				return
			}
			if logger != nil {
				attrs := []any{slog.String("path", r.URL.Path), slog.String("redirect", decision.Redirect)}
				if p != nil {
					attrs = append(attrs, slog.String("role", p.Role.String()))
				}
				logger.Debug("route denied", attrs...)
			}
			w.Header().Set("Location", decision.Redirect)
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusSeeOther)
		})
	}
}
