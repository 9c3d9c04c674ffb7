package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/gol-logistics/gol-portal/internal/audit/http"
	"github.com/gol-logistics/gol-portal/internal/guard"
	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/internal/logistics"
	"github.com/gol-logistics/gol-portal/internal/observability"
	"github.com/gol-logistics/gol-portal/internal/shared"
	"github.com/gol-logistics/gol-portal/internal/users"
	"github.com/gol-logistics/gol-portal/internal/view"
	"github.com/gol-logistics/gol-portal/jobs"
	"github.com/gol-logistics/gol-portal/web"
)

// Portals lists the top-level portal segments in display order.
var Portals = []string{
	identity.RoleCustomer.Portal(),
	identity.RoleMerchant.Portal(),
	identity.RoleGOLStaff.Portal(),
	identity.RoleRoot.Portal(),
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Templates        *view.Engine
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	IdentityHandler  *identity.Handler
	LogisticsHandler *logistics.Handler
	UsersHandler     *users.Handler
	AuditHandler     *audithttp.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

type portalLink struct {
	Path  string
	Label string
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if p := identity.PrincipalFromContext(r.Context()); p != nil {
			http.Redirect(w, r, p.Role.DefaultDashboard(), http.StatusSeeOther)
			return
		}
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		links := []portalLink{
			{Path: identity.RoleCustomer.LoginPath(), Label: "Customer"},
			{Path: identity.RoleMerchant.LoginPath(), Label: "Client"},
			{Path: identity.RoleGOLStaff.LoginPath(), Label: "GOL Staff"},
			{Path: identity.RoleRoot.LoginPath(), Label: "Administrator"},
		}
		data := view.TemplateData{
			Title:       "GOL Logistics",
			CSRFToken:   csrfToken,
			Flash:       shared.PopFlash(r.Context()),
			CurrentPath: r.URL.Path,
			Data:        links,
		}
		if err := params.Templates.Render(w, "pages/home.html", data); err != nil {
			params.Logger.Error("render home", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	for _, portal := range Portals {
		r.Route("/"+portal, func(r chi.Router) {
			if params.IdentityHandler != nil {
				params.IdentityHandler.MountPortal(r, portal)
			}
			r.Group(func(r chi.Router) {
				r.Use(guard.Require(params.Logger))
				r.Get("/", func(w http.ResponseWriter, r *http.Request) {
					http.Redirect(w, r, "/"+portal+"/dashboard", http.StatusSeeOther)
				})
				if params.IdentityHandler != nil {
					params.IdentityHandler.MountProfile(r, portal)
				}
				if params.LogisticsHandler != nil {
					params.LogisticsHandler.MountRoutes(r, portal)
				}
				if portal == identity.RoleRoot.Portal() {
					if params.UsersHandler != nil {
						params.UsersHandler.MountRoutes(r)
					}
					if params.AuditHandler != nil {
						params.AuditHandler.MountRoutes(r)
					}
				}
			})
		})
	}
	if params.IdentityHandler != nil {
		params.IdentityHandler.MountOAuthCallback(r)
	}

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler caches static assets in the browser for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
