package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/internal/shared"
	"github.com/gol-logistics/gol-portal/internal/view"
)

const portal = "admin"

// Handler manages account administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// MountRoutes registers user routes on the guarded admin router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users", h.listUsers)
	r.Get("/users/new", h.showCreateUserForm)
	r.Post("/users", h.createUser)
	r.Post("/users/{id}/status", h.setStatus)
}

type listPage struct {
	ListResult
	Roles    []identity.Role
	Statuses []identity.Status
}

type formPage struct {
	Roles  []identity.Role
	Values map[string]string
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.service.List(r.Context(), identity.PrincipalFromContext(r.Context()), ListQuery{
		Role:   q.Get("role"),
		Status: q.Get("status"),
		Search: q.Get("q"),
		Page:   shared.PageFromQuery(q),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/admin/users_list.html", "Users", nil, listPage{
		ListResult: result,
		Roles:      identity.Roles(),
		Statuses:   []identity.Status{identity.StatusActive, identity.StatusPending, identity.StatusSuspended},
	})
}

func (h *Handler) showCreateUserForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/admin/user_form.html", "New account", nil,
		formPage{Roles: StaffRoles(), Values: map[string]string{"role": identity.RoleGOLStaff.String()}})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, &identity.ValidationError{Fields: map[string]string{"general": "invalid form"}})
		return
	}
	values := map[string]string{}
	for _, k := range []string{"email", "username", "name", "phone", "role"} {
		values[k] = strings.TrimSpace(r.PostFormValue(k))
	}
	in := identity.RegisterInput{
		Email:           values["email"],
		Username:        values["username"],
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("password_confirm"),
		Name:            values["name"],
		Phone:           values["phone"],
		Company:         "GOL",
	}
	role, err := identity.ParseRole(values["role"])
	if err != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "pages/admin/user_form.html", "New account",
			map[string]string{"role": "is invalid"}, formPage{Roles: StaffRoles(), Values: values})
		return
	}
	p, err := h.service.CreateStaff(r.Context(), identity.PrincipalFromContext(r.Context()), in, role)
	if fields := identity.FieldErrors(err); fields != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "pages/admin/user_form.html", "New account",
			fields, formPage{Roles: StaffRoles(), Values: values})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirect(w, r, "/admin/users", shared.FlashSuccess, p.Role.Label()+" account "+p.Username+" created")
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	status, err := identity.ParseStatus(r.PostFormValue("status"))
	if err != nil {
		h.redirect(w, r, "/admin/users", shared.FlashError, "Unknown account status")
		return
	}
	acct, err := h.service.SetStatus(r.Context(), identity.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), status)
	if err != nil {
		if errors.Is(err, shared.ErrUnavailable) {
			h.logger.Error("set account status", slog.Any("error", err))
		}
		h.redirect(w, r, "/admin/users", shared.FlashError, shared.UserSafeMessage(err))
		return
	}
	h.redirect(w, r, "/admin/users", shared.FlashSuccess, acct.Username+" is now "+string(acct.Status))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, tmpl, title string, errs map[string]string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, err := h.csrf.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Warn("ensure csrf token", slog.Any("error", err))
	}
	td := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       shared.PopFlash(r.Context()),
		CurrentPath: r.URL.Path,
		Portal:      portal,
		Viewer:      identity.ViewerOf(identity.PrincipalFromContext(r.Context())),
		Errors:      errs,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, tmpl, td); err != nil {
		h.logger.Error("render template", slog.String("template", tmpl), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.AddFlash(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, shared.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("users request", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	h.render(w, r, status, "pages/error.html", "Error", map[string]string{"general": shared.UserSafeMessage(err)}, nil)
}
