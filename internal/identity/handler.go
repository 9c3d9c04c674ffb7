package identity

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/gol-logistics/gol-portal/internal/shared"
	"github.com/gol-logistics/gol-portal/internal/view"
)

const sessionKeyOAuthNonce = "oauthNonce"

// Handler serves sign-in, registration, password reset and profile pages
// for every portal.
type Handler struct {
	logger    *slog.Logger
	resolver  *Resolver
	templates *view.Engine
	csrf      *shared.CSRFManager
	signer    *StateSigner
	providers map[string]OAuthProvider
	limit     func(http.Handler) http.Handler
}

// NewHandler constructs a Handler. signer may be nil when no OAuth provider
// is configured.
func NewHandler(logger *slog.Logger, resolver *Resolver, templates *view.Engine, csrf *shared.CSRFManager, signer *StateSigner, providers ...OAuthProvider) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:    logger,
		resolver:  resolver,
		templates: templates,
		csrf:      csrf,
		signer:    signer,
		providers: make(map[string]OAuthProvider, len(providers)),
		limit:     httprate.LimitByIP(20, time.Minute),
	}
	for _, p := range providers {
		h.providers[p.Name()] = p
	}
	return h
}

// MountPortal registers the public routes of one portal on r, which is
// expected to be mounted at "/"+portal.
func (h *Handler) MountPortal(r chi.Router, portal string) {
	if len(RolesForPortal(portal)) == 0 {
		panic("identity: unknown portal " + portal)
	}
	r.Get("/login", h.showLogin(portal))
	r.With(h.limit).Post("/login", h.handleLogin(portal))
	r.Post("/logout", h.handleLogout(portal))
	r.Get("/forgot", h.showForgot(portal))
	r.With(h.limit).Post("/forgot", h.handleForgot(portal))
	r.Get("/reset", h.showReset(portal))
	r.With(h.limit).Post("/reset", h.handleReset(portal))
	if selfService(portal) {
		r.Get("/register", h.showRegister(portal))
		r.With(h.limit).Post("/register", h.handleRegister(portal))
		r.Get("/oauth/{provider}", h.startOAuth(portal))
	}
}

// MountProfile registers the signed-in profile page. r must be guarded.
func (h *Handler) MountProfile(r chi.Router, portal string) {
	r.Get("/profile", h.showProfile(portal))
	r.Post("/profile", h.handleProfile(portal))
}

// MountOAuthCallback registers the provider callback shared by all portals.
func (h *Handler) MountOAuthCallback(r chi.Router) {
	r.Get("/oauth/{provider}/callback", h.oauthCallback)
}

func selfService(portal string) bool {
	return portal == RoleCustomer.Portal() || portal == RoleMerchant.Portal()
}

// ViewerOf projects the principal for the layout.
func ViewerOf(p *Principal) *view.Viewer {
	if p == nil {
		return nil
	}
	return &view.Viewer{
		ID:      p.ID,
		Name:    p.DisplayName(),
		Role:    p.Role.Label(),
		Portal:  p.Role.Portal(),
		Pending: p.Status == StatusPending,
	}
}

type loginPageData struct {
	Identifier string
	Remember   bool
	Role       string
	Roles      []Role
	OAuth      []string
	SelfSignup bool
}

type registerPageData struct {
	Email    string
	Username string
	Name     string
	Phone    string
	Company  string
	Merchant bool
}

type resetPageData struct {
	Identifier string
}

type profilePageData struct {
	Principal *Principal
	Form      ProfileInput
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title, portal string, errs map[string]string, data any) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrf.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Warn("ensure csrf token", slog.Any("error", err))
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   token,
		Flash:       shared.PopFlash(r.Context()),
		CurrentPath: r.URL.Path,
		Portal:      portal,
		Viewer:      ViewerOf(PrincipalFromContext(r.Context())),
		Errors:      errs,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) loginData(portal string) loginPageData {
	data := loginPageData{SelfSignup: selfService(portal)}
	if portal == RoleGOLStaff.Portal() {
		data.Roles = RolesForPortal(portal)
		data.Role = RoleGOLStaff.String()
	}
	if selfService(portal) && h.signer != nil {
		for name := range h.providers {
			data.OAuth = append(data.OAuth, name)
		}
		sort.Strings(data.OAuth)
	}
	return data
}

func (h *Handler) showLogin(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p := PrincipalFromContext(r.Context()); p != nil && roleInPortal(p.Role, portal) {
			http.Redirect(w, r, p.Role.DefaultDashboard(), http.StatusSeeOther)
			return
		}
		h.render(w, r, http.StatusOK, "pages/auth/login.html", "Sign in", portal, nil, h.loginData(portal))
	}
}

func (h *Handler) handleLogin(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		data := h.loginData(portal)
		data.Identifier = strings.TrimSpace(r.PostFormValue("identifier"))
		data.Remember = r.PostFormValue("remember") != ""

		expected, err := expectedRole(portal, r.PostFormValue("role"))
		if err != nil {
			h.render(w, r, http.StatusBadRequest, "pages/auth/login.html", "Sign in", portal,
				map[string]string{"role": "is invalid"}, data)
			return
		}
		data.Role = expected.String()

		st := StateFromContext(r.Context())
		p, err := h.resolver.Login(r.Context(), st, LoginInput{
			Identifier:   data.Identifier,
			Password:     r.PostFormValue("password"),
			ExpectedRole: expected,
			Remember:     data.Remember,
		})
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, shared.ErrUnavailable) {
				status = http.StatusServiceUnavailable
				h.logger.Error("login", slog.Any("error", err))
			}
			h.render(w, r, status, "pages/auth/login.html", "Sign in", portal,
				map[string]string{"general": shared.UserSafeMessage(err)}, data)
			return
		}
		shared.AddFlash(r.Context(), shared.FlashSuccess, "Welcome back, "+p.DisplayName())
		http.Redirect(w, r, p.Role.DefaultDashboard(), http.StatusSeeOther)
	}
}

// expectedRole resolves the role a login form claims. Only the GOL portal
// serves more than one role and lets the form choose.
func expectedRole(portal, submitted string) (Role, error) {
	roles := RolesForPortal(portal)
	if len(roles) == 1 {
		return roles[0], nil
	}
	role, err := ParseRole(submitted)
	if err != nil {
		return 0, err
	}
	if !roleInPortal(role, portal) {
		return 0, shared.ErrRoleMismatch
	}
	return role, nil
}

func (h *Handler) handleLogout(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.resolver.Logout(r.Context(), StateFromContext(r.Context()))
		shared.AddFlash(r.Context(), shared.FlashInfo, "You have been signed out")
		http.Redirect(w, r, "/"+portal+"/login", http.StatusSeeOther)
	}
}

func (h *Handler) showRegister(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, "pages/auth/register.html", "Create account", portal, nil,
			registerPageData{Merchant: portal == RoleMerchant.Portal()})
	}
}

func (h *Handler) handleRegister(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		in := RegisterInput{
			Email:           r.PostFormValue("email"),
			Username:        r.PostFormValue("username"),
			Password:        r.PostFormValue("password"),
			PasswordConfirm: r.PostFormValue("password_confirm"),
			Name:            r.PostFormValue("name"),
			Phone:           r.PostFormValue("phone"),
			Company:         r.PostFormValue("company"),
		}
		role := RolesForPortal(portal)[0]
		p, err := h.resolver.Register(r.Context(), nil, in, role)
		if err != nil {
			data := registerPageData{
				Email: in.Email, Username: in.Username, Name: in.Name, Phone: in.Phone, Company: in.Company,
				Merchant: role == RoleMerchant,
			}
			errs := FieldErrors(err)
			status := http.StatusUnprocessableEntity
			if errs == nil {
				status = http.StatusServiceUnavailable
				errs = map[string]string{"general": shared.UserSafeMessage(err)}
				h.logger.Error("register", slog.Any("error", err))
			}
			h.render(w, r, status, "pages/auth/register.html", "Create account", portal, errs, data)
			return
		}
		msg := "Account created, you can sign in now"
		if p.Status == StatusPending {
			msg = "Account created and awaiting approval by GOL"
		}
		shared.AddFlash(r.Context(), shared.FlashSuccess, msg)
		http.Redirect(w, r, "/"+portal+"/login", http.StatusSeeOther)
	}
}

func (h *Handler) showForgot(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, "pages/auth/forgot.html", "Forgot password", portal, nil, resetPageData{})
	}
}

func (h *Handler) handleForgot(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		identifier := strings.TrimSpace(r.PostFormValue("identifier"))
		if identifier == "" {
			h.render(w, r, http.StatusUnprocessableEntity, "pages/auth/forgot.html", "Forgot password", portal,
				map[string]string{"identifier": "is required"}, resetPageData{})
			return
		}
		if err := h.resolver.RequestPasswordReset(r.Context(), identifier, portal); err != nil {
			h.logger.Error("request password reset", slog.Any("error", err))
			h.render(w, r, http.StatusServiceUnavailable, "pages/auth/forgot.html", "Forgot password", portal,
				map[string]string{"general": shared.UserSafeMessage(err)}, resetPageData{Identifier: identifier})
			return
		}
		shared.AddFlash(r.Context(), shared.FlashInfo, "If the account exists, a reset code is on its way")
		http.Redirect(w, r, "/"+portal+"/reset?identifier="+url.QueryEscape(identifier), http.StatusSeeOther)
	}
}

func (h *Handler) showReset(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, "pages/auth/reset.html", "Reset password", portal, nil,
			resetPageData{Identifier: r.URL.Query().Get("identifier")})
	}
}

func (h *Handler) handleReset(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		in := ResetInput{
			Identifier:      strings.TrimSpace(r.PostFormValue("identifier")),
			Code:            strings.TrimSpace(r.PostFormValue("code")),
			Password:        r.PostFormValue("password"),
			PasswordConfirm: r.PostFormValue("password_confirm"),
		}
		if err := h.resolver.ResetPassword(r.Context(), in, portal); err != nil {
			errs := FieldErrors(err)
			status := http.StatusUnprocessableEntity
			if errs == nil {
				status = http.StatusServiceUnavailable
				errs = map[string]string{"general": shared.UserSafeMessage(err)}
				h.logger.Error("reset password", slog.Any("error", err))
			}
			h.render(w, r, status, "pages/auth/reset.html", "Reset password", portal, errs, resetPageData{Identifier: in.Identifier})
			return
		}
		shared.AddFlash(r.Context(), shared.FlashSuccess, "Password updated, please sign in")
		http.Redirect(w, r, "/"+portal+"/login", http.StatusSeeOther)
	}
}

func (h *Handler) showProfile(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			http.Redirect(w, r, "/"+portal+"/login", http.StatusSeeOther)
			return
		}
		h.render(w, r, http.StatusOK, "pages/auth/profile.html", "Profile", portal, nil, profilePageData{
			Principal: p,
			Form:      ProfileInput{Name: p.Profile.Name, Phone: p.Profile.Phone, Company: p.Profile.Company},
		})
	}
}

func (h *Handler) handleProfile(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		in := ProfileInput{
			Name:    r.PostFormValue("name"),
			Phone:   r.PostFormValue("phone"),
			Company: r.PostFormValue("company"),
		}
		st := StateFromContext(r.Context())
		if _, err := h.resolver.UpdateProfile(r.Context(), st, in); err != nil {
			if errs := FieldErrors(err); errs != nil {
				h.render(w, r, http.StatusUnprocessableEntity, "pages/auth/profile.html", "Profile", portal, errs,
					profilePageData{Principal: st.Principal(), Form: in})
				return
			}
			h.logger.Error("update profile", slog.Any("error", err))
			shared.AddFlash(r.Context(), shared.FlashError, shared.UserSafeMessage(err))
		} else {
			shared.AddFlash(r.Context(), shared.FlashSuccess, "Profile updated")
		}
		http.Redirect(w, r, "/"+portal+"/profile", http.StatusSeeOther)
	}
}

func (h *Handler) startOAuth(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, ok := h.providers[chi.URLParam(r, "provider")]
		sess := shared.SessionFromContext(r.Context())
		if !ok || h.signer == nil || sess == nil {
			http.NotFound(w, r)
			return
		}
		state, nonce, err := h.signer.Issue(RolesForPortal(portal)[0], provider.Name())
		if err != nil {
			h.logger.Error("issue oauth state", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		sess.Set(sessionKeyOAuthNonce, nonce)
		http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
	}
}

func (h *Handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[chi.URLParam(r, "provider")]
	sess := shared.SessionFromContext(r.Context())
	if !ok || h.signer == nil || sess == nil {
		http.NotFound(w, r)
		return
	}
	nonce := sess.Get(sessionKeyOAuthNonce)
	sess.Delete(sessionKeyOAuthNonce)

	q := r.URL.Query()
	role, err := h.signer.Verify(q.Get("state"), nonce, provider.Name())
	if err != nil {
		shared.AddFlash(r.Context(), shared.FlashError, "Sign-in request expired, please try again")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if q.Get("error") != "" || q.Get("code") == "" {
		shared.AddFlash(r.Context(), shared.FlashError, "Sign-in was cancelled")
		http.Redirect(w, r, role.LoginPath(), http.StatusSeeOther)
		return
	}

	res, err := h.resolver.LoginWithOAuth(r.Context(), StateFromContext(r.Context()), provider, q.Get("code"), role)
	if err != nil {
		h.logger.Warn("oauth login", slog.String("provider", provider.Name()), slog.Any("error", err))
		msg := shared.UserSafeMessage(err)
		if errors.Is(err, ErrOAuthNotLinked) {
			msg = "This email is already registered, sign in with your password"
		}
		shared.AddFlash(r.Context(), shared.FlashError, msg)
		http.Redirect(w, r, role.LoginPath(), http.StatusSeeOther)
		return
	}
	msg := "Welcome back, " + res.Principal.DisplayName()
	if res.Created {
		msg = "Account created and awaiting approval by GOL"
	}
	shared.AddFlash(r.Context(), shared.FlashSuccess, msg)
	http.Redirect(w, r, res.Principal.Role.DefaultDashboard(), http.StatusSeeOther)
}
