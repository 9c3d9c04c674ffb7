package logistics

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gol-logistics/gol-portal/internal/identity"
	"github.com/gol-logistics/gol-portal/internal/platform/httpx"
	"github.com/gol-logistics/gol-portal/internal/shared"
	"github.com/gol-logistics/gol-portal/internal/view"
)

const perPage = 20

// Handler serves the record pages of one or more portals.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// MountRoutes registers the portal's record routes. r must already be guarded.
func (h *Handler) MountRoutes(r chi.Router, portal string) {
	r.Get("/dashboard", h.dashboard(portal))
	r.Get("/stats.json", h.stats)

	r.Get("/orders", h.listOrders(portal))
	r.Get("/orders/{id}", h.showOrder(portal))
	r.Post("/orders/{id}/status", h.updateStatus(portal, KindOrder))
	r.Get("/requests", h.listRequests(portal))
	r.Post("/requests/{id}/status", h.updateStatus(portal, KindServiceRequest))
	r.Get("/jobs", h.listJobs(portal))
	r.Post("/jobs/{id}/status", h.updateStatus(portal, KindJobOrder))
	r.Get("/pricing", h.listPricing(portal))
	r.Post("/pricing/{id}/status", h.updateStatus(portal, KindPricingRequest))

	switch portal {
	case identity.RoleCustomer.Portal():
		r.Get("/orders/new", h.newOrder(portal))
		r.Post("/orders", h.createOrder(portal))
		r.Get("/requests/new", h.newRequest(portal))
		r.Post("/requests", h.createRequest(portal))
		r.Get("/pricing/new", h.newPricing(portal))
		r.Post("/pricing", h.createPricing(portal))
	case identity.RoleGOLStaff.Portal(), identity.RoleRoot.Portal():
		r.Post("/orders/{id}/jobs", h.createJob(portal))
		r.Post("/orders/{id}/delete", h.deleteOrder(portal))
	}
}

// Row pairs a record with the statuses the viewer may move it to.
type Row[T any] struct {
	Item T
	Next []Status
}

type listPage[T any] struct {
	Kind     Kind
	Rows     []Row[T]
	Status   Status
	Statuses []Status
	Page     int
	HasNext  bool
	CanEdit  bool
}

type orderPage struct {
	Order        Order
	Next         []Status
	Requests     []ServiceRequest
	CanDelete    bool
	CanCreateJob bool
}

type formPage struct {
	Providers []Provider
	Orders    []Order
	Services  []ServiceType
	Values    map[string]string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, tmpl, title, portal string, errs map[string]string, data any) {
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
		h.logger.Error("render failed", slog.String("template", tmpl), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, url, kind, message string) {
	shared.AddFlash(r.Context(), kind, message)
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// fail renders a fetch error page with the toast text.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, portal string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, shared.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("logistics request", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	h.render(w, r, status, "pages/error.html", "Error", portal,
		map[string]string{"general": shared.UserSafeMessage(err)}, nil)
}

func listFilter(r *http.Request) (ListFilter, int) {
	page := shared.PageFromQuery(r.URL.Query())
	return ListFilter{
		Status: Status(r.URL.Query().Get("status")),
		Limit:  perPage + 1,
		Offset: (page - 1) * perPage,
	}, page
}

func rows[T any](p *identity.Principal, kind Kind, items []T, status func(T) Status) ([]Row[T], bool) {
	hasNext := len(items) > perPage
	if hasNext {
		items = items[:perPage]
	}
	out := make([]Row[T], 0, len(items))
	for _, item := range items {
		out = append(out, Row[T]{Item: item, Next: allowedNext(p, kind, status(item))})
	}
	return out, hasNext
}

func allowedNext(p *identity.Principal, kind Kind, from Status) []Status {
	var out []Status
	for _, next := range NextStatuses(kind, from) {
		if mayUpdate(p, kind, next) {
			out = append(out, next)
		}
	}
	return out
}

func (h *Handler) dashboard(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := identity.PrincipalFromContext(r.Context())
		dash, err := h.service.Dashboard(r.Context(), p)
		if err != nil {
			h.fail(w, r, portal, err)
			return
		}
		h.render(w, r, http.StatusOK, "pages/logistics/dashboard.html", "Dashboard", portal, nil, dash)
	}
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.Dashboard(r.Context(), identity.PrincipalFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"totals": dash.Totals, "counts": dash.Counts})
}

func (h *Handler) listOrders(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := identity.PrincipalFromContext(r.Context())
		filter, page := listFilter(r)
		items, err := h.service.ListOrders(r.Context(), p, filter)
		if err != nil {
			h.fail(w, r, portal, err)
			return
		}
		rs, hasNext := rows(p, KindOrder, items, func(o Order) Status { return o.Status })
		h.render(w, r, http.StatusOK, "pages/logistics/orders_list.html", "Orders", portal, nil, listPage[Order]{
			Kind: KindOrder, Rows: rs, Status: filter.Status, Statuses: Statuses(KindOrder),
			Page: page, HasNext: hasNext, CanEdit: p.Is(identity.RoleCustomer),
		})
	}
}

func (h *Handler) showOrder(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := identity.PrincipalFromContext(r.Context())
		o, err := h.service.GetOrder(r.Context(), p, chi.URLParam(r, "id"))
		if err != nil {
			h.fail(w, r, portal, err)
			return
		}
		requests, err := h.service.ListServiceRequests(r.Context(), p, ListFilter{})
		if err != nil {
			h.fail(w, r, portal, err)
			return
		}
		mine := make([]ServiceRequest, 0)
		for _, sr := range requests {
			if sr.Order == o.ID {
				mine = append(mine, sr)
			}
		}
		h.render(w, r, http.StatusOK, "pages/logistics/order_detail.html", "Order "+o.Reference, portal, nil, orderPage{
			Order:        *o,
			Next:         allowedNext(p, KindOrder, o.Status),
			Requests:     mine,
			CanDelete:    p.Is(identity.RoleGOLMod) || p.Is(identity.RoleRoot),
			CanCreateJob: p.Role.Internal() && (o.Status == StatusAccepted || o.Status == StatusInProgress),
		})
	}
}

func (h *Handler) newOrder(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.renderForm(w, r, http.StatusOK, "pages/logistics/order_form.html", "New order", portal, nil, nil)
	}
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, tmpl, title, portal string, errs map[string]string, values map[string]string) {
	providers, err := h.service.Providers(r.Context())
	if err != nil {
		h.fail(w, r, portal, err)
		return
	}
	var orders []Order
	if tmpl == "pages/logistics/request_form.html" {
		orders, err = h.service.ListOrders(r.Context(), identity.PrincipalFromContext(r.Context()), ListFilter{})
		if err != nil {
			h.fail(w, r, portal, err)
			return
		}
	}
	if values == nil {
		values = map[string]string{"order_id": r.URL.Query().Get("order")}
	}
	h.render(w, r, status, tmpl, title, portal, errs, formPage{
		Providers: providers, Orders: orders, Services: ServiceTypes(), Values: values,
	})
}

func formValues(r *http.Request, keys ...string) map[string]string {
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		values[k] = strings.TrimSpace(r.PostFormValue(k))
	}
	return values
}

// afterCreate redirects on success and re-renders the form on validation errors.
func (h *Handler) afterCreate(w http.ResponseWriter, r *http.Request, err error, tmpl, title, portal, list, message string, values map[string]string) {
	if err == nil {
		h.redirect(w, r, "/"+portal+list, shared.FlashSuccess, message)
		return
	}
	if fields := identity.FieldErrors(err); fields != nil {
		h.renderForm(w, r, http.StatusUnprocessableEntity, tmpl, title, portal, fields, values)
		return
	}
	if !errors.Is(err, shared.ErrForbidden) {
		h.logger.Error("create record", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	h.redirect(w, r, "/"+portal+list, shared.FlashError, shared.UserSafeMessage(err))
}

func (h *Handler) createOrder(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		values := formValues(r, "provider_id", "service", "origin", "destination", "notes")
		_, err := h.service.CreateOrder(r.Context(), identity.PrincipalFromContext(r.Context()), OrderInput{
			ProviderID:  values["provider_id"],
			Service:     ServiceType(values["service"]),
			Origin:      values["origin"],
			Destination: values["destination"],
			Notes:       values["notes"],
		})
		h.afterCreate(w, r, err, "pages/logistics/order_form.html", "New order", portal, "/orders", "Order created", values)
	}
}

func (h *Handler) listRequests(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := identity.PrincipalFromContext(r.Context())
		filter, page := listFilter(r)
		items, err := h.service.ListServiceRequests(r.Context(), p, filter)
		if err != nil {
			h.fail(w, r, portal, err)
			return
		}
		rs, hasNext := rows(p, KindServiceRequest, items, func(sr ServiceRequest) Status { return sr.Status })
		h.render(w, r, http.StatusOK, "pages/logistics/requests_list.html", "Service requests", portal, nil, listPage[ServiceRequest]{
			Kind: KindServiceRequest, Rows: rs, Status: filter.Status, Statuses: Statuses(KindServiceRequest),
			Page: page, HasNext: hasNext, CanEdit: p.Is(identity.RoleCustomer),
		})
	}
}

func (h *Handler) newRequest(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.renderForm(w, r, http.StatusOK, "pages/logistics/request_form.html", "New service request", portal, nil, nil)
	}
}

func (h *Handler) createRequest(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		values := formValues(r, "order_id", "type", "remarks")
		_, err := h.service.CreateServiceRequest(r.Context(), identity.PrincipalFromContext(r.Context()), ServiceRequestInput{
			OrderID: values["order_id"],
			Type:    values["type"],
			Remarks: values["remarks"],
		})
		h.afterCreate(w, r, err, "pages/logistics/request_form.html", "New service request", portal, "/requests", "Service request submitted", values)
	}
}

func (h *Handler) listJobs(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := identity.PrincipalFromContext(r.Context())
		filter, page := listFilter(r)
		items, err := h.service.ListJobOrders(r.Context(), p, filter)
		if err != nil {
			h.fail(w, r, portal, err)
			return
		}
		rs, hasNext := rows(p, KindJobOrder, items, func(j JobOrder) Status { return j.Status })
		h.render(w, r, http.StatusOK, "pages/logistics/jobs_list.html", "Job orders", portal, nil, listPage[JobOrder]{
			Kind: KindJobOrder, Rows: rs, Status: filter.Status, Statuses: Statuses(KindJobOrder),
			Page: page, HasNext: hasNext,
		})
	}
}

func (h *Handler) createJob(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		_, err := h.service.CreateJobOrder(r.Context(), identity.PrincipalFromContext(r.Context()), id)
		if err != nil {
			h.redirect(w, r, "/"+portal+"/orders/"+id, shared.FlashError, shared.UserSafeMessage(err))
			return
		}
		h.redirect(w, r, "/"+portal+"/jobs", shared.FlashSuccess, "Job order created")
	}
}

func (h *Handler) listPricing(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := identity.PrincipalFromContext(r.Context())
		filter, page := listFilter(r)
		items, err := h.service.ListPricingRequests(r.Context(), p, filter)
		if err != nil {
			h.fail(w, r, portal, err)
			return
		}
		rs, hasNext := rows(p, KindPricingRequest, items, func(pr PricingRequest) Status { return pr.Status })
		h.render(w, r, http.StatusOK, "pages/logistics/pricing_list.html", "Pricing requests", portal, nil, listPage[PricingRequest]{
			Kind: KindPricingRequest, Rows: rs, Status: filter.Status, Statuses: Statuses(KindPricingRequest),
			Page: page, HasNext: hasNext, CanEdit: p.Is(identity.RoleCustomer),
		})
	}
}

func (h *Handler) newPricing(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.renderForm(w, r, http.StatusOK, "pages/logistics/pricing_form.html", "Request a quote", portal, nil, nil)
	}
}

func (h *Handler) createPricing(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		values := formValues(r, "provider_id", "service", "details")
		_, err := h.service.CreatePricingRequest(r.Context(), identity.PrincipalFromContext(r.Context()), PricingRequestInput{
			ProviderID: values["provider_id"],
			Service:    ServiceType(values["service"]),
			Details:    values["details"],
		})
		h.afterCreate(w, r, err, "pages/logistics/pricing_form.html", "Request a quote", portal, "/pricing", "Quote requested", values)
	}
}

// updateStatus always redirects back to the list so the page is re-fetched.
func (h *Handler) updateStatus(portal string, kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		back := "/" + portal + "/" + string(kind)
		to := Status(r.PostFormValue("status"))
		err := h.service.UpdateStatus(r.Context(), identity.PrincipalFromContext(r.Context()), kind, chi.URLParam(r, "id"), to)
		if err != nil {
			if errors.Is(err, shared.ErrUnavailable) {
				h.logger.Error("update status", slog.String("kind", string(kind)), slog.Any("error", err))
			}
			h.redirect(w, r, back, shared.FlashError, shared.UserSafeMessage(err))
			return
		}
		h.redirect(w, r, back, shared.FlashSuccess, "Status changed to "+view.Label(string(to)))
	}
}

func (h *Handler) deleteOrder(portal string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.service.DeleteOrder(r.Context(), identity.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			h.redirect(w, r, "/"+portal+"/orders", shared.FlashError, shared.UserSafeMessage(err))
			return
		}
		h.redirect(w, r, "/"+portal+"/orders", shared.FlashSuccess, "Order deleted")
	}
}
