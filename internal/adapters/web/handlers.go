package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"crm-workflow/internal/app"
	"crm-workflow/internal/core"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options carries the HTTP settings loaded from config.
type Options struct {
	AllowedOrigins string
	JWTSecret      string
	JWTExpiry      time.Duration
	// SecureCookies marks the auth cookie Secure. Disabled only for plain-HTTP development.
	SecureCookies bool
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.JWTExpiry <= 0 {
		opts.JWTExpiry = time.Hour
	}
	h := &Handler{svc: svc, opts: opts, log: logger, now: time.Now}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)
	r.Get("/api/public/invoices/{token}", h.apiPublicInvoice)
	r.Get("/api/schema/{name}", h.apiSchema)

	// ── Protected API routes (401 JSON if unauthenticated) ────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/api/auth/me", h.me)

		// Quotes
		r.Get("/api/quotes", h.apiListQuotes)
		r.Post("/api/quotes", h.apiCreateQuote)
		r.Post("/api/quotes/expiry-sweep", h.apiExpireQuotes)
		r.Get("/api/quotes/{id}", h.apiGetQuote)
		r.Put("/api/quotes/{id}", h.apiUpdateQuote)
		r.Delete("/api/quotes/{id}", h.apiDeleteQuote)
		r.Post("/api/quotes/{id}/transition", h.apiTransitionQuote)
		r.Post("/api/quotes/{id}/convert/order", h.apiConvertQuoteToOrder)
		r.Post("/api/quotes/{id}/convert/invoice", h.apiConvertQuoteToInvoice)
		r.Get("/api/quotes/{id}/chain", h.apiDocumentChain)

		// Orders
		r.Get("/api/orders", h.apiListOrders)
		r.Get("/api/orders/{id}", h.apiGetOrder)
		r.Put("/api/orders/{id}", h.apiUpdateOrder)
		r.Delete("/api/orders/{id}", h.apiDeleteOrder)
		r.Post("/api/orders/{id}/transition", h.apiTransitionOrder)
		r.Post("/api/orders/{id}/invoice", h.apiConvertOrderToInvoice)
		r.Get("/api/orders/{id}/verify", h.apiVerifyOrder)

		// Invoices
		r.Get("/api/invoices", h.apiListInvoices)
		r.Post("/api/invoices/consolidated", h.apiConsolidatedInvoice)
		r.Post("/api/invoices/overdue-sweep", h.apiMarkOverdue)
		r.Get("/api/invoices/{id}", h.apiGetInvoice)
		r.Put("/api/invoices/{id}", h.apiUpdateInvoice)
		r.Delete("/api/invoices/{id}", h.apiDeleteInvoice)
		r.Post("/api/invoices/{id}/transition", h.apiTransitionInvoice)
		r.Post("/api/invoices/{id}/payments", h.apiRecordPayment)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// decodeCustomizations reads optional conversion overrides. An empty body means none.
// The Idempotency-Key header, when present, takes precedence over the body field.
func decodeCustomizations(w http.ResponseWriter, r *http.Request) (*core.Customizations, bool) {
	c := &core.Customizations{}
	if err := json.NewDecoder(r.Body).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return nil, false
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		c.IdempotencyKey = key
	}
	return c, true
}

// idParam parses the {id} URL parameter. Writes 400 and returns false when it is not a positive integer.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id: "+chi.URLParam(r, "id"), "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// listFilter reads ?status=, ?company_id= and ?limit= from the query string.
func listFilter(w http.ResponseWriter, r *http.Request) (core.ListFilter, bool) {
	q := r.URL.Query()
	f := core.ListFilter{Status: q.Get("status")}
	if v := q.Get("company_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, "invalid company_id: "+v, "BAD_REQUEST", http.StatusBadRequest)
			return f, false
		}
		f.CompanyID = &id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, "invalid limit: "+v, "BAD_REQUEST", http.StatusBadRequest)
			return f, false
		}
		f.Limit = n
	}
	return f, true
}

// asOfParam reads ?as_of=YYYY-MM-DD, defaulting to now.
func (h *Handler) asOfParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("as_of")
	if v == "" {
		return h.now(), true
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		writeError(w, r, "invalid as_of, expected YYYY-MM-DD: "+v, "BAD_REQUEST", http.StatusBadRequest)
		return time.Time{}, false
	}
	return t, true
}
