package web

import (
	"net/http"

	"crm-workflow/internal/app"
	"crm-workflow/internal/core"
)

// apiListQuotes handles GET /api/quotes.
func (h *Handler) apiListQuotes(w http.ResponseWriter, r *http.Request) {
	f, ok := listFilter(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListQuotes(r.Context(), actorFrom(r), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result.Quotes)
}

// apiCreateQuote handles POST /api/quotes.
func (h *Handler) apiCreateQuote(w http.ResponseWriter, r *http.Request) {
	var in core.QuoteInput
	if !decodeJSON(w, r, &in) {
		return
	}
	q, err := h.svc.CreateQuote(r.Context(), actorFrom(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, q)
}

// apiGetQuote handles GET /api/quotes/{id}.
func (h *Handler) apiGetQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	q, err := h.svc.GetQuote(r.Context(), actorFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, q)
}

// apiUpdateQuote handles PUT /api/quotes/{id}. The body replaces header and lines.
func (h *Handler) apiUpdateQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in core.QuoteInput
	if !decodeJSON(w, r, &in) {
		return
	}
	q, err := h.svc.UpdateQuote(r.Context(), actorFrom(r), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, q)
}

// apiDeleteQuote handles DELETE /api/quotes/{id}.
func (h *Handler) apiDeleteQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteQuote(r.Context(), actorFrom(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiTransitionQuote handles POST /api/quotes/{id}/transition.
// Body: { "status": "sent" }
func (h *Handler) apiTransitionQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req app.TransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.svc.TransitionQuote(r.Context(), actorFrom(r), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, q)
}

// apiConvertQuoteToOrder handles POST /api/quotes/{id}/convert/order.
// Body (optional): Customizations.
func (h *Handler) apiConvertQuoteToOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, ok := decodeCustomizations(w, r)
	if !ok {
		return
	}
	o, err := h.svc.ConvertQuoteToOrder(r.Context(), actorFrom(r), id, c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, o)
}

// apiConvertQuoteToInvoice handles POST /api/quotes/{id}/convert/invoice.
func (h *Handler) apiConvertQuoteToInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, ok := decodeCustomizations(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.ConvertQuoteToInvoice(r.Context(), actorFrom(r), id, c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, inv)
}

// apiDocumentChain handles GET /api/quotes/{id}/chain.
func (h *Handler) apiDocumentChain(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	chain, err := h.svc.GetDocumentChain(r.Context(), actorFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, chain)
}

// apiExpireQuotes handles POST /api/quotes/expiry-sweep?as_of=YYYY-MM-DD.
func (h *Handler) apiExpireQuotes(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOfParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ExpireQuotes(r.Context(), actorFrom(r), asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}
