package web

import (
	"net/http"

	"crm-workflow/internal/app"
	"crm-workflow/internal/core"

	"github.com/go-chi/chi/v5"
)

// apiListInvoices handles GET /api/invoices?status=&company_id=&limit=.
func (h *Handler) apiListInvoices(w http.ResponseWriter, r *http.Request) {
	f, ok := listFilter(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListInvoices(r.Context(), actorFrom(r), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result.Invoices)
}

// apiGetInvoice handles GET /api/invoices/{id}.
func (h *Handler) apiGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), actorFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// apiPublicInvoice handles GET /api/public/invoices/{token}. No authentication.
func (h *Handler) apiPublicInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.GetPublicInvoice(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// apiUpdateInvoice handles PUT /api/invoices/{id}. Body: { due_date?, notes? }.
func (h *Handler) apiUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in core.InvoiceUpdate
	if !decodeJSON(w, r, &in) {
		return
	}
	inv, err := h.svc.UpdateInvoice(r.Context(), actorFrom(r), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// apiDeleteInvoice handles DELETE /api/invoices/{id}.
func (h *Handler) apiDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteInvoice(r.Context(), actorFrom(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiTransitionInvoice handles POST /api/invoices/{id}/transition.
func (h *Handler) apiTransitionInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req app.TransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.TransitionInvoice(r.Context(), actorFrom(r), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// apiRecordPayment handles POST /api/invoices/{id}/payments. Body: { amount, date? }.
func (h *Handler) apiRecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p core.Payment
	if !decodeJSON(w, r, &p) {
		return
	}
	inv, err := h.svc.RecordPayment(r.Context(), actorFrom(r), id, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// apiConsolidatedInvoice handles POST /api/invoices/consolidated.
// Body: { orders: [{order_id, amount_allocated?}], customizations? }
func (h *Handler) apiConsolidatedInvoice(w http.ResponseWriter, r *http.Request) {
	var req app.ConsolidatedInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		if req.Customizations == nil {
			req.Customizations = &core.Customizations{}
		}
		req.Customizations.IdempotencyKey = key
	}
	inv, err := h.svc.CreateConsolidatedInvoice(r.Context(), actorFrom(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, inv)
}

// apiMarkOverdue handles POST /api/invoices/overdue-sweep?as_of=YYYY-MM-DD.
func (h *Handler) apiMarkOverdue(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOfParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.MarkOverdue(r.Context(), actorFrom(r), asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result)
}
