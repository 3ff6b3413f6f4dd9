package web

import (
	"net/http"

	"crm-workflow/internal/app"
	"crm-workflow/internal/core"
)

// apiListOrders handles GET /api/orders?status=&company_id=&limit=.
func (h *Handler) apiListOrders(w http.ResponseWriter, r *http.Request) {
	f, ok := listFilter(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListOrders(r.Context(), actorFrom(r), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, result.Orders)
}

// apiGetOrder handles GET /api/orders/{id}.
func (h *Handler) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	o, err := h.svc.GetOrder(r.Context(), actorFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, o)
}

// apiUpdateOrder handles PUT /api/orders/{id}.
// Body: { delivery_date?, notes?, lines? }. Lines are only replaceable before any invoicing.
func (h *Handler) apiUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in core.OrderUpdate
	if !decodeJSON(w, r, &in) {
		return
	}
	o, err := h.svc.UpdateOrder(r.Context(), actorFrom(r), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, o)
}

// apiDeleteOrder handles DELETE /api/orders/{id}.
func (h *Handler) apiDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteOrder(r.Context(), actorFrom(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiTransitionOrder handles POST /api/orders/{id}/transition.
func (h *Handler) apiTransitionOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req app.TransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.svc.TransitionOrder(r.Context(), actorFrom(r), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, o)
}

// apiConvertOrderToInvoice handles POST /api/orders/{id}/invoice.
// Body (optional): Customizations, e.g. { "partial": { "percentage": "50" } }.
func (h *Handler) apiConvertOrderToInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, ok := decodeCustomizations(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.ConvertOrderToInvoice(r.Context(), actorFrom(r), id, c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, inv)
}

// apiVerifyOrder handles GET /api/orders/{id}/verify.
func (h *Handler) apiVerifyOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	report, err := h.svc.VerifyOrder(r.Context(), actorFrom(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, report)
}
