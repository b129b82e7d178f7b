package web

import (
	"net/http"

	"pharmatrack/internal/app"

	"github.com/go-chi/chi/v5"
)

// apiPlaceOrder handles POST /api/orders.
func (h *Handler) apiPlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req app.PlaceOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.PlaceOrder(r.Context(), actor(r), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Order)
}

// apiListOrders handles GET /api/orders?status=pending.
func (h *Handler) apiListOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListOrders(r.Context(), actor(r), r.URL.Query().Get("status"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetOrder handles GET /api/orders/{id}.
func (h *Handler) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetOrder(r.Context(), actor(r), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Order)
}

// apiOrderSales handles GET /api/orders/{id}/sales.
func (h *Handler) apiOrderSales(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.OrderSales(r.Context(), actor(r), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiTransitionOrder handles POST /api/orders/{id}/{action}.
// confirm accepts an optional {"customer_name": "..."} body.
func (h *Handler) apiTransitionOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	req := app.TransitionRequest{OrderID: id, Action: chi.URLParam(r, "action")}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	req.OrderID, req.Action = id, chi.URLParam(r, "action")

	result, err := h.svc.TransitionOrder(r.Context(), actor(r), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Order)
}
