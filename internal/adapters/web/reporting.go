package web

import (
	"net/http"

	"pharmatrack/internal/app"
)

// apiSellDirect handles POST /api/sales.
func (h *Handler) apiSellDirect(w http.ResponseWriter, r *http.Request) {
	var req app.DirectSaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.SellDirect(r.Context(), actor(r), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiLowStock handles GET /api/medicines/low-stock.
func (h *Handler) apiLowStock(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.LowStock(r.Context(), actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCustomerSummaries handles GET /api/customers.
func (h *Handler) apiCustomerSummaries(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.CustomerSummaries(r.Context(), actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListNotifications handles GET /api/notifications?unread=true.
func (h *Handler) apiListNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	result, err := h.svc.Notifications(r.Context(), actor(r), unreadOnly)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiMarkNotificationRead handles POST /api/notifications/{id}/read.
func (h *Handler) apiMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.MarkNotificationRead(r.Context(), actor(r), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
