package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/terminal/internal/model"
)

// OrderReader defines the engine methods order handlers need.
// Satisfied by *engine.Engine.
type OrderReader interface {
	Orders(ctx context.Context) ([]model.Order, error)
	Reopen(ctx context.Context, orderID string) (model.Order, error)
}

// OrderHandler serves order history and the reporting collaborator's
// reopen-for-correction operation.
type OrderHandler struct {
	engine OrderReader
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(eng OrderReader) *OrderHandler {
	return &OrderHandler{engine: eng}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{id}/reopen", h.Reopen)
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.engine.Orders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

// Reopen handles POST /orders/{id}/reopen: bind a billed/settled order back
// to its table for correction. Rejected with a visible reason when the
// table is not Available, since another session may already be editing it.
func (h *OrderHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	o, err := h.engine.Reopen(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
