package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/terminal/internal/model"
	"github.com/kiwari-pos/terminal/internal/ws"
)

// FloorService defines the floor methods table handlers need.
// Satisfied by *floor.Service; narrow interface for testability.
type FloorService interface {
	Create(ctx context.Context, number int) (model.Table, error)
	List(ctx context.Context) ([]model.Table, error)
}

// TableHandler handles table administration endpoints.
type TableHandler struct {
	floor FloorService
	hub   *ws.Hub
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(floor FloorService, hub *ws.Hub) *TableHandler {
	return &TableHandler{floor: floor, hub: hub}
}

// RegisterRoutes registers table endpoints on the given Chi router.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
}

type createTableRequest struct {
	Number int `json:"number"`
}

// Create handles POST /tables. A display number already on the floor is a
// conflict, reported synchronously with no partial write.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	table, err := h.floor.Create(r.Context(), req.Number)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.hub != nil {
		h.hub.BroadcastJSON(ws.TopicTables, "table.created", table) //nolint:errcheck
	}
	writeJSON(w, http.StatusCreated, table)
}

// List handles GET /tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.floor.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}
