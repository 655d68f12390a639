package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/terminal/internal/kot"
	"github.com/kiwari-pos/terminal/internal/model"
	"github.com/kiwari-pos/terminal/internal/store"
)

// KOTHandler serves ticket history and reprints. Tickets are immutable
// read models; a reprint renders a historical record and mutates nothing.
type KOTHandler struct {
	store store.DocumentStore
}

// NewKOTHandler creates a new KOTHandler.
func NewKOTHandler(st store.DocumentStore) *KOTHandler {
	return &KOTHandler{store: st}
}

// RegisterRoutes registers KOT endpoints on the given Chi router.
func (h *KOTHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{id}/reprint", h.Reprint)
}

// List handles GET /kots.
func (h *KOTHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ListAll(r.Context(), store.CollectionKOTs)
	if err != nil {
		writeError(w, err)
		return
	}
	kots, err := store.DecodeAll[model.KOTRecord](docs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kots": kots})
}

// Reprint handles POST /kots/{id}/reprint: a full-cart re-rendering of the
// historical snapshot, flagged as a reprint.
func (h *KOTHandler) Reprint(w http.ResponseWriter, r *http.Request) {
	var rec model.KOTRecord
	if err := h.store.Get(r.Context(), store.CollectionKOTs, chi.URLParam(r, "id"), &rec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kot.Render(rec, true))
}
