package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/kiwari-pos/terminal/internal/draft"
	"github.com/kiwari-pos/terminal/internal/engine"
	"github.com/kiwari-pos/terminal/internal/floor"
	"github.com/kiwari-pos/terminal/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP statuses: not-found to 404,
// conflicts (busy table, latched session, duplicate number) to 409,
// validation failures to 400, everything else to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, floor.ErrTableNotFound),
		errors.Is(err, engine.ErrOrderNotFound),
		errors.Is(err, engine.ErrSessionNotFound),
		errors.Is(err, draft.ErrLineNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, floor.ErrTableBusy),
		errors.Is(err, floor.ErrTableExists),
		errors.Is(err, engine.ErrSessionLatched):
		return http.StatusConflict
	case errors.Is(err, floor.ErrInvalidNumber),
		errors.Is(err, draft.ErrEmptyName),
		errors.Is(err, draft.ErrInvalidPrice),
		errors.Is(err, engine.ErrInvalidPayment),
		errors.Is(err, engine.ErrEmptyCart),
		errors.Is(err, engine.ErrNoOrder),
		errors.Is(err, engine.ErrNotReopenable):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
