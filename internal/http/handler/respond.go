package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"eventhub/internal/event"
	"eventhub/internal/jobs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func idParam(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// serviceError maps domain errors to status codes.
func serviceError(w http.ResponseWriter, err error) {
	var verr *jobs.ValidationError
	switch {
	case errors.Is(err, event.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, event.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &verr):
		http.Error(w, "invalid "+verr.Field, http.StatusBadRequest)
	default:
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
