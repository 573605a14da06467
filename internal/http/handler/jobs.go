package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"eventhub/internal/jobs"
)

// JobsHandler exposes queue state to admins.
type JobsHandler struct {
	Admin jobs.Admin
}

type jobDTO struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	To        string    `json:"to"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError *string   `json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	family := jobs.Family(chi.URLParam(r, "family"))
	if !family.Valid() {
		http.Error(w, "unknown family", http.StatusNotFound)
		return
	}

	var status jobs.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st, ok := jobs.ParseStatus(s)
		if !ok {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		status = st
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := h.Admin.List(r.Context(), family, status, limit)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	counts := map[string]int64{}
	for _, st := range []jobs.Status{jobs.StatusPending, jobs.StatusProcessing, jobs.StatusCompleted, jobs.StatusFailed} {
		n, err := h.Admin.Count(r.Context(), family, st)
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		counts[string(st)] = n
	}

	out := make([]jobDTO, 0, len(rows))
	for _, j := range rows {
		out = append(out, jobDTO{
			ID:        j.ID,
			Kind:      string(j.Kind),
			To:        j.To,
			Status:    string(j.Status),
			Attempts:  j.Attempts,
			LastError: j.LastError,
			CreatedAt: j.CreatedAt,
			UpdatedAt: j.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"family": family,
		"counts": counts,
		"jobs":   out,
	})
}
