package handler

import (
	"net/http"

	"eventhub/internal/auth"
)

type MeHandler struct{}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": c.UserID,
		"role":    c.Role,
	})
}
