package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"eventhub/internal/auth"
	"eventhub/internal/event"
)

// EventService is the producer side the handlers drive.
type EventService interface {
	ListEvents(ctx context.Context, upcoming bool, limit int) ([]event.Event, error)
	CreateEvent(ctx context.Context, createdBy uint64, in event.CreateEventInput) (*event.Event, int, error)
	Register(ctx context.Context, eventID uint64, userID *uint64, in event.RegisterInput) (*event.Registration, error)
	MarkAttendance(ctx context.Context, eventID uint64, registrationIDs []uint64) (int64, error)
	IssueCertificates(ctx context.Context, eventID uint64) (int, error)
	AlertExternalEvent(ctx context.Context, in event.ExternalAlertInput) (int, error)
}

type EventHandler struct {
	Svc EventService
}

type eventDTO struct {
	ID          uint64     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Venue       string     `json:"venue"`
	StartsAt    *time.Time `json:"starts_at"`
	Link        string     `json:"link,omitempty"`
	Tags        []string   `json:"tags"`
}

func toEventDTO(e event.Event) eventDTO {
	tags := []string(e.Tags)
	if tags == nil {
		tags = []string{}
	}
	return eventDTO{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Venue:       e.Venue,
		StartsAt:    e.StartsAt,
		Link:        e.Link,
		Tags:        tags,
	}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	upcoming := strings.EqualFold(r.URL.Query().Get("upcoming"), "true")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := h.Svc.ListEvents(r.Context(), upcoming, limit)
	if err != nil {
		serviceError(w, err)
		return
	}
	out := make([]eventDTO, 0, len(rows))
	for _, e := range rows {
		out = append(out, toEventDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

type createEventReq struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Venue       string   `json:"venue"`
	StartsAt    *string  `json:"starts_at"` // RFC3339 optional
	Link        string   `json:"link"`
	Tags        []string `json:"tags"`
	Notify      bool     `json:"notify"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createEventReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	startsAt, ok := parseOptionalTime(w, req.StartsAt)
	if !ok {
		return
	}

	ev, queued, err := h.Svc.CreateEvent(r.Context(), uid, event.CreateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Venue:       req.Venue,
		StartsAt:    startsAt,
		Link:        req.Link,
		Tags:        req.Tags,
		Notify:      req.Notify,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"event":                toEventDTO(*ev),
		"notifications_queued": queued,
	})
}

type externalAlertReq struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Venue       string  `json:"venue"`
	StartsAt    *string `json:"starts_at"`
	Link        string  `json:"link"`
}

func (h *EventHandler) AlertExternal(w http.ResponseWriter, r *http.Request) {
	var req externalAlertReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	startsAt, ok := parseOptionalTime(w, req.StartsAt)
	if !ok {
		return
	}

	queued, err := h.Svc.AlertExternalEvent(r.Context(), event.ExternalAlertInput{
		Title:       req.Title,
		Description: req.Description,
		Venue:       req.Venue,
		StartsAt:    startsAt,
		Link:        req.Link,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": queued})
}

type registerEventReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Register accepts guests and signed-in users.
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	eventID, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req registerEventReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	var userID *uint64
	if uid, ok := auth.UserIDFromContext(r.Context()); ok {
		userID = &uid
	} else if strings.TrimSpace(req.Email) == "" {
		http.Error(w, "email required", http.StatusBadRequest)
		return
	}

	reg, err := h.Svc.Register(r.Context(), eventID, userID, event.RegisterInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       reg.ID,
		"event_id": reg.EventID,
		"token_id": reg.TokenID,
	})
}

type attendanceReq struct {
	RegistrationIDs []uint64 `json:"registration_ids"`
}

func (h *EventHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	eventID, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req attendanceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	n, err := h.Svc.MarkAttendance(r.Context(), eventID, req.RegistrationIDs)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marked": n})
}

func (h *EventHandler) Certificates(w http.ResponseWriter, r *http.Request) {
	eventID, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	n, err := h.Svc.IssueCertificates(r.Context(), eventID)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": n})
}

func parseOptionalTime(w http.ResponseWriter, raw *string) (*time.Time, bool) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		http.Error(w, "invalid starts_at (RFC3339)", http.StatusBadRequest)
		return nil, false
	}
	return &t, true
}
