// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Shivanand-hulikatti/mentor-events/internal/apperr"
	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/Shivanand-hulikatti/mentor-events/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// EventHandler holds all HTTP handlers for the events API.
type EventHandler struct {
	events *service.EventService
	coord  *service.Coordinator
	log    *logrus.Entry
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *service.EventService, coord *service.Coordinator, log logrus.FieldLogger) *EventHandler {
	return &EventHandler{
		events: events,
		coord:  coord,
		log:    log.WithField("component", "http"),
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code apperr.Code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: string(code)})
}

// writeAppError maps a service error to its status. Internal details are
// logged, never returned.
func (h *EventHandler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternal {
		h.log.WithField("path", r.URL.Path).WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, code, "internal server error")
		return
	}
	writeError(w, code.HTTPStatus(), code, err.Error())
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeOptionalJSON is decodeJSON that accepts an empty body.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := decodeJSON(r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid request body: "+err.Error())
		return
	}

	id, _ := IdentityFrom(r.Context())
	event, err := h.events.CreateEvent(r.Context(), req, id.UserID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events?upcoming=true&status=published&page=1
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := model.ListEventsQuery{
		Status: model.EventStatus(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("upcoming"); v != "" {
		upcoming, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, apperr.CodeValidation, "upcoming must be true or false")
			return
		}
		q.UpcomingOnly = upcoming
	}
	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, apperr.CodeValidation, "page must be a positive integer")
			return
		}
		q.Page = page
	}

	events, err := h.events.ListEvents(r.Context(), q)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PATCH /events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.UpdateEvent(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// CancelEvent handles POST /events/{id}/cancel
func (h *EventHandler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.CancelEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// SendReminder handles POST /events/{id}/reminder
// The body is optional; delivery happens asynchronously.
func (h *EventHandler) SendReminder(w http.ResponseWriter, r *http.Request) {
	var req model.ReminderRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.CodeValidation, "invalid request body: "+err.Error())
		return
	}

	res, err := h.events.SendReminder(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, res)
}

// ListRegistrations handles GET /events/{id}/registrations
func (h *EventHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.events.ListRegistrations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	if regs == nil {
		regs = []model.Registration{}
	}

	writeJSON(w, http.StatusOK, regs)
}

// ─── Registration ─────────────────────────────────────────────────────────────

// Join handles POST /events/{id}/join for the authenticated caller.
// A new registration answers 201; repeating it answers 200.
func (h *EventHandler) Join(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	res, err := h.coord.Join(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Already {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// Leave handles POST /events/{id}/leave for the authenticated caller.
func (h *EventHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	res, err := h.coord.Leave(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
