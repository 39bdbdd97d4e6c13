// Package api exposes HTTP handlers for the schedule service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"example.com/schedule/internal/auth"
	"example.com/schedule/internal/domain"
	"example.com/schedule/internal/logging"
	"example.com/schedule/internal/observability"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the router. Routes with fixed segments are
// registered ahead of /schedule/{id} so they are never captured as an id.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s := router.PathPrefix("/schedule").Subrouter()
	s.HandleFunc("", h.createSchedule).Methods(http.MethodPost)
	s.HandleFunc("/activities", h.createSchedule).Methods(http.MethodPost)
	s.HandleFunc("/activities", h.listSchedules).Methods(http.MethodGet)
	s.HandleFunc("/activities/{id}/complete", h.completeActivity).Methods(http.MethodPatch)
	s.HandleFunc("/activities/{id}", h.deleteSchedule).Methods(http.MethodDelete)
	s.HandleFunc("/upcoming", h.listUpcoming).Methods(http.MethodGet)
	s.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	s.HandleFunc("/date/{date}", h.listForDate).Methods(http.MethodGet)
	s.HandleFunc("/notifications/due", h.listDueNotifications).Methods(http.MethodGet)
	s.HandleFunc("/notifications/{id}/read", h.markNotificationRead).Methods(http.MethodPatch)
	s.HandleFunc("/{id}/toggle", h.toggleCompleted).Methods(http.MethodPatch)
	s.HandleFunc("/{id}", h.markCompleted).Methods(http.MethodPatch)
	s.HandleFunc("/{id}", h.getSchedule).Methods(http.MethodGet)
	s.HandleFunc("/{id}", h.deleteSchedule).Methods(http.MethodDelete)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) createSchedule(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req domain.ScheduleInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "unable to parse body")
		return
	}

	schedule, err := h.service.ScheduleActivity(r.Context(), claims.UserID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dataResponse{Status: statusSuccess, Data: schedule})
}

func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	rows, err := h.service.ListSchedules(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: rows})
}

func (h *Handler) listUpcoming(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "window must be a positive duration such as 30m")
			return
		}
		window = parsed
	}

	rows, err := h.service.ListUpcoming(r.Context(), claims.UserID, window)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: rows})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: stats})
}

func (h *Handler) listForDate(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	rows, err := h.service.ListSchedulesForDate(r.Context(), claims.UserID, mux.Vars(r)["date"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: rows})
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	row, err := h.service.GetScheduleByID(r.Context(), claims.UserID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: row})
}

// MarkCompletedRequest is the payload for PATCH /schedule/{id}.
// IsCompleted is left loosely typed; the service coerces it.
type MarkCompletedRequest struct {
	IsCompleted any `json:"is_completed"`
}

func (h *Handler) markCompleted(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	var req MarkCompletedRequest
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "unable to parse body")
		return
	}

	row, err := h.service.MarkCompleted(r.Context(), claims.UserID, id, req.IsCompleted)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Status: statusSuccess, Message: "Schedule updated.", Data: row})
}

// completeActivity serves the legacy PATCH /schedule/activities/{id}/complete,
// which always marks the schedule completed and takes no body.
func (h *Handler) completeActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	row, err := h.service.MarkCompleted(r.Context(), claims.UserID, id, true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Status: statusSuccess, Message: "Activity marked as completed.", Data: row})
}

func (h *Handler) toggleCompleted(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	row, err := h.service.ToggleCompleted(r.Context(), claims.UserID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Status: statusSuccess, Message: "Schedule toggled.", Data: row})
}

func (h *Handler) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteSchedule(r.Context(), claims.UserID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Status: statusSuccess, Message: "Schedule deleted."})
}

func (h *Handler) listDueNotifications(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireClaims(w, r); !ok {
		return
	}

	rows, err := h.service.ListDueNotifications(r.Context(), r.URL.Query().Get("now"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Status: statusSuccess, Data: rows})
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireClaims(w, r); !ok {
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Status: statusSuccess, Message: "Notification marked as read."})
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

type dataResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func requireClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return nil, false
	}
	return claims, true
}

func scheduleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(mux.Vars(r)["id"]), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid schedule id. It must be a number.")
		return 0, false
	}
	return id, true
}

// writeServiceError maps domain errors onto status codes. Anything unrecognised
// is a store failure: it is logged and reported without internals.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, domain.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "Schedule not found.")
	case errors.Is(err, domain.ErrToggleConflict):
		logRequestError(r, err)
		writeError(w, http.StatusInternalServerError, "Failed to toggle schedule.")
	default:
		logRequestError(r, err)
		writeError(w, http.StatusInternalServerError, "Internal server error.")
	}
}

func logRequestError(r *http.Request, err error) {
	logging.Log.WithError(err).WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": r.Header.Get(observability.RequestIDHeader),
	}).Error("request failed")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: statusError, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Log.WithError(err).Warn("failed to encode response")
	}
}
