package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/polybets/polybet/internal/domain"
	"github.com/polybets/polybet/internal/service"
)

// AlertService defines the alert operations used by the handler.
type AlertService interface {
	Upsert(ctx context.Context, userID string, in service.AlertInput) (domain.Alert, error)
	Update(ctx context.Context, userID, id string, in service.AlertInput) (domain.Alert, error)
	List(ctx context.Context, userID string) ([]domain.Alert, error)
	Delete(ctx context.Context, userID, id string) error
	RecentEvents(ctx context.Context, userID string, limit int) ([]domain.AlertEvent, error)
}

// AlertHandler serves the per-user price alert endpoints.
type AlertHandler struct {
	alerts AlertService
	logger *slog.Logger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(alerts AlertService, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

// ListAlerts returns the caller's alerts.
// GET /api/alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	alerts, err := h.alerts.List(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, h.logger, "list alerts", err)
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// UpsertAlert creates the alert for a bookmarked market or replaces the
// existing one.
// POST /api/alerts
func (h *AlertHandler) UpsertAlert(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in service.AlertInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := h.alerts.Upsert(r.Context(), user, in)
	if err != nil {
		writeServiceError(w, r, h.logger, "save alert", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateAlert changes the thresholds of an existing alert.
// PUT /api/alerts/{id}
func (h *AlertHandler) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var in service.AlertInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := h.alerts.Update(r.Context(), user, pathParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, h.logger, "update alert", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAlert removes one of the caller's alerts.
// DELETE /api/alerts/{id}
func (h *AlertHandler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.alerts.Delete(r.Context(), user, pathParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, "delete alert", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAlertEvents returns the caller's recently fired alerts, newest first.
// GET /api/alerts/events?limit=20
func (h *AlertHandler) ListAlertEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events, err := h.alerts.RecentEvents(r.Context(), user, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, "list alert events", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
