package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/polybets/polybet/internal/domain"
	"github.com/polybets/polybet/internal/service"
)

// HistoryService defines the history operations used by the handler.
type HistoryService interface {
	List(ctx context.Context, userID string, tf domain.Timeframe, now time.Time) (service.HistoryPage, error)
	Export(ctx context.Context, userID string, tf domain.Timeframe, now time.Time) (service.Export, error)
	ListExports(ctx context.Context, userID string) ([]service.ExportFile, error)
	OpenExport(ctx context.Context, userID, id string) (io.ReadCloser, error)
}

// HistoryHandler serves resolved-bookmark history.
type HistoryHandler struct {
	history HistoryService
	logger  *slog.Logger
	now     func() time.Time
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(history HistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, logger: logger, now: time.Now}
}

// ListHistory returns resolved bookmarks, newest first.
// GET /api/history?timeframe=24h|7d|30d|all
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	tf, err := service.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.history.List(r.Context(), user, tf, h.now())
	if err != nil {
		writeServiceError(w, r, h.logger, "list history", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ExportHistory writes the caller's history to object storage and returns a
// short-lived download link.
// POST /api/history/export?timeframe=30d
func (h *HistoryHandler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	tf, err := service.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	exp, err := h.history.Export(r.Context(), user, tf, h.now())
	if err != nil {
		writeServiceError(w, r, h.logger, "export history", err)
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

// ListExports returns the caller's stored exports, newest first.
// GET /api/history/exports
func (h *HistoryHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	files, err := h.history.ListExports(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, h.logger, "list exports", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": files})
}

// DownloadExport streams one stored export through the API.
// GET /api/history/exports/{id}
func (h *HistoryHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	rc, err := h.history.OpenExport(r.Context(), user, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "open export", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="history-`+id+`.json"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "history: stream export",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}
