package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// PipelineTrigger runs pipeline jobs outside their schedule.
type PipelineTrigger interface {
	Trigger(ctx context.Context, job string) error
	LastRuns() map[string]time.Time
}

// PipelineHandler serves pipeline trigger endpoints.
type PipelineHandler struct {
	pipeline PipelineTrigger
	logger   *slog.Logger
}

// NewPipelineHandler creates a PipelineHandler. pipeline may be nil when the
// process runs without the pipeline.
func NewPipelineHandler(pipeline PipelineTrigger, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{pipeline: pipeline, logger: logger}
}

// TriggerPipeline enqueues one run of a pipeline job (scrape by default).
// POST /api/pipeline/trigger?job=scrape|alerts|archive
func (h *PipelineHandler) TriggerPipeline(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not running in this process")
		return
	}
	job := r.URL.Query().Get("job")
	if job == "" {
		job = "scrape"
	}
	h.logger.InfoContext(r.Context(), "handler: pipeline trigger requested", slog.String("job", job))

	if err := h.pipeline.Trigger(r.Context(), job); err != nil {
		writeServiceError(w, r, h.logger, "trigger pipeline", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"job":          job,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
		"last_runs":    h.pipeline.LastRuns(),
	})
}
