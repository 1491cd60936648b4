package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/polybets/polybet/internal/domain"
	"github.com/polybets/polybet/internal/server/handler"
	"github.com/polybets/polybet/internal/server/middleware"
	"github.com/polybets/polybet/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKeys     []string // if empty, key authentication is disabled
	// RateLimit is the number of requests allowed per RateLimitWindow for
	// each user or client IP. Zero disables rate limiting.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Markets   *handler.MarketHandler
	Classify  *handler.ClassifyHandler
	Bookmarks *handler.BookmarkHandler
	Alerts    *handler.AlertHandler
	History   *handler.HistoryHandler
	Pipeline  *handler.PipelineHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (CORS, logging, auth, rate limiting) and attaches the
// WebSocket hub. limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, limiter, wsHub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// NewHandler builds the routed and middleware-wrapped http.Handler.
func NewHandler(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market endpoints.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/lookup", handlers.Markets.LookupMarket)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/book", handlers.Markets.GetBook)
	mux.HandleFunc("GET /api/markets/{id}/price", handlers.Markets.GetPrice)
	mux.HandleFunc("POST /api/classify", handlers.Classify.Classify)

	// Bookmark endpoints.
	mux.HandleFunc("GET /api/bookmarks", handlers.Bookmarks.ListBookmarks)
	mux.HandleFunc("POST /api/bookmarks", handlers.Bookmarks.CreateBookmark)
	mux.HandleFunc("DELETE /api/bookmarks/{id}", handlers.Bookmarks.DeleteBookmark)

	// Alert endpoints.
	mux.HandleFunc("GET /api/alerts", handlers.Alerts.ListAlerts)
	mux.HandleFunc("GET /api/alerts/events", handlers.Alerts.ListAlertEvents)
	mux.HandleFunc("POST /api/alerts", handlers.Alerts.UpsertAlert)
	mux.HandleFunc("PUT /api/alerts/{id}", handlers.Alerts.UpdateAlert)
	mux.HandleFunc("DELETE /api/alerts/{id}", handlers.Alerts.DeleteAlert)

	// History endpoints.
	mux.HandleFunc("GET /api/history", handlers.History.ListHistory)
	mux.HandleFunc("POST /api/history/export", handlers.History.ExportHistory)
	mux.HandleFunc("GET /api/history/exports", handlers.History.ListExports)
	mux.HandleFunc("GET /api/history/exports/{id}", handlers.History.DownloadExport)

	// Pipeline trigger endpoint.
	mux.HandleFunc("POST /api/pipeline/trigger", handlers.Pipeline.TriggerPipeline)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow, logger)(h)
	}
	h = middleware.Auth(cfg.APIKeys, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
