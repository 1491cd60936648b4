package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polybets/polybet/internal/pipeline"
	"github.com/polybets/polybet/internal/platform/polymarket"
	"github.com/polybets/polybet/internal/server"
	"github.com/polybets/polybet/internal/server/handler"
	"github.com/polybets/polybet/internal/server/ws"
)

// ServerMode serves the HTTP API and WebSocket hub without running the
// pipeline. Manual pipeline triggers answer 503.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies, svcs *Services) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svcs, nil)
	return g.Wait()
}

// ScrapeMode runs the ingestion, alerting and archive pipeline only.
func (a *App) ScrapeMode(ctx context.Context, deps *Dependencies, svcs *Services) error {
	a.logger.InfoContext(ctx, "starting scrape mode")

	if !a.cfg.Pipeline.Enabled {
		a.logger.WarnContext(ctx, "pipeline.enabled is false, but scrape mode always runs the pipeline")
	}

	g, ctx := errgroup.WithContext(ctx)
	orch := a.buildPipeline(deps, svcs)
	g.Go(func() error {
		return orch.Run(ctx)
	})
	return g.Wait()
}

// FullMode runs the pipeline and the HTTP server in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, svcs *Services) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	var trigger handler.PipelineTrigger
	if a.cfg.Pipeline.Enabled {
		orch := a.buildPipeline(deps, svcs)
		trigger = orch
		g.Go(func() error {
			return orch.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "pipeline disabled")
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svcs, trigger)
	} else {
		a.logger.InfoContext(ctx, "HTTP server disabled")
	}

	return g.Wait()
}

// buildPipeline assembles the scraper, the optional realtime price feed,
// the alert evaluator and, when object storage is wired, the archiver.
func (a *App) buildPipeline(deps *Dependencies, svcs *Services) *pipeline.Orchestrator {
	pc := a.cfg.Pipeline

	scraper := pipeline.NewMarketScraper(svcs.Markets, svcs.Gamma, pipeline.ScraperOpts{
		PageSize: a.cfg.Polymarket.PageSize,
		MaxPages: a.cfg.Polymarket.MaxPages,
		Locks:    deps.LockManager,
		Notifier: deps.Notifier,
	}, a.logger)

	opts := pipeline.OrchestratorOpts{
		AlertEvaluator: pipeline.NewAlertEvaluator(deps.SignalBus, svcs.Prices, pc.AlertInterval.Duration, a.logger),
		ScrapeInterval: pc.ScrapeInterval.Duration,
		ArchiveCron:    pc.ArchiveCron,
	}
	if pc.PriceStream {
		stream := polymarket.NewPriceStream(a.cfg.Polymarket.RtdsHost)
		opts.PriceFeed = pipeline.NewPriceFeed(stream, svcs.Prices, deps.BookmarkStore, a.logger)
	}
	if deps.Archiver != nil {
		opts.Archiver = pipeline.NewArchiver(svcs.History, pc.ArchiveRetentionDays, pc.ExportRetentionDays, deps.Notifier, a.logger)
	} else {
		a.logger.Info("history archive disabled (s3.enabled is false)")
	}

	return pipeline.NewOrchestrator(scraper, opts, a.logger)
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to g.
// The server is shut down gracefully when the context is cancelled.
// trigger may be nil when the pipeline does not run in this process.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	svcs *Services,
	trigger handler.PipelineTrigger,
) {
	sc := a.cfg.Server

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           a.cfg.Mode,
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: sc.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	checks := make(map[string]handler.CheckFunc, len(deps.Checks))
	for name, fn := range deps.Checks {
		checks[name] = fn
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(checks, a.logger),
		Markets:   handler.NewMarketHandler(svcs.Markets, svcs.Prices, a.logger),
		Classify:  handler.NewClassifyHandler(svcs.Markets, a.logger),
		Bookmarks: handler.NewBookmarkHandler(svcs.Bookmarks, a.logger),
		Alerts:    handler.NewAlertHandler(svcs.Alerts, a.logger),
		History:   handler.NewHistoryHandler(svcs.History, a.logger),
		Pipeline:  handler.NewPipelineHandler(trigger, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            sc.Port,
		CORSOrigins:     sc.CORSOrigins,
		APIKeys:         sc.APIKeys,
		RateLimit:       sc.RateLimit,
		RateLimitWindow: sc.RateLimitWindow.Duration,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
