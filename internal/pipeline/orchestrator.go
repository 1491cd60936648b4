package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polybets/polybet/internal/domain"
)

// Jobs accepted by Orchestrator.Trigger.
const (
	JobScrape  = "scrape"
	JobArchive = "archive"
	JobAlerts  = "alerts"
)

// Orchestrator manages all pipeline goroutines: market scraping, realtime
// prices, alert evaluation and cold-storage archival.
type Orchestrator struct {
	marketScraper  *MarketScraper
	priceFeed      *PriceFeed
	alertEvaluator *AlertEvaluator
	archiver       *Archiver
	scrapeInterval time.Duration
	archiveCron    string
	logger         *slog.Logger

	scrapeTrigger  chan struct{}
	archiveTrigger chan struct{}

	mu       sync.Mutex
	lastRuns map[string]time.Time
}

// OrchestratorOpts holds the optional pipeline components. Nil components are
// not started.
type OrchestratorOpts struct {
	PriceFeed      *PriceFeed
	AlertEvaluator *AlertEvaluator
	Archiver       *Archiver
	ScrapeInterval time.Duration
	ArchiveCron    string
}

// NewOrchestrator creates a new Orchestrator that coordinates all pipeline
// sub-systems.
func NewOrchestrator(marketScraper *MarketScraper, opts OrchestratorOpts, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		marketScraper:  marketScraper,
		priceFeed:      opts.PriceFeed,
		alertEvaluator: opts.AlertEvaluator,
		archiver:       opts.Archiver,
		scrapeInterval: opts.ScrapeInterval,
		archiveCron:    opts.ArchiveCron,
		logger:         logger.With(slog.String("component", "orchestrator")),
		scrapeTrigger:  make(chan struct{}, 1),
		archiveTrigger: make(chan struct{}, 1),
		lastRuns:       make(map[string]time.Time),
	}

	marketScraper.OnSync(func(ctx context.Context, res ScrapeResult) {
		o.markRun(JobScrape)
		if o.priceFeed == nil || res.Skipped {
			return
		}
		if err := o.priceFeed.Refresh(ctx); err != nil {
			o.logger.WarnContext(ctx, "price feed refresh failed", slog.String("error", err.Error()))
		}
	})
	return o
}

// Run starts all sub-pipelines as concurrent goroutines using an errgroup. Each
// goroutine respects ctx cancellation. If any goroutine returns a non-context
// error, the errgroup cancels the shared context and Run returns that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("scrape_interval", o.scrapeInterval),
		slog.String("archive_cron", o.archiveCron),
		slog.Bool("price_feed", o.priceFeed != nil),
		slog.Bool("alert_evaluator", o.alertEvaluator != nil),
		slog.Bool("archiver", o.archiver != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	// Alerts subscribe first so the initial scrape's snapshot is not missed.
	if o.alertEvaluator != nil {
		g.Go(func() error {
			return o.supervise(ctx, "alert evaluator", o.alertEvaluator.Run)
		})
	}

	if o.priceFeed != nil {
		g.Go(func() error {
			return o.supervise(ctx, "price feed", o.priceFeed.Run)
		})
	}

	g.Go(func() error {
		return o.supervise(ctx, "market scraper", func(ctx context.Context) error {
			return o.marketScraper.RunLoop(ctx, o.scrapeInterval, o.scrapeTrigger)
		})
	})

	if o.archiver != nil {
		g.Go(func() error {
			return o.supervise(ctx, "archiver", func(ctx context.Context) error {
				return o.archiver.RunCron(ctx, o.archiveCron, o.archiveTrigger)
			})
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

func (o *Orchestrator) supervise(ctx context.Context, name string, fn func(context.Context) error) error {
	o.logger.Info("starting " + name)
	err := fn(ctx)
	if ctx.Err() != nil {
		return nil // clean shutdown
	}
	return fmt.Errorf("%s: %w", name, err)
}

// Trigger requests an out-of-schedule run of job. Scrape and archive runs are
// queued for their loops; at most one request is pending per job. Alert
// evaluation runs synchronously.
func (o *Orchestrator) Trigger(ctx context.Context, job string) error {
	switch job {
	case "", JobScrape:
		enqueue(o.scrapeTrigger)
	case JobArchive:
		if o.archiver == nil {
			return fmt.Errorf("pipeline: archiver disabled: %w", domain.ErrNotFound)
		}
		enqueue(o.archiveTrigger)
	case JobAlerts:
		if o.alertEvaluator == nil {
			return fmt.Errorf("pipeline: alert evaluator disabled: %w", domain.ErrNotFound)
		}
		if _, err := o.alertEvaluator.Flush(ctx); err != nil {
			return err
		}
		o.markRun(JobAlerts)
	default:
		return fmt.Errorf("pipeline: unknown job %q: %w", job, domain.ErrInvalidInput)
	}
	o.logger.InfoContext(ctx, "pipeline job triggered", slog.String("job", job))
	return nil
}

func enqueue(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
		// already triggered and not yet consumed
	}
}

func (o *Orchestrator) markRun(job string) {
	o.mu.Lock()
	o.lastRuns[job] = time.Now().UTC()
	o.mu.Unlock()
}

// LastRuns returns the completion time of the most recent run of each job.
func (o *Orchestrator) LastRuns() map[string]time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]time.Time, len(o.lastRuns))
	for k, v := range o.lastRuns {
		out[k] = v
	}
	return out
}
