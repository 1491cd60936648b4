package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/polybets/polybet/internal/domain"
)

// scrapeLockKey guards the scrape so only one replica syncs at a time.
const (
	scrapeLockKey = "scrape:markets"
	scrapeLockTTL = 10 * time.Minute
)

// MarketSyncer classifies and persists a batch of raw markets.
type MarketSyncer interface {
	SyncMarkets(ctx context.Context, markets []domain.RawMarket) ([]domain.ClassifiedMarket, error)
}

// MarketFetcher retrieves raw markets from the Gamma API.
type MarketFetcher interface {
	ListMarkets(ctx context.Context, limit, offset int) ([]domain.RawMarket, error)
}

// EventNotifier forwards operator events such as scrape failures.
type EventNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// ScrapeResult summarises one scrape run.
type ScrapeResult struct {
	Pages      int
	Synced     int
	Categories map[string]int
	Skipped    bool
	Duration   time.Duration
}

// MarketScraper pages through Gamma markets, classifies them and syncs them to
// the store.
type MarketScraper struct {
	syncer   MarketSyncer
	fetcher  MarketFetcher
	locks    domain.LockManager
	notifier EventNotifier
	pageSize int
	maxPages int
	onSync   []func(context.Context, ScrapeResult)
	logger   *slog.Logger
}

// ScraperOpts tunes pagination. Zero values fall back to 100 markets per page
// and 50 pages.
type ScraperOpts struct {
	PageSize int
	MaxPages int
	Locks    domain.LockManager
	Notifier EventNotifier
}

// NewMarketScraper creates a new MarketScraper.
func NewMarketScraper(syncer MarketSyncer, fetcher MarketFetcher, opts ScraperOpts, logger *slog.Logger) *MarketScraper {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 50
	}
	return &MarketScraper{
		syncer:   syncer,
		fetcher:  fetcher,
		locks:    opts.Locks,
		notifier: opts.Notifier,
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
		logger:   logger.With(slog.String("component", "market_scraper")),
	}
}

// OnSync registers a hook that runs after every successful scrape.
func (s *MarketScraper) OnSync(fn func(context.Context, ScrapeResult)) {
	s.onSync = append(s.onSync, fn)
}

// Run executes a single scrape. When another replica holds the scrape lock the
// run is skipped and Skipped is set on the result.
func (s *MarketScraper) Run(ctx context.Context) (ScrapeResult, error) {
	start := time.Now()
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, scrapeLockKey, scrapeLockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.InfoContext(ctx, "scrape lock held elsewhere, skipping run")
			return ScrapeResult{Skipped: true}, nil
		}
		if err != nil {
			return ScrapeResult{}, fmt.Errorf("pipeline: acquire scrape lock: %w", err)
		}
		defer unlock()
	}

	res := ScrapeResult{Categories: make(map[string]int)}
	for page := 0; page < s.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("pipeline: scrape cancelled: %w", err)
		}

		offset := page * s.pageSize
		raws, err := s.fetcher.ListMarkets(ctx, s.pageSize, offset)
		if err != nil {
			return res, fmt.Errorf("pipeline: fetch markets at offset %d: %w", offset, err)
		}
		if len(raws) == 0 {
			break
		}
		res.Pages++

		classified, err := s.syncer.SyncMarkets(ctx, raws)
		if err != nil {
			return res, fmt.Errorf("pipeline: sync %d markets at offset %d: %w", len(raws), offset, err)
		}
		for _, cm := range classified {
			res.Categories[cm.Category]++
		}
		res.Synced += len(classified)

		s.logger.DebugContext(ctx, "synced market page",
			slog.Int("batch_size", len(classified)),
			slog.Int("total_synced", res.Synced),
			slog.Int("offset", offset),
		)

		if len(raws) < s.pageSize {
			break
		}
	}
	res.Duration = time.Since(start)

	s.logger.InfoContext(ctx, "market scrape complete",
		slog.Int("pages", res.Pages),
		slog.Int("total_synced", res.Synced),
		slog.Duration("duration", res.Duration),
	)
	for _, fn := range s.onSync {
		fn(ctx, res)
	}
	return res, nil
}

// RunLoop runs the scraper immediately and then on every interval until the
// context is cancelled. Failed runs are logged and reported, never fatal.
func (s *MarketScraper) RunLoop(ctx context.Context, interval time.Duration, trigger <-chan struct{}) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("market scraper loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		case <-trigger:
			s.logger.InfoContext(ctx, "manual scrape triggered")
			s.runOnce(ctx)
		}
	}
}

func (s *MarketScraper) runOnce(ctx context.Context) {
	_, err := s.Run(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}
	s.logger.ErrorContext(ctx, "market scrape failed", slog.String("error", err.Error()))
	if s.notifier != nil {
		if nerr := s.notifier.Notify(ctx, "scrape_failed", "Market scrape failed", err.Error()); nerr != nil {
			s.logger.WarnContext(ctx, "scrape failure notification failed", slog.String("error", nerr.Error()))
		}
	}
}
