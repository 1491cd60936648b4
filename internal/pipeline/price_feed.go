package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/polybets/polybet/internal/domain"
	"github.com/polybets/polybet/internal/platform/polymarket"
)

// PriceSource is a realtime per-market price subscription.
type PriceSource interface {
	Connect(ctx context.Context) error
	Subscribe(marketIDs []string) error
	OnPrice(handler polymarket.PriceHandler)
	Close() error
}

// UpdateHandler consumes a single realtime price update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd domain.PriceUpdate) error
}

// WatchList lists the markets that currently need realtime prices.
type WatchList interface {
	ActiveMarketIDs(ctx context.Context) ([]string, error)
}

// PriceFeed streams prices of bookmarked markets into the price service so
// bookmarks and alerts react between scrapes.
type PriceFeed struct {
	source  PriceSource
	handler UpdateHandler
	watch   WatchList
	logger  *slog.Logger

	mu        sync.Mutex
	connected bool
	pending   map[string]struct{}
}

// NewPriceFeed creates a PriceFeed.
func NewPriceFeed(source PriceSource, handler UpdateHandler, watch WatchList, logger *slog.Logger) *PriceFeed {
	return &PriceFeed{
		source:  source,
		handler: handler,
		watch:   watch,
		pending: make(map[string]struct{}),
		logger:  logger.With(slog.String("component", "price_feed")),
	}
}

// Run connects the stream and blocks until ctx is cancelled.
func (f *PriceFeed) Run(ctx context.Context) error {
	f.source.OnPrice(func(upd domain.PriceUpdate) {
		if err := f.handler.HandleUpdate(ctx, upd); err != nil && ctx.Err() == nil {
			f.logger.WarnContext(ctx, "price update failed",
				slog.String("market_id", upd.MarketID),
				slog.String("error", err.Error()),
			)
		}
	})

	if err := f.source.Connect(ctx); err != nil {
		return fmt.Errorf("pipeline: connect price stream: %w", err)
	}
	defer f.source.Close()

	f.mu.Lock()
	f.connected = true
	ids := make([]string, 0, len(f.pending))
	for id := range f.pending {
		ids = append(ids, id)
	}
	f.pending = make(map[string]struct{})
	f.mu.Unlock()
	f.subscribe(ctx, ids)

	if err := f.Refresh(ctx); err != nil {
		f.logger.WarnContext(ctx, "initial watch list refresh failed", slog.String("error", err.Error()))
	}

	<-ctx.Done()
	f.logger.Info("price feed stopped")
	return ctx.Err()
}

// Refresh subscribes to every currently bookmarked market. Markets seen
// before the stream connects are queued.
func (f *PriceFeed) Refresh(ctx context.Context) error {
	ids, err := f.watch.ActiveMarketIDs(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: load watch list: %w", err)
	}
	f.Track(ctx, ids)
	return nil
}

// Track subscribes to the given markets.
func (f *PriceFeed) Track(ctx context.Context, marketIDs []string) {
	if len(marketIDs) == 0 {
		return
	}
	f.mu.Lock()
	if !f.connected {
		for _, id := range marketIDs {
			f.pending[id] = struct{}{}
		}
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.subscribe(ctx, marketIDs)
}

func (f *PriceFeed) subscribe(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := f.source.Subscribe(ids); err != nil {
		f.logger.WarnContext(ctx, "price subscription failed",
			slog.Int("markets", len(ids)),
			slog.String("error", err.Error()),
		)
		return
	}
	f.logger.DebugContext(ctx, "subscribed to market prices", slog.Int("markets", len(ids)))
}
