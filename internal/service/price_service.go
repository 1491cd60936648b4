package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/polybets/polybet/internal/domain"
)

// PriceApplier records a price observation on the bookmarks of a market.
type PriceApplier interface {
	ApplyPrice(ctx context.Context, upd domain.PriceUpdate) ([]domain.Bookmark, error)
}

// AlertEvaluator fires the alerts crossed by price updates.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, upd domain.PriceUpdate) ([]domain.AlertEvent, error)
	EvaluateBatch(ctx context.Context, updates []domain.PriceUpdate) ([]domain.AlertEvent, error)
}

// PriceService fans price observations out to the price cache, bookmarks,
// alerts and the signal bus.
type PriceService struct {
	priceCache domain.PriceCache
	bookmarks  PriceApplier
	alerts     AlertEvaluator
	bus        domain.SignalBus
	logger     *slog.Logger
}

// NewPriceService creates a PriceService with all required dependencies.
func NewPriceService(
	priceCache domain.PriceCache,
	bookmarks PriceApplier,
	alerts AlertEvaluator,
	bus domain.SignalBus,
	logger *slog.Logger,
) *PriceService {
	return &PriceService{
		priceCache: priceCache,
		bookmarks:  bookmarks,
		alerts:     alerts,
		bus:        bus,
		logger:     logger,
	}
}

// HandleUpdate processes one realtime price: caches it, publishes it to
// browsers, refreshes the market's bookmarks and evaluates its alerts.
func (s *PriceService) HandleUpdate(ctx context.Context, upd domain.PriceUpdate) error {
	if err := s.priceCache.SetPrice(ctx, upd.MarketID, upd.Price, upd.At); err != nil {
		return fmt.Errorf("price_service: set price for %q: %w", upd.MarketID, err)
	}

	if evt, err := json.Marshal(upd); err == nil {
		if pubErr := s.bus.Publish(ctx, domain.ChannelMarketPrices, evt); pubErr != nil {
			s.logger.WarnContext(ctx, "price_service: publish price event failed",
				slog.String("market_id", upd.MarketID),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	if _, err := s.bookmarks.ApplyPrice(ctx, upd); err != nil {
		return fmt.Errorf("price_service: apply price for %q: %w", upd.MarketID, err)
	}
	if _, err := s.alerts.Evaluate(ctx, upd); err != nil {
		return fmt.Errorf("price_service: evaluate alerts for %q: %w", upd.MarketID, err)
	}
	return nil
}

// HandleBatch processes the price snapshot published after a market sync.
// Bookmark failures are logged per market so one bad row does not stop the
// batch. It returns the number of alerts fired.
func (s *PriceService) HandleBatch(ctx context.Context, updates []domain.PriceUpdate) (int, error) {
	for _, upd := range updates {
		if err := s.priceCache.SetPrice(ctx, upd.MarketID, upd.Price, upd.At); err != nil {
			s.logger.WarnContext(ctx, "price_service: set price failed",
				slog.String("market_id", upd.MarketID),
				slog.String("error", err.Error()),
			)
		}
		if _, err := s.bookmarks.ApplyPrice(ctx, upd); err != nil {
			s.logger.WarnContext(ctx, "price_service: apply price failed",
				slog.String("market_id", upd.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	fired, err := s.alerts.EvaluateBatch(ctx, updates)
	if err != nil {
		return 0, fmt.Errorf("price_service: evaluate batch: %w", err)
	}
	return len(fired), nil
}

// GetPrice returns the latest cached price of a market.
func (s *PriceService) GetPrice(ctx context.Context, marketID string) (domain.MarketPrice, error) {
	p, _, err := s.priceCache.GetPrice(ctx, marketID)
	if err != nil {
		return domain.MarketPrice{}, fmt.Errorf("price_service: get price for %q: %w", marketID, err)
	}
	return p, nil
}
