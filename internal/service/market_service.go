package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/polybets/polybet/internal/classify"
	"github.com/polybets/polybet/internal/domain"
	"github.com/polybets/polybet/internal/sports"
)

// BookSource fetches a live order book summary for a CLOB token.
type BookSource interface {
	TopOfBook(ctx context.Context, tokenID string) (domain.TopOfBook, error)
}

// URLFunc builds the public page link of a market.
type URLFunc func(eventSlug, conditionID string) string

// MarketService classifies, persists and lists markets.
type MarketService struct {
	markets domain.MarketStore
	cache   domain.MarketCache
	prices  domain.PriceCache
	books   domain.BookCache
	source  BookSource
	bus     domain.SignalBus
	urlFor  URLFunc
	filter  WindowFilter
	logger  *slog.Logger
}

// MarketServiceDeps groups the collaborators of a MarketService. Prices,
// Books and Source may be nil.
type MarketServiceDeps struct {
	Markets domain.MarketStore
	Cache   domain.MarketCache
	Prices  domain.PriceCache
	Books   domain.BookCache
	Source  BookSource
	Bus     domain.SignalBus
	URLFor  URLFunc
	Filter  WindowFilter
	Logger  *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(d MarketServiceDeps) *MarketService {
	urlFor := d.URLFor
	if urlFor == nil {
		urlFor = func(string, string) string { return "" }
	}
	return &MarketService{
		markets: d.Markets,
		cache:   d.Cache,
		prices:  d.Prices,
		books:   d.Books,
		source:  d.Source,
		bus:     d.Bus,
		urlFor:  urlFor,
		filter:  d.Filter,
		logger:  d.Logger,
	}
}

// Classify resolves the category of raw and, for sports markets, attaches
// the parsed fixture data.
func Classify(raw domain.RawMarket) domain.ClassifiedMarket {
	d := classify.Explain(raw)
	cm := domain.ClassifiedMarket{Market: raw, Category: d.Category, Rule: d.Rule}
	if d.Category == domain.CategorySports {
		cm.Sports = sports.Analyze(raw.DisplayTitle(), raw.Slug, raw.TagLabels())
	}
	return cm
}

// Classify is the service-bound form of the package-level Classify.
func (s *MarketService) Classify(raw domain.RawMarket) domain.ClassifiedMarket {
	return Classify(raw)
}

// Summarize builds the listing view of cm including its page link.
func (s *MarketService) Summarize(cm domain.ClassifiedMarket) domain.MarketSummary {
	return domain.Summarize(cm, s.urlFor(cm.Market.EventSlug(), cm.Market.ConditionID))
}

// SyncMarkets classifies and upserts a batch of markets, invalidates cached
// entries so subsequent reads pick up fresh data, and publishes the new
// leading prices on the markets channel.
func (s *MarketService) SyncMarkets(ctx context.Context, raws []domain.RawMarket) ([]domain.ClassifiedMarket, error) {
	if len(raws) == 0 {
		return nil, nil
	}

	classified := make([]domain.ClassifiedMarket, 0, len(raws))
	for _, raw := range raws {
		classified = append(classified, Classify(raw))
	}

	if err := s.markets.UpsertBatch(ctx, classified); err != nil {
		return nil, fmt.Errorf("market_service: upsert batch: %w", err)
	}

	for _, cm := range classified {
		if err := s.cache.Invalidate(ctx, cm.Market.ID); err != nil {
			s.logger.WarnContext(ctx, "market_service: cache invalidate failed",
				slog.String("market_id", cm.Market.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.publishUpdates(ctx, classified)

	s.logger.InfoContext(ctx, "market_service: synced markets",
		slog.Int("count", len(classified)),
	)
	return classified, nil
}

func (s *MarketService) publishUpdates(ctx context.Context, classified []domain.ClassifiedMarket) {
	if s.bus == nil {
		return
	}
	now := time.Now().UTC()
	evt := domain.MarketsUpdated{Count: len(classified), At: now}
	for _, cm := range classified {
		p, ok := cm.Market.LeadingPrice()
		if !ok {
			continue
		}
		evt.Updates = append(evt.Updates, domain.PriceUpdate{
			MarketID: cm.Market.ID,
			Price:    p,
			Closed:   cm.Market.Closed,
			Category: cm.Category,
			At:       now,
		})
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.WarnContext(ctx, "market_service: marshal update failed", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelMarketsUpdated, payload); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish failed",
			slog.String("channel", domain.ChannelMarketsUpdated),
			slog.String("error", err.Error()),
		)
	}
}

// GetMarket retrieves a market by ID, checking the cache first and falling
// back to the persistent store on a cache miss.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.ClassifiedMarket, error) {
	cm, err := s.cache.Get(ctx, id)
	if err == nil {
		return cm, nil
	}

	cm, err = s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.ClassifiedMarket{}, fmt.Errorf("market_service: get by id %q: %w", id, err)
	}

	s.backfill(ctx, cm)
	return cm, nil
}

// GetMarketBySlug retrieves a market by its slug, cache first.
func (s *MarketService) GetMarketBySlug(ctx context.Context, slug string) (domain.ClassifiedMarket, error) {
	cm, err := s.cache.GetBySlug(ctx, slug)
	if err == nil {
		return cm, nil
	}

	cm, err = s.markets.GetBySlug(ctx, slug)
	if err != nil {
		return domain.ClassifiedMarket{}, fmt.Errorf("market_service: get by slug %q: %w", slug, err)
	}

	s.backfill(ctx, cm)
	return cm, nil
}

func (s *MarketService) backfill(ctx context.Context, cm domain.ClassifiedMarket) {
	if err := s.cache.Set(ctx, cm); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("market_id", cm.Market.ID),
			slog.String("error", err.Error()),
		)
	}
}

// ListActive returns active markets directly from the persistent store.
func (s *MarketService) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.ClassifiedMarket, error) {
	markets, err := s.markets.ListActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list active: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the persistent store.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	count, err := s.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}

// Windows lists the open markets settling within the next 48 hours, split
// into the 24h and 48h windows. category, when set, narrows the listing.
// Live prices from the price cache replace the stored ones when present.
func (s *MarketService) Windows(ctx context.Context, category string, now time.Time) (domain.MarketWindows, error) {
	opts := domain.ListOpts{Category: category}
	if !s.filter.Relax {
		until := now.Add(2 * day)
		opts.Until = &until
	}

	markets, err := s.ListActive(ctx, opts)
	if err != nil {
		return domain.MarketWindows{}, err
	}

	summaries := make([]domain.MarketSummary, 0, len(markets))
	for _, cm := range markets {
		summaries = append(summaries, s.Summarize(cm))
	}
	s.overlayPrices(ctx, summaries)

	w := SplitWindows(summaries, s.filter, now)
	s.logger.DebugContext(ctx, "market_service: windows",
		slog.Int("listed", len(summaries)),
		slog.Int("window24", len(w.Window24)),
		slog.Int("window48", len(w.Window48)),
		slog.Bool("relaxed", s.filter.Relax),
	)
	return w, nil
}

func (s *MarketService) overlayPrices(ctx context.Context, summaries []domain.MarketSummary) {
	if s.prices == nil || len(summaries) == 0 {
		return
	}
	ids := make([]string, 0, len(summaries))
	for _, m := range summaries {
		ids = append(ids, m.ID)
	}
	live, err := s.prices.GetPrices(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "market_service: live prices unavailable",
			slog.String("error", err.Error()),
		)
		return
	}
	for i := range summaries {
		if p, ok := live[summaries[i].ID]; ok {
			summaries[i].Price = &p
		}
	}
}

// TopOfBook returns the best bid and ask of a market's CLOB token, cache
// first. The first token is used when tokenID is empty.
func (s *MarketService) TopOfBook(ctx context.Context, marketID, tokenID string) (domain.TopOfBook, error) {
	if s.source == nil {
		return domain.TopOfBook{}, fmt.Errorf("market_service: order books not configured: %w", domain.ErrNotFound)
	}
	if tokenID == "" {
		cm, err := s.GetMarket(ctx, marketID)
		if err != nil {
			return domain.TopOfBook{}, err
		}
		if len(cm.Market.ClobTokenIDs) == 0 {
			return domain.TopOfBook{}, fmt.Errorf("market_service: market %q has no clob tokens: %w", marketID, domain.ErrNotFound)
		}
		tokenID = cm.Market.ClobTokenIDs[0]
	}

	if s.books != nil {
		if tob, err := s.books.GetTopOfBook(ctx, tokenID); err == nil {
			return tob, nil
		}
	}

	tob, err := s.source.TopOfBook(ctx, tokenID)
	if err != nil {
		return domain.TopOfBook{}, fmt.Errorf("market_service: top of book %q: %w", tokenID, err)
	}
	if s.books != nil {
		if err := s.books.SetTopOfBook(ctx, tob); err != nil {
			s.logger.WarnContext(ctx, "market_service: book cache set failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}
	return tob, nil
}
