package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/polybets/polybet/internal/domain"
)

// MarketGetter loads a classified market by ID.
type MarketGetter interface {
	GetMarket(ctx context.Context, id string) (domain.ClassifiedMarket, error)
}

// HistoryRecorder writes a history entry for a bookmark whose market closed.
type HistoryRecorder interface {
	Record(ctx context.Context, b domain.Bookmark, finalPrice *float64, closedAt time.Time) error
}

// BookmarkView is a bookmark with its current price and move since entry.
type BookmarkView struct {
	domain.Bookmark
	CurrentPrice *float64 `json:"currentPrice"`
	PnLPct       *float64 `json:"pnlPct"`
}

// BookmarkService manages user bookmarks and keeps their prices current.
type BookmarkService struct {
	bookmarks domain.BookmarkStore
	markets   MarketGetter
	prices    domain.PriceCache
	history   HistoryRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewBookmarkService creates a BookmarkService. prices and history may be
// nil.
func NewBookmarkService(
	bookmarks domain.BookmarkStore,
	markets MarketGetter,
	prices domain.PriceCache,
	history HistoryRecorder,
	logger *slog.Logger,
) *BookmarkService {
	return &BookmarkService{
		bookmarks: bookmarks,
		markets:   markets,
		prices:    prices,
		history:   history,
		logger:    logger,
		now:       time.Now,
	}
}

// Create bookmarks a market for a user at its current leading price.
func (s *BookmarkService) Create(ctx context.Context, userID, marketID string) (domain.Bookmark, error) {
	if userID == "" || marketID == "" {
		return domain.Bookmark{}, fmt.Errorf("bookmark_service: user and market are required: %w", domain.ErrInvalidInput)
	}

	if _, err := s.bookmarks.GetActive(ctx, userID, marketID); err == nil {
		return domain.Bookmark{}, fmt.Errorf("bookmark_service: market %q: %w", marketID, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Bookmark{}, fmt.Errorf("bookmark_service: check existing: %w", err)
	}

	cm, err := s.markets.GetMarket(ctx, marketID)
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("bookmark_service: load market: %w", err)
	}

	price, ok := s.currentPrice(ctx, cm)
	if !ok {
		return domain.Bookmark{}, fmt.Errorf("bookmark_service: market %q has no price: %w", marketID, domain.ErrInvalidInput)
	}

	now := s.now().UTC()
	last := price.Price
	b := domain.Bookmark{
		ID:             uuid.NewString(),
		UserID:         userID,
		MarketID:       marketID,
		ConditionID:    cm.Market.ConditionID,
		EventSlug:      cm.Market.EventSlug(),
		Title:          cm.Market.DisplayTitle(),
		Category:       cm.Category,
		EntryOutcome:   price.Outcome,
		EntryPrice:     price.Price,
		LastKnownPrice: &last,
		IsClosed:       cm.Market.Closed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.bookmarks.Create(ctx, b); err != nil {
		return domain.Bookmark{}, fmt.Errorf("bookmark_service: create: %w", err)
	}

	s.logger.InfoContext(ctx, "bookmark_service: created",
		slog.String("user_id", userID),
		slog.String("market_id", marketID),
		slog.Float64("entry_price", b.EntryPrice),
	)
	return b, nil
}

// currentPrice prefers the live feed price over the stored snapshot.
func (s *BookmarkService) currentPrice(ctx context.Context, cm domain.ClassifiedMarket) (domain.MarketPrice, bool) {
	if s.prices != nil {
		if p, _, err := s.prices.GetPrice(ctx, cm.Market.ID); err == nil {
			return p, true
		}
	}
	return cm.Market.LeadingPrice()
}

// List returns the user's active bookmarks with live prices when available.
func (s *BookmarkService) List(ctx context.Context, userID string) ([]BookmarkView, error) {
	bookmarks, err := s.bookmarks.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("bookmark_service: list: %w", err)
	}

	var live map[string]domain.MarketPrice
	if s.prices != nil && len(bookmarks) > 0 {
		ids := make([]string, 0, len(bookmarks))
		for _, b := range bookmarks {
			ids = append(ids, b.MarketID)
		}
		live, err = s.prices.GetPrices(ctx, ids)
		if err != nil {
			s.logger.WarnContext(ctx, "bookmark_service: live prices unavailable",
				slog.String("error", err.Error()),
			)
		}
	}

	views := make([]BookmarkView, 0, len(bookmarks))
	for _, b := range bookmarks {
		views = append(views, viewOf(b, live))
	}
	return views, nil
}

func viewOf(b domain.Bookmark, live map[string]domain.MarketPrice) BookmarkView {
	v := BookmarkView{Bookmark: b, CurrentPrice: b.LatestPrice()}
	if p, ok := live[b.MarketID]; ok && !b.IsClosed {
		price := sidePrice(b.EntryOutcome, p)
		v.CurrentPrice = &price
	}
	if v.CurrentPrice != nil {
		if pct, ok := b.PnLPct(*v.CurrentPrice); ok {
			v.PnLPct = &pct
		}
	}
	return v
}

// Remove soft-deletes a bookmark owned by userID.
func (s *BookmarkService) Remove(ctx context.Context, userID, id string) error {
	b, err := s.bookmarks.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("bookmark_service: get %q: %w", id, err)
	}
	if b.UserID != userID || b.RemovedAt != nil {
		return fmt.Errorf("bookmark_service: get %q: %w", id, domain.ErrNotFound)
	}
	if err := s.bookmarks.Remove(ctx, id, s.now().UTC()); err != nil {
		return fmt.Errorf("bookmark_service: remove %q: %w", id, err)
	}
	return nil
}

// ApplyPrice records a price observation on every open bookmark of the
// market. When the market closed, the bookmarks are closed at that price
// and a history entry is written. The updated bookmarks are returned.
func (s *BookmarkService) ApplyPrice(ctx context.Context, upd domain.PriceUpdate) ([]domain.Bookmark, error) {
	bookmarks, err := s.bookmarks.ListActiveByMarket(ctx, upd.MarketID)
	if err != nil {
		return nil, fmt.Errorf("bookmark_service: list by market %q: %w", upd.MarketID, err)
	}

	at := upd.At
	if at.IsZero() {
		at = s.now().UTC()
	}

	updated := make([]domain.Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		price := sidePrice(b.EntryOutcome, upd.Price)
		if upd.Closed {
			if err := s.bookmarks.MarkClosed(ctx, b.ID, &price); err != nil {
				return updated, fmt.Errorf("bookmark_service: close %q: %w", b.ID, err)
			}
			b.IsClosed = true
			b.FinalPrice = &price
			b.LastKnownPrice = &price
			if s.history != nil {
				if err := s.history.Record(ctx, b, &price, at); err != nil {
					s.logger.ErrorContext(ctx, "bookmark_service: record history failed",
						slog.String("bookmark_id", b.ID),
						slog.String("error", err.Error()),
					)
				}
			}
		} else {
			if err := s.bookmarks.UpdatePrice(ctx, b.ID, price); err != nil {
				return updated, fmt.Errorf("bookmark_service: update price %q: %w", b.ID, err)
			}
			b.LastKnownPrice = &price
		}
		b.UpdatedAt = at
		updated = append(updated, b)
	}
	return updated, nil
}

// sidePrice is the price of the bookmarked outcome. Updates carry the
// leading outcome; when it differs from the bookmarked one on a binary
// market the bookmarked side trades at the complement.
func sidePrice(outcome string, p domain.MarketPrice) float64 {
	if outcome != "" && p.Outcome != "" && outcome != p.Outcome {
		return 1 - p.Price
	}
	return p.Price
}
