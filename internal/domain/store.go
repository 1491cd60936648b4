package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit    int
	Offset   int
	Since    *time.Time
	Until    *time.Time
	Category string
}

// MarketStore persists classified markets.
type MarketStore interface {
	Upsert(ctx context.Context, market ClassifiedMarket) error
	UpsertBatch(ctx context.Context, markets []ClassifiedMarket) error
	GetByID(ctx context.Context, id string) (ClassifiedMarket, error)
	GetBySlug(ctx context.Context, slug string) (ClassifiedMarket, error)
	ListActive(ctx context.Context, opts ListOpts) ([]ClassifiedMarket, error)
	Count(ctx context.Context) (int64, error)
}

// BookmarkStore persists user bookmarks.
type BookmarkStore interface {
	Create(ctx context.Context, b Bookmark) error
	GetByID(ctx context.Context, id string) (Bookmark, error)
	GetActive(ctx context.Context, userID, marketID string) (Bookmark, error)
	ListByUser(ctx context.Context, userID string, includeRemoved bool) ([]Bookmark, error)
	ListActiveByMarket(ctx context.Context, marketID string) ([]Bookmark, error)
	ActiveMarketIDs(ctx context.Context) ([]string, error)
	UpdatePrice(ctx context.Context, id string, price float64) error
	MarkClosed(ctx context.Context, id string, finalPrice *float64) error
	Remove(ctx context.Context, id string, at time.Time) error
}

// AlertStore persists price alerts.
type AlertStore interface {
	Upsert(ctx context.Context, a Alert) error
	GetByID(ctx context.Context, id string) (Alert, error)
	ListByUser(ctx context.Context, userID string) ([]Alert, error)
	ListEnabled(ctx context.Context) ([]Alert, error)
	ListEnabledByMarket(ctx context.Context, marketID string) ([]Alert, error)
	MarkTriggered(ctx context.Context, id string, at time.Time, disable bool) error
	Delete(ctx context.Context, id string) error
}

// HistoryStore persists resolved bookmark history.
type HistoryStore interface {
	Insert(ctx context.Context, e HistoryEntry) error
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]HistoryEntry, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]HistoryEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
