package domain

import (
	"context"
	"time"
)

// MarketCache provides fast classified-market lookups.
type MarketCache interface {
	Set(ctx context.Context, market ClassifiedMarket) error
	Get(ctx context.Context, id string) (ClassifiedMarket, error)
	GetBySlug(ctx context.Context, slug string) (ClassifiedMarket, error)
	Invalidate(ctx context.Context, id string) error
}

// PriceCache holds the latest leading-outcome price of each market as seen
// by the realtime feed.
type PriceCache interface {
	SetPrice(ctx context.Context, marketID string, price MarketPrice, at time.Time) error
	GetPrice(ctx context.Context, marketID string) (MarketPrice, time.Time, error)
	GetPrices(ctx context.Context, marketIDs []string) (map[string]MarketPrice, error)
}

// BookCache holds short-lived top-of-book snapshots per CLOB token.
type BookCache interface {
	SetTopOfBook(ctx context.Context, tob TopOfBook) error
	GetTopOfBook(ctx context.Context, tokenID string) (TopOfBook, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// BusMessage is a pub/sub payload together with the channel it arrived on.
type BusMessage struct {
	Channel string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams. Subscribe accepts exact
// channel names or glob patterns such as "alerts.*".
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
