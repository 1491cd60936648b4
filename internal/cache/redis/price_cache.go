package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polybets/polybet/internal/domain"
)

// priceTTL drops prices of markets the feed stopped reporting.
const priceTTL = 24 * time.Hour

// PriceCache implements domain.PriceCache using Redis hashes.
// Each market's leading price is stored at "polybet:price:{marketID}" with
// fields "outcome", "price" and "ts" (Unix nanoseconds).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(marketID string) string {
	return keyPrefix + "price:" + marketID
}

// SetPrice stores the latest leading price of a market.
func (pc *PriceCache) SetPrice(ctx context.Context, marketID string, price domain.MarketPrice, at time.Time) error {
	key := priceKey(marketID)
	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"outcome": price.Outcome,
		"price":   strconv.FormatFloat(price.Price, 'f', -1, 64),
		"ts":      strconv.FormatInt(at.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, priceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", marketID, err)
	}
	return nil
}

// GetPrice returns the latest price of a market and when it was observed.
// It returns domain.ErrNotFound when no price is cached.
func (pc *PriceCache) GetPrice(ctx context.Context, marketID string) (domain.MarketPrice, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(marketID)).Result()
	if err != nil {
		return domain.MarketPrice{}, time.Time{}, fmt.Errorf("redis: get price %s: %w", marketID, err)
	}
	mp, ts, ok := parsePriceHash(vals)
	if !ok {
		return domain.MarketPrice{}, time.Time{}, domain.ErrNotFound
	}
	return mp, ts, nil
}

// GetPrices retrieves the latest prices for several markets in one
// pipeline. Markets without a cached price are omitted.
func (pc *PriceCache) GetPrices(ctx context.Context, marketIDs []string) (map[string]domain.MarketPrice, error) {
	if len(marketIDs) == 0 {
		return map[string]domain.MarketPrice{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(marketIDs))
	for _, id := range marketIDs {
		cmds[id] = pipe.HGetAll(ctx, priceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	result := make(map[string]domain.MarketPrice, len(marketIDs))
	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if mp, _, ok := parsePriceHash(vals); ok {
			result[id] = mp
		}
	}
	return result, nil
}

func parsePriceHash(vals map[string]string) (domain.MarketPrice, time.Time, bool) {
	priceStr, ok := vals["price"]
	if !ok {
		return domain.MarketPrice{}, time.Time{}, false
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return domain.MarketPrice{}, time.Time{}, false
	}
	var ts time.Time
	if n, err := strconv.ParseInt(vals["ts"], 10, 64); err == nil {
		ts = time.Unix(0, n).UTC()
	}
	return domain.MarketPrice{Outcome: vals["outcome"], Price: price}, ts, true
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
