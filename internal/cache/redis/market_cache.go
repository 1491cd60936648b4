package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polybets/polybet/internal/domain"
)

const defaultMarketTTL = 10 * time.Minute

// MarketCache implements domain.MarketCache with JSON-serialized classified
// markets and a secondary slug-to-market index.
//
// Key schema:
//
//	polybet:market:{id}        - JSON of the classified market
//	polybet:market:slug:{slug} - market ID
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache backed by the given Client. A
// non-positive ttl selects the default of ten minutes.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = defaultMarketTTL
	}
	return &MarketCache{rdb: c.Underlying(), ttl: ttl}
}

func marketKey(id string) string       { return keyPrefix + "market:" + id }
func marketSlugKey(slug string) string { return keyPrefix + "market:slug:" + slug }

// Set stores a classified market and indexes it by slug.
func (mc *MarketCache) Set(ctx context.Context, cm domain.ClassifiedMarket) error {
	data, err := json.Marshal(cm)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", cm.Market.ID, err)
	}

	pipe := mc.rdb.TxPipeline()
	pipe.Set(ctx, marketKey(cm.Market.ID), data, mc.ttl)
	if cm.Market.Slug != "" {
		pipe.Set(ctx, marketSlugKey(cm.Market.Slug), cm.Market.ID, mc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", cm.Market.ID, err)
	}
	return nil
}

// Get retrieves a classified market by ID. It returns domain.ErrNotFound on
// a cache miss.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.ClassifiedMarket, error) {
	data, err := mc.rdb.Get(ctx, marketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ClassifiedMarket{}, domain.ErrNotFound
		}
		return domain.ClassifiedMarket{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var cm domain.ClassifiedMarket
	if err := json.Unmarshal(data, &cm); err != nil {
		return domain.ClassifiedMarket{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return cm, nil
}

// GetBySlug resolves the slug index and loads the market.
func (mc *MarketCache) GetBySlug(ctx context.Context, slug string) (domain.ClassifiedMarket, error) {
	id, err := mc.rdb.Get(ctx, marketSlugKey(slug)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ClassifiedMarket{}, domain.ErrNotFound
		}
		return domain.ClassifiedMarket{}, fmt.Errorf("redis: get market by slug %s: %w", slug, err)
	}
	return mc.Get(ctx, id)
}

// Invalidate removes a market and its slug index entry.
func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	cm, err := mc.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}

	pipe := mc.rdb.TxPipeline()
	pipe.Del(ctx, marketKey(id))
	if err == nil && cm.Market.Slug != "" {
		pipe.Del(ctx, marketSlugKey(cm.Market.Slug))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
