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

// bookTTL keeps top-of-book snapshots just long enough to absorb bursts of
// page loads for the same market.
const bookTTL = 15 * time.Second

// BookCache implements domain.BookCache with JSON snapshots at
// "polybet:book:{tokenID}".
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

func bookKey(tokenID string) string { return keyPrefix + "book:" + tokenID }

// SetTopOfBook stores a snapshot with a short TTL.
func (bc *BookCache) SetTopOfBook(ctx context.Context, tob domain.TopOfBook) error {
	data, err := json.Marshal(tob)
	if err != nil {
		return fmt.Errorf("redis: marshal book %s: %w", tob.TokenID, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(tob.TokenID), data, bookTTL).Err(); err != nil {
		return fmt.Errorf("redis: set book %s: %w", tob.TokenID, err)
	}
	return nil
}

// GetTopOfBook returns a cached snapshot or domain.ErrNotFound.
func (bc *BookCache) GetTopOfBook(ctx context.Context, tokenID string) (domain.TopOfBook, error) {
	data, err := bc.rdb.Get(ctx, bookKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.TopOfBook{}, domain.ErrNotFound
		}
		return domain.TopOfBook{}, fmt.Errorf("redis: get book %s: %w", tokenID, err)
	}
	var tob domain.TopOfBook
	if err := json.Unmarshal(data, &tob); err != nil {
		return domain.TopOfBook{}, fmt.Errorf("redis: unmarshal book %s: %w", tokenID, err)
	}
	return tob, nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
