package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polybets/polybet/internal/domain"
)

// BookmarkStore implements domain.BookmarkStore using PostgreSQL.
type BookmarkStore struct {
	pool *pgxpool.Pool
}

// NewBookmarkStore creates a new BookmarkStore backed by the given connection pool.
func NewBookmarkStore(pool *pgxpool.Pool) *BookmarkStore {
	return &BookmarkStore{pool: pool}
}

var _ domain.BookmarkStore = (*BookmarkStore)(nil)

const bookmarkCols = `id, user_id, market_id, condition_id, event_slug, title, category,
	entry_outcome, entry_price, last_known_price, final_price, is_closed,
	created_at, updated_at, removed_at`

func scanBookmark(row pgx.Row) (domain.Bookmark, error) {
	var b domain.Bookmark
	err := row.Scan(
		&b.ID, &b.UserID, &b.MarketID, &b.ConditionID, &b.EventSlug, &b.Title, &b.Category,
		&b.EntryOutcome, &b.EntryPrice, &b.LastKnownPrice, &b.FinalPrice, &b.IsClosed,
		&b.CreatedAt, &b.UpdatedAt, &b.RemovedAt,
	)
	return b, err
}

func scanBookmarks(rows pgx.Rows) ([]domain.Bookmark, error) {
	defer rows.Close()
	var out []domain.Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Create inserts a new bookmark. A second active bookmark for the same user
// and market is rejected with domain.ErrAlreadyExists.
func (s *BookmarkStore) Create(ctx context.Context, b domain.Bookmark) error {
	const query = `
		INSERT INTO bookmarks (
			id, user_id, market_id, condition_id, event_slug, title, category,
			entry_outcome, entry_price, last_known_price, final_price, is_closed,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $13
		)`

	_, err := s.pool.Exec(ctx, query,
		b.ID, b.UserID, b.MarketID, b.ConditionID, b.EventSlug, b.Title, b.Category,
		b.EntryOutcome, b.EntryPrice, b.LastKnownPrice, b.FinalPrice, b.IsClosed,
		b.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create bookmark %s/%s: %w", b.UserID, b.MarketID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create bookmark %s: %w", b.ID, err)
	}
	return nil
}

// GetByID retrieves a bookmark by its primary key, removed or not.
func (s *BookmarkStore) GetByID(ctx context.Context, id string) (domain.Bookmark, error) {
	b, err := scanBookmark(s.pool.QueryRow(ctx,
		`SELECT `+bookmarkCols+` FROM bookmarks WHERE id = $1`, id))
	if err != nil {
		return domain.Bookmark{}, wrapErr("get bookmark "+id, err)
	}
	return b, nil
}

// GetActive returns the user's non-removed bookmark on a market.
func (s *BookmarkStore) GetActive(ctx context.Context, userID, marketID string) (domain.Bookmark, error) {
	b, err := scanBookmark(s.pool.QueryRow(ctx,
		`SELECT `+bookmarkCols+` FROM bookmarks
		 WHERE user_id = $1 AND market_id = $2 AND removed_at IS NULL`, userID, marketID))
	if err != nil {
		return domain.Bookmark{}, wrapErr("get active bookmark "+userID+"/"+marketID, err)
	}
	return b, nil
}

// ListByUser returns a user's bookmarks, newest first.
func (s *BookmarkStore) ListByUser(ctx context.Context, userID string, includeRemoved bool) ([]domain.Bookmark, error) {
	query := `SELECT ` + bookmarkCols + ` FROM bookmarks WHERE user_id = $1`
	if !includeRemoved {
		query += ` AND removed_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bookmarks for %s: %w", userID, err)
	}
	out, err := scanBookmarks(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bookmarks: %w", err)
	}
	return out, nil
}

// ListActiveByMarket returns every open, non-removed bookmark on a market.
func (s *BookmarkStore) ListActiveByMarket(ctx context.Context, marketID string) ([]domain.Bookmark, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookmarkCols+` FROM bookmarks
		 WHERE market_id = $1 AND removed_at IS NULL AND NOT is_closed`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bookmarks for market %s: %w", marketID, err)
	}
	out, err := scanBookmarks(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bookmarks: %w", err)
	}
	return out, nil
}

// ActiveMarketIDs returns the distinct markets that have at least one open
// bookmark.
func (s *BookmarkStore) ActiveMarketIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT market_id FROM bookmarks
		 WHERE removed_at IS NULL AND NOT is_closed ORDER BY market_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bookmarked markets: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bookmarked markets: %w", err)
	}
	return ids, nil
}

// UpdatePrice records the latest observed price of a bookmarked market.
func (s *BookmarkStore) UpdatePrice(ctx context.Context, id string, price float64) error {
	err := execOne(ctx, s.pool,
		`UPDATE bookmarks SET last_known_price = $2, updated_at = NOW() WHERE id = $1`, id, price)
	if err != nil {
		return wrapErr("update bookmark price "+id, err)
	}
	return nil
}

// MarkClosed flags the bookmark as closed with its final price.
func (s *BookmarkStore) MarkClosed(ctx context.Context, id string, finalPrice *float64) error {
	err := execOne(ctx, s.pool,
		`UPDATE bookmarks
		 SET is_closed = TRUE,
		     final_price = COALESCE($2, final_price, last_known_price),
		     updated_at = NOW()
		 WHERE id = $1`, id, finalPrice)
	if err != nil {
		return wrapErr("close bookmark "+id, err)
	}
	return nil
}

// Remove soft-deletes a bookmark so it no longer blocks a new one.
func (s *BookmarkStore) Remove(ctx context.Context, id string, at time.Time) error {
	err := execOne(ctx, s.pool,
		`UPDATE bookmarks SET removed_at = $2, updated_at = $2 WHERE id = $1 AND removed_at IS NULL`, id, at)
	if err != nil {
		return wrapErr("remove bookmark "+id, err)
	}
	return nil
}
