package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polybets/polybet/internal/domain"
)

// HistoryStore implements domain.HistoryStore using PostgreSQL.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a new HistoryStore backed by the given connection pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

var _ domain.HistoryStore = (*HistoryStore)(nil)

const historyCols = `id, user_id, bookmark_id, market_id, title, category, event_slug,
	outcome, entry_price, final_price, appeared_at, closed_at, resolved_at`

func scanHistoryRows(rows pgx.Rows) ([]domain.HistoryEntry, error) {
	defer rows.Close()
	var out []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.BookmarkID, &e.MarketID, &e.Title, &e.Category, &e.EventSlug,
			&e.Outcome, &e.EntryPrice, &e.FinalPrice, &e.AppearedAt, &e.ClosedAt, &e.ResolvedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Insert stores a history entry. Re-inserting the same ID is a no-op.
func (s *HistoryStore) Insert(ctx context.Context, e domain.HistoryEntry) error {
	const query = `
		INSERT INTO history_entries (` + historyCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.UserID, e.BookmarkID, e.MarketID, e.Title, e.Category, e.EventSlug,
		e.Outcome, e.EntryPrice, e.FinalPrice, e.AppearedAt, e.ClosedAt, e.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert history %s: %w", e.ID, err)
	}
	return nil
}

// ListByUser returns a user's history ordered by resolution time, newest
// first. Since and Until bound resolved_at; Category matches
// case-insensitively.
func (s *HistoryStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.HistoryEntry, error) {
	query := `SELECT ` + historyCols + ` FROM history_entries WHERE user_id = $1`
	args := []any{userID}
	argIdx := 2

	if opts.Category != "" {
		query += fmt.Sprintf(" AND lower(category) = lower($%d)", argIdx)
		args = append(args, opts.Category)
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND resolved_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND resolved_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY resolved_at DESC, id"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history for %s: %w", userID, err)
	}
	out, err := scanHistoryRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan history: %w", err)
	}
	return out, nil
}

// ListBefore returns up to limit entries resolved before the cutoff, oldest
// first.
func (s *HistoryStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+historyCols+` FROM history_entries
		 WHERE resolved_at < $1 ORDER BY resolved_at ASC LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history before %s: %w", before.Format(time.RFC3339), err)
	}
	out, err := scanHistoryRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan history: %w", err)
	}
	return out, nil
}

// DeleteBefore deletes entries resolved before the cutoff and returns the
// number of rows removed.
func (s *HistoryStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM history_entries WHERE resolved_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete history before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
