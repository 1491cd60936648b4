package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polybets/polybet/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

var _ domain.MarketStore = (*MarketStore)(nil)

const upsertMarketSQL = `
	INSERT INTO markets (
		id, condition_id, question, title, slug,
		source_category, category, category_rule, event_slug,
		tags, events, outcomes, outcome_prices, clob_token_ids, sports,
		volume, active, closed,
		end_date, game_start_time, upper_bound_date, closed_time,
		source_updated_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9,
		$10, $11, $12, $13, $14, $15,
		$16, $17, $18,
		$19, $20, $21, $22,
		$23, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		condition_id      = EXCLUDED.condition_id,
		question          = EXCLUDED.question,
		title             = EXCLUDED.title,
		slug              = EXCLUDED.slug,
		source_category   = EXCLUDED.source_category,
		category          = EXCLUDED.category,
		category_rule     = EXCLUDED.category_rule,
		event_slug        = EXCLUDED.event_slug,
		tags              = EXCLUDED.tags,
		events            = EXCLUDED.events,
		outcomes          = EXCLUDED.outcomes,
		outcome_prices    = EXCLUDED.outcome_prices,
		clob_token_ids    = EXCLUDED.clob_token_ids,
		sports            = EXCLUDED.sports,
		volume            = EXCLUDED.volume,
		active            = EXCLUDED.active,
		closed            = EXCLUDED.closed,
		end_date          = EXCLUDED.end_date,
		game_start_time   = EXCLUDED.game_start_time,
		upper_bound_date  = EXCLUDED.upper_bound_date,
		closed_time       = EXCLUDED.closed_time,
		source_updated_at = EXCLUDED.source_updated_at,
		updated_at        = NOW()`

const marketCols = `id, condition_id, question, title, slug,
	source_category, category, category_rule,
	tags, events, outcomes, outcome_prices, clob_token_ids, sports,
	volume, active, closed,
	end_date, game_start_time, upper_bound_date, closed_time,
	source_updated_at`

// marketArgs flattens a classified market into upsertMarketSQL arguments.
func marketArgs(cm domain.ClassifiedMarket) ([]any, error) {
	m := cm.Market
	jsonCols := make([][]byte, 0, 6)
	for _, v := range []any{m.Tags, m.Events, m.Outcomes, m.OutcomePrices, m.ClobTokenIDs, cm.Sports} {
		b, err := jsonOrNull(v)
		if err != nil {
			return nil, err
		}
		jsonCols = append(jsonCols, b)
	}

	var sourceUpdated *time.Time
	if !m.UpdatedAt.IsZero() {
		t := m.UpdatedAt
		sourceUpdated = &t
	}

	return []any{
		m.ID, m.ConditionID, m.Question, m.Title, m.Slug,
		m.Category, cm.Category, cm.Rule, m.EventSlug(),
		jsonCols[0], jsonCols[1], jsonCols[2], jsonCols[3], jsonCols[4], jsonCols[5],
		m.Volume, m.Active, m.Closed,
		m.EndDate, m.GameStartTime, m.UpperBoundDate, m.ClosedTime,
		sourceUpdated,
	}, nil
}

// jsonOrNull encodes v for a JSONB column. Nil pointers and empty slices
// are stored as SQL NULL.
func jsonOrNull(v any) ([]byte, error) {
	switch x := v.(type) {
	case []domain.Tag:
		if len(x) == 0 {
			return nil, nil
		}
	case []domain.Event:
		if len(x) == 0 {
			return nil, nil
		}
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
	case []float64:
		if len(x) == 0 {
			return nil, nil
		}
	case *domain.SportsInfo:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return b, nil
}

// Upsert inserts or updates a single market.
func (s *MarketStore) Upsert(ctx context.Context, cm domain.ClassifiedMarket) error {
	args, err := marketArgs(cm)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", cm.Market.ID, err)
	}
	if _, err := s.pool.Exec(ctx, upsertMarketSQL, args...); err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", cm.Market.ID, err)
	}
	return nil
}

// UpsertBatch inserts or updates multiple markets in a single batch operation.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.ClassifiedMarket) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, cm := range markets {
		args, err := marketArgs(cm)
		if err != nil {
			return fmt.Errorf("postgres: upsert market %s: %w", cm.Market.ID, err)
		}
		batch.Queue(upsertMarketSQL, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d (%s): %w", i, markets[i].Market.ID, err)
		}
	}
	return nil
}

// scanMarket scans a single market row into a domain.ClassifiedMarket.
func scanMarket(row pgx.Row) (domain.ClassifiedMarket, error) {
	var (
		cm                                          domain.ClassifiedMarket
		tags, events, outcomes, prices, tokens, spt []byte
		sourceUpdated                               *time.Time
	)
	m := &cm.Market
	err := row.Scan(
		&m.ID, &m.ConditionID, &m.Question, &m.Title, &m.Slug,
		&m.Category, &cm.Category, &cm.Rule,
		&tags, &events, &outcomes, &prices, &tokens, &spt,
		&m.Volume, &m.Active, &m.Closed,
		&m.EndDate, &m.GameStartTime, &m.UpperBoundDate, &m.ClosedTime,
		&sourceUpdated,
	)
	if err != nil {
		return domain.ClassifiedMarket{}, err
	}
	if sourceUpdated != nil {
		m.UpdatedAt = *sourceUpdated
	}

	cols := []struct {
		raw []byte
		dst any
	}{
		{tags, &m.Tags},
		{events, &m.Events},
		{outcomes, &m.Outcomes},
		{prices, &m.OutcomePrices},
		{tokens, &m.ClobTokenIDs},
		{spt, &cm.Sports},
	}
	for _, c := range cols {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.dst); err != nil {
			return domain.ClassifiedMarket{}, fmt.Errorf("decode json column: %w", err)
		}
	}
	return cm, nil
}

func scanMarkets(rows pgx.Rows) ([]domain.ClassifiedMarket, error) {
	defer rows.Close()
	var out []domain.ClassifiedMarket
	for rows.Next() {
		cm, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cm)
	}
	return out, rows.Err()
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.ClassifiedMarket, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	cm, err := scanMarket(row)
	if err != nil {
		return domain.ClassifiedMarket{}, wrapErr("get market "+id, err)
	}
	return cm, nil
}

// GetBySlug retrieves a market by its URL slug.
func (s *MarketStore) GetBySlug(ctx context.Context, slug string) (domain.ClassifiedMarket, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE slug = $1 ORDER BY updated_at DESC LIMIT 1`, slug)
	cm, err := scanMarket(row)
	if err != nil {
		return domain.ClassifiedMarket{}, wrapErr("get market by slug "+slug, err)
	}
	return cm, nil
}

// ListActive returns open markets ordered by effective date. Since and Until
// bound the effective date; Category matches case-insensitively.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.ClassifiedMarket, error) {
	const effective = "COALESCE(upper_bound_date, game_start_time, end_date)"

	query := `SELECT ` + marketCols + ` FROM markets WHERE active AND NOT closed`
	args := []any{}
	argIdx := 1

	if opts.Category != "" {
		query += fmt.Sprintf(" AND lower(category) = lower($%d)", argIdx)
		args = append(args, opts.Category)
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= $%d", effective, argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= $%d", effective, argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY " + effective + " ASC NULLS LAST, id"

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
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	markets, err := scanMarkets(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active markets: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
