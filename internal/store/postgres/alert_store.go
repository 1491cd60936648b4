package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polybets/polybet/internal/domain"
)

// AlertStore implements domain.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates a new AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

var _ domain.AlertStore = (*AlertStore)(nil)

const alertCols = `id, user_id, market_id, title, category, enabled,
	profit_threshold_pct, loss_threshold_pct, trigger_once, cooldown_minutes,
	last_triggered_at, created_at, updated_at`

func scanAlert(row pgx.Row) (domain.Alert, error) {
	var a domain.Alert
	err := row.Scan(
		&a.ID, &a.UserID, &a.MarketID, &a.Title, &a.Category, &a.Enabled,
		&a.ProfitThresholdPct, &a.LossThresholdPct, &a.TriggerOnce, &a.CooldownMinutes,
		&a.LastTriggeredAt, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func scanAlerts(rows pgx.Rows) ([]domain.Alert, error) {
	defer rows.Close()
	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Upsert creates the alert or replaces the settings of the user's existing
// alert on the same market. The stored ID of an existing alert is kept.
func (s *AlertStore) Upsert(ctx context.Context, a domain.Alert) error {
	const query = `
		INSERT INTO alerts (
			id, user_id, market_id, title, category, enabled,
			profit_threshold_pct, loss_threshold_pct, trigger_once, cooldown_minutes,
			last_triggered_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, NOW()
		)
		ON CONFLICT (user_id, market_id) DO UPDATE SET
			title                = EXCLUDED.title,
			category             = EXCLUDED.category,
			enabled              = EXCLUDED.enabled,
			profit_threshold_pct = EXCLUDED.profit_threshold_pct,
			loss_threshold_pct   = EXCLUDED.loss_threshold_pct,
			trigger_once         = EXCLUDED.trigger_once,
			cooldown_minutes     = EXCLUDED.cooldown_minutes,
			updated_at           = NOW()`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.UserID, a.MarketID, a.Title, a.Category, a.Enabled,
		a.ProfitThresholdPct, a.LossThresholdPct, a.TriggerOnce, a.CooldownMinutes,
		a.LastTriggeredAt, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert alert %s/%s: %w", a.UserID, a.MarketID, err)
	}
	return nil
}

// GetByID retrieves an alert by its primary key.
func (s *AlertStore) GetByID(ctx context.Context, id string) (domain.Alert, error) {
	a, err := scanAlert(s.pool.QueryRow(ctx, `SELECT `+alertCols+` FROM alerts WHERE id = $1`, id))
	if err != nil {
		return domain.Alert{}, wrapErr("get alert "+id, err)
	}
	return a, nil
}

// ListByUser returns a user's alerts, newest first.
func (s *AlertStore) ListByUser(ctx context.Context, userID string) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertCols+` FROM alerts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts for %s: %w", userID, err)
	}
	out, err := scanAlerts(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan alerts: %w", err)
	}
	return out, nil
}

// ListEnabled returns every enabled alert.
func (s *AlertStore) ListEnabled(ctx context.Context) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+alertCols+` FROM alerts WHERE enabled`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list enabled alerts: %w", err)
	}
	out, err := scanAlerts(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan alerts: %w", err)
	}
	return out, nil
}

// ListEnabledByMarket returns the enabled alerts watching a market.
func (s *AlertStore) ListEnabledByMarket(ctx context.Context, marketID string) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertCols+` FROM alerts WHERE market_id = $1 AND enabled`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts for market %s: %w", marketID, err)
	}
	out, err := scanAlerts(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan alerts: %w", err)
	}
	return out, nil
}

// MarkTriggered stamps the alert's last trigger time and optionally
// disables it.
func (s *AlertStore) MarkTriggered(ctx context.Context, id string, at time.Time, disable bool) error {
	err := execOne(ctx, s.pool,
		`UPDATE alerts
		 SET last_triggered_at = $2,
		     enabled = enabled AND NOT $3,
		     updated_at = NOW()
		 WHERE id = $1`, id, at, disable)
	if err != nil {
		return wrapErr("mark alert triggered "+id, err)
	}
	return nil
}

// Delete removes an alert.
func (s *AlertStore) Delete(ctx context.Context, id string) error {
	if err := execOne(ctx, s.pool, `DELETE FROM alerts WHERE id = $1`, id); err != nil {
		return wrapErr("delete alert "+id, err)
	}
	return nil
}
