package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/polybets/polybet/internal/domain"
)

// AlertNotifier delivers a fired alert to the user's channels.
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, evt domain.AlertEvent) error
}

// AlertInput is the user-editable part of an alert.
type AlertInput struct {
	MarketID           string   `json:"marketId"`
	Enabled            *bool    `json:"enabled"`
	ProfitThresholdPct *float64 `json:"profitThresholdPct"`
	LossThresholdPct   *float64 `json:"lossThresholdPct"`
	TriggerOnce        bool     `json:"triggerOnce"`
	CooldownMinutes    int      `json:"cooldownMinutes"`
}

func (in AlertInput) validate() error {
	if in.ProfitThresholdPct == nil && in.LossThresholdPct == nil {
		return errors.New("at least one threshold is required")
	}
	if in.ProfitThresholdPct != nil && *in.ProfitThresholdPct <= 0 {
		return errors.New("profitThresholdPct must be > 0")
	}
	if in.LossThresholdPct != nil && *in.LossThresholdPct <= 0 {
		return errors.New("lossThresholdPct must be > 0")
	}
	if in.CooldownMinutes < 0 {
		return errors.New("cooldownMinutes must be >= 0")
	}
	return nil
}

// CheckAlert decides whether a price crosses one of the alert's thresholds.
// pnl is the percentage move from entry to price.
func CheckAlert(a domain.Alert, entry, price float64, now time.Time) (dir domain.AlertDirection, pnl float64, fired bool) {
	if !a.Enabled || entry <= 0 || a.InCooldown(now) {
		return "", 0, false
	}
	pnl = (price - entry) / entry * 100
	switch {
	case a.ProfitThresholdPct != nil && pnl >= *a.ProfitThresholdPct:
		return domain.AlertDirectionProfit, pnl, true
	case a.LossThresholdPct != nil && pnl <= -*a.LossThresholdPct:
		return domain.AlertDirectionLoss, pnl, true
	default:
		return "", pnl, false
	}
}

// AlertService manages price alerts and evaluates them on price updates.
type AlertService struct {
	alerts    domain.AlertStore
	bookmarks domain.BookmarkStore
	notifier  AlertNotifier
	bus       domain.SignalBus
	logger    *slog.Logger
	now       func() time.Time
}

// NewAlertService creates an AlertService. notifier and bus may be nil.
func NewAlertService(
	alerts domain.AlertStore,
	bookmarks domain.BookmarkStore,
	notifier AlertNotifier,
	bus domain.SignalBus,
	logger *slog.Logger,
) *AlertService {
	return &AlertService{
		alerts:    alerts,
		bookmarks: bookmarks,
		notifier:  notifier,
		bus:       bus,
		logger:    logger,
		now:       time.Now,
	}
}

// Upsert creates the user's alert on a bookmarked market or replaces the
// settings of the existing one.
func (s *AlertService) Upsert(ctx context.Context, userID string, in AlertInput) (domain.Alert, error) {
	if userID == "" || in.MarketID == "" {
		return domain.Alert{}, fmt.Errorf("alert_service: user and market are required: %w", domain.ErrInvalidInput)
	}
	if err := in.validate(); err != nil {
		return domain.Alert{}, fmt.Errorf("alert_service: %s: %w", err.Error(), domain.ErrInvalidInput)
	}

	b, err := s.bookmarks.GetActive(ctx, userID, in.MarketID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Alert{}, fmt.Errorf("alert_service: market %q is not bookmarked: %w", in.MarketID, domain.ErrInvalidInput)
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("alert_service: load bookmark: %w", err)
	}

	existing, err := s.findByMarket(ctx, userID, in.MarketID)
	if err != nil {
		return domain.Alert{}, err
	}

	now := s.now().UTC()
	a := domain.Alert{
		ID:        uuid.NewString(),
		CreatedAt: now,
	}
	if existing != nil {
		a = *existing
	}
	a.UserID = userID
	a.MarketID = in.MarketID
	a.Title = b.Title
	a.Category = b.Category
	a.Enabled = in.Enabled == nil || *in.Enabled
	a.ProfitThresholdPct = in.ProfitThresholdPct
	a.LossThresholdPct = in.LossThresholdPct
	a.TriggerOnce = in.TriggerOnce
	a.CooldownMinutes = in.CooldownMinutes
	a.UpdatedAt = now

	if err := s.alerts.Upsert(ctx, a); err != nil {
		return domain.Alert{}, fmt.Errorf("alert_service: upsert: %w", err)
	}
	return a, nil
}

// Update replaces the settings of an alert owned by userID.
func (s *AlertService) Update(ctx context.Context, userID, id string, in AlertInput) (domain.Alert, error) {
	a, err := s.Get(ctx, userID, id)
	if err != nil {
		return domain.Alert{}, err
	}
	in.MarketID = a.MarketID
	return s.Upsert(ctx, userID, in)
}

func (s *AlertService) findByMarket(ctx context.Context, userID, marketID string) (*domain.Alert, error) {
	alerts, err := s.alerts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("alert_service: list: %w", err)
	}
	for i := range alerts {
		if alerts[i].MarketID == marketID {
			return &alerts[i], nil
		}
	}
	return nil, nil
}

// List returns the user's alerts.
func (s *AlertService) List(ctx context.Context, userID string) ([]domain.Alert, error) {
	alerts, err := s.alerts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("alert_service: list: %w", err)
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	return alerts, nil
}

// Get returns an alert owned by userID.
func (s *AlertService) Get(ctx context.Context, userID, id string) (domain.Alert, error) {
	a, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("alert_service: get %q: %w", id, err)
	}
	if a.UserID != userID {
		return domain.Alert{}, fmt.Errorf("alert_service: get %q: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

// Delete removes an alert owned by userID.
func (s *AlertService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.alerts.Delete(ctx, id); err != nil {
		return fmt.Errorf("alert_service: delete %q: %w", id, err)
	}
	return nil
}

// Event history limits.
const (
	defaultEventLimit = 20
	maxEventLimit     = 100
	eventPageSize     = 500
	maxEventPages     = 40
)

// RecentEvents returns the user's most recently fired alerts, newest first,
// read back from the durable alert stream.
func (s *AlertService) RecentEvents(ctx context.Context, userID string, limit int) ([]domain.AlertEvent, error) {
	if userID == "" {
		return nil, fmt.Errorf("alert_service: %w: user id required", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}
	limit = min(limit, maxEventLimit)
	if s.bus == nil {
		return []domain.AlertEvent{}, nil
	}

	var events []domain.AlertEvent
	lastID := "0"
	for page := 0; page < maxEventPages; page++ {
		msgs, err := s.bus.StreamRead(ctx, domain.StreamAlerts, lastID, eventPageSize)
		if err != nil {
			return nil, fmt.Errorf("alert_service: read alert stream: %w", err)
		}
		for _, m := range msgs {
			lastID = m.ID
			var evt domain.AlertEvent
			if err := json.Unmarshal(m.Payload, &evt); err != nil || evt.UserID != userID {
				continue
			}
			events = append(events, evt)
			if len(events) > limit {
				events = events[1:]
			}
		}
		if len(msgs) < eventPageSize {
			break
		}
	}

	out := make([]domain.AlertEvent, len(events))
	for i, evt := range events {
		out[len(events)-1-i] = evt
	}
	return out, nil
}

// Evaluate checks the enabled alerts of one market against a new price and
// fires those whose thresholds are crossed.
func (s *AlertService) Evaluate(ctx context.Context, upd domain.PriceUpdate) ([]domain.AlertEvent, error) {
	alerts, err := s.alerts.ListEnabledByMarket(ctx, upd.MarketID)
	if err != nil {
		return nil, fmt.Errorf("alert_service: list for market %q: %w", upd.MarketID, err)
	}
	return s.evaluate(ctx, alerts, upd), nil
}

// EvaluateBatch checks every enabled alert against a batch of price
// updates, loading the alerts once.
func (s *AlertService) EvaluateBatch(ctx context.Context, updates []domain.PriceUpdate) ([]domain.AlertEvent, error) {
	if len(updates) == 0 {
		return nil, nil
	}
	alerts, err := s.alerts.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("alert_service: list enabled: %w", err)
	}
	byMarket := make(map[string][]domain.Alert, len(alerts))
	for _, a := range alerts {
		byMarket[a.MarketID] = append(byMarket[a.MarketID], a)
	}

	var fired []domain.AlertEvent
	for _, upd := range updates {
		if as := byMarket[upd.MarketID]; len(as) > 0 {
			fired = append(fired, s.evaluate(ctx, as, upd)...)
		}
	}
	return fired, nil
}

func (s *AlertService) evaluate(ctx context.Context, alerts []domain.Alert, upd domain.PriceUpdate) []domain.AlertEvent {
	now := s.now().UTC()
	var fired []domain.AlertEvent
	for _, a := range alerts {
		b, err := s.bookmarks.GetActive(ctx, a.UserID, a.MarketID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.WarnContext(ctx, "alert_service: load bookmark failed",
					slog.String("alert_id", a.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		price := sidePrice(b.EntryOutcome, upd.Price)
		dir, pnl, ok := CheckAlert(a, b.EntryPrice, price, now)
		if !ok {
			continue
		}
		evt := domain.AlertEvent{
			AlertID:    a.ID,
			UserID:     a.UserID,
			MarketID:   a.MarketID,
			Title:      a.Title,
			Category:   a.Category,
			Direction:  dir,
			EntryPrice: b.EntryPrice,
			Price:      price,
			PnLPct:     pnl,
			FiredAt:    now,
		}
		if err := s.alerts.MarkTriggered(ctx, a.ID, now, a.TriggerOnce); err != nil {
			s.logger.ErrorContext(ctx, "alert_service: mark triggered failed",
				slog.String("alert_id", a.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.deliver(ctx, evt)
		fired = append(fired, evt)
	}
	return fired
}

// deliver sends a fired alert to the notifier, the user's channel and the
// alert stream. Failures are logged.
func (s *AlertService) deliver(ctx context.Context, evt domain.AlertEvent) {
	s.logger.InfoContext(ctx, "alert_service: alert fired",
		slog.String("alert_id", evt.AlertID),
		slog.String("user_id", evt.UserID),
		slog.String("direction", string(evt.Direction)),
		slog.Float64("pnl_pct", evt.PnLPct),
	)

	if s.notifier != nil {
		if err := s.notifier.NotifyAlert(ctx, evt); err != nil {
			s.logger.WarnContext(ctx, "alert_service: notify failed",
				slog.String("alert_id", evt.AlertID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.AlertChannel(evt.UserID), payload); err != nil {
		s.logger.WarnContext(ctx, "alert_service: publish failed",
			slog.String("alert_id", evt.AlertID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, domain.StreamAlerts, payload); err != nil {
		s.logger.WarnContext(ctx, "alert_service: stream append failed",
			slog.String("alert_id", evt.AlertID),
			slog.String("error", err.Error()),
		)
	}
}
