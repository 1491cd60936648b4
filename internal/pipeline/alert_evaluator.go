package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/polybets/polybet/internal/domain"
)

// BatchHandler applies a batch of price updates and reports how many alerts
// fired.
type BatchHandler interface {
	HandleBatch(ctx context.Context, updates []domain.PriceUpdate) (int, error)
}

// AlertEvaluator consumes markets.updated snapshots from the signal bus,
// keeps the newest update per market and hands them to the price service on
// every tick.
type AlertEvaluator struct {
	bus      domain.SignalBus
	handler  BatchHandler
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]domain.PriceUpdate
}

// NewAlertEvaluator creates an AlertEvaluator that flushes every interval.
func NewAlertEvaluator(bus domain.SignalBus, handler BatchHandler, interval time.Duration, logger *slog.Logger) *AlertEvaluator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &AlertEvaluator{
		bus:      bus,
		handler:  handler,
		interval: interval,
		pending:  make(map[string]domain.PriceUpdate),
		logger:   logger.With(slog.String("component", "alert_evaluator")),
	}
}

// Run subscribes to markets.updated and evaluates queued updates until ctx
// is cancelled.
func (e *AlertEvaluator) Run(ctx context.Context) error {
	msgs, err := e.bus.Subscribe(ctx, domain.ChannelMarketsUpdated)
	if err != nil {
		return fmt.Errorf("pipeline: subscribe %s: %w", domain.ChannelMarketsUpdated, err)
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("alert evaluator stopped")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("pipeline: %s subscription closed", domain.ChannelMarketsUpdated)
			}
			if err := e.Enqueue(msg.Payload); err != nil {
				e.logger.WarnContext(ctx, "dropping malformed markets update", slog.String("error", err.Error()))
			}
		case <-ticker.C:
			if _, err := e.Flush(ctx); err != nil {
				e.logger.ErrorContext(ctx, "alert evaluation failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Enqueue decodes a markets.updated payload and queues its updates. A newer
// update for the same market replaces the queued one.
func (e *AlertEvaluator) Enqueue(payload []byte) error {
	var mu domain.MarketsUpdated
	if err := json.Unmarshal(payload, &mu); err != nil {
		return fmt.Errorf("pipeline: decode markets update: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, u := range mu.Updates {
		if u.MarketID == "" {
			continue
		}
		if prev, ok := e.pending[u.MarketID]; ok && prev.At.After(u.At) {
			continue
		}
		e.pending[u.MarketID] = u
	}
	return nil
}

// Flush evaluates every queued update and returns the number of alerts that
// fired.
func (e *AlertEvaluator) Flush(ctx context.Context) (int, error) {
	e.mu.Lock()
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return 0, nil
	}
	batch := make([]domain.PriceUpdate, 0, len(e.pending))
	for _, u := range e.pending {
		batch = append(batch, u)
	}
	e.pending = make(map[string]domain.PriceUpdate)
	e.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].MarketID < batch[j].MarketID })

	fired, err := e.handler.HandleBatch(ctx, batch)
	if err != nil {
		return fired, fmt.Errorf("pipeline: evaluate %d updates: %w", len(batch), err)
	}
	if fired > 0 {
		e.logger.InfoContext(ctx, "alerts fired",
			slog.Int("updates", len(batch)),
			slog.Int("fired", fired),
		)
	}
	return fired, nil
}
