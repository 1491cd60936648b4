package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/polybets/polybet/internal/domain"
)

func TestCheckAlert(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-5 * time.Minute)

	tests := []struct {
		name    string
		alert   domain.Alert
		entry   float64
		price   float64
		wantDir domain.AlertDirection
		fired   bool
	}{
		{"profit crossed", domain.Alert{Enabled: true, ProfitThresholdPct: ptr(10.0)}, 0.8, 0.9, domain.AlertDirectionProfit, true},
		{"profit not reached", domain.Alert{Enabled: true, ProfitThresholdPct: ptr(10.0)}, 0.8, 0.87, "", false},
		{"loss crossed", domain.Alert{Enabled: true, LossThresholdPct: ptr(25.0)}, 0.8, 0.55, domain.AlertDirectionLoss, true},
		{"loss not reached", domain.Alert{Enabled: true, LossThresholdPct: ptr(25.0)}, 0.8, 0.61, "", false},
		{"disabled", domain.Alert{ProfitThresholdPct: ptr(1.0)}, 0.5, 0.9, "", false},
		{"cooldown", domain.Alert{Enabled: true, ProfitThresholdPct: ptr(1.0), CooldownMinutes: 10, LastTriggeredAt: &recent}, 0.5, 0.9, "", false},
		{"cooldown elapsed", domain.Alert{Enabled: true, ProfitThresholdPct: ptr(1.0), CooldownMinutes: 3, LastTriggeredAt: &recent}, 0.5, 0.9, domain.AlertDirectionProfit, true},
		{"zero entry", domain.Alert{Enabled: true, ProfitThresholdPct: ptr(1.0)}, 0, 0.9, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, _, fired := CheckAlert(tt.alert, tt.entry, tt.price, now)
			if fired != tt.fired || dir != tt.wantDir {
				t.Errorf("CheckAlert() = %q, %v; want %q, %v", dir, fired, tt.wantDir, tt.fired)
			}
		})
	}
}

func TestAlertUpsert(t *testing.T) {
	ctx := context.Background()
	bookmarks := newMemBookmarks(domain.Bookmark{ID: "b1", UserID: "u1", MarketID: "m1", Title: "Will Arsenal win?", Category: "Sports", EntryPrice: 0.8})
	alerts := newMemAlerts()
	svc := NewAlertService(alerts, bookmarks, nil, nil, discardLogger())

	a, err := svc.Upsert(ctx, "u1", AlertInput{MarketID: "m1", ProfitThresholdPct: ptr(10.0), CooldownMinutes: 30})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !a.Enabled || a.Title != "Will Arsenal win?" || a.Category != "Sports" {
		t.Errorf("alert = %+v", a)
	}

	again, err := svc.Upsert(ctx, "u1", AlertInput{MarketID: "m1", LossThresholdPct: ptr(20.0), Enabled: ptr(false)})
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if again.ID != a.ID || again.Enabled || again.ProfitThresholdPct != nil {
		t.Errorf("replaced alert = %+v, want same id %s", again, a.ID)
	}

	invalid := []struct {
		name string
		in   AlertInput
	}{
		{"no thresholds", AlertInput{MarketID: "m1"}},
		{"negative profit", AlertInput{MarketID: "m1", ProfitThresholdPct: ptr(-1.0)}},
		{"negative cooldown", AlertInput{MarketID: "m1", LossThresholdPct: ptr(5.0), CooldownMinutes: -1}},
		{"not bookmarked", AlertInput{MarketID: "m9", LossThresholdPct: ptr(5.0)}},
		{"no market", AlertInput{LossThresholdPct: ptr(5.0)}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Upsert(ctx, "u1", tt.in); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Upsert() error = %v, want ErrInvalidInput", err)
			}
		})
	}

	if _, err := svc.Update(ctx, "u2", a.ID, AlertInput{ProfitThresholdPct: ptr(5.0)}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Update(other user) error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, "u2", a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete(other user) error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, "u1", a.ID); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if list, _ := svc.List(ctx, "u1"); len(list) != 0 {
		t.Errorf("List() after delete = %+v", list)
	}
}

func TestAlertEvaluate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	bookmarks := newMemBookmarks(
		domain.Bookmark{ID: "b1", UserID: "u1", MarketID: "m1", EntryOutcome: "Yes", EntryPrice: 0.8},
		domain.Bookmark{ID: "b2", UserID: "u2", MarketID: "m1", EntryOutcome: "Yes", EntryPrice: 0.8},
	)
	alerts := newMemAlerts(
		domain.Alert{ID: "a1", UserID: "u1", MarketID: "m1", Enabled: true, ProfitThresholdPct: ptr(10.0), TriggerOnce: true},
		domain.Alert{ID: "a2", UserID: "u2", MarketID: "m1", Enabled: true, LossThresholdPct: ptr(10.0), CooldownMinutes: 60},
		domain.Alert{ID: "a3", UserID: "u3", MarketID: "m1", Enabled: true, ProfitThresholdPct: ptr(1.0)},
	)
	notifier := &recordingNotifier{}
	bus := &memBus{}
	svc := NewAlertService(alerts, bookmarks, notifier, bus, discardLogger())
	svc.now = func() time.Time { return now }

	upd := domain.PriceUpdate{MarketID: "m1", Price: domain.MarketPrice{Outcome: "Yes", Price: 0.9}}
	fired, err := svc.Evaluate(ctx, upd)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	// a3 has no bookmark and a2 is a loss alert.
	if len(fired) != 1 || fired[0].AlertID != "a1" || fired[0].Direction != domain.AlertDirectionProfit {
		t.Fatalf("fired = %+v", fired)
	}
	if math.Abs(fired[0].PnLPct-12.5) > 1e-9 {
		t.Errorf("PnLPct = %v, want 12.5", fired[0].PnLPct)
	}
	if a, _ := alerts.GetByID(ctx, "a1"); a.Enabled || a.LastTriggeredAt == nil {
		t.Errorf("trigger-once alert after firing = %+v", a)
	}
	if len(notifier.events) != 1 {
		t.Errorf("notifier got %d events", len(notifier.events))
	}
	if chans := bus.channels(); len(chans) != 1 || chans[0] != "alerts.u1" {
		t.Errorf("published channels = %v", chans)
	}
	if len(bus.streamed) != 1 || bus.streamed[0].Channel != domain.StreamAlerts {
		t.Errorf("streamed = %+v", bus.streamed)
	}
	var evt domain.AlertEvent
	if err := json.Unmarshal(bus.published[0].Payload, &evt); err != nil || evt.UserID != "u1" {
		t.Errorf("payload = %s, %v", bus.published[0].Payload, err)
	}

	// The loss alert fires once and then sits out its cooldown.
	drop := domain.PriceUpdate{MarketID: "m1", Price: domain.MarketPrice{Outcome: "Yes", Price: 0.7}}
	fired, err = svc.EvaluateBatch(ctx, []domain.PriceUpdate{drop})
	if err != nil || len(fired) != 1 || fired[0].AlertID != "a2" {
		t.Fatalf("EvaluateBatch() = %+v, %v", fired, err)
	}
	now = now.Add(30 * time.Minute)
	if fired, _ := svc.EvaluateBatch(ctx, []domain.PriceUpdate{drop}); len(fired) != 0 {
		t.Errorf("alert fired inside cooldown: %+v", fired)
	}
	now = now.Add(31 * time.Minute)
	if fired, _ := svc.EvaluateBatch(ctx, []domain.PriceUpdate{drop}); len(fired) != 1 {
		t.Errorf("alert did not fire after cooldown: %+v", fired)
	}
}

func TestAlertRecentEvents(t *testing.T) {
	ctx := context.Background()
	bus := &memBus{}
	for i, user := range []string{"u1", "u2", "u1", "u1"} {
		payload, _ := json.Marshal(domain.AlertEvent{AlertID: fmt.Sprintf("a%d", i), UserID: user})
		_ = bus.StreamAppend(ctx, domain.StreamAlerts, payload)
	}
	_ = bus.StreamAppend(ctx, domain.StreamAlerts, []byte("not json"))
	svc := NewAlertService(newMemAlerts(), newMemBookmarks(), nil, bus, discardLogger())

	got, err := svc.RecentEvents(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	if len(got) != 2 || got[0].AlertID != "a3" || got[1].AlertID != "a2" {
		t.Errorf("events = %+v, want a3 then a2", got)
	}

	if _, err := svc.RecentEvents(ctx, "", 5); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("missing user error = %v", err)
	}
	noBus := NewAlertService(newMemAlerts(), newMemBookmarks(), nil, nil, discardLogger())
	if got, err := noBus.RecentEvents(ctx, "u1", 0); err != nil || len(got) != 0 {
		t.Errorf("without bus = %+v, %v", got, err)
	}
}
