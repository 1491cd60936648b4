package service

import (
	"context"
	"testing"
	"time"

	"github.com/polybets/polybet/internal/domain"
)

func TestPriceServiceHandleUpdate(t *testing.T) {
	ctx := context.Background()
	bookmarks := newMemBookmarks(
		domain.Bookmark{ID: "b1", UserID: "u1", MarketID: "m1", EntryOutcome: "Yes", EntryPrice: 0.8},
	)
	alerts := newMemAlerts(
		domain.Alert{ID: "a1", UserID: "u1", MarketID: "m1", Enabled: true, ProfitThresholdPct: ptr(10.0)},
	)
	prices, bus := newMemPrices(), &memBus{}
	bs := NewBookmarkService(bookmarks, newMemMarkets(), prices, nil, discardLogger())
	as := NewAlertService(alerts, bookmarks, nil, bus, discardLogger())
	svc := NewPriceService(prices, bs, as, bus, discardLogger())

	upd := domain.PriceUpdate{MarketID: "m1", Price: domain.MarketPrice{Outcome: "Yes", Price: 0.92}, At: time.Now()}
	if err := svc.HandleUpdate(ctx, upd); err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}

	if p, err := svc.GetPrice(ctx, "m1"); err != nil || p.Price != 0.92 {
		t.Errorf("GetPrice() = %+v, %v", p, err)
	}
	if b, _ := bookmarks.GetByID(ctx, "b1"); b.LastKnownPrice == nil || *b.LastKnownPrice != 0.92 {
		t.Errorf("bookmark price = %v", b.LastKnownPrice)
	}
	if len(alerts.triggered) != 1 {
		t.Errorf("triggered = %v, want a1", alerts.triggered)
	}
	chans := bus.channels()
	if len(chans) != 2 || chans[0] != domain.ChannelMarketPrices || chans[1] != "alerts.u1" {
		t.Errorf("published = %v", chans)
	}
}

func TestPriceServiceHandleBatch(t *testing.T) {
	ctx := context.Background()
	bookmarks := newMemBookmarks(
		domain.Bookmark{ID: "b1", UserID: "u1", MarketID: "m1", EntryOutcome: "Yes", EntryPrice: 0.8},
		domain.Bookmark{ID: "b2", UserID: "u1", MarketID: "m2", EntryOutcome: "Yes", EntryPrice: 0.5},
	)
	alerts := newMemAlerts(
		domain.Alert{ID: "a1", UserID: "u1", MarketID: "m1", Enabled: true, LossThresholdPct: ptr(20.0)},
		domain.Alert{ID: "a2", UserID: "u1", MarketID: "m2", Enabled: true, ProfitThresholdPct: ptr(50.0)},
	)
	prices := newMemPrices()
	bs := NewBookmarkService(bookmarks, newMemMarkets(), prices, nil, discardLogger())
	as := NewAlertService(alerts, bookmarks, nil, nil, discardLogger())
	svc := NewPriceService(prices, bs, as, &memBus{}, discardLogger())

	fired, err := svc.HandleBatch(ctx, []domain.PriceUpdate{
		{MarketID: "m1", Price: domain.MarketPrice{Outcome: "Yes", Price: 0.5}},
		{MarketID: "m2", Price: domain.MarketPrice{Outcome: "Yes", Price: 0.6}},
		{MarketID: "m3", Price: domain.MarketPrice{Outcome: "Yes", Price: 0.9}},
	})
	if err != nil {
		t.Fatalf("HandleBatch() error = %v", err)
	}
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
	if _, _, err := prices.GetPrice(ctx, "m3"); err != nil {
		t.Errorf("m3 price not cached: %v", err)
	}
}
