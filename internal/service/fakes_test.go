package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/polybets/polybet/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

type memMarkets struct {
	mu      sync.Mutex
	byID    map[string]domain.ClassifiedMarket
	lastOpt domain.ListOpts
}

func newMemMarkets() *memMarkets {
	return &memMarkets{byID: map[string]domain.ClassifiedMarket{}}
}

func (m *memMarkets) Upsert(_ context.Context, cm domain.ClassifiedMarket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[cm.Market.ID] = cm
	return nil
}

func (m *memMarkets) UpsertBatch(ctx context.Context, cms []domain.ClassifiedMarket) error {
	for _, cm := range cms {
		_ = m.Upsert(ctx, cm)
	}
	return nil
}

func (m *memMarkets) GetByID(_ context.Context, id string) (domain.ClassifiedMarket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cm, ok := m.byID[id]
	if !ok {
		return domain.ClassifiedMarket{}, domain.ErrNotFound
	}
	return cm, nil
}

func (m *memMarkets) GetMarket(ctx context.Context, id string) (domain.ClassifiedMarket, error) {
	return m.GetByID(ctx, id)
}

func (m *memMarkets) GetBySlug(_ context.Context, slug string) (domain.ClassifiedMarket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cm := range m.byID {
		if cm.Market.Slug == slug {
			return cm, nil
		}
	}
	return domain.ClassifiedMarket{}, domain.ErrNotFound
}

func (m *memMarkets) ListActive(_ context.Context, opts domain.ListOpts) ([]domain.ClassifiedMarket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOpt = opts
	var out []domain.ClassifiedMarket
	for _, cm := range m.byID {
		if opts.Category != "" && cm.Category != opts.Category {
			continue
		}
		out = append(out, cm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market.ID < out[j].Market.ID })
	return out, nil
}

func (m *memMarkets) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

type memMarketCache struct {
	mu          sync.Mutex
	byID        map[string]domain.ClassifiedMarket
	invalidated []string
}

func newMemMarketCache() *memMarketCache {
	return &memMarketCache{byID: map[string]domain.ClassifiedMarket{}}
}

func (c *memMarketCache) Set(_ context.Context, cm domain.ClassifiedMarket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[cm.Market.ID] = cm
	return nil
}

func (c *memMarketCache) Get(_ context.Context, id string) (domain.ClassifiedMarket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cm, ok := c.byID[id]
	if !ok {
		return domain.ClassifiedMarket{}, domain.ErrNotFound
	}
	return cm, nil
}

func (c *memMarketCache) GetBySlug(_ context.Context, slug string) (domain.ClassifiedMarket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cm := range c.byID {
		if cm.Market.Slug == slug {
			return cm, nil
		}
	}
	return domain.ClassifiedMarket{}, domain.ErrNotFound
}

func (c *memMarketCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type memPrices struct {
	mu     sync.Mutex
	prices map[string]domain.MarketPrice
}

func newMemPrices() *memPrices {
	return &memPrices{prices: map[string]domain.MarketPrice{}}
}

func (p *memPrices) SetPrice(_ context.Context, id string, price domain.MarketPrice, _ time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[id] = price
	return nil
}

func (p *memPrices) GetPrice(_ context.Context, id string) (domain.MarketPrice, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	price, ok := p.prices[id]
	if !ok {
		return domain.MarketPrice{}, time.Time{}, domain.ErrNotFound
	}
	return price, time.Time{}, nil
}

func (p *memPrices) GetPrices(_ context.Context, ids []string) (map[string]domain.MarketPrice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[string]domain.MarketPrice{}
	for _, id := range ids {
		if price, ok := p.prices[id]; ok {
			out[id] = price
		}
	}
	return out, nil
}

type memBus struct {
	mu        sync.Mutex
	published []domain.BusMessage
	streamed  []domain.BusMessage
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, domain.BusMessage{Channel: channel, Payload: payload})
	return nil
}

func (b *memBus) Subscribe(context.Context, ...string) (<-chan domain.BusMessage, error) {
	return make(chan domain.BusMessage), nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed = append(b.streamed, domain.BusMessage{Channel: stream, Payload: payload})
	return nil
}

func (b *memBus) StreamRead(_ context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	after := 0
	if lastID != "0" {
		after, _ = strconv.Atoi(lastID)
	}
	var out []domain.StreamMessage
	for i, m := range b.streamed {
		id := i + 1
		if m.Channel != stream || id <= after {
			continue
		}
		out = append(out, domain.StreamMessage{ID: strconv.Itoa(id), Payload: m.Payload})
		if len(out) == count {
			break
		}
	}
	return out, nil
}

func (b *memBus) channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.published {
		out = append(out, m.Channel)
	}
	return out
}

type memBookmarks struct {
	mu   sync.Mutex
	byID map[string]domain.Bookmark
}

func newMemBookmarks(bs ...domain.Bookmark) *memBookmarks {
	m := &memBookmarks{byID: map[string]domain.Bookmark{}}
	for _, b := range bs {
		m.byID[b.ID] = b
	}
	return m
}

func (m *memBookmarks) Create(_ context.Context, b domain.Bookmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.UserID == b.UserID && x.MarketID == b.MarketID && x.RemovedAt == nil {
			return domain.ErrAlreadyExists
		}
	}
	m.byID[b.ID] = b
	return nil
}

func (m *memBookmarks) GetByID(_ context.Context, id string) (domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return domain.Bookmark{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *memBookmarks) GetActive(_ context.Context, userID, marketID string) (domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.byID {
		if b.UserID == userID && b.MarketID == marketID && b.RemovedAt == nil {
			return b, nil
		}
	}
	return domain.Bookmark{}, domain.ErrNotFound
}

func (m *memBookmarks) ListByUser(_ context.Context, userID string, includeRemoved bool) ([]domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Bookmark
	for _, b := range m.byID {
		if b.UserID == userID && (includeRemoved || b.RemovedAt == nil) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memBookmarks) ListActiveByMarket(_ context.Context, marketID string) ([]domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Bookmark
	for _, b := range m.byID {
		if b.MarketID == marketID && b.RemovedAt == nil && !b.IsClosed {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memBookmarks) ActiveMarketIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, b := range m.byID {
		if b.RemovedAt == nil && !b.IsClosed && !seen[b.MarketID] {
			seen[b.MarketID] = true
			out = append(out, b.MarketID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memBookmarks) UpdatePrice(_ context.Context, id string, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.LastKnownPrice = &price
	m.byID[id] = b
	return nil
}

func (m *memBookmarks) MarkClosed(_ context.Context, id string, final *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.IsClosed = true
	b.FinalPrice = final
	m.byID[id] = b
	return nil
}

func (m *memBookmarks) Remove(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.RemovedAt = &at
	m.byID[id] = b
	return nil
}

type memAlerts struct {
	mu        sync.Mutex
	byID      map[string]domain.Alert
	triggered []string
}

func newMemAlerts(as ...domain.Alert) *memAlerts {
	m := &memAlerts{byID: map[string]domain.Alert{}}
	for _, a := range as {
		m.byID[a.ID] = a
	}
	return m
}

func (m *memAlerts) Upsert(_ context.Context, a domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, x := range m.byID {
		if x.UserID == a.UserID && x.MarketID == a.MarketID {
			a.ID = id
		}
	}
	m.byID[a.ID] = a
	return nil
}

func (m *memAlerts) GetByID(_ context.Context, id string) (domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return domain.Alert{}, domain.ErrNotFound
	}
	return a, nil
}

func (m *memAlerts) ListByUser(_ context.Context, userID string) ([]domain.Alert, error) {
	return m.filter(func(a domain.Alert) bool { return a.UserID == userID }), nil
}

func (m *memAlerts) ListEnabled(context.Context) ([]domain.Alert, error) {
	return m.filter(func(a domain.Alert) bool { return a.Enabled }), nil
}

func (m *memAlerts) ListEnabledByMarket(_ context.Context, marketID string) ([]domain.Alert, error) {
	return m.filter(func(a domain.Alert) bool { return a.Enabled && a.MarketID == marketID }), nil
}

func (m *memAlerts) filter(keep func(domain.Alert) bool) []domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Alert
	for _, a := range m.byID {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memAlerts) MarkTriggered(_ context.Context, id string, at time.Time, disable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.LastTriggeredAt = &at
	if disable {
		a.Enabled = false
	}
	m.byID[id] = a
	m.triggered = append(m.triggered, id)
	return nil
}

func (m *memAlerts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memHistory struct {
	mu       sync.Mutex
	entries  []domain.HistoryEntry
	lastOpts domain.ListOpts
}

func (m *memHistory) Insert(_ context.Context, e domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memHistory) ListByUser(_ context.Context, userID string, opts domain.ListOpts) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOpts = opts
	var out []domain.HistoryEntry
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if opts.Since != nil && e.ResolvedAt.Before(*opts.Since) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResolvedAt.After(out[j].ResolvedAt) })
	return out, nil
}

func (m *memHistory) ListBefore(context.Context, time.Time, int) ([]domain.HistoryEntry, error) {
	return nil, nil
}

func (m *memHistory) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.AlertEvent
}

func (n *recordingNotifier) NotifyAlert(_ context.Context, evt domain.AlertEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return nil
}
