package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/polybets/polybet/internal/domain"
	"github.com/polybets/polybet/internal/platform/polymarket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type pagedFetcher struct {
	total   int
	err     error
	offsets []int
}

func (f *pagedFetcher) ListMarkets(_ context.Context, limit, offset int) ([]domain.RawMarket, error) {
	f.offsets = append(f.offsets, offset)
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.RawMarket
	for i := offset; i < f.total && i < offset+limit; i++ {
		q := "Will Bitcoin reach 100k?"
		if i%2 == 1 {
			q = "Lakers vs. Celtics"
		}
		out = append(out, domain.RawMarket{ID: string(rune('a' + i%26)), Question: q})
	}
	return out, nil
}

type countingSyncer struct{ batches []int }

func (s *countingSyncer) SyncMarkets(_ context.Context, raws []domain.RawMarket) ([]domain.ClassifiedMarket, error) {
	s.batches = append(s.batches, len(raws))
	out := make([]domain.ClassifiedMarket, len(raws))
	for i, r := range raws {
		cat := "Crypto"
		if strings.Contains(r.Question, "vs.") {
			cat = "Sports"
		}
		out[i] = domain.ClassifiedMarket{Market: r, Category: cat}
	}
	return out, nil
}

type stubLocks struct {
	held     bool
	acquired int
	released int
}

func (l *stubLocks) Acquire(_ context.Context, _ string, _ time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.acquired++
	return func() { l.released++ }, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func TestMarketScraperRun(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSize  int
		maxPages  int
		wantPages int
		wantSync  int
	}{
		{"empty", 0, 10, 5, 0, 0},
		{"partial last page", 25, 10, 5, 3, 25},
		{"exact multiple", 20, 10, 5, 2, 20},
		{"max pages caps run", 100, 10, 3, 3, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &countingSyncer{}
			locks := &stubLocks{}
			s := NewMarketScraper(syncer, &pagedFetcher{total: tt.total},
				ScraperOpts{PageSize: tt.pageSize, MaxPages: tt.maxPages, Locks: locks}, testLogger())

			var hooked ScrapeResult
			s.OnSync(func(_ context.Context, r ScrapeResult) { hooked = r })

			res, err := s.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.Pages != tt.wantPages || res.Synced != tt.wantSync {
				t.Errorf("pages=%d synced=%d, want %d/%d", res.Pages, res.Synced, tt.wantPages, tt.wantSync)
			}
			if res.Categories["Crypto"]+res.Categories["Sports"] != tt.wantSync {
				t.Errorf("categories = %v", res.Categories)
			}
			if hooked.Synced != res.Synced {
				t.Error("OnSync hook not called with result")
			}
			if locks.acquired != 1 || locks.released != 1 {
				t.Errorf("lock acquired=%d released=%d", locks.acquired, locks.released)
			}
		})
	}
}

func TestMarketScraperSkipsWhenLocked(t *testing.T) {
	fetcher := &pagedFetcher{total: 5}
	s := NewMarketScraper(&countingSyncer{}, fetcher, ScraperOpts{Locks: &stubLocks{held: true}}, testLogger())
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Skipped || len(fetcher.offsets) != 0 {
		t.Errorf("result = %+v, fetches = %v", res, fetcher.offsets)
	}
}

func TestMarketScraperNotifiesFailure(t *testing.T) {
	n := &recordingNotifier{}
	s := NewMarketScraper(&countingSyncer{}, &pagedFetcher{err: errors.New("gamma down")},
		ScraperOpts{Notifier: n}, testLogger())

	if _, err := s.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "gamma down") {
		t.Fatalf("Run() error = %v", err)
	}
	s.runOnce(context.Background())
	if len(n.events) != 1 || n.events[0] != "scrape_failed" {
		t.Errorf("events = %v", n.events)
	}
}

type recordingBatch struct {
	batches [][]domain.PriceUpdate
	fired   int
}

func (r *recordingBatch) HandleBatch(_ context.Context, updates []domain.PriceUpdate) (int, error) {
	r.batches = append(r.batches, updates)
	return r.fired, nil
}

func TestAlertEvaluatorCoalescesUpdates(t *testing.T) {
	h := &recordingBatch{fired: 2}
	e := NewAlertEvaluator(nil, h, time.Minute, testLogger())
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	payload := func(updates ...domain.PriceUpdate) []byte {
		b, _ := json.Marshal(domain.MarketsUpdated{Count: len(updates), Updates: updates, At: t0})
		return b
	}
	if err := e.Enqueue(payload(
		domain.PriceUpdate{MarketID: "m2", Price: domain.MarketPrice{Price: 0.8}, At: t0},
		domain.PriceUpdate{MarketID: "m1", Price: domain.MarketPrice{Price: 0.5}, At: t0},
		domain.PriceUpdate{Price: domain.MarketPrice{Price: 0.1}, At: t0},
	)); err != nil {
		t.Fatal(err)
	}
	// Newer update replaces, stale one is ignored.
	_ = e.Enqueue(payload(domain.PriceUpdate{MarketID: "m1", Price: domain.MarketPrice{Price: 0.6}, At: t0.Add(time.Minute)}))
	_ = e.Enqueue(payload(domain.PriceUpdate{MarketID: "m2", Price: domain.MarketPrice{Price: 0.1}, At: t0.Add(-time.Minute)}))

	if err := e.Enqueue([]byte("{not json")); err == nil {
		t.Error("malformed payload accepted")
	}

	fired, err := e.Flush(context.Background())
	if err != nil || fired != 2 {
		t.Fatalf("Flush() = %d, %v", fired, err)
	}
	if len(h.batches) != 1 {
		t.Fatalf("batches = %d", len(h.batches))
	}
	got := h.batches[0]
	if len(got) != 2 || got[0].MarketID != "m1" || got[0].Price.Price != 0.6 || got[1].Price.Price != 0.8 {
		t.Errorf("batch = %+v", got)
	}

	if fired, _ := e.Flush(context.Background()); fired != 0 || len(h.batches) != 1 {
		t.Error("empty flush reached the handler")
	}
}

type stubHistory struct {
	n         int64
	retention time.Duration
	maxAge    time.Duration
	pruneErr  error
}

func (s *stubHistory) Archive(_ context.Context, retention time.Duration, _ time.Time) (int64, error) {
	s.retention = retention
	return s.n, nil
}

func (s *stubHistory) PruneExports(_ context.Context, maxAge time.Duration, _ time.Time) (int, error) {
	s.maxAge = maxAge
	return 0, s.pruneErr
}

func TestArchiverRun(t *testing.T) {
	h := &stubHistory{n: 4}
	n := &recordingNotifier{}
	a := NewArchiver(h, 30, 7, n, testLogger())

	got, err := a.Run(context.Background())
	if err != nil || got != 4 {
		t.Fatalf("Run() = %d, %v", got, err)
	}
	if h.retention != 30*24*time.Hour || h.maxAge != 7*24*time.Hour {
		t.Errorf("retention = %v, export max age = %v", h.retention, h.maxAge)
	}
	if len(n.events) != 1 || n.events[0] != "archive" {
		t.Errorf("events = %v", n.events)
	}

	h.n = 0
	_, _ = a.Run(context.Background())
	if len(n.events) != 1 {
		t.Error("empty archive run notified")
	}

	// A failed export prune does not fail the run.
	h.n, h.pruneErr = 2, errors.New("s3 down")
	if got, err := a.Run(context.Background()); err != nil || got != 2 {
		t.Errorf("Run() with prune failure = %d, %v", got, err)
	}
}

func TestNextCronTime(t *testing.T) {
	base := time.Date(2026, 3, 4, 10, 17, 30, 0, time.UTC) // Wednesday
	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 3 * * *", time.Date(2026, 3, 5, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)},
		{"0 9-17 * * 1-5", time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC)},
		{"0 0 1 * *", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"30 10,12 * * *", time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)},
		{"0 12 * * 0", time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := nextCronTime(tt.expr, base)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("next = %v, want %v", got, tt.want)
			}
		})
	}

	for _, bad := range []string{"* * * *", "61 * * * *", "x * * * *", "*/0 * * * *", "5-1 * * * *"} {
		if _, err := parseCron(bad); err == nil {
			t.Errorf("parseCron(%q) accepted", bad)
		}
	}
}

func TestOrchestratorTrigger(t *testing.T) {
	scraper := NewMarketScraper(&countingSyncer{}, &pagedFetcher{}, ScraperOpts{}, testLogger())
	h := &recordingBatch{}
	o := NewOrchestrator(scraper, OrchestratorOpts{
		AlertEvaluator: NewAlertEvaluator(nil, h, time.Minute, testLogger()),
		ScrapeInterval: time.Minute,
	}, testLogger())
	ctx := context.Background()

	if err := o.Trigger(ctx, JobScrape); err != nil {
		t.Fatal(err)
	}
	if err := o.Trigger(ctx, JobScrape); err != nil {
		t.Fatal("second pending trigger should be absorbed")
	}
	if len(o.scrapeTrigger) != 1 {
		t.Errorf("queued scrape triggers = %d", len(o.scrapeTrigger))
	}
	if err := o.Trigger(ctx, JobArchive); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("archive trigger without archiver = %v", err)
	}
	if err := o.Trigger(ctx, "bogus"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("unknown job = %v", err)
	}
	if err := o.Trigger(ctx, JobAlerts); err != nil {
		t.Fatal(err)
	}
	if _, ok := o.LastRuns()[JobAlerts]; !ok {
		t.Error("alerts run not recorded")
	}

	if _, err := scraper.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := o.LastRuns()[JobScrape]; !ok {
		t.Error("scrape run not recorded through OnSync")
	}
}

type fakeSource struct {
	mu         sync.Mutex
	handler    polymarket.PriceHandler
	subscribed []string
	connected  chan struct{}
}

func (f *fakeSource) Connect(context.Context) error {
	close(f.connected)
	return nil
}

func (f *fakeSource) Subscribe(ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, ids...)
	return nil
}

func (f *fakeSource) OnPrice(h polymarket.PriceHandler) { f.handler = h }
func (f *fakeSource) Close() error                      { return nil }

type watchIDs []string

func (w watchIDs) ActiveMarketIDs(context.Context) ([]string, error) { return w, nil }

type recordingUpdates struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingUpdates) HandleUpdate(_ context.Context, u domain.PriceUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, u.MarketID)
	return nil
}

func TestPriceFeed(t *testing.T) {
	src := &fakeSource{connected: make(chan struct{})}
	upd := &recordingUpdates{}
	f := NewPriceFeed(src, upd, watchIDs{"m2"}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	f.Track(ctx, []string{"m1"}) // queued until connected

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	<-src.connected

	deadline := time.After(2 * time.Second)
	for {
		src.mu.Lock()
		n := len(src.subscribed)
		src.mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("subscribed = %v", src.subscribed)
		case <-time.After(5 * time.Millisecond):
		}
	}

	src.handler(domain.PriceUpdate{MarketID: "m1"})
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v", err)
	}

	src.mu.Lock()
	got := strings.Join(src.subscribed, ",")
	src.mu.Unlock()
	if got != "m1,m2" {
		t.Errorf("subscribed = %q", got)
	}
	if len(upd.ids) != 1 || upd.ids[0] != "m1" {
		t.Errorf("updates = %v", upd.ids)
	}
}
