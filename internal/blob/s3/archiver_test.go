package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/polybets/polybet/internal/domain"
)

type memWriter struct {
	objects   map[string][]byte
	multipart int
	err       error
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.err != nil {
		return w.err
	}
	b, _ := io.ReadAll(data)
	if w.objects == nil {
		w.objects = map[string][]byte{}
	}
	w.objects[path] = b
	return nil
}

func (w *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	w.multipart++
	return w.Put(ctx, path, data, "")
}

type memHistory struct {
	entries   []domain.HistoryEntry
	deletedAt *time.Time
}

func (h *memHistory) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	for _, e := range h.entries {
		if e.ResolvedAt.Before(before) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (h *memHistory) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	h.deletedAt = &before
	var n int64
	kept := h.entries[:0]
	for _, e := range h.entries {
		if e.ResolvedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	h.entries = kept
	return n, nil
}

func TestArchiveHistory(t *testing.T) {
	cutoff := time.Date(2026, 1, 31, 3, 0, 0, 0, time.UTC)
	store := &memHistory{entries: []domain.HistoryEntry{
		{ID: "a", ResolvedAt: cutoff.Add(-48 * time.Hour)},
		{ID: "b", ResolvedAt: cutoff.Add(-time.Hour)},
		{ID: "c", ResolvedAt: cutoff.Add(time.Hour)},
	}}
	w := &memWriter{}

	n, err := NewArchiver(w, store).ArchiveHistory(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ArchiveHistory() error = %v", err)
	}
	if n != 2 {
		t.Errorf("archived = %d, want 2", n)
	}

	body, ok := w.objects["archive/history/2026-01-31T030000Z.jsonl"]
	if !ok {
		t.Fatalf("archive object missing, have %v", w.objects)
	}
	if lines := strings.Count(string(body), "\n"); lines != 2 {
		t.Errorf("jsonl lines = %d, want 2", lines)
	}
	if len(store.entries) != 1 || store.entries[0].ID != "c" {
		t.Errorf("remaining entries = %+v", store.entries)
	}
}

func TestArchiveHistoryKeepsRowsOnUploadFailure(t *testing.T) {
	cutoff := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	store := &memHistory{entries: []domain.HistoryEntry{{ID: "a", ResolvedAt: cutoff.Add(-time.Hour)}}}
	w := &memWriter{err: errors.New("bucket gone")}

	if _, err := NewArchiver(w, store).ArchiveHistory(context.Background(), cutoff); err == nil {
		t.Fatal("ArchiveHistory() error = nil, want upload error")
	}
	if store.deletedAt != nil || len(store.entries) != 1 {
		t.Error("rows were pruned although the upload failed")
	}
}

func TestArchiveHistoryNothingToDo(t *testing.T) {
	w := &memWriter{}
	n, err := NewArchiver(w, &memHistory{}).ArchiveHistory(context.Background(), time.Now())
	if err != nil || n != 0 || len(w.objects) != 0 {
		t.Errorf("ArchiveHistory() = %d, %v; objects %v", n, err, w.objects)
	}
}

func TestExportUserHistory(t *testing.T) {
	final := 1.0
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	w := &memWriter{}
	a := NewArchiver(w, &memHistory{})
	a.now = func() time.Time { return at }

	path, err := a.ExportUserHistory(context.Background(), "u1", []domain.HistoryEntry{
		{ID: "h1", UserID: "u1", EntryPrice: 0.8, FinalPrice: &final},
		{ID: "h2", UserID: "u1", EntryPrice: 0.9},
	})
	if err != nil {
		t.Fatalf("ExportUserHistory() error = %v", err)
	}
	if want := "history/u1/2026/02/03/1770091506000.json"; path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	var doc struct {
		UserID  string `json:"userId"`
		Total   int    `json:"total"`
		History []struct {
			ID     string   `json:"id"`
			PnL    *float64 `json:"pnl"`
			PnLPct *float64 `json:"pnlPct"`
		} `json:"history"`
	}
	if err := json.NewDecoder(bytes.NewReader(w.objects[path])).Decode(&doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if doc.UserID != "u1" || doc.Total != 2 || len(doc.History) != 2 {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.History[0].PnLPct == nil || *doc.History[0].PnLPct < 24.99 || *doc.History[0].PnLPct > 25.01 {
		t.Errorf("pnlPct = %v, want 25", doc.History[0].PnLPct)
	}
	if doc.History[1].PnL != nil {
		t.Errorf("open entry pnl = %v, want null", *doc.History[1].PnL)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		useSSL bool
		want   string
	}{
		{"https://s3.example.com", false, "https://s3.example.com"},
		{"minio:9000", false, "http://minio:9000"},
		{"r2.example.com", true, "https://r2.example.com"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.in, tt.useSSL); got != tt.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tt.in, tt.useSSL, got, tt.want)
		}
	}
}
