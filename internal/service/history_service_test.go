package service

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/polybets/polybet/internal/domain"
)

type stubArchiver struct {
	exported []domain.HistoryEntry
	before   time.Time
}

func (a *stubArchiver) ArchiveHistory(_ context.Context, before time.Time) (int64, error) {
	a.before = before
	return 3, nil
}

func (a *stubArchiver) ExportUserHistory(_ context.Context, userID string, entries []domain.HistoryEntry) (string, error) {
	a.exported = entries
	return "history/" + userID + "/export.json", nil
}

// memExports is an in-memory ExportStore.
type memExports struct {
	objects    map[string]domain.BlobInfo
	presignErr error
	deleted    []string
}

func newMemExports(infos ...domain.BlobInfo) *memExports {
	m := &memExports{objects: make(map[string]domain.BlobInfo)}
	for _, b := range infos {
		m.objects[b.Path] = b
	}
	return m
}

func (m *memExports) Get(_ context.Context, path string) (io.ReadCloser, error) {
	if _, ok := m.objects[path]; !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(`{"path":"` + path + `"}`)), nil
}

func (m *memExports) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for p, b := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memExports) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

func (m *memExports) Delete(_ context.Context, path string) error {
	delete(m.objects, path)
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *memExports) PresignGet(_ context.Context, path string, _ time.Duration) (string, error) {
	if m.presignErr != nil {
		return "", m.presignErr
	}
	return "https://s3.example/" + path + "?sig=1", nil
}

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.Timeframe
		wantErr bool
	}{
		{"", domain.TimeframeAll, false},
		{"all", domain.TimeframeAll, false},
		{"24h", domain.Timeframe24h, false},
		{"7d", domain.Timeframe7d, false},
		{"30d", domain.Timeframe30d, false},
		{"1y", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeframe(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseTimeframe(%q) = %q, %v", tt.in, got, err)
			}
			if tt.wantErr && !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func seededHistory(now time.Time) *memHistory {
	h := &memHistory{}
	for i, age := range []time.Duration{2 * time.Hour, 3 * 24 * time.Hour, 20 * 24 * time.Hour, 60 * 24 * time.Hour} {
		h.entries = append(h.entries, domain.HistoryEntry{
			ID:         string(rune('a' + i)),
			UserID:     "u1",
			EntryPrice: 0.8,
			ResolvedAt: now.Add(-age),
		})
	}
	h.entries = append(h.entries, domain.HistoryEntry{ID: "x", UserID: "u2", ResolvedAt: now})
	return h
}

func TestHistoryList(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	svc := NewHistoryService(seededHistory(now), nil, nil, discardLogger())

	tests := []struct {
		tf   domain.Timeframe
		want int
	}{
		{domain.Timeframe24h, 1},
		{domain.Timeframe7d, 2},
		{domain.Timeframe30d, 3},
		{domain.TimeframeAll, 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.tf), func(t *testing.T) {
			page, err := svc.List(ctx, "u1", tt.tf, now)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if page.Total != tt.want || len(page.History) != tt.want {
				t.Fatalf("List() total = %d, want %d", page.Total, tt.want)
			}
			for i := 1; i < len(page.History); i++ {
				if page.History[i].ResolvedAt.After(page.History[i-1].ResolvedAt) {
					t.Fatalf("history not newest first: %+v", page.History)
				}
			}
		})
	}

	empty, err := svc.List(ctx, "nobody", domain.TimeframeAll, now)
	if err != nil || empty.History == nil || empty.Total != 0 {
		t.Errorf("List(nobody) = %+v, %v", empty, err)
	}
}

func TestHistoryExport(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	if _, err := NewHistoryService(seededHistory(now), nil, nil, discardLogger()).
		Export(ctx, "u1", domain.TimeframeAll, now); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Export() without storage error = %v, want ErrNotFound", err)
	}

	arch := &stubArchiver{}
	svc := NewHistoryService(seededHistory(now), arch, newMemExports(), discardLogger())
	out, err := svc.Export(ctx, "u1", domain.Timeframe7d, now)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if out.Path != "history/u1/export.json" || out.Total != 2 || len(arch.exported) != 2 {
		t.Errorf("Export() = %+v (exported %d)", out, len(arch.exported))
	}
	if out.URL != "https://s3.example/history/u1/export.json?sig=1" {
		t.Errorf("URL = %q", out.URL)
	}

	// A failed presign still reports the written export.
	svc = NewHistoryService(seededHistory(now), arch, &memExports{presignErr: errors.New("boom")}, discardLogger())
	out, err = svc.Export(ctx, "u1", domain.TimeframeAll, now)
	if err != nil || out.URL != "" || out.Total != 4 {
		t.Errorf("Export() with presign failure = %+v, %v", out, err)
	}
}

func TestHistoryArchive(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	arch := &stubArchiver{}
	svc := NewHistoryService(&memHistory{}, arch, nil, discardLogger())

	n, err := svc.Archive(context.Background(), 90*24*time.Hour, now)
	if err != nil || n != 3 {
		t.Fatalf("Archive() = %d, %v", n, err)
	}
	if want := now.Add(-90 * 24 * time.Hour); !arch.before.Equal(want) {
		t.Errorf("cutoff = %v, want %v", arch.before, want)
	}
}

func TestHistoryExportFiles(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	older := now.Add(-10 * 24 * time.Hour)

	store := newMemExports(
		domain.BlobInfo{Path: domain.ExportPath("u1", older), Size: 10, LastModified: older},
		domain.BlobInfo{Path: domain.ExportPath("u1", now), Size: 20, LastModified: now},
		domain.BlobInfo{Path: "history/u1/notes.txt", LastModified: now},
		domain.BlobInfo{Path: domain.ExportPath("u2", older), Size: 5, LastModified: older},
	)
	svc := NewHistoryService(&memHistory{}, &stubArchiver{}, store, discardLogger())

	files, err := svc.ListExports(ctx, "u1")
	if err != nil {
		t.Fatalf("ListExports() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ListExports() = %+v, want 2 files", files)
	}
	if files[0].ID != "1770120000000" || files[0].Size != 20 || files[1].Size != 10 {
		t.Errorf("ListExports() not newest first: %+v", files)
	}
	if !strings.HasPrefix(files[0].URL, "https://s3.example/history/u1/") {
		t.Errorf("URL = %q", files[0].URL)
	}

	rc, err := svc.OpenExport(ctx, "u1", files[0].ID)
	if err != nil {
		t.Fatalf("OpenExport() error = %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if !strings.Contains(string(body), domain.ExportPath("u1", now)) {
		t.Errorf("OpenExport() body = %s", body)
	}

	tests := []struct {
		name, user, id string
		want           error
	}{
		{"other user", "u2", files[0].ID, domain.ErrNotFound},
		{"unknown id", "u1", "1", domain.ErrNotFound},
		{"bad id", "u1", "latest", domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.OpenExport(ctx, tt.user, tt.id); !errors.Is(err, tt.want) {
				t.Errorf("OpenExport() error = %v, want %v", err, tt.want)
			}
		})
	}

	n, err := svc.PruneExports(ctx, 7*24*time.Hour, now)
	if err != nil || n != 2 {
		t.Fatalf("PruneExports() = %d, %v, want 2", n, err)
	}
	if !slices.Contains(store.deleted, domain.ExportPath("u2", older)) {
		t.Errorf("deleted = %v, want other users' exports pruned too", store.deleted)
	}
	if files, _ := svc.ListExports(ctx, "u1"); len(files) != 1 {
		t.Errorf("after prune ListExports() = %+v", files)
	}

	if _, err := NewHistoryService(&memHistory{}, nil, nil, discardLogger()).ListExports(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ListExports() without storage error = %v", err)
	}
}
