package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polybets/polybet/internal/domain"
)

// ExportStore reads back and removes written exports and issues temporary
// download links for them.
type ExportStore interface {
	domain.BlobReader
	domain.BlobDeleter
	PresignGet(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// ExportFile is a stored export of the caller's history.
type ExportFile struct {
	ID        string    `json:"id"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	URL       string    `json:"url,omitempty"`
}

// HistoryPage is one listing of resolved bookmarks.
type HistoryPage struct {
	History []domain.HistoryEntry `json:"history"`
	Total   int                   `json:"total"`
}

// Export describes a written history export.
type Export struct {
	Path  string `json:"path"`
	URL   string `json:"url,omitempty"`
	Total int    `json:"total"`
}

const exportLinkTTL = 15 * time.Minute

// HistoryService records and lists resolved bookmarks.
type HistoryService struct {
	history  domain.HistoryStore
	archiver domain.Archiver
	exports  ExportStore
	logger   *slog.Logger
}

// NewHistoryService creates a HistoryService. archiver and exports may be
// nil, in which case exports are unavailable.
func NewHistoryService(
	history domain.HistoryStore,
	archiver domain.Archiver,
	exports ExportStore,
	logger *slog.Logger,
) *HistoryService {
	return &HistoryService{
		history:  history,
		archiver: archiver,
		exports:  exports,
		logger:   logger,
	}
}

// ParseTimeframe maps a query value to a Timeframe. Empty means all.
func ParseTimeframe(s string) (domain.Timeframe, error) {
	switch tf := domain.Timeframe(s); tf {
	case "":
		return domain.TimeframeAll, nil
	case domain.Timeframe24h, domain.Timeframe7d, domain.Timeframe30d, domain.TimeframeAll:
		return tf, nil
	default:
		return "", fmt.Errorf("history_service: timeframe %q: %w", s, domain.ErrInvalidInput)
	}
}

// Record writes the history entry of a closed bookmark.
func (s *HistoryService) Record(ctx context.Context, b domain.Bookmark, finalPrice *float64, closedAt time.Time) error {
	closed := closedAt.UTC()
	e := domain.HistoryEntry{
		ID:         uuid.NewString(),
		UserID:     b.UserID,
		BookmarkID: b.ID,
		MarketID:   b.MarketID,
		Title:      b.Title,
		Category:   b.Category,
		EventSlug:  b.EventSlug,
		Outcome:    b.EntryOutcome,
		EntryPrice: b.EntryPrice,
		FinalPrice: finalPrice,
		AppearedAt: b.CreatedAt,
		ClosedAt:   &closed,
		ResolvedAt: closed,
	}
	if err := s.history.Insert(ctx, e); err != nil {
		return fmt.Errorf("history_service: insert: %w", err)
	}
	return nil
}

// List returns the user's history within the timeframe, newest first.
func (s *HistoryService) List(ctx context.Context, userID string, tf domain.Timeframe, now time.Time) (HistoryPage, error) {
	opts := domain.ListOpts{Since: tf.Since(now)}
	entries, err := s.history.ListByUser(ctx, userID, opts)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("history_service: list: %w", err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return HistoryPage{History: entries, Total: len(entries)}, nil
}

// Export writes the user's history within the timeframe to object storage
// and returns where it went.
func (s *HistoryService) Export(ctx context.Context, userID string, tf domain.Timeframe, now time.Time) (Export, error) {
	if s.archiver == nil {
		return Export{}, fmt.Errorf("history_service: export storage not configured: %w", domain.ErrNotFound)
	}

	page, err := s.List(ctx, userID, tf, now)
	if err != nil {
		return Export{}, err
	}

	path, err := s.archiver.ExportUserHistory(ctx, userID, page.History)
	if err != nil {
		return Export{}, fmt.Errorf("history_service: export: %w", err)
	}
	out := Export{Path: path, Total: page.Total}

	if s.exports != nil {
		url, err := s.exports.PresignGet(ctx, path, exportLinkTTL)
		if err != nil {
			s.logger.WarnContext(ctx, "history_service: presign failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		} else {
			out.URL = url
		}
	}

	s.logger.InfoContext(ctx, "history_service: exported",
		slog.String("user_id", userID),
		slog.String("path", path),
		slog.Int("entries", page.Total),
	)
	return out, nil
}

// Archive moves history resolved more than retention ago to cold storage.
func (s *HistoryService) Archive(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	if s.archiver == nil {
		return 0, nil
	}
	n, err := s.archiver.ArchiveHistory(ctx, now.Add(-retention))
	if err != nil {
		return n, fmt.Errorf("history_service: archive: %w", err)
	}
	return n, nil
}

// ListExports returns the user's stored exports, newest first, each with a
// fresh download link.
func (s *HistoryService) ListExports(ctx context.Context, userID string) ([]ExportFile, error) {
	if s.exports == nil {
		return nil, fmt.Errorf("history_service: export storage not configured: %w", domain.ErrNotFound)
	}
	blobs, err := s.exports.List(ctx, domain.ExportPrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("history_service: list exports: %w", err)
	}

	files := make([]ExportFile, 0, len(blobs))
	for _, b := range blobs {
		id, ok := exportID(b.Path)
		if !ok {
			continue
		}
		f := ExportFile{ID: id, Size: b.Size, CreatedAt: b.LastModified}
		if url, err := s.exports.PresignGet(ctx, b.Path, exportLinkTTL); err == nil {
			f.URL = url
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID > files[j].ID })
	return files, nil
}

// OpenExport streams one of the user's exports. The caller closes the
// reader.
func (s *HistoryService) OpenExport(ctx context.Context, userID, id string) (io.ReadCloser, error) {
	if s.exports == nil {
		return nil, fmt.Errorf("history_service: export storage not configured: %w", domain.ErrNotFound)
	}
	ms, err := strconv.ParseInt(id, 10, 64)
	if err != nil || ms <= 0 {
		return nil, fmt.Errorf("history_service: %w: bad export id %q", domain.ErrInvalidInput, id)
	}
	path := domain.ExportPath(userID, time.UnixMilli(ms))

	ok, err := s.exports.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("history_service: stat export: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("history_service: export %s: %w", id, domain.ErrNotFound)
	}
	rc, err := s.exports.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("history_service: open export: %w", err)
	}
	return rc, nil
}

// PruneExports deletes exports of every user written more than maxAge ago.
func (s *HistoryService) PruneExports(ctx context.Context, maxAge time.Duration, now time.Time) (int, error) {
	if s.exports == nil || maxAge <= 0 {
		return 0, nil
	}
	blobs, err := s.exports.List(ctx, domain.ExportRoot)
	if err != nil {
		return 0, fmt.Errorf("history_service: list exports: %w", err)
	}

	cutoff := now.Add(-maxAge)
	deleted := 0
	for _, b := range blobs {
		if !b.LastModified.Before(cutoff) {
			continue
		}
		if err := s.exports.Delete(ctx, b.Path); err != nil {
			return deleted, fmt.Errorf("history_service: delete export %s: %w", b.Path, err)
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "history_service: pruned exports",
			slog.Int("deleted", deleted),
			slog.Time("cutoff", cutoff),
		)
	}
	return deleted, nil
}

// exportID extracts the millisecond id from an export key.
func exportID(path string) (string, bool) {
	name := path[strings.LastIndex(path, "/")+1:]
	id, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return "", false
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return "", false
	}
	return id, true
}
