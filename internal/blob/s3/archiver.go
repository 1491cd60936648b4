package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/polybets/polybet/internal/domain"
)

// HistoryArchiveStore is the slice of domain.HistoryStore the archiver
// needs.
type HistoryArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.HistoryEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

const (
	// maxArchiveRows caps one archive run; the remainder goes next run.
	maxArchiveRows = 50000
	// multipartThreshold switches uploads to the multipart manager.
	multipartThreshold = 8 << 20
)

// ArchiveImpl implements domain.Archiver. History older than a cutoff is
// written to S3 as JSONL and then pruned from the database; user exports
// are written as a single JSON document.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	history HistoryArchiveStore
	now     func() time.Time
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, history HistoryArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		history: history,
		now:     time.Now,
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveHistory uploads entries resolved before the cutoff to
// archive/history/<cutoff>.jsonl and deletes them once the upload
// succeeded. It returns the number of archived entries.
func (a *ArchiveImpl) ArchiveHistory(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.history.ListBefore(ctx, before, maxArchiveRows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive history query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	cutoff := before
	if len(entries) == maxArchiveRows {
		// Only rows strictly older than the last listed one are known to be
		// complete, so tighten the cutoff and drop the ties.
		cutoff = entries[len(entries)-1].ResolvedAt
		entries = entriesBefore(entries, cutoff)
		if len(entries) == 0 {
			return 0, nil
		}
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive history marshal: %w", err)
	}

	path := archivePath("history", cutoff)
	if len(buf) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), multipartThreshold)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive history upload: %w", err)
	}

	if _, err := a.history.DeleteBefore(ctx, cutoff); err != nil {
		return int64(len(entries)), fmt.Errorf("s3blob: archive history prune: %w", err)
	}
	return int64(len(entries)), nil
}

// exportRow is a history entry with its realised move from entry to final
// price.
type exportRow struct {
	domain.HistoryEntry
	PnL    *float64 `json:"pnl"`
	PnLPct *float64 `json:"pnlPct"`
}

type exportDocument struct {
	UserID     string      `json:"userId"`
	ExportedAt time.Time   `json:"exportedAt"`
	Total      int         `json:"total"`
	History    []exportRow `json:"history"`
}

// ExportUserHistory writes the given entries as one JSON document under
// history/<user>/<yyyy>/<mm>/<dd>/<unix-ms>.json and returns the path.
func (a *ArchiveImpl) ExportUserHistory(ctx context.Context, userID string, entries []domain.HistoryEntry) (string, error) {
	now := a.now().UTC()
	doc := exportDocument{
		UserID:     userID,
		ExportedAt: now,
		Total:      len(entries),
		History:    make([]exportRow, 0, len(entries)),
	}
	for _, e := range entries {
		doc.History = append(doc.History, toExportRow(e))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: export history marshal: %w", err)
	}

	path := domain.ExportPath(userID, now)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: export history upload: %w", err)
	}
	return path, nil
}

func toExportRow(e domain.HistoryEntry) exportRow {
	row := exportRow{HistoryEntry: e}
	if e.FinalPrice != nil {
		pnl := *e.FinalPrice - e.EntryPrice
		row.PnL = &pnl
		if e.EntryPrice > 0 {
			pct := pnl / e.EntryPrice * 100
			row.PnLPct = &pct
		}
	}
	return row
}

func entriesBefore(entries []domain.HistoryEntry, cutoff time.Time) []domain.HistoryEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.ResolvedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// archivePath builds the key of an archive file named after its cutoff.
//
//	archive/history/2025-01-31T030000Z.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01-02T150405Z"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
