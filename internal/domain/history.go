package domain

import (
	"fmt"
	"time"
)

// HistoryEntry records a bookmarked market after it resolved.
type HistoryEntry struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	BookmarkID string     `json:"bookmarkId"`
	MarketID   string     `json:"marketId"`
	Title      string     `json:"title"`
	Category   string     `json:"category"`
	EventSlug  string     `json:"eventSlug"`
	Outcome    string     `json:"outcome"`
	EntryPrice float64    `json:"entryPrice"`
	FinalPrice *float64   `json:"finalPrice"`
	AppearedAt time.Time  `json:"appearedAt"`
	ClosedAt   *time.Time `json:"closedAt"`
	ResolvedAt time.Time  `json:"resolvedAt"`
}

// Timeframe bounds a history listing.
type Timeframe string

const (
	Timeframe24h Timeframe = "24h"
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
	TimeframeAll Timeframe = "all"
)

// Since returns the lower bound for the timeframe relative to now, or nil
// for TimeframeAll and unknown values.
func (t Timeframe) Since(now time.Time) *time.Time {
	var d time.Duration
	switch t {
	case Timeframe24h:
		d = 24 * time.Hour
	case Timeframe7d:
		d = 7 * 24 * time.Hour
	case Timeframe30d:
		d = 30 * 24 * time.Hour
	default:
		return nil
	}
	since := now.Add(-d)
	return &since
}

// ExportRoot is the object key prefix shared by every user's exports.
const ExportRoot = "history/"

// ExportPrefix is the object key prefix of a user's history exports.
func ExportPrefix(userID string) string {
	return ExportRoot + userID + "/"
}

// ExportPath builds the object key of a user export written at at. The
// file name is the export's Unix millisecond timestamp.
//
//	history/<user>/2025/01/31/1738292400000.json
func ExportPath(userID string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s%s/%d.json", ExportPrefix(userID), at.Format("2006/01/02"), at.UnixMilli())
}
