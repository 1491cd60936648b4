package service

import (
	"time"

	"github.com/polybets/polybet/internal/domain"
)

// WindowFilter holds the listing thresholds of the 24h and 48h windows.
type WindowFilter struct {
	MinPrice  float64
	MaxPrice  float64
	MinVolume float64
	// Relax returns the base-filtered list in both windows.
	Relax bool
}

// DefaultWindowFilter returns the standard listing thresholds.
func DefaultWindowFilter() WindowFilter {
	return WindowFilter{MinPrice: 0.75, MaxPrice: 0.95, MinVolume: 1000}
}

const day = 24 * time.Hour

// effectiveDate mirrors domain.RawMarket.EffectiveDate on a summary.
func effectiveDate(s domain.MarketSummary) *time.Time {
	switch {
	case s.UpperBoundDate != nil:
		return s.UpperBoundDate
	case s.GameStartTime != nil:
		return s.GameStartTime
	default:
		return s.EndDate
	}
}

// BaseFilter keeps markets whose leading price lies in [MinPrice, MaxPrice],
// whose volume (when known) reaches MinVolume, that did not close before
// now, and that have an effective date.
func BaseFilter(markets []domain.MarketSummary, f WindowFilter, now time.Time) []domain.MarketSummary {
	out := make([]domain.MarketSummary, 0, len(markets))
	for _, m := range markets {
		if m.Price == nil || m.Price.Price < f.MinPrice || m.Price.Price > f.MaxPrice {
			continue
		}
		if m.Volume != nil && *m.Volume < f.MinVolume {
			continue
		}
		if m.ClosedTime != nil && m.ClosedTime.Before(now) {
			continue
		}
		if effectiveDate(m) == nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// SplitWindows applies BaseFilter and then buckets markets by the distance
// of their effective date from now: 0 <= d <= 24h, and 24h < d <= 48h.
func SplitWindows(markets []domain.MarketSummary, f WindowFilter, now time.Time) domain.MarketWindows {
	base := BaseFilter(markets, f, now)
	if f.Relax {
		return domain.MarketWindows{Window24: base, Window48: base}
	}

	w := domain.MarketWindows{
		Window24: []domain.MarketSummary{},
		Window48: []domain.MarketSummary{},
	}
	for _, m := range base {
		d := effectiveDate(m).Sub(now)
		switch {
		case d < 0:
		case d <= day:
			w.Window24 = append(w.Window24, m)
		case d <= 2*day:
			w.Window48 = append(w.Window48, m)
		}
	}
	return w
}
