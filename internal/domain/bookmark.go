package domain

import "time"

// Bookmark is a user's saved market together with the price it was saved at.
type Bookmark struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	MarketID       string     `json:"marketId"`
	ConditionID    string     `json:"conditionId"`
	EventSlug      string     `json:"eventSlug"`
	Title          string     `json:"title"`
	Category       string     `json:"category"`
	EntryOutcome   string     `json:"entryOutcome"`
	EntryPrice     float64    `json:"entryPrice"`
	LastKnownPrice *float64   `json:"lastKnownPrice"`
	FinalPrice     *float64   `json:"finalPrice"`
	IsClosed       bool       `json:"isClosed"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	RemovedAt      *time.Time `json:"removedAt"`
}

// LatestPrice is the final price of a closed bookmark, otherwise the last
// observed price.
func (b Bookmark) LatestPrice() *float64 {
	if b.IsClosed && b.FinalPrice != nil {
		return b.FinalPrice
	}
	return b.LastKnownPrice
}

// PnLPct is the percentage change from the entry price to price. ok is false
// when the entry price is not positive.
func (b Bookmark) PnLPct(price float64) (float64, bool) {
	if b.EntryPrice <= 0 {
		return 0, false
	}
	return (price - b.EntryPrice) / b.EntryPrice * 100, true
}
