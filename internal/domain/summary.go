package domain

import "time"

// MarketSummary is the listing view of a classified market.
type MarketSummary struct {
	ID             string       `json:"id"`
	ConditionID    string       `json:"conditionId"`
	Question       string       `json:"question"`
	Slug           string       `json:"slug"`
	EventSlug      string       `json:"eventSlug"`
	Category       string       `json:"category"`
	Rule           string       `json:"rule"`
	Price          *MarketPrice `json:"price"`
	Volume         *float64     `json:"volume"`
	ClobTokenIDs   []string     `json:"clobTokenIds"`
	EndDate        *time.Time   `json:"endDate"`
	GameStartTime  *time.Time   `json:"gameStartTime,omitempty"`
	UpperBoundDate *time.Time   `json:"upperBoundDate,omitempty"`
	ClosedTime     *time.Time   `json:"closedTime"`
	URL            string       `json:"url"`
	Sports         *SportsInfo  `json:"sports,omitempty"`
}

// Summarize builds the listing view of cm. url is the market page link.
func Summarize(cm ClassifiedMarket, url string) MarketSummary {
	m := cm.Market
	s := MarketSummary{
		ID:             m.ID,
		ConditionID:    m.ConditionID,
		Question:       m.DisplayTitle(),
		Slug:           m.Slug,
		EventSlug:      m.EventSlug(),
		Category:       cm.Category,
		Rule:           cm.Rule,
		Volume:         m.Volume,
		ClobTokenIDs:   m.ClobTokenIDs,
		EndDate:        m.EndDate,
		GameStartTime:  m.GameStartTime,
		UpperBoundDate: m.UpperBoundDate,
		ClosedTime:     m.ClosedTime,
		URL:            url,
		Sports:         cm.Sports,
	}
	if p, ok := m.LeadingPrice(); ok {
		s.Price = &p
	}
	return s
}

// MarketWindows groups listed markets by how soon they settle.
type MarketWindows struct {
	Window24 []MarketSummary `json:"window24"`
	Window48 []MarketSummary `json:"window48"`
}
