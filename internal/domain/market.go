package domain

import "time"

// Category labels produced by the classifier. A market may also carry a
// free-text fallback label taken from its own category, tags or slug.
const (
	CategoryCrypto        = "Crypto"
	CategoryTech          = "Tech"
	CategoryPolitics      = "Politics"
	CategorySports        = "Sports"
	CategoryEconomy       = "Economy"
	CategoryUncategorized = "Uncategorized"
)

// Tag is a label attached to a market or to its parent event.
type Tag struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	Slug  string `json:"slug,omitempty"`
}

// Event is the parent grouping of one or more markets.
type Event struct {
	ID    string `json:"id,omitempty"`
	Slug  string `json:"slug"`
	Title string `json:"title,omitempty"`
	Tags  []Tag  `json:"tags,omitempty"`
}

// RawMarket is a market record as supplied by the ingestion layer. None of
// the text fields are guaranteed to be present.
type RawMarket struct {
	ID             string
	ConditionID    string
	Question       string
	Title          string
	Slug           string
	Category       string
	Tags           []Tag
	Events         []Event
	Outcomes       []string
	OutcomePrices  []float64
	ClobTokenIDs   []string
	Volume         *float64
	Active         bool
	Closed         bool
	EndDate        *time.Time
	GameStartTime  *time.Time
	UpperBoundDate *time.Time
	ClosedTime     *time.Time
	UpdatedAt      time.Time
}

// TagLabels returns the non-empty tag labels of the market followed by those
// of its events, in order.
func (m RawMarket) TagLabels() []string {
	var labels []string
	for _, t := range m.Tags {
		if t.Label != "" {
			labels = append(labels, t.Label)
		}
	}
	for _, e := range m.Events {
		for _, t := range e.Tags {
			if t.Label != "" {
				labels = append(labels, t.Label)
			}
		}
	}
	return labels
}

// DisplayTitle returns the first non-empty of question, title and slug.
func (m RawMarket) DisplayTitle() string {
	switch {
	case m.Question != "":
		return m.Question
	case m.Title != "":
		return m.Title
	default:
		return m.Slug
	}
}

// EventSlug returns the slug of the first parent event, if any.
func (m RawMarket) EventSlug() string {
	for _, e := range m.Events {
		if e.Slug != "" {
			return e.Slug
		}
	}
	return ""
}

// EffectiveDate is the date a market is expected to settle: the upper bound
// date when known, otherwise the game start time, otherwise the end date.
func (m RawMarket) EffectiveDate() *time.Time {
	switch {
	case m.UpperBoundDate != nil:
		return m.UpperBoundDate
	case m.GameStartTime != nil:
		return m.GameStartTime
	default:
		return m.EndDate
	}
}

// LeadingPrice returns the outcome with the highest price. ok is false when
// the market carries no prices.
func (m RawMarket) LeadingPrice() (MarketPrice, bool) {
	if len(m.OutcomePrices) == 0 {
		return MarketPrice{}, false
	}
	idx := 0
	for i, p := range m.OutcomePrices {
		if p > m.OutcomePrices[idx] {
			idx = i
		}
	}
	outcome := "Yes"
	if idx < len(m.Outcomes) && m.Outcomes[idx] != "" {
		outcome = m.Outcomes[idx]
	} else if idx > 0 {
		outcome = "No"
	}
	return MarketPrice{Outcome: outcome, Price: m.OutcomePrices[idx]}, true
}

// MarketPrice is the leading outcome of a market and its price.
type MarketPrice struct {
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
}

// ClassifiedMarket is a raw market enriched with its resolved category and,
// for sports markets, structured fixture data.
type ClassifiedMarket struct {
	Market   RawMarket
	Category string
	Rule     string
	Sports   *SportsInfo
}
