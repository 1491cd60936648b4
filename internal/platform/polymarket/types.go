package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/polybets/polybet/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexString accepts a JSON string or number. Gamma sends tag and event IDs
// either way.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number or a numeric string. valid is false for
// null or unparseable input.
type flexFloat struct {
	value float64
	valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat{value: n, valid: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		*f = flexFloat{value: v, valid: true}
	}
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APITag is a tag attached to a market or event.
type APITag struct {
	ID    flexString `json:"id"`
	Label string     `json:"label"`
	Slug  string     `json:"slug"`
}

// APIEvent represents an event as returned by the Polymarket Gamma API.
// An event groups one or more related markets.
type APIEvent struct {
	ID       flexString  `json:"id"`
	Title    string      `json:"title"`
	Slug     string      `json:"slug"`
	Category string      `json:"category"`
	Active   flexBool    `json:"active"`
	Closed   bool        `json:"closed"`
	Tags     []APITag    `json:"tags"`
	Markets  []APIMarket `json:"markets"`
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID             flexString `json:"id"`
	Question       string     `json:"question"`
	Title          string     `json:"title"`
	ConditionID    string     `json:"conditionId"`
	Slug           string     `json:"slug"`
	Category       string     `json:"category"`
	Active         flexBool   `json:"active"`
	Closed         flexBool   `json:"closed"`
	Outcomes       string     `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices  string     `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	ClobTokenIDs   string     `json:"clobTokenIds"`  // JSON-encoded: e.g. "[\"123\",\"456\"]"
	Volume         flexFloat  `json:"volume"`
	VolumeNum      flexFloat  `json:"volumeNum"`
	EndDate        string     `json:"endDate"`
	GameStartTime  string     `json:"gameStartTime"`
	UpperBoundDate string     `json:"upperBoundDate"`
	ClosedTime     string     `json:"closedTime"`
	UpdatedAt      string     `json:"updatedAt"`
	Tags           []APITag   `json:"tags"`
	Events         []APIEvent `json:"events"`
}

// --------------------------------------------------------------------------
// Conversion helpers: API types -> domain types
// --------------------------------------------------------------------------

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime accepts the date formats Gamma mixes across fields. It returns
// nil for empty or unrecognised input.
func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// decodeStringList decodes a JSON-encoded array of strings.
func decodeStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// decodePriceList decodes a JSON-encoded array of prices given as strings or
// numbers. Unparseable entries end the list.
func decodePriceList(s string) []float64 {
	if s == "" {
		return nil
	}
	var raw []flexFloat
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, r := range raw {
		if !r.valid {
			break
		}
		out = append(out, r.value)
	}
	return out
}

func toDomainTags(in []APITag) []domain.Tag {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Tag, 0, len(in))
	for _, t := range in {
		out = append(out, domain.Tag{ID: string(t.ID), Label: t.Label, Slug: t.Slug})
	}
	return out
}

// ToRawMarket converts a Gamma APIMarket to a domain.RawMarket. Text fields
// are passed through untouched so the classifier sees what Gamma sent.
func (m *APIMarket) ToRawMarket() domain.RawMarket {
	rm := domain.RawMarket{
		ID:             string(m.ID),
		ConditionID:    m.ConditionID,
		Question:       m.Question,
		Title:          m.Title,
		Slug:           m.Slug,
		Category:       m.Category,
		Tags:           toDomainTags(m.Tags),
		Outcomes:       decodeStringList(m.Outcomes),
		OutcomePrices:  decodePriceList(m.OutcomePrices),
		ClobTokenIDs:   decodeStringList(m.ClobTokenIDs),
		Active:         bool(m.Active),
		Closed:         bool(m.Closed),
		EndDate:        parseTime(m.EndDate),
		GameStartTime:  parseTime(m.GameStartTime),
		UpperBoundDate: parseTime(m.UpperBoundDate),
		ClosedTime:     parseTime(m.ClosedTime),
	}

	switch {
	case m.VolumeNum.valid:
		v := m.VolumeNum.value
		rm.Volume = &v
	case m.Volume.valid:
		v := m.Volume.value
		rm.Volume = &v
	}

	if t := parseTime(m.UpdatedAt); t != nil {
		rm.UpdatedAt = *t
	}

	for _, e := range m.Events {
		rm.Events = append(rm.Events, domain.Event{
			ID:    string(e.ID),
			Slug:  e.Slug,
			Title: e.Title,
			Tags:  toDomainTags(e.Tags),
		})
	}

	return rm
}

// RawMarkets flattens an event into its markets. The event itself is
// attached as the parent of each market so event tags reach the classifier.
func (e *APIEvent) RawMarkets() []domain.RawMarket {
	parent := domain.Event{
		ID:    string(e.ID),
		Slug:  e.Slug,
		Title: e.Title,
		Tags:  toDomainTags(e.Tags),
	}
	out := make([]domain.RawMarket, 0, len(e.Markets))
	for i := range e.Markets {
		rm := e.Markets[i].ToRawMarket()
		if len(rm.Events) == 0 {
			rm.Events = []domain.Event{parent}
		}
		if rm.Category == "" {
			rm.Category = e.Category
		}
		out = append(out, rm)
	}
	return out
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIBookLevel is a [price, size] entry of the CLOB book endpoint. Prices
// arrive as strings.
type APIBookLevel struct {
	Price flexFloat `json:"price"`
	Size  flexFloat `json:"size"`
}

// APIBook is the response of GET /book.
type APIBook struct {
	Market  string         `json:"market"`
	AssetID string         `json:"asset_id"`
	Bids    []APIBookLevel `json:"bids"`
	Asks    []APIBookLevel `json:"asks"`
}

func toDomainLevels(in []APIBookLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, l := range in {
		if !l.Price.valid {
			continue
		}
		out = append(out, domain.PriceLevel{Price: l.Price.value, Size: l.Size.value})
	}
	return out
}
