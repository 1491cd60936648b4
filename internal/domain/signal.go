package domain

import "time"

// SignalBus channel names.
const (
	ChannelMarketsUpdated = "markets.updated"
	ChannelMarketPrices   = "markets.prices"
	ChannelAlertsPrefix   = "alerts."
	StreamAlerts          = "stream:alerts"
)

// AlertChannel returns the per-user alert channel.
func AlertChannel(userID string) string {
	return ChannelAlertsPrefix + userID
}

// PriceUpdate is a single market price observation published after a sync.
type PriceUpdate struct {
	MarketID string      `json:"marketId"`
	Price    MarketPrice `json:"price"`
	Closed   bool        `json:"closed"`
	Category string      `json:"category"`
	At       time.Time   `json:"at"`
}

// MarketsUpdated is the payload published on ChannelMarketsUpdated.
type MarketsUpdated struct {
	Count   int           `json:"count"`
	Updates []PriceUpdate `json:"updates"`
	At      time.Time     `json:"at"`
}
