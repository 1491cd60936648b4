package domain

import "time"

// AlertDirection tells whether an alert fired on a gain or a loss.
type AlertDirection string

const (
	AlertDirectionProfit AlertDirection = "profit"
	AlertDirectionLoss   AlertDirection = "loss"
)

// Alert is a per-user price alert on a bookmarked market.
type Alert struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	MarketID           string     `json:"marketId"`
	Title              string     `json:"title"`
	Category           string     `json:"category"`
	Enabled            bool       `json:"enabled"`
	ProfitThresholdPct *float64   `json:"profitThresholdPct"`
	LossThresholdPct   *float64   `json:"lossThresholdPct"`
	TriggerOnce        bool       `json:"triggerOnce"`
	CooldownMinutes    int        `json:"cooldownMinutes"`
	LastTriggeredAt    *time.Time `json:"lastTriggeredAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// InCooldown reports whether the alert fired less than CooldownMinutes ago.
func (a Alert) InCooldown(now time.Time) bool {
	if a.LastTriggeredAt == nil || a.CooldownMinutes <= 0 {
		return false
	}
	return now.Sub(*a.LastTriggeredAt) < time.Duration(a.CooldownMinutes)*time.Minute
}

// AlertEvent is emitted when an alert threshold is crossed.
type AlertEvent struct {
	AlertID    string         `json:"alertId"`
	UserID     string         `json:"userId"`
	MarketID   string         `json:"marketId"`
	Title      string         `json:"title"`
	Category   string         `json:"category"`
	Direction  AlertDirection `json:"direction"`
	EntryPrice float64        `json:"entryPrice"`
	Price      float64        `json:"price"`
	PnLPct     float64        `json:"pnlPct"`
	FiredAt    time.Time      `json:"firedAt"`
}
