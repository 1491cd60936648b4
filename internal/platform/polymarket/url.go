package polymarket

// MarketURL builds the public page URL of a market. Without an event slug it
// returns base; with a condition ID the outcome tab is preselected.
func MarketURL(base, eventSlug, conditionID string) string {
	if eventSlug == "" {
		return base
	}
	if conditionID != "" {
		return base + eventSlug + "?tid=" + conditionID
	}
	return base + eventSlug
}
