package domain

// PriceLevel is a single price level in an order book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// TopOfBook is the best bid and ask of a CLOB token. Fields are nil when the
// corresponding side is empty.
type TopOfBook struct {
	TokenID   string   `json:"tokenId"`
	BestBid   *float64 `json:"bestBid"`
	BestAsk   *float64 `json:"bestAsk"`
	SpreadBps *float64 `json:"spreadBps"`
}

// NewTopOfBook picks the highest bid and the lowest ask and derives the
// spread in basis points of the mid price.
func NewTopOfBook(tokenID string, bids, asks []PriceLevel) TopOfBook {
	tob := TopOfBook{TokenID: tokenID}
	for _, l := range bids {
		if tob.BestBid == nil || l.Price > *tob.BestBid {
			p := l.Price
			tob.BestBid = &p
		}
	}
	for _, l := range asks {
		if tob.BestAsk == nil || l.Price < *tob.BestAsk {
			p := l.Price
			tob.BestAsk = &p
		}
	}
	if tob.BestBid != nil && tob.BestAsk != nil {
		mid := (*tob.BestAsk + *tob.BestBid) / 2
		if mid > 0 {
			bps := (*tob.BestAsk - *tob.BestBid) / mid * 10000
			tob.SpreadBps = &bps
		}
	}
	return tob
}
