package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/polybets/polybet/internal/domain"
)

// ClobClient reads public order book data from the Polymarket CLOB API.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClobClient creates a new CLOB client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithTimeout sets the per-request timeout. Non-positive values are
// ignored.
func (c *ClobClient) WithTimeout(d time.Duration) *ClobClient {
	if d > 0 {
		c.httpClient.Timeout = d
	}
	return c
}

// GetBook returns the full order book of a token.
func (c *ClobClient) GetBook(ctx context.Context, tokenID string) (APIBook, error) {
	body, err := getJSON(ctx, c.httpClient, c.baseURL+"/book?token_id="+url.QueryEscape(tokenID))
	if err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	return book, nil
}

// TopOfBook returns the best bid, best ask and spread of a token.
func (c *ClobClient) TopOfBook(ctx context.Context, tokenID string) (domain.TopOfBook, error) {
	book, err := c.GetBook(ctx, tokenID)
	if err != nil {
		return domain.TopOfBook{}, err
	}
	return domain.NewTopOfBook(tokenID, toDomainLevels(book.Bids), toDomainLevels(book.Asks)), nil
}
