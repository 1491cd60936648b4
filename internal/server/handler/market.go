package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/polybets/polybet/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	Windows(ctx context.Context, category string, now time.Time) (domain.MarketWindows, error)
	GetMarket(ctx context.Context, id string) (domain.ClassifiedMarket, error)
	GetMarketBySlug(ctx context.Context, slug string) (domain.ClassifiedMarket, error)
	Count(ctx context.Context) (int64, error)
	Summarize(cm domain.ClassifiedMarket) domain.MarketSummary
	TopOfBook(ctx context.Context, marketID, tokenID string) (domain.TopOfBook, error)
}

// PriceReader returns the latest streamed price of a market.
type PriceReader interface {
	GetPrice(ctx context.Context, marketID string) (domain.MarketPrice, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	prices  PriceReader
	logger  *slog.Logger
	now     func() time.Time
}

// NewMarketHandler creates a MarketHandler with the given services and logger.
func NewMarketHandler(markets MarketService, prices PriceReader, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		prices:  prices,
		logger:  logger,
		now:     time.Now,
	}
}

// windowsResponse is the market listing: markets resolving within 24h and
// between 24h and 48h from now.
type windowsResponse struct {
	domain.MarketWindows
	Category    string    `json:"category,omitempty"`
	Tracked     int64     `json:"tracked"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ListMarkets returns the 24h and 48h market windows.
// GET /api/markets?category=Sports
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	now := h.now().UTC()

	windows, err := h.markets.Windows(r.Context(), category, now)
	if err != nil {
		writeServiceError(w, r, h.logger, "list markets", err)
		return
	}

	// The listing is still useful without the total.
	tracked, err := h.markets.Count(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "count markets", slog.String("error", err.Error()))
	}

	writeJSON(w, http.StatusOK, windowsResponse{
		MarketWindows: windows,
		Category:      category,
		Tracked:       tracked,
		GeneratedAt:   now,
	})
}

// LookupMarket returns a single classified market by its URL slug.
// GET /api/markets/lookup?slug=...
func (h *MarketHandler) LookupMarket(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "missing slug")
		return
	}
	market, err := h.markets.GetMarketBySlug(r.Context(), slug)
	if err != nil {
		writeServiceError(w, r, h.logger, "lookup market", err)
		return
	}
	writeJSON(w, http.StatusOK, h.markets.Summarize(market))
}

// GetMarket returns a single classified market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get market", err)
		return
	}

	writeJSON(w, http.StatusOK, h.markets.Summarize(market))
}

// GetBook returns the best bid/ask of one of the market's CLOB tokens.
// GET /api/markets/{id}/book?token=...
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	tob, err := h.markets.TopOfBook(r.Context(), id, r.URL.Query().Get("token"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get book", err)
		return
	}
	writeJSON(w, http.StatusOK, tob)
}

// GetPrice returns the latest streamed price of a market.
// GET /api/markets/{id}/price
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	p, err := h.prices.GetPrice(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get price", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marketId": id, "outcome": p.Outcome, "price": p.Price})
}
