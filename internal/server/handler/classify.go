package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/polybets/polybet/internal/domain"
	"github.com/polybets/polybet/internal/platform/polymarket"
)

// maxClassifyBatch bounds the markets accepted per classify request.
const maxClassifyBatch = 1000

// Classifier resolves a raw market's category and sports data.
type Classifier interface {
	Classify(raw domain.RawMarket) domain.ClassifiedMarket
}

// ClassifyHandler exposes the classifier for ad-hoc audits.
type ClassifyHandler struct {
	classifier Classifier
	logger     *slog.Logger
}

// NewClassifyHandler creates a ClassifyHandler.
func NewClassifyHandler(c Classifier, logger *slog.Logger) *ClassifyHandler {
	return &ClassifyHandler{classifier: c, logger: logger}
}

// ClassifyResult is the classification of a single market.
type ClassifyResult struct {
	ID       string             `json:"id,omitempty"`
	Title    string             `json:"title"`
	Slug     string             `json:"slug,omitempty"`
	Category string             `json:"category"`
	Rule     string             `json:"rule"`
	Sports   *domain.SportsInfo `json:"sports,omitempty"`
}

// NewClassifyResult flattens a classified market for output.
func NewClassifyResult(cm domain.ClassifiedMarket) ClassifyResult {
	return ClassifyResult{
		ID:       cm.Market.ID,
		Title:    cm.Market.DisplayTitle(),
		Slug:     cm.Market.Slug,
		Category: cm.Category,
		Rule:     cm.Rule,
		Sports:   cm.Sports,
	}
}

// Classify classifies one market, a JSON array of markets or JSON lines in
// Gamma format.
// POST /api/classify
func (h *ClassifyHandler) Classify(w http.ResponseWriter, r *http.Request) {
	raws, err := polymarket.DecodeMarkets(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(raws) > maxClassifyBatch {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d markets per request", maxClassifyBatch))
		return
	}

	results := make([]ClassifyResult, 0, len(raws))
	for _, raw := range raws {
		results = append(results, NewClassifyResult(h.classifier.Classify(raw)))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
