package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/polybets/polybet/internal/domain"
	"github.com/polybets/polybet/internal/service"
)

// BookmarkService defines the bookmark operations used by the handler.
type BookmarkService interface {
	Create(ctx context.Context, userID, marketID string) (domain.Bookmark, error)
	List(ctx context.Context, userID string) ([]service.BookmarkView, error)
	Remove(ctx context.Context, userID, id string) error
}

// BookmarkHandler serves the per-user bookmark endpoints.
type BookmarkHandler struct {
	bookmarks BookmarkService
	logger    *slog.Logger
}

// NewBookmarkHandler creates a BookmarkHandler.
func NewBookmarkHandler(bookmarks BookmarkService, logger *slog.Logger) *BookmarkHandler {
	return &BookmarkHandler{bookmarks: bookmarks, logger: logger}
}

type createBookmarkRequest struct {
	MarketID string `json:"marketId"`
}

// ListBookmarks returns the caller's active and closed bookmarks with live
// prices.
// GET /api/bookmarks
func (h *BookmarkHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	views, err := h.bookmarks.List(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, h.logger, "list bookmarks", err)
		return
	}
	if views == nil {
		views = []service.BookmarkView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookmarks": views})
}

// CreateBookmark bookmarks a market at its current price.
// POST /api/bookmarks
func (h *BookmarkHandler) CreateBookmark(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createBookmarkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.bookmarks.Create(r.Context(), user, req.MarketID)
	if err != nil {
		writeServiceError(w, r, h.logger, "create bookmark", err)
		return
	}
	h.logger.InfoContext(r.Context(), "handler: bookmark created",
		slog.String("user_id", user),
		slog.String("market_id", b.MarketID),
	)
	writeJSON(w, http.StatusCreated, b)
}

// DeleteBookmark removes one of the caller's bookmarks.
// DELETE /api/bookmarks/{id}
func (h *BookmarkHandler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.bookmarks.Remove(r.Context(), user, pathParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, "remove bookmark", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
