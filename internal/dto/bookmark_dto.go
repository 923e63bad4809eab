package dto

import (
	"time"

	"github.com/evalforge/feedback-api/internal/models"
)

// CreateBookmarkRequest tags an interaction for the calling user. Creating a
// bookmark for an already-bookmarked interaction updates the existing one.
type CreateBookmarkRequest struct {
	InteractionID uint   `json:"interaction_id" validate:"required,gt=0"`
	Name          string `json:"name" validate:"required,min=1,max=255"`
	Notes         string `json:"notes" validate:"omitempty,max=4000"`
}

// BookmarkResponse is returned to API clients when viewing bookmarks.
type BookmarkResponse struct {
	ID            uint      `json:"id"`
	InteractionID uint      `json:"interaction_id"`
	Name          string    `json:"name"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewBookmarkResponse maps a bookmark model to its API shape.
func NewBookmarkResponse(bookmark models.InteractionBookmark) BookmarkResponse {
	return BookmarkResponse{
		ID:            bookmark.ID,
		InteractionID: bookmark.InteractionID,
		Name:          bookmark.Name,
		Notes:         bookmark.Notes,
		CreatedAt:     bookmark.CreatedAt,
	}
}

// NewBookmarkResponseSlice maps a slice of bookmarks.
func NewBookmarkResponseSlice(bookmarks []models.InteractionBookmark) []BookmarkResponse {
	responses := make([]BookmarkResponse, 0, len(bookmarks))
	for _, bookmark := range bookmarks {
		responses = append(responses, NewBookmarkResponse(bookmark))
	}
	return responses
}

// PagedBookmarksResponse wraps a page of bookmarks.
type PagedBookmarksResponse struct {
	Items    []BookmarkResponse `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}
