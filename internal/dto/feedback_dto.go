package dto

import (
	"time"

	"github.com/evalforge/feedback-api/internal/models"
)

// RatingInput scores one evaluation dimension. Dimension accepts either a numeric
// dimension id or a dimension name scoped to the response's model.
type RatingInput struct {
	Dimension       string `json:"dimension" validate:"required,min=1,max=128"`
	Score           int    `json:"score" validate:"required"`
	Justification   string `json:"justification" validate:"omitempty,max=4000"`
	CorrectResponse string `json:"correct_response" validate:"omitempty,max=20000"`
}

// SubmitFeedbackRequest records structured feedback against one response.
type SubmitFeedbackRequest struct {
	ResponseID     uint          `json:"response_id" validate:"required,gt=0"`
	Ratings        []RatingInput `json:"ratings" validate:"required,min=1,dive"`
	OverallComment string        `json:"overall_comment" validate:"omitempty,max=8000"`
}

// RatingResponse serializes a dimension rating.
type RatingResponse struct {
	DimensionID     uint   `json:"dimension_id"`
	DimensionName   string `json:"dimension_name"`
	Score           int    `json:"score"`
	Justification   string `json:"justification,omitempty"`
	CorrectResponse string `json:"correct_response,omitempty"`
}

// FeedbackResponse is returned to API clients when viewing feedback.
type FeedbackResponse struct {
	ID             uint             `json:"id"`
	ResponseID     uint             `json:"response_id"`
	UserID         string           `json:"user_id"`
	OverallComment string           `json:"overall_comment"`
	Status         string           `json:"status"`
	Ratings        []RatingResponse `json:"ratings"`
	SubmittedAt    time.Time        `json:"submitted_at"`
}

// NewFeedbackResponse maps a feedback model to its API shape.
func NewFeedbackResponse(feedback models.Feedback) FeedbackResponse {
	ratings := make([]RatingResponse, 0, len(feedback.Ratings))
	for _, rating := range feedback.Ratings {
		ratings = append(ratings, RatingResponse{
			DimensionID:     rating.DimensionID,
			DimensionName:   rating.Dimension.Name,
			Score:           rating.Score,
			Justification:   rating.Justification,
			CorrectResponse: rating.CorrectResponse,
		})
	}

	return FeedbackResponse{
		ID:             feedback.ID,
		ResponseID:     feedback.ResponseID,
		UserID:         feedback.UserID,
		OverallComment: feedback.OverallComment,
		Status:         feedback.Status,
		Ratings:        ratings,
		SubmittedAt:    feedback.SubmittedAt,
	}
}

// NewFeedbackResponseSlice maps a slice of feedback records.
func NewFeedbackResponseSlice(feedback []models.Feedback) []FeedbackResponse {
	responses := make([]FeedbackResponse, 0, len(feedback))
	for _, item := range feedback {
		responses = append(responses, NewFeedbackResponse(item))
	}
	return responses
}

// PagedFeedbackResponse wraps a page of the validation queue.
type PagedFeedbackResponse struct {
	Items    []FeedbackResponse `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}
