package dto

import (
	"time"

	"github.com/evalforge/feedback-api/internal/models"
)

// DatasetEntryResponse serializes a training-ready dataset entry.
type DatasetEntryResponse struct {
	ID              uint                   `json:"id"`
	FeedbackID      uint                   `json:"feedback_id"`
	ModelID         string                 `json:"model_id"`
	PromptText      string                 `json:"prompt_text"`
	ResponseText    string                 `json:"response_text"`
	CorrectResponse string                 `json:"correct_response,omitempty"`
	Metadata        map[string]interface{} `json:"metadata"`
	CreatedAt       time.Time              `json:"created_at"`
}

// NewDatasetEntryResponse maps a dataset entry to its API shape.
func NewDatasetEntryResponse(entry models.DatasetEntry) DatasetEntryResponse {
	metadata := map[string]interface{}(entry.Metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return DatasetEntryResponse{
		ID:              entry.ID,
		FeedbackID:      entry.FeedbackID,
		ModelID:         entry.ModelID,
		PromptText:      entry.PromptText,
		ResponseText:    entry.ResponseText,
		CorrectResponse: entry.CorrectResponse,
		Metadata:        metadata,
		CreatedAt:       entry.CreatedAt,
	}
}

// ModelBreakdown is one row of the per-model dataset count.
type ModelBreakdown struct {
	ModelID string `json:"model_id"`
	Count   int64  `json:"count"`
}

// DatasetStatsResponse summarizes dataset coverage.
type DatasetStatsResponse struct {
	ModelID    string           `json:"model_id,omitempty"`
	EntryCount int64            `json:"entry_count"`
	ByModel    []ModelBreakdown `json:"by_model"`
}

// ReconcileResponse reports the outcome of a dataset backfill sweep.
type ReconcileResponse struct {
	Scanned      int    `json:"scanned"`
	Materialized int    `json:"materialized"`
	Failed       int    `json:"failed"`
	LastError    string `json:"last_error,omitempty"`
}
