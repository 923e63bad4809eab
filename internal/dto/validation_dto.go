package dto

import (
	"time"

	"github.com/evalforge/feedback-api/internal/models"
)

// ValidateFeedbackRequest records a validator's decision on pending feedback.
type ValidateFeedbackRequest struct {
	IsValid *bool  `json:"is_valid" validate:"required"`
	Notes   string `json:"notes" validate:"omitempty,max=8000"`
}

// ValidationRecordResponse is returned after a validation decision.
// MaterializationWarning is set when the decision committed but the derived
// dataset entry could not be created; the entry remains retriable.
type ValidationRecordResponse struct {
	ID                     uint      `json:"id"`
	FeedbackID             uint      `json:"feedback_id"`
	ValidatorID            string    `json:"validator_id"`
	IsValid                bool      `json:"is_valid"`
	Notes                  string    `json:"notes"`
	ValidatedAt            time.Time `json:"validated_at"`
	MaterializationWarning string    `json:"materialization_warning,omitempty"`
}

// NewValidationRecordResponse maps a validation record to its API shape.
func NewValidationRecordResponse(record models.ValidationRecord) ValidationRecordResponse {
	return ValidationRecordResponse{
		ID:          record.ID,
		FeedbackID:  record.FeedbackID,
		ValidatorID: record.ValidatorID,
		IsValid:     record.IsValid,
		Notes:       record.Notes,
		ValidatedAt: record.ValidatedAt,
	}
}

// ValidationStatsResponse summarizes the validation workflow for a model scope.
type ValidationStatsResponse struct {
	ModelID              string  `json:"model_id,omitempty"`
	PendingCount         int64   `json:"pending_count"`
	ValidatedCount       int64   `json:"validated_count"`
	RejectedCount        int64   `json:"rejected_count"`
	AvgValidationLatency float64 `json:"avg_validation_latency_seconds"`
}
