package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/models"
)

// ValidationLatency pairs a feedback submission time with its validation time.
type ValidationLatency struct {
	SubmittedAt time.Time
	ValidatedAt time.Time
}

// ValidationRepository defines data operations for validation records.
type ValidationRepository interface {
	// Finalize writes the validation record and flips the feedback status in a
	// single transaction so the decision and the state change cannot diverge.
	Finalize(ctx context.Context, record *models.ValidationRecord, feedbackStatus string) error
	GetByFeedbackID(ctx context.Context, feedbackID uint) (models.ValidationRecord, error)
	Latencies(ctx context.Context, modelID *string) ([]ValidationLatency, error)
	ValidatorTotalsSince(ctx context.Context, since *time.Time) (map[string]int64, error)
}

type validationRepository struct {
	db *gorm.DB
}

// NewValidationRepository instantiates the repository.
func NewValidationRepository(db *gorm.DB) ValidationRepository {
	return &validationRepository{db: db}
}

func (r *validationRepository) Finalize(ctx context.Context, record *models.ValidationRecord, feedbackStatus string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}

		return tx.Model(&models.Feedback{}).
			Where("id = ?", record.FeedbackID).
			Update("status", feedbackStatus).Error
	})
}

func (r *validationRepository) GetByFeedbackID(ctx context.Context, feedbackID uint) (models.ValidationRecord, error) {
	var record models.ValidationRecord
	if err := r.db.WithContext(ctx).
		Where("feedback_id = ?", feedbackID).
		First(&record).Error; err != nil {
		return models.ValidationRecord{}, err
	}

	return record, nil
}

func (r *validationRepository) Latencies(ctx context.Context, modelID *string) ([]ValidationLatency, error) {
	query := r.db.WithContext(ctx).Model(&models.ValidationRecord{}).
		Joins("JOIN feedbacks ON feedbacks.id = validation_records.feedback_id")

	if modelID != nil {
		query = query.
			Joins("JOIN responses ON responses.id = feedbacks.response_id").
			Joins("JOIN prompts ON prompts.id = responses.prompt_id").
			Joins("JOIN interactions ON interactions.id = prompts.interaction_id").
			Where("interactions.model_id = ?", *modelID)
	}

	var latencies []ValidationLatency
	if err := query.
		Select("feedbacks.submitted_at AS submitted_at, validation_records.validated_at AS validated_at").
		Scan(&latencies).Error; err != nil {
		return nil, err
	}

	return latencies, nil
}

func (r *validationRepository) ValidatorTotalsSince(ctx context.Context, since *time.Time) (map[string]int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ValidationRecord{})

	if since != nil {
		query = query.Where("validated_at >= ?", *since)
	}

	type validatorCount struct {
		ValidatorID string
		Total       int64
	}

	var rows []validatorCount
	if err := query.
		Select("validator_id, COUNT(*) AS total").
		Group("validator_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.ValidatorID] = row.Total
	}

	return totals, nil
}
