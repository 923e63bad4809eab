package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/models"
)

// DatasetCursor marks a resume position for batched dataset reads.
type DatasetCursor struct {
	CreatedAt time.Time
	ID        uint
}

// ModelEntryCount is one row of the per-model dataset breakdown.
type ModelEntryCount struct {
	ModelID string
	Total   int64
}

// DatasetRepository defines data operations for dataset entries.
type DatasetRepository interface {
	Create(ctx context.Context, entry *models.DatasetEntry) error
	GetByFeedbackID(ctx context.Context, feedbackID uint) (models.DatasetEntry, error)
	// ListBatch reads entries ordered by (created_at, id) strictly after the cursor,
	// bounded by limit, so large exports can stream without loading the full set.
	ListBatch(ctx context.Context, modelID string, cursor *DatasetCursor, limit int) ([]models.DatasetEntry, error)
	CountByModel(ctx context.Context, modelID *string) (int64, []ModelEntryCount, error)
	// ValidatedFeedbackWithoutEntry lists feedback ids that reached VALIDATED but
	// have no materialized entry yet, for the reconcile sweep.
	ValidatedFeedbackWithoutEntry(ctx context.Context, limit int) ([]uint, error)
}

type datasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository instantiates the repository.
func NewDatasetRepository(db *gorm.DB) DatasetRepository {
	return &datasetRepository{db: db}
}

func (r *datasetRepository) Create(ctx context.Context, entry *models.DatasetEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *datasetRepository) GetByFeedbackID(ctx context.Context, feedbackID uint) (models.DatasetEntry, error) {
	var entry models.DatasetEntry
	if err := r.db.WithContext(ctx).
		Where("feedback_id = ?", feedbackID).
		First(&entry).Error; err != nil {
		return models.DatasetEntry{}, err
	}

	return entry, nil
}

func (r *datasetRepository) ListBatch(ctx context.Context, modelID string, cursor *DatasetCursor, limit int) ([]models.DatasetEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.DatasetEntry{})

	if modelID != "" {
		query = query.Where("model_id = ?", modelID)
	}

	if cursor != nil {
		query = query.Where(
			"created_at > ? OR (created_at = ? AND id > ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.DatasetEntry
	if err := query.
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *datasetRepository) CountByModel(ctx context.Context, modelID *string) (int64, []ModelEntryCount, error) {
	query := r.db.WithContext(ctx).Model(&models.DatasetEntry{})

	if modelID != nil {
		query = query.Where("model_id = ?", *modelID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var breakdown []ModelEntryCount
	if err := query.
		Select("model_id, COUNT(*) AS total").
		Group("model_id").
		Order("model_id ASC").
		Scan(&breakdown).Error; err != nil {
		return 0, nil, err
	}

	return total, breakdown, nil
}

func (r *datasetRepository) ValidatedFeedbackWithoutEntry(ctx context.Context, limit int) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Feedback{}).
		Joins("LEFT JOIN dataset_entries ON dataset_entries.feedback_id = feedbacks.id").
		Where("feedbacks.status = ?", models.FeedbackStatusValidated).
		Where("dataset_entries.id IS NULL").
		Order("feedbacks.id ASC").
		Limit(limit).
		Pluck("feedbacks.id", &ids).Error; err != nil {
		return nil, err
	}

	return ids, nil
}
