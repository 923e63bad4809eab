package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/models"
)

// PendingFeedbackFilter narrows the validation queue listing.
type PendingFeedbackFilter struct {
	ModelID  *string
	Page     int
	PageSize int
}

// ContributorTotals aggregates per-user feedback activity for the leaderboard.
type ContributorTotals struct {
	UserID    string
	Submitted int64
	Validated int64
}

// FeedbackRepository defines data operations for feedback and dimension ratings.
type FeedbackRepository interface {
	// CreateWithRatings inserts the feedback and all its ratings atomically.
	CreateWithRatings(ctx context.Context, feedback *models.Feedback) error
	GetByID(ctx context.Context, id uint) (models.Feedback, error)
	GetByResponseID(ctx context.Context, responseID uint) (models.Feedback, error)
	ListPending(ctx context.Context, filter PendingFeedbackFilter) ([]models.Feedback, int64, error)
	CountByStatus(ctx context.Context, modelID *string) (map[string]int64, error)
	ContributorTotalsSince(ctx context.Context, since *time.Time) ([]ContributorTotals, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository instantiates the repository.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) CreateWithRatings(ctx context.Context, feedback *models.Feedback) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(feedback).Error
	})
}

func (r *feedbackRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Feedback{}).
		Preload("Ratings").
		Preload("Ratings.Dimension")
}

func (r *feedbackRepository) GetByID(ctx context.Context, id uint) (models.Feedback, error) {
	var feedback models.Feedback
	if err := r.baseQuery(ctx).First(&feedback, id).Error; err != nil {
		return models.Feedback{}, err
	}

	return feedback, nil
}

func (r *feedbackRepository) GetByResponseID(ctx context.Context, responseID uint) (models.Feedback, error) {
	var feedback models.Feedback
	if err := r.baseQuery(ctx).
		Where("response_id = ?", responseID).
		First(&feedback).Error; err != nil {
		return models.Feedback{}, err
	}

	return feedback, nil
}

func (r *feedbackRepository) ListPending(ctx context.Context, filter PendingFeedbackFilter) ([]models.Feedback, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Feedback{}).
		Where("feedbacks.status = ?", models.FeedbackStatusPending)

	if filter.ModelID != nil {
		query = query.
			Joins("JOIN responses ON responses.id = feedbacks.response_id").
			Joins("JOIN prompts ON prompts.id = responses.prompt_id").
			Joins("JOIN interactions ON interactions.id = prompts.interaction_id").
			Where("interactions.model_id = ?", *filter.ModelID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Oldest first keeps the validation queue fair.
	query = query.Order("feedbacks.submitted_at ASC").
		Preload("Ratings").
		Preload("Ratings.Dimension")

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var feedback []models.Feedback
	if err := query.Find(&feedback).Error; err != nil {
		return nil, 0, err
	}

	return feedback, total, nil
}

func (r *feedbackRepository) CountByStatus(ctx context.Context, modelID *string) (map[string]int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Feedback{})

	if modelID != nil {
		query = query.
			Joins("JOIN responses ON responses.id = feedbacks.response_id").
			Joins("JOIN prompts ON prompts.id = responses.prompt_id").
			Joins("JOIN interactions ON interactions.id = prompts.interaction_id").
			Where("interactions.model_id = ?", *modelID)
	}

	type statusCount struct {
		Status string
		Total  int64
	}

	var rows []statusCount
	if err := query.
		Select("feedbacks.status AS status, COUNT(*) AS total").
		Group("feedbacks.status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := map[string]int64{
		models.FeedbackStatusPending:   0,
		models.FeedbackStatusValidated: 0,
		models.FeedbackStatusRejected:  0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}

	return counts, nil
}

func (r *feedbackRepository) ContributorTotalsSince(ctx context.Context, since *time.Time) ([]ContributorTotals, error) {
	query := r.db.WithContext(ctx).Model(&models.Feedback{})

	if since != nil {
		query = query.Where("submitted_at >= ?", *since)
	}

	var totals []ContributorTotals
	if err := query.
		Select("user_id, COUNT(*) AS submitted, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS validated", models.FeedbackStatusValidated).
		Group("user_id").
		Scan(&totals).Error; err != nil {
		return nil, err
	}

	return totals, nil
}
