package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/models"
)

// AnalyticsWindow bounds an aggregate query in time. A nil edge leaves the
// window open on that side.
type AnalyticsWindow struct {
	Start *time.Time
	End   *time.Time
}

// EngagementTotals aggregates one user's recorded activity.
type EngagementTotals struct {
	Interactions int64
	Completed    int64
	Prompts      int64
	Feedback     int64
	Validated    int64
}

// DimensionAverage is the mean score one evaluation dimension received.
type DimensionAverage struct {
	Dimension string
	Average   float64
	Count     int64
}

// SystemTotals aggregates platform-wide activity.
type SystemTotals struct {
	Interactions          int64
	ActiveUsers           int64
	Feedback              int64
	Pending               int64
	Validated             int64
	AverageResponseTimeMs float64
}

// AnalyticsRepository defines the read-only aggregate queries behind the
// analytics endpoints.
type AnalyticsRepository interface {
	UserEngagement(ctx context.Context, userID string, window AnalyticsWindow) (EngagementTotals, error)
	ModelInteractionTotals(ctx context.Context, modelID string, window AnalyticsWindow) (total, completed int64, err error)
	ModelDimensionAverages(ctx context.Context, modelID string, window AnalyticsWindow) ([]DimensionAverage, error)
	SystemTotals(ctx context.Context, window AnalyticsWindow) (SystemTotals, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func applyWindow(query *gorm.DB, column string, window AnalyticsWindow) *gorm.DB {
	if window.Start != nil {
		query = query.Where(column+" >= ?", *window.Start)
	}
	if window.End != nil {
		query = query.Where(column+" <= ?", *window.End)
	}
	return query
}

func (r *analyticsRepository) UserEngagement(ctx context.Context, userID string, window AnalyticsWindow) (EngagementTotals, error) {
	var totals EngagementTotals

	interactions := func() *gorm.DB {
		return applyWindow(r.db.WithContext(ctx).Model(&models.Interaction{}).
			Where("user_id = ?", userID), "started_at", window)
	}
	if err := interactions().Count(&totals.Interactions).Error; err != nil {
		return EngagementTotals{}, err
	}
	if err := interactions().
		Where("status = ?", models.InteractionStatusCompleted).
		Count(&totals.Completed).Error; err != nil {
		return EngagementTotals{}, err
	}

	if err := applyWindow(r.db.WithContext(ctx).Model(&models.Prompt{}).
		Joins("JOIN interactions ON interactions.id = prompts.interaction_id").
		Where("interactions.user_id = ?", userID), "prompts.submitted_at", window).
		Count(&totals.Prompts).Error; err != nil {
		return EngagementTotals{}, err
	}

	feedback := func() *gorm.DB {
		return applyWindow(r.db.WithContext(ctx).Model(&models.Feedback{}).
			Where("user_id = ?", userID), "submitted_at", window)
	}
	if err := feedback().Count(&totals.Feedback).Error; err != nil {
		return EngagementTotals{}, err
	}
	if err := feedback().
		Where("status = ?", models.FeedbackStatusValidated).
		Count(&totals.Validated).Error; err != nil {
		return EngagementTotals{}, err
	}

	return totals, nil
}

func (r *analyticsRepository) ModelInteractionTotals(ctx context.Context, modelID string, window AnalyticsWindow) (int64, int64, error) {
	interactions := func() *gorm.DB {
		return applyWindow(r.db.WithContext(ctx).Model(&models.Interaction{}).
			Where("model_id = ?", modelID), "started_at", window)
	}

	var total int64
	if err := interactions().Count(&total).Error; err != nil {
		return 0, 0, err
	}

	var completed int64
	if err := interactions().
		Where("status = ?", models.InteractionStatusCompleted).
		Count(&completed).Error; err != nil {
		return 0, 0, err
	}

	return total, completed, nil
}

func (r *analyticsRepository) ModelDimensionAverages(ctx context.Context, modelID string, window AnalyticsWindow) ([]DimensionAverage, error) {
	var averages []DimensionAverage
	if err := applyWindow(r.db.WithContext(ctx).Model(&models.DimensionRating{}).
		Joins("JOIN evaluation_dimensions ON evaluation_dimensions.id = dimension_ratings.dimension_id").
		Joins("JOIN feedbacks ON feedbacks.id = dimension_ratings.feedback_id").
		Joins("JOIN responses ON responses.id = feedbacks.response_id").
		Joins("JOIN prompts ON prompts.id = responses.prompt_id").
		Joins("JOIN interactions ON interactions.id = prompts.interaction_id").
		Where("interactions.model_id = ?", modelID), "feedbacks.submitted_at", window).
		Select("evaluation_dimensions.name AS dimension, AVG(dimension_ratings.score) AS average, COUNT(*) AS count").
		Group("evaluation_dimensions.name").
		Order("evaluation_dimensions.name ASC").
		Scan(&averages).Error; err != nil {
		return nil, err
	}

	return averages, nil
}

func (r *analyticsRepository) SystemTotals(ctx context.Context, window AnalyticsWindow) (SystemTotals, error) {
	var totals SystemTotals

	type interactionRow struct {
		Total int64
		Users int64
	}
	var interactions interactionRow
	if err := applyWindow(r.db.WithContext(ctx).Model(&models.Interaction{}), "started_at", window).
		Select("COUNT(*) AS total, COUNT(DISTINCT user_id) AS users").
		Scan(&interactions).Error; err != nil {
		return SystemTotals{}, err
	}
	totals.Interactions = interactions.Total
	totals.ActiveUsers = interactions.Users

	type feedbackRow struct {
		Total     int64
		Pending   int64
		Validated int64
	}
	var feedback feedbackRow
	if err := applyWindow(r.db.WithContext(ctx).Model(&models.Feedback{}), "submitted_at", window).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS validated",
			models.FeedbackStatusPending, models.FeedbackStatusValidated,
		).
		Scan(&feedback).Error; err != nil {
		return SystemTotals{}, err
	}
	totals.Feedback = feedback.Total
	totals.Pending = feedback.Pending
	totals.Validated = feedback.Validated

	if err := applyWindow(r.db.WithContext(ctx).Model(&models.Response{}).
		Joins("JOIN prompts ON prompts.id = responses.prompt_id").
		Joins("JOIN interactions ON interactions.id = prompts.interaction_id").
		Where("responses.processing_time_ms IS NOT NULL"), "interactions.started_at", window).
		Select("COALESCE(AVG(responses.processing_time_ms), 0)").
		Scan(&totals.AverageResponseTimeMs).Error; err != nil {
		return SystemTotals{}, err
	}

	return totals, nil
}
