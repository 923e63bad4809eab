package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/models"
)

// InteractionFilter narrows interaction searches.
type InteractionFilter struct {
	UserID        *string
	ModelID       *string
	Status        *string
	StartedAfter  *time.Time
	StartedBefore *time.Time
	Page          int
	PageSize      int
}

// InteractionRepository defines data operations for interactions.
type InteractionRepository interface {
	Create(ctx context.Context, interaction *models.Interaction) error
	GetByID(ctx context.Context, id uint) (models.Interaction, error)
	Update(ctx context.Context, interaction *models.Interaction) error
	Search(ctx context.Context, filter InteractionFilter) ([]models.Interaction, int64, error)
	CompletedTotalsSince(ctx context.Context, since *time.Time) (map[string]int64, error)
}

type interactionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository instantiates the repository.
func NewInteractionRepository(db *gorm.DB) InteractionRepository {
	return &interactionRepository{db: db}
}

func (r *interactionRepository) Create(ctx context.Context, interaction *models.Interaction) error {
	return r.db.WithContext(ctx).Create(interaction).Error
}

func (r *interactionRepository) GetByID(ctx context.Context, id uint) (models.Interaction, error) {
	var interaction models.Interaction
	if err := r.db.WithContext(ctx).First(&interaction, id).Error; err != nil {
		return models.Interaction{}, err
	}

	return interaction, nil
}

func (r *interactionRepository) Update(ctx context.Context, interaction *models.Interaction) error {
	return r.db.WithContext(ctx).Save(interaction).Error
}

func (r *interactionRepository) Search(ctx context.Context, filter InteractionFilter) ([]models.Interaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Interaction{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	if filter.ModelID != nil {
		query = query.Where("model_id = ?", *filter.ModelID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if filter.StartedAfter != nil {
		query = query.Where("started_at >= ?", *filter.StartedAfter)
	}

	if filter.StartedBefore != nil {
		query = query.Where("started_at <= ?", *filter.StartedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("started_at DESC")

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var interactions []models.Interaction
	if err := query.Find(&interactions).Error; err != nil {
		return nil, 0, err
	}

	return interactions, total, nil
}

func (r *interactionRepository) CompletedTotalsSince(ctx context.Context, since *time.Time) (map[string]int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Interaction{}).
		Where("status = ?", models.InteractionStatusCompleted)

	if since != nil {
		query = query.Where("started_at >= ?", *since)
	}

	type userCount struct {
		UserID string
		Total  int64
	}

	var rows []userCount
	if err := query.
		Select("user_id, COUNT(*) AS total").
		Group("user_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.UserID] = row.Total
	}

	return totals, nil
}
