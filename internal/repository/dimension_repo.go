package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/models"
)

// DimensionRepository defines data operations for evaluation dimensions.
type DimensionRepository interface {
	Create(ctx context.Context, dimension *models.EvaluationDimension) error
	GetByID(ctx context.Context, id uint) (models.EvaluationDimension, error)
	GetByName(ctx context.Context, modelID, name string) (models.EvaluationDimension, error)
	ListByModel(ctx context.Context, modelID string, activeOnly bool) ([]models.EvaluationDimension, error)
	Update(ctx context.Context, dimension *models.EvaluationDimension) error
}

type dimensionRepository struct {
	db *gorm.DB
}

// NewDimensionRepository instantiates the repository.
func NewDimensionRepository(db *gorm.DB) DimensionRepository {
	return &dimensionRepository{db: db}
}

func (r *dimensionRepository) Create(ctx context.Context, dimension *models.EvaluationDimension) error {
	return r.db.WithContext(ctx).Create(dimension).Error
}

func (r *dimensionRepository) GetByID(ctx context.Context, id uint) (models.EvaluationDimension, error) {
	var dimension models.EvaluationDimension
	if err := r.db.WithContext(ctx).First(&dimension, id).Error; err != nil {
		return models.EvaluationDimension{}, err
	}

	return dimension, nil
}

func (r *dimensionRepository) GetByName(ctx context.Context, modelID, name string) (models.EvaluationDimension, error) {
	var dimension models.EvaluationDimension
	if err := r.db.WithContext(ctx).
		Where("model_id IN ?", []string{modelID, models.DimensionScopeAll}).
		Where("LOWER(name) = LOWER(?)", name).
		First(&dimension).Error; err != nil {
		return models.EvaluationDimension{}, err
	}

	return dimension, nil
}

func (r *dimensionRepository) ListByModel(ctx context.Context, modelID string, activeOnly bool) ([]models.EvaluationDimension, error) {
	query := r.db.WithContext(ctx).
		Where("model_id IN ?", []string{modelID, models.DimensionScopeAll})

	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var dimensions []models.EvaluationDimension
	if err := query.Order("name ASC").Find(&dimensions).Error; err != nil {
		return nil, err
	}

	return dimensions, nil
}

func (r *dimensionRepository) Update(ctx context.Context, dimension *models.EvaluationDimension) error {
	return r.db.WithContext(ctx).Save(dimension).Error
}
