package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/models"
)

// BookmarkRepository defines data operations for interaction bookmarks.
type BookmarkRepository interface {
	Create(ctx context.Context, bookmark *models.InteractionBookmark) error
	Update(ctx context.Context, bookmark *models.InteractionBookmark) error
	GetByUserAndInteraction(ctx context.Context, userID string, interactionID uint) (models.InteractionBookmark, error)
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.InteractionBookmark, int64, error)
	Delete(ctx context.Context, id uint, userID string) (int64, error)
}

type bookmarkRepository struct {
	db *gorm.DB
}

// NewBookmarkRepository instantiates the repository.
func NewBookmarkRepository(db *gorm.DB) BookmarkRepository {
	return &bookmarkRepository{db: db}
}

func (r *bookmarkRepository) Create(ctx context.Context, bookmark *models.InteractionBookmark) error {
	return r.db.WithContext(ctx).Create(bookmark).Error
}

func (r *bookmarkRepository) Update(ctx context.Context, bookmark *models.InteractionBookmark) error {
	return r.db.WithContext(ctx).Save(bookmark).Error
}

func (r *bookmarkRepository) GetByUserAndInteraction(ctx context.Context, userID string, interactionID uint) (models.InteractionBookmark, error) {
	var bookmark models.InteractionBookmark
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("interaction_id = ?", interactionID).
		First(&bookmark).Error; err != nil {
		return models.InteractionBookmark{}, err
	}

	return bookmark, nil
}

func (r *bookmarkRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.InteractionBookmark, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InteractionBookmark{}).
		Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC")

	if pageSize > 0 {
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	var bookmarks []models.InteractionBookmark
	if err := query.Find(&bookmarks).Error; err != nil {
		return nil, 0, err
	}

	return bookmarks, total, nil
}

func (r *bookmarkRepository) Delete(ctx context.Context, id uint, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Delete(&models.InteractionBookmark{})

	return result.RowsAffected, result.Error
}
