package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/models"
)

// ErrSequenceTaken indicates the candidate sequence number was claimed by a
// concurrent submission on the same interaction.
var ErrSequenceTaken = errors.New("prompt sequence number already taken")

// PromptRepository defines data operations for prompts and their responses.
type PromptRepository interface {
	// CreateWithNextSequence inserts the prompt with the next free sequence number
	// for its interaction. The maximum is computed and the row inserted inside a
	// single transaction; a uniqueness collision surfaces as ErrSequenceTaken so
	// the caller can retry with a recomputed maximum.
	CreateWithNextSequence(ctx context.Context, prompt *models.Prompt) error
	CreateResponse(ctx context.Context, response *models.Response) error
	GetResponse(ctx context.Context, id uint) (models.Response, error)
	ListByInteraction(ctx context.Context, interactionID uint) ([]models.Prompt, []models.Response, error)
}

type promptRepository struct {
	db *gorm.DB
}

// NewPromptRepository instantiates the repository.
func NewPromptRepository(db *gorm.DB) PromptRepository {
	return &promptRepository{db: db}
}

func (r *promptRepository) CreateWithNextSequence(ctx context.Context, prompt *models.Prompt) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSequence int
		row := tx.Model(&models.Prompt{}).
			Where("interaction_id = ?", prompt.InteractionID).
			Select("COALESCE(MAX(sequence_number), 0)")
		if err := row.Scan(&maxSequence).Error; err != nil {
			return err
		}

		prompt.SequenceNumber = maxSequence + 1
		return tx.Create(prompt).Error
	})

	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		prompt.ID = 0
		return ErrSequenceTaken
	}

	return err
}

func (r *promptRepository) CreateResponse(ctx context.Context, response *models.Response) error {
	return r.db.WithContext(ctx).Create(response).Error
}

func (r *promptRepository) GetResponse(ctx context.Context, id uint) (models.Response, error) {
	var response models.Response
	if err := r.db.WithContext(ctx).
		Preload("Prompt").
		Preload("Prompt.Interaction").
		First(&response, id).Error; err != nil {
		return models.Response{}, err
	}

	return response, nil
}

func (r *promptRepository) ListByInteraction(ctx context.Context, interactionID uint) ([]models.Prompt, []models.Response, error) {
	var prompts []models.Prompt
	if err := r.db.WithContext(ctx).
		Where("interaction_id = ?", interactionID).
		Order("sequence_number ASC").
		Find(&prompts).Error; err != nil {
		return nil, nil, err
	}

	if len(prompts) == 0 {
		return prompts, nil, nil
	}

	promptIDs := make([]uint, 0, len(prompts))
	for _, prompt := range prompts {
		promptIDs = append(promptIDs, prompt.ID)
	}

	var responses []models.Response
	if err := r.db.WithContext(ctx).
		Where("prompt_id IN ?", promptIDs).
		Find(&responses).Error; err != nil {
		return nil, nil, err
	}

	return prompts, responses, nil
}
