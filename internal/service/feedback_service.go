package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/models"
	"github.com/evalforge/feedback-api/internal/repository"
)

// ErrResponseNotFound indicates the target response does not exist.
var ErrResponseNotFound = errors.New("response not found")

// ErrFeedbackNotFound indicates no feedback exists for the requested key.
var ErrFeedbackNotFound = errors.New("feedback not found")

// ErrFeedbackExists indicates the response already has feedback recorded.
var ErrFeedbackExists = errors.New("feedback already exists for this response")

// ErrUnknownDimension indicates a rating references a dimension that does not
// exist or does not apply to the response's model.
var ErrUnknownDimension = errors.New("evaluation dimension not found for this model")

// ErrInactiveDimension indicates a rating references a deactivated dimension.
var ErrInactiveDimension = errors.New("evaluation dimension is inactive")

// ErrDuplicateDimension indicates two ratings in one submission reference the
// same dimension.
var ErrDuplicateDimension = errors.New("duplicate dimension in ratings")

// ErrInvalidScore indicates a rating score is outside the accepted range.
var ErrInvalidScore = errors.New("score must be between 1 and 5")

// FeedbackService collects structured feedback against model responses.
type FeedbackService interface {
	Submit(ctx context.Context, actor Actor, payload dto.SubmitFeedbackRequest) (dto.FeedbackResponse, error)
	GetForResponse(ctx context.Context, responseID uint) (dto.FeedbackResponse, error)
	ListPending(ctx context.Context, actor Actor, modelID *string, page, pageSize int) (dto.PagedFeedbackResponse, error)
}

type feedbackService struct {
	feedback   repository.FeedbackRepository
	prompts    repository.PromptRepository
	dimensions repository.DimensionRepository
	events     EventPublisher
	validator  *validator.Validate
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
	now        func() time.Time
}

// NewFeedbackService constructs a FeedbackService instance.
func NewFeedbackService(
	feedback repository.FeedbackRepository,
	prompts repository.PromptRepository,
	dimensions repository.DimensionRepository,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) FeedbackService {
	return &feedbackService{
		feedback:   feedback,
		prompts:    prompts,
		dimensions: dimensions,
		events:     events,
		validator:  validate,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With().Str("component", "feedback_service").Logger(),
		now:        time.Now,
	}
}

func (s *feedbackService) Submit(ctx context.Context, actor Actor, payload dto.SubmitFeedbackRequest) (dto.FeedbackResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FeedbackResponse{}, err
	}

	response, err := s.prompts.GetResponse(ctx, payload.ResponseID)
	if err != nil {
		return dto.FeedbackResponse{}, translateNotFound(err, ErrResponseNotFound)
	}

	if _, err := s.feedback.GetByResponseID(ctx, payload.ResponseID); err == nil {
		return dto.FeedbackResponse{}, ErrFeedbackExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.FeedbackResponse{}, err
	}

	modelID := response.Prompt.Interaction.ModelID
	ratings, err := s.resolveRatings(ctx, modelID, payload.Ratings)
	if err != nil {
		return dto.FeedbackResponse{}, err
	}

	feedback := models.Feedback{
		ResponseID:     payload.ResponseID,
		UserID:         actor.ID,
		OverallComment: strings.TrimSpace(s.sanitizer.Sanitize(payload.OverallComment)),
		Status:         models.FeedbackStatusPending,
		SubmittedAt:    s.now(),
		Ratings:        ratings,
	}

	if err := s.feedback.CreateWithRatings(ctx, &feedback); err != nil {
		// A concurrent submission may win the unique response constraint.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.FeedbackResponse{}, ErrFeedbackExists
		}
		return dto.FeedbackResponse{}, err
	}

	s.events.Publish(ctx, EventFeedbackSubmitted, map[string]interface{}{
		"feedback_id": feedback.ID,
		"user_id":     feedback.UserID,
		"response_id": feedback.ResponseID,
		"model_id":    modelID,
	})

	created, err := s.feedback.GetByID(ctx, feedback.ID)
	if err != nil {
		return dto.FeedbackResponse{}, err
	}

	s.logger.Info().Uint("feedback_id", created.ID).Str("model_id", modelID).Msg("feedback submitted")

	return dto.NewFeedbackResponse(created), nil
}

func (s *feedbackService) GetForResponse(ctx context.Context, responseID uint) (dto.FeedbackResponse, error) {
	feedback, err := s.feedback.GetByResponseID(ctx, responseID)
	if err != nil {
		return dto.FeedbackResponse{}, translateNotFound(err, ErrFeedbackNotFound)
	}

	return dto.NewFeedbackResponse(feedback), nil
}

func (s *feedbackService) ListPending(ctx context.Context, actor Actor, modelID *string, page, pageSize int) (dto.PagedFeedbackResponse, error) {
	if !actor.CanValidate() {
		return dto.PagedFeedbackResponse{}, ErrForbidden
	}

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	feedback, total, err := s.feedback.ListPending(ctx, repository.PendingFeedbackFilter{
		ModelID:  modelID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return dto.PagedFeedbackResponse{}, err
	}

	return dto.PagedFeedbackResponse{
		Items:    dto.NewFeedbackResponseSlice(feedback),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// resolveRatings maps rating inputs onto dimension rows, enforcing model scope,
// active state, score range and per-dimension uniqueness.
func (s *feedbackService) resolveRatings(ctx context.Context, modelID string, inputs []dto.RatingInput) ([]models.DimensionRating, error) {
	ratings := make([]models.DimensionRating, 0, len(inputs))
	seen := make(map[uint]struct{}, len(inputs))

	for _, input := range inputs {
		if input.Score < models.RatingScoreMin || input.Score > models.RatingScoreMax {
			return nil, ErrInvalidScore
		}

		dimension, err := s.lookupDimension(ctx, modelID, input.Dimension)
		if err != nil {
			return nil, err
		}

		if !dimension.AppliesTo(modelID) {
			return nil, ErrUnknownDimension
		}

		if !dimension.Active {
			return nil, ErrInactiveDimension
		}

		if _, dup := seen[dimension.ID]; dup {
			return nil, ErrDuplicateDimension
		}
		seen[dimension.ID] = struct{}{}

		ratings = append(ratings, models.DimensionRating{
			DimensionID:     dimension.ID,
			Score:           input.Score,
			Justification:   strings.TrimSpace(s.sanitizer.Sanitize(input.Justification)),
			CorrectResponse: input.CorrectResponse,
		})
	}

	return ratings, nil
}

// lookupDimension accepts either a numeric dimension id or a dimension name
// scoped to the model (or to the shared "all" scope).
func (s *feedbackService) lookupDimension(ctx context.Context, modelID, key string) (models.EvaluationDimension, error) {
	if id, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64); err == nil {
		dimension, err := s.dimensions.GetByID(ctx, uint(id))
		if err != nil {
			return models.EvaluationDimension{}, translateNotFound(err, ErrUnknownDimension)
		}
		return dimension, nil
	}

	dimension, err := s.dimensions.GetByName(ctx, modelID, strings.TrimSpace(key))
	if err != nil {
		return models.EvaluationDimension{}, translateNotFound(err, ErrUnknownDimension)
	}

	return dimension, nil
}
