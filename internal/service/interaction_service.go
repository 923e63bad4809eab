package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/models"
	"github.com/evalforge/feedback-api/internal/repository"
	"github.com/evalforge/feedback-api/pkg/modelgateway"
)

// ErrInteractionNotFound indicates the interaction is absent or not visible to the caller.
var ErrInteractionNotFound = errors.New("interaction not found")

// ErrInteractionClosed indicates the interaction already reached a terminal status.
var ErrInteractionClosed = errors.New("interaction is not active")

// ErrUnknownModel indicates the model/version could not be resolved against the registry.
var ErrUnknownModel = errors.New("model not found in registry")

// ErrForbidden indicates the caller lacks the capability or ownership for the operation.
var ErrForbidden = errors.New("operation not permitted")

const defaultPageSize = 20

// InteractionService owns the interaction lifecycle: session start, termination,
// history retrieval and search.
type InteractionService interface {
	Start(ctx context.Context, actor Actor, payload dto.StartInteractionRequest) (dto.InteractionResponse, error)
	End(ctx context.Context, actor Actor, interactionID uint, payload dto.EndInteractionRequest) (dto.InteractionResponse, error)
	History(ctx context.Context, actor Actor, interactionID uint) ([]dto.ExchangeResponse, error)
	Search(ctx context.Context, actor Actor, payload dto.InteractionSearchRequest) (dto.PagedInteractionsResponse, error)
}

type interactionService struct {
	interactions repository.InteractionRepository
	prompts      repository.PromptRepository
	registry     modelgateway.Registry
	events       EventPublisher
	validator    *validator.Validate
	logger       zerolog.Logger
	now          func() time.Time
}

// NewInteractionService constructs an InteractionService instance.
func NewInteractionService(
	interactions repository.InteractionRepository,
	prompts repository.PromptRepository,
	registry modelgateway.Registry,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) InteractionService {
	return &interactionService{
		interactions: interactions,
		prompts:      prompts,
		registry:     registry,
		events:       events,
		validator:    validate,
		logger:       logger.With().Str("component", "interaction_service").Logger(),
		now:          time.Now,
	}
}

func (s *interactionService) Start(ctx context.Context, actor Actor, payload dto.StartInteractionRequest) (dto.InteractionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.InteractionResponse{}, err
	}

	known, err := s.registry.ValidateModel(ctx, payload.ModelID, payload.ModelVersion)
	if err != nil {
		return dto.InteractionResponse{}, fmt.Errorf("resolve model: %w", err)
	}
	if !known {
		return dto.InteractionResponse{}, ErrUnknownModel
	}

	metadata := payload.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	interaction := models.Interaction{
		UserID:       actor.ID,
		ModelID:      payload.ModelID,
		ModelVersion: payload.ModelVersion,
		EndpointName: payload.EndpointName,
		SessionID:    uuid.NewString(),
		Status:       models.InteractionStatusActive,
		Metadata:     datatypes.JSONMap(metadata),
		Tags:         models.JoinTags(payload.Tags),
		StartedAt:    s.now(),
	}

	if err := s.interactions.Create(ctx, &interaction); err != nil {
		return dto.InteractionResponse{}, err
	}

	s.events.Publish(ctx, EventInteractionStarted, map[string]interface{}{
		"interaction_id": interaction.ID,
		"user_id":        interaction.UserID,
		"model_id":       interaction.ModelID,
	})

	s.logger.Info().Uint("interaction_id", interaction.ID).Str("model_id", interaction.ModelID).Msg("interaction started")

	return dto.NewInteractionResponse(interaction), nil
}

func (s *interactionService) End(ctx context.Context, actor Actor, interactionID uint, payload dto.EndInteractionRequest) (dto.InteractionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.InteractionResponse{}, err
	}

	interaction, err := s.ownedInteraction(ctx, actor, interactionID)
	if err != nil {
		return dto.InteractionResponse{}, err
	}

	if interaction.IsTerminal() {
		return dto.InteractionResponse{}, ErrInteractionClosed
	}

	endedAt := s.now()
	interaction.Status = payload.Status
	interaction.EndedAt = &endedAt

	if err := s.interactions.Update(ctx, &interaction); err != nil {
		return dto.InteractionResponse{}, err
	}

	s.events.Publish(ctx, EventInteractionCompleted, map[string]interface{}{
		"interaction_id": interaction.ID,
		"user_id":        interaction.UserID,
		"status":         interaction.Status,
	})

	s.logger.Info().Uint("interaction_id", interaction.ID).Str("status", interaction.Status).Msg("interaction ended")

	return dto.NewInteractionResponse(interaction), nil
}

func (s *interactionService) History(ctx context.Context, actor Actor, interactionID uint) ([]dto.ExchangeResponse, error) {
	interaction, err := s.interactions.GetByID(ctx, interactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInteractionNotFound
		}
		return nil, err
	}

	if interaction.UserID != actor.ID && !actor.CanValidate() {
		return nil, ErrForbidden
	}

	prompts, responses, err := s.prompts.ListByInteraction(ctx, interactionID)
	if err != nil {
		return nil, err
	}

	responseByPrompt := make(map[uint]models.Response, len(responses))
	for _, response := range responses {
		responseByPrompt[response.PromptID] = response
	}

	history := make([]dto.ExchangeResponse, 0, len(prompts))
	for _, prompt := range prompts {
		response := responseByPrompt[prompt.ID]
		history = append(history, dto.ExchangeResponse{
			Prompt:   dto.NewPromptResponse(prompt),
			Response: dto.NewGenerationResponse(response),
			Degraded: response.Failed(),
		})
	}

	return history, nil
}

func (s *interactionService) Search(ctx context.Context, actor Actor, payload dto.InteractionSearchRequest) (dto.PagedInteractionsResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PagedInteractionsResponse{}, err
	}

	page := payload.Page
	if page <= 0 {
		page = 1
	}
	pageSize := payload.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	filter := repository.InteractionFilter{
		ModelID:       payload.ModelID,
		Status:        payload.Status,
		StartedAfter:  payload.StartedAfter,
		StartedBefore: payload.StartedBefore,
		Page:          page,
		PageSize:      pageSize,
	}

	// Non-admins only ever see their own interactions.
	if !actor.IsAdmin() {
		userID := actor.ID
		filter.UserID = &userID
	}

	interactions, total, err := s.interactions.Search(ctx, filter)
	if err != nil {
		return dto.PagedInteractionsResponse{}, err
	}

	return dto.PagedInteractionsResponse{
		Items:    dto.NewInteractionResponseSlice(interactions),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (s *interactionService) ownedInteraction(ctx context.Context, actor Actor, interactionID uint) (models.Interaction, error) {
	interaction, err := s.interactions.GetByID(ctx, interactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Interaction{}, ErrInteractionNotFound
		}
		return models.Interaction{}, err
	}

	// Hidden rather than forbidden: callers cannot discover other users' sessions.
	if interaction.UserID != actor.ID && !actor.IsAdmin() {
		return models.Interaction{}, ErrInteractionNotFound
	}

	return interaction, nil
}
