package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/models"
	"github.com/evalforge/feedback-api/internal/repository"
	"github.com/evalforge/feedback-api/pkg/modelgateway"
)

// ErrSequenceConflict indicates sequence allocation kept colliding with
// concurrent submissions after all retries were spent.
var ErrSequenceConflict = errors.New("prompt sequence allocation conflict")

// maxSequenceAttempts bounds the insert-and-retry loop for sequence allocation.
const maxSequenceAttempts = 3

// degradedResponseContent is persisted as the response body when generation fails,
// so a prompt is never left without a terminal response.
const degradedResponseContent = "An error occurred while generating the response."

// PromptService orchestrates prompt submission: sequence allocation, the gateway
// round trip and unconditional response persistence.
type PromptService interface {
	Submit(ctx context.Context, actor Actor, interactionID uint, payload dto.SubmitPromptRequest) (dto.ExchangeResponse, error)
}

type promptService struct {
	interactions repository.InteractionRepository
	prompts      repository.PromptRepository
	gateway      modelgateway.Gateway
	events       EventPublisher
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewPromptService constructs a PromptService instance.
func NewPromptService(
	interactions repository.InteractionRepository,
	prompts repository.PromptRepository,
	gateway modelgateway.Gateway,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) PromptService {
	return &promptService{
		interactions: interactions,
		prompts:      prompts,
		gateway:      gateway,
		events:       events,
		validator:    validate,
		logger:       logger.With().Str("component", "prompt_service").Logger(),
		tracer:       otel.Tracer("github.com/evalforge/feedback-api/internal/service/prompt"),
		now:          time.Now,
	}
}

func (s *promptService) Submit(ctx context.Context, actor Actor, interactionID uint, payload dto.SubmitPromptRequest) (dto.ExchangeResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExchangeResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "prompt.submit", trace.WithAttributes(
		attribute.Int64("interaction_id", int64(interactionID)),
	))
	defer span.End()

	interaction, err := s.interactions.GetByID(ctx, interactionID)
	if err != nil {
		span.SetStatus(codes.Error, "interaction_lookup_failed")
		return dto.ExchangeResponse{}, translateNotFound(err, ErrInteractionNotFound)
	}

	if interaction.UserID != actor.ID && !actor.IsAdmin() {
		span.SetStatus(codes.Error, "interaction_not_owned")
		return dto.ExchangeResponse{}, ErrInteractionNotFound
	}

	if interaction.Status != models.InteractionStatusActive {
		span.SetStatus(codes.Error, "interaction_closed")
		return dto.ExchangeResponse{}, ErrInteractionClosed
	}

	prompt, err := s.persistPrompt(ctx, interaction.ID, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prompt_persist_failed")
		return dto.ExchangeResponse{}, err
	}

	span.SetAttributes(attribute.Int("sequence_number", prompt.SequenceNumber))

	s.events.Publish(ctx, EventPromptSubmitted, map[string]interface{}{
		"prompt_id":       prompt.ID,
		"interaction_id":  interaction.ID,
		"user_id":         interaction.UserID,
		"sequence_number": prompt.SequenceNumber,
	})

	response := s.generate(ctx, interaction, prompt)
	if err := s.prompts.CreateResponse(ctx, &response); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "response_persist_failed")
		return dto.ExchangeResponse{}, err
	}

	if response.Failed() {
		s.logger.Warn().
			Uint("prompt_id", prompt.ID).
			Str("error", response.Error).
			Msg("response degraded by gateway failure")
	}

	return dto.ExchangeResponse{
		Prompt:   dto.NewPromptResponse(prompt),
		Response: dto.NewGenerationResponse(response),
		Degraded: response.Failed(),
	}, nil
}

// persistPrompt inserts the prompt under the next free sequence number, retrying
// a bounded number of times when a concurrent submission claims the candidate.
func (s *promptService) persistPrompt(ctx context.Context, interactionID uint, payload dto.SubmitPromptRequest) (models.Prompt, error) {
	prompt := models.Prompt{
		InteractionID:  interactionID,
		Content:        payload.Content,
		Context:        emptyIfNil(payload.Context),
		ClientMetadata: emptyIfNil(payload.ClientMetadata),
		SubmittedAt:    s.now(),
	}

	for attempt := 0; attempt < maxSequenceAttempts; attempt++ {
		err := s.prompts.CreateWithNextSequence(ctx, &prompt)
		if err == nil {
			return prompt, nil
		}
		if !errors.Is(err, repository.ErrSequenceTaken) {
			return models.Prompt{}, err
		}
	}

	return models.Prompt{}, ErrSequenceConflict
}

// generate performs the gateway round trip and always returns a terminal
// response record, carrying either generated content or an error marker.
func (s *promptService) generate(ctx context.Context, interaction models.Interaction, prompt models.Prompt) models.Response {
	result, err := s.gateway.Infer(ctx, modelgateway.Request{
		ModelID:      interaction.ModelID,
		ModelVersion: interaction.ModelVersion,
		EndpointName: interaction.EndpointName,
		Prompt:       prompt.Content,
		Context:      prompt.Context,
	})

	if err != nil {
		return models.Response{
			PromptID:    prompt.ID,
			Content:     degradedResponseContent,
			Error:       err.Error(),
			GeneratedAt: s.now(),
		}
	}

	response := models.Response{
		PromptID:    prompt.ID,
		Content:     result.Content,
		Confidence:  result.Confidence,
		GeneratedAt: s.now(),
	}
	if result.ProcessingTimeMs > 0 {
		processing := result.ProcessingTimeMs
		response.ProcessingTimeMs = &processing
	}
	if result.TokensUsed > 0 {
		tokens := result.TokensUsed
		response.TokensUsed = &tokens
	}

	return response
}

func emptyIfNil(m map[string]interface{}) datatypes.JSONMap {
	if m == nil {
		return datatypes.JSONMap{}
	}
	return datatypes.JSONMap(m)
}
