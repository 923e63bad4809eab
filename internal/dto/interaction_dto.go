package dto

import (
	"time"

	"github.com/evalforge/feedback-api/internal/models"
)

// StartInteractionRequest opens a new conversation session with a model.
type StartInteractionRequest struct {
	ModelID      string                 `json:"model_id" validate:"required,min=1,max=128"`
	ModelVersion string                 `json:"model_version" validate:"required,min=1,max=64"`
	EndpointName string                 `json:"endpoint_name" validate:"omitempty,max=128"`
	Tags         []string               `json:"tags" validate:"omitempty,dive,max=64"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// SubmitPromptRequest carries one prompt turn for an active interaction.
type SubmitPromptRequest struct {
	Content        string                 `json:"content" validate:"required,min=1"`
	Context        map[string]interface{} `json:"context"`
	ClientMetadata map[string]interface{} `json:"client_metadata"`
}

// EndInteractionRequest closes an interaction with a terminal status.
type EndInteractionRequest struct {
	Status string `json:"status" validate:"required,oneof=COMPLETED ABANDONED"`
}

// InteractionSearchRequest narrows interaction searches.
type InteractionSearchRequest struct {
	ModelID       *string    `query:"model_id"`
	Status        *string    `query:"status" validate:"omitempty,oneof=ACTIVE COMPLETED ABANDONED"`
	StartedAfter  *time.Time `query:"started_after"`
	StartedBefore *time.Time `query:"started_before"`
	Page          int        `query:"page" validate:"omitempty,gte=1"`
	PageSize      int        `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// InteractionResponse is returned to API clients when viewing interactions.
type InteractionResponse struct {
	ID           uint                   `json:"id"`
	UserID       string                 `json:"user_id"`
	ModelID      string                 `json:"model_id"`
	ModelVersion string                 `json:"model_version"`
	EndpointName string                 `json:"endpoint_name"`
	SessionID    string                 `json:"session_id"`
	Status       string                 `json:"status"`
	Tags         []string               `json:"tags"`
	Metadata     map[string]interface{} `json:"metadata"`
	StartedAt    time.Time              `json:"started_at"`
	EndedAt      *time.Time             `json:"ended_at"`
}

// NewInteractionResponse maps an interaction model to its API shape.
func NewInteractionResponse(interaction models.Interaction) InteractionResponse {
	metadata := map[string]interface{}(interaction.Metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return InteractionResponse{
		ID:           interaction.ID,
		UserID:       interaction.UserID,
		ModelID:      interaction.ModelID,
		ModelVersion: interaction.ModelVersion,
		EndpointName: interaction.EndpointName,
		SessionID:    interaction.SessionID,
		Status:       interaction.Status,
		Tags:         interaction.TagList(),
		Metadata:     metadata,
		StartedAt:    interaction.StartedAt,
		EndedAt:      interaction.EndedAt,
	}
}

// NewInteractionResponseSlice maps a slice of interactions.
func NewInteractionResponseSlice(interactions []models.Interaction) []InteractionResponse {
	responses := make([]InteractionResponse, 0, len(interactions))
	for _, interaction := range interactions {
		responses = append(responses, NewInteractionResponse(interaction))
	}
	return responses
}

// PagedInteractionsResponse wraps a page of search results.
type PagedInteractionsResponse struct {
	Items    []InteractionResponse `json:"items"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// PromptResponse serializes a prompt turn.
type PromptResponse struct {
	ID             uint                   `json:"id"`
	InteractionID  uint                   `json:"interaction_id"`
	Content        string                 `json:"content"`
	SequenceNumber int                    `json:"sequence_number"`
	Context        map[string]interface{} `json:"context"`
	SubmittedAt    time.Time              `json:"submitted_at"`
}

// NewPromptResponse maps a prompt model to its API shape.
func NewPromptResponse(prompt models.Prompt) PromptResponse {
	context := map[string]interface{}(prompt.Context)
	if context == nil {
		context = map[string]interface{}{}
	}

	return PromptResponse{
		ID:             prompt.ID,
		InteractionID:  prompt.InteractionID,
		Content:        prompt.Content,
		SequenceNumber: prompt.SequenceNumber,
		Context:        context,
		SubmittedAt:    prompt.SubmittedAt,
	}
}

// GenerationResponse serializes the model output for one prompt.
type GenerationResponse struct {
	ID               uint      `json:"id"`
	PromptID         uint      `json:"prompt_id"`
	Content          string    `json:"content"`
	ProcessingTimeMs *int      `json:"processing_time_ms"`
	TokensUsed       *int      `json:"tokens_used"`
	Confidence       *float64  `json:"confidence"`
	Error            string    `json:"error,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// NewGenerationResponse maps a response model to its API shape.
func NewGenerationResponse(response models.Response) GenerationResponse {
	return GenerationResponse{
		ID:               response.ID,
		PromptID:         response.PromptID,
		Content:          response.Content,
		ProcessingTimeMs: response.ProcessingTimeMs,
		TokensUsed:       response.TokensUsed,
		Confidence:       response.Confidence,
		Error:            response.Error,
		GeneratedAt:      response.GeneratedAt,
	}
}

// ExchangeResponse pairs a prompt with its response. Degraded marks turns whose
// generation failed upstream; the error detail lives on the response record.
type ExchangeResponse struct {
	Prompt   PromptResponse     `json:"prompt"`
	Response GenerationResponse `json:"response"`
	Degraded bool               `json:"degraded"`
}
