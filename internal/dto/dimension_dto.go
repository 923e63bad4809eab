package dto

import (
	"time"

	"github.com/evalforge/feedback-api/internal/models"
)

// CreateDimensionRequest registers a new evaluation dimension for a model.
// ModelID may be the literal "all" to share a dimension across models.
type CreateDimensionRequest struct {
	ModelID     string `json:"model_id" validate:"required,min=1,max=128"`
	Name        string `json:"name" validate:"required,min=1,max=128"`
	Description string `json:"description" validate:"omitempty,max=4000"`
}

// UpdateDimensionRequest modifies a dimension's name, description or active flag.
type UpdateDimensionRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=128"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	Active      *bool   `json:"active"`
}

// DimensionResponse is returned to API clients when viewing dimensions.
type DimensionResponse struct {
	ID          uint      `json:"id"`
	ModelID     string    `json:"model_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewDimensionResponse maps a dimension model to its API shape.
func NewDimensionResponse(dimension models.EvaluationDimension) DimensionResponse {
	return DimensionResponse{
		ID:          dimension.ID,
		ModelID:     dimension.ModelID,
		Name:        dimension.Name,
		Description: dimension.Description,
		CreatedBy:   dimension.CreatedBy,
		Active:      dimension.Active,
		CreatedAt:   dimension.CreatedAt,
	}
}

// NewDimensionResponseSlice maps a slice of dimensions.
func NewDimensionResponseSlice(dimensions []models.EvaluationDimension) []DimensionResponse {
	responses := make([]DimensionResponse, 0, len(dimensions))
	for _, dimension := range dimensions {
		responses = append(responses, NewDimensionResponse(dimension))
	}
	return responses
}
