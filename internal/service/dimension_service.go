package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/models"
	"github.com/evalforge/feedback-api/internal/repository"
)

// ErrDimensionNotFound indicates the requested dimension does not exist.
var ErrDimensionNotFound = errors.New("evaluation dimension not found")

// ErrDimensionExists indicates a dimension with the same name already exists
// within the model scope.
var ErrDimensionExists = errors.New("evaluation dimension already exists for this model")

// DimensionService administers evaluation dimensions. Dimensions referenced by
// ratings are never deleted, only deactivated.
type DimensionService interface {
	Create(ctx context.Context, actor Actor, payload dto.CreateDimensionRequest) (dto.DimensionResponse, error)
	List(ctx context.Context, modelID string, activeOnly bool) ([]dto.DimensionResponse, error)
	Update(ctx context.Context, actor Actor, dimensionID uint, payload dto.UpdateDimensionRequest) (dto.DimensionResponse, error)
}

type dimensionService struct {
	dimensions repository.DimensionRepository
	validator  *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

// NewDimensionService constructs a DimensionService instance.
func NewDimensionService(
	dimensions repository.DimensionRepository,
	validate *validator.Validate,
	logger zerolog.Logger,
) DimensionService {
	return &dimensionService{
		dimensions: dimensions,
		validator:  validate,
		logger:     logger.With().Str("component", "dimension_service").Logger(),
		now:        time.Now,
	}
}

func (s *dimensionService) Create(ctx context.Context, actor Actor, payload dto.CreateDimensionRequest) (dto.DimensionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DimensionResponse{}, err
	}

	if !actor.IsAdmin() {
		return dto.DimensionResponse{}, ErrForbidden
	}

	name := strings.TrimSpace(payload.Name)

	if _, err := s.dimensions.GetByName(ctx, payload.ModelID, name); err == nil {
		return dto.DimensionResponse{}, ErrDimensionExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.DimensionResponse{}, err
	}

	dimension := models.EvaluationDimension{
		ModelID:     payload.ModelID,
		Name:        name,
		Description: strings.TrimSpace(payload.Description),
		CreatedBy:   actor.ID,
		Active:      true,
		CreatedAt:   s.now(),
	}

	if err := s.dimensions.Create(ctx, &dimension); err != nil {
		// A concurrent create may win the unique (model_id, name) constraint.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.DimensionResponse{}, ErrDimensionExists
		}
		return dto.DimensionResponse{}, err
	}

	s.logger.Info().Uint("dimension_id", dimension.ID).Str("model_id", dimension.ModelID).Str("name", dimension.Name).Msg("dimension created")

	return dto.NewDimensionResponse(dimension), nil
}

func (s *dimensionService) List(ctx context.Context, modelID string, activeOnly bool) ([]dto.DimensionResponse, error) {
	dimensions, err := s.dimensions.ListByModel(ctx, modelID, activeOnly)
	if err != nil {
		return nil, err
	}

	return dto.NewDimensionResponseSlice(dimensions), nil
}

func (s *dimensionService) Update(ctx context.Context, actor Actor, dimensionID uint, payload dto.UpdateDimensionRequest) (dto.DimensionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DimensionResponse{}, err
	}

	if !actor.IsAdmin() {
		return dto.DimensionResponse{}, ErrForbidden
	}

	dimension, err := s.dimensions.GetByID(ctx, dimensionID)
	if err != nil {
		return dto.DimensionResponse{}, translateNotFound(err, ErrDimensionNotFound)
	}

	if payload.Name != nil {
		name := strings.TrimSpace(*payload.Name)
		if !strings.EqualFold(name, dimension.Name) {
			if existing, err := s.dimensions.GetByName(ctx, dimension.ModelID, name); err == nil && existing.ID != dimension.ID {
				return dto.DimensionResponse{}, ErrDimensionExists
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.DimensionResponse{}, err
			}
		}
		dimension.Name = name
	}

	if payload.Description != nil {
		dimension.Description = strings.TrimSpace(*payload.Description)
	}

	if payload.Active != nil {
		dimension.Active = *payload.Active
	}

	if err := s.dimensions.Update(ctx, &dimension); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.DimensionResponse{}, ErrDimensionExists
		}
		return dto.DimensionResponse{}, err
	}

	s.logger.Info().Uint("dimension_id", dimension.ID).Bool("active", dimension.Active).Msg("dimension updated")

	return dto.NewDimensionResponse(dimension), nil
}
