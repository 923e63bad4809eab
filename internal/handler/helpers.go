package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalforge/feedback-api/internal/middleware"
	"github.com/evalforge/feedback-api/internal/service"
	"github.com/evalforge/feedback-api/internal/utils"
)

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := c.Params(name)
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	actor := service.Actor{}

	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(string); ok {
			actor.ID = strings.TrimSpace(id)
		}
	}

	if v := c.Locals("user_roles"); v != nil {
		if roles, ok := v.([]string); ok {
			actor.Roles = roles
		}
	}

	return actor
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// sendServiceError maps sentinel errors from the service layer onto HTTP
// statuses. Ownership failures that the services hide surface as 404 there, so
// only explicit capability errors become 403.
func sendServiceError(c *fiber.Ctx, logger *zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors

	switch {
	case errors.Is(err, service.ErrInteractionNotFound),
		errors.Is(err, service.ErrResponseNotFound),
		errors.Is(err, service.ErrFeedbackNotFound),
		errors.Is(err, service.ErrDimensionNotFound),
		errors.Is(err, service.ErrBookmarkNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())

	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())

	case errors.Is(err, service.ErrInteractionClosed),
		errors.Is(err, service.ErrFeedbackExists),
		errors.Is(err, service.ErrFeedbackFinalized),
		errors.Is(err, service.ErrDimensionExists),
		errors.Is(err, service.ErrSequenceConflict):
		return utils.SendError(c, fiber.StatusConflict, err.Error())

	case errors.Is(err, service.ErrUnknownModel),
		errors.Is(err, service.ErrUnknownDimension),
		errors.Is(err, service.ErrInactiveDimension),
		errors.Is(err, service.ErrDuplicateDimension),
		errors.Is(err, service.ErrInvalidScore),
		errors.Is(err, service.ErrUnknownPeriod),
		errors.Is(err, service.ErrUnknownExportFormat),
		errors.Is(err, service.ErrFeedbackNotValidated):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())

	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())

	default:
		logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
