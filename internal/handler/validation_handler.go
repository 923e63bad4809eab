package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/service"
	"github.com/evalforge/feedback-api/internal/utils"
)

// ValidationHandler wires validation workflow HTTP routes.
type ValidationHandler struct {
	validations service.ValidationService
	logger      zerolog.Logger
}

// NewValidationHandler constructs the handler.
func NewValidationHandler(validations service.ValidationService, logger zerolog.Logger) *ValidationHandler {
	return &ValidationHandler{
		validations: validations,
		logger:      logger.With().Str("component", "validation_handler").Logger(),
	}
}

// Register attaches validation endpoints to the router group.
func (h *ValidationHandler) Register(router fiber.Router) {
	router.Post("/:feedbackId/validate", h.validate)
	router.Get("/stats", h.stats)
}

func (h *ValidationHandler) validate(c *fiber.Ctx) error {
	feedbackID, err := parseUintParam(c, "feedbackId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ValidateFeedbackRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.validations.Validate(c.UserContext(), actorFromContext(c), feedbackID, payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "feedback validated", record)
}

func (h *ValidationHandler) stats(c *fiber.Ctx) error {
	var modelID *string
	if value := strings.TrimSpace(c.Query("model_id")); value != "" {
		modelID = &value
	}

	stats, err := h.validations.Stats(c.UserContext(), modelID)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "validation stats retrieved", stats)
}
