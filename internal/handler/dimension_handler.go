package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/service"
	"github.com/evalforge/feedback-api/internal/utils"
)

// DimensionHandler wires evaluation dimension HTTP routes.
type DimensionHandler struct {
	dimensions service.DimensionService
	logger     zerolog.Logger
}

// NewDimensionHandler constructs the handler.
func NewDimensionHandler(dimensions service.DimensionService, logger zerolog.Logger) *DimensionHandler {
	return &DimensionHandler{
		dimensions: dimensions,
		logger:     logger.With().Str("component", "dimension_handler").Logger(),
	}
}

// Register attaches dimension endpoints to the router group.
func (h *DimensionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Patch("/:id", h.update)
}

func (h *DimensionHandler) list(c *fiber.Ctx) error {
	modelID := strings.TrimSpace(c.Query("model_id"))
	if modelID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "model_id is required")
	}

	activeOnly := c.QueryBool("active_only", true)

	dimensions, err := h.dimensions.List(c.UserContext(), modelID, activeOnly)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "dimensions retrieved", dimensions)
}

func (h *DimensionHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateDimensionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	dimension, err := h.dimensions.Create(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "dimension created", dimension)
}

func (h *DimensionHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.UpdateDimensionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	dimension, err := h.dimensions.Update(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "dimension updated", dimension)
}
