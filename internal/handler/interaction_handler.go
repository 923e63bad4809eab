package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/service"
	"github.com/evalforge/feedback-api/internal/utils"
)

// InteractionHandler wires interaction and prompt HTTP routes.
type InteractionHandler struct {
	interactions service.InteractionService
	prompts      service.PromptService
	logger       zerolog.Logger
}

// NewInteractionHandler constructs the handler.
func NewInteractionHandler(interactions service.InteractionService, prompts service.PromptService, logger zerolog.Logger) *InteractionHandler {
	return &InteractionHandler{
		interactions: interactions,
		prompts:      prompts,
		logger:       logger.With().Str("component", "interaction_handler").Logger(),
	}
}

// Register attaches interaction endpoints to the router group.
func (h *InteractionHandler) Register(router fiber.Router) {
	router.Post("", h.start)
	router.Get("", h.search)
	router.Post("/:id/prompts", h.submitPrompt)
	router.Post("/:id/end", h.end)
	router.Get("/:id/history", h.history)
}

func (h *InteractionHandler) start(c *fiber.Ctx) error {
	var payload dto.StartInteractionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	interaction, err := h.interactions.Start(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "interaction started", interaction)
}

func (h *InteractionHandler) submitPrompt(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmitPromptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	exchange, err := h.prompts.Submit(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	message := "prompt answered"
	if exchange.Degraded {
		message = "prompt recorded, generation degraded"
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, message, exchange)
}

func (h *InteractionHandler) end(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.EndInteractionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	interaction, err := h.interactions.End(c.UserContext(), actorFromContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "interaction ended", interaction)
}

func (h *InteractionHandler) history(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	history, err := h.interactions.History(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "history retrieved", history)
}

func (h *InteractionHandler) search(c *fiber.Ctx) error {
	var payload dto.InteractionSearchRequest
	if err := c.QueryParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	results, err := h.interactions.Search(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "interactions retrieved", results)
}
