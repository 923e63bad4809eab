package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/service"
	"github.com/evalforge/feedback-api/internal/utils"
)

// FeedbackHandler wires feedback submission and queue HTTP routes.
type FeedbackHandler struct {
	feedback service.FeedbackService
	logger   zerolog.Logger
}

// NewFeedbackHandler constructs the handler.
func NewFeedbackHandler(feedback service.FeedbackService, logger zerolog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		feedback: feedback,
		logger:   logger.With().Str("component", "feedback_handler").Logger(),
	}
}

// Register attaches feedback endpoints to the router group.
func (h *FeedbackHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
	router.Get("/pending", h.listPending)
	router.Get("/response/:responseId", h.getForResponse)
}

func (h *FeedbackHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmitFeedbackRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	feedback, err := h.feedback.Submit(c.UserContext(), actorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "feedback submitted", feedback)
}

func (h *FeedbackHandler) getForResponse(c *fiber.Ctx) error {
	responseID, err := parseUintParam(c, "responseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	feedback, err := h.feedback.GetForResponse(c.UserContext(), responseID)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "feedback retrieved", feedback)
}

func (h *FeedbackHandler) listPending(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	var modelID *string
	if value := strings.TrimSpace(c.Query("model_id")); value != "" {
		modelID = &value
	}

	queue, err := h.feedback.ListPending(c.UserContext(), actorFromContext(c), modelID, page, pageSize)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "pending feedback retrieved", queue)
}
