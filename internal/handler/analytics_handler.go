package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalforge/feedback-api/internal/repository"
	"github.com/evalforge/feedback-api/internal/service"
	"github.com/evalforge/feedback-api/internal/utils"
)

// AnalyticsHandler wires analytics HTTP routes.
type AnalyticsHandler struct {
	analytics service.AnalyticsService
	logger    zerolog.Logger
}

// NewAnalyticsHandler constructs the handler.
func NewAnalyticsHandler(analytics service.AnalyticsService, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		logger:    logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// Register attaches analytics endpoints to the router group.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Get("/user", h.user)
	router.Get("/model/:model_id", h.model)
	router.Get("/system", h.system)
}

// parseAnalyticsWindow reads the optional start_date/end_date RFC3339 bounds.
func parseAnalyticsWindow(c *fiber.Ctx) (repository.AnalyticsWindow, error) {
	var window repository.AnalyticsWindow

	if value := strings.TrimSpace(c.Query("start_date")); value != "" {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return window, errors.New("invalid start_date, expected RFC3339")
		}
		window.Start = &parsed
	}

	if value := strings.TrimSpace(c.Query("end_date")); value != "" {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return window, errors.New("invalid end_date, expected RFC3339")
		}
		window.End = &parsed
	}

	return window, nil
}

func (h *AnalyticsHandler) user(c *fiber.Ctx) error {
	window, err := parseAnalyticsWindow(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	// Admins may inspect another user's engagement via ?user_id.
	userID := strings.TrimSpace(c.Query("user_id"))

	engagement, err := h.analytics.UserEngagement(c.UserContext(), actorFromContext(c), userID, window)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "user engagement retrieved", engagement)
}

func (h *AnalyticsHandler) model(c *fiber.Ctx) error {
	window, err := parseAnalyticsWindow(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	modelID := strings.TrimSpace(c.Params("model_id"))
	if modelID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "model_id is required")
	}

	performance, err := h.analytics.ModelPerformance(c.UserContext(), modelID, window)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "model performance retrieved", performance)
}

func (h *AnalyticsHandler) system(c *fiber.Ctx) error {
	window, err := parseAnalyticsWindow(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	metrics, err := h.analytics.System(c.UserContext(), actorFromContext(c), window)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "system metrics retrieved", metrics)
}
