package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalforge/feedback-api/internal/service"
	"github.com/evalforge/feedback-api/internal/utils"
)

// LeaderboardHandler wires contributor leaderboard HTTP routes.
type LeaderboardHandler struct {
	leaderboard service.LeaderboardService
	logger      zerolog.Logger
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(leaderboard service.LeaderboardService, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboard: leaderboard,
		logger:      logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register attaches leaderboard endpoints to the router group.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Get("", h.leaderboardPage)
}

func (h *LeaderboardHandler) leaderboardPage(c *fiber.Ctx) error {
	period := strings.ToLower(strings.TrimSpace(c.Query("period")))

	board, err := h.leaderboard.Leaderboard(c.UserContext(), period)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "leaderboard retrieved", board)
}
