package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/evalforge/feedback-api/internal/config"
	"github.com/evalforge/feedback-api/internal/handler"
	"github.com/evalforge/feedback-api/internal/middleware"
	"github.com/evalforge/feedback-api/internal/observability"
	"github.com/evalforge/feedback-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	InteractionHandler *handler.InteractionHandler
	FeedbackHandler    *handler.FeedbackHandler
	ValidationHandler  *handler.ValidationHandler
	DatasetHandler     *handler.DatasetHandler
	DimensionHandler   *handler.DimensionHandler
	BookmarkHandler    *handler.BookmarkHandler
	LeaderboardHandler *handler.LeaderboardHandler
	AnalyticsHandler   *handler.AnalyticsHandler
	JWTMiddleware      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	reviewOnly := middleware.RequireRole(service.RoleValidator, service.RoleAdmin)

	if deps.InteractionHandler != nil {
		// Prompt submission fans out to the model gateway, so the group carries
		// a per-user rate limit.
		interactions := api.Group("/interactions", jwtMiddleware, middleware.RateLimit("interactions", 60, time.Minute))
		deps.InteractionHandler.Register(interactions)
	}

	if deps.FeedbackHandler != nil {
		feedback := api.Group("/feedback", jwtMiddleware)
		deps.FeedbackHandler.Register(feedback)
	}

	if deps.ValidationHandler != nil {
		validation := api.Group("/validation", jwtMiddleware, reviewOnly)
		deps.ValidationHandler.Register(validation)
	}

	if deps.DatasetHandler != nil {
		dataset := api.Group("/dataset", jwtMiddleware, reviewOnly)
		deps.DatasetHandler.Register(dataset)
	}

	if deps.DimensionHandler != nil {
		// Listing is open to any authenticated caller; mutation is admin-gated
		// inside the service.
		dimensions := api.Group("/dimensions", jwtMiddleware)
		deps.DimensionHandler.Register(dimensions)
	}

	if deps.BookmarkHandler != nil {
		bookmarks := api.Group("/bookmarks", jwtMiddleware)
		deps.BookmarkHandler.Register(bookmarks)
	}

	if deps.LeaderboardHandler != nil {
		leaderboard := api.Group("/leaderboard", jwtMiddleware)
		deps.LeaderboardHandler.Register(leaderboard)
	}

	if deps.AnalyticsHandler != nil {
		// System metrics are admin-gated inside the service.
		analytics := api.Group("/analytics", jwtMiddleware)
		deps.AnalyticsHandler.Register(analytics)
	}
}
