package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/evalforge/feedback-api/internal/config"
	"github.com/evalforge/feedback-api/internal/database"
	"github.com/evalforge/feedback-api/internal/handler"
	"github.com/evalforge/feedback-api/internal/middleware"
	"github.com/evalforge/feedback-api/internal/models"
	"github.com/evalforge/feedback-api/internal/repository"
	"github.com/evalforge/feedback-api/internal/router"
	"github.com/evalforge/feedback-api/internal/service"
	"github.com/evalforge/feedback-api/pkg/modelgateway"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Interaction{},
		&models.Prompt{},
		&models.Response{},
		&models.EvaluationDimension{},
		&models.Feedback{},
		&models.DimensionRating{},
		&models.ValidationRecord{},
		&models.DatasetEntry{},
		&models.InteractionBookmark{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	events := service.NewNopPublisher()
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Drain()
		events = service.NewNATSPublisher(conn, cfg.EventPrefix, logger)
	} else {
		logger.Warn().Msg("nats url not configured, domain events disabled")
	}

	gateway, err := modelgateway.NewOpenAIGateway(modelgateway.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.GatewayTimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create model gateway: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	interactionRepo := repository.NewInteractionRepository(db)
	promptRepo := repository.NewPromptRepository(db)
	dimensionRepo := repository.NewDimensionRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	validationRepo := repository.NewValidationRepository(db)
	datasetRepo := repository.NewDatasetRepository(db)
	bookmarkRepo := repository.NewBookmarkRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	interactionService := service.NewInteractionService(interactionRepo, promptRepo, gateway, events, validate, logger)
	promptService := service.NewPromptService(interactionRepo, promptRepo, gateway, events, validate, logger)
	feedbackService := service.NewFeedbackService(feedbackRepo, promptRepo, dimensionRepo, events, validate, logger)
	datasetService := service.NewDatasetService(datasetRepo, feedbackRepo, promptRepo, events, redisClient, cfg.StatsCacheTTL, logger)
	validationService := service.NewValidationService(feedbackRepo, validationRepo, datasetService, events, redisClient, cfg.StatsCacheTTL, validate, logger)
	dimensionService := service.NewDimensionService(dimensionRepo, validate, logger)
	bookmarkService := service.NewBookmarkService(bookmarkRepo, interactionRepo, validate, logger)
	leaderboardService := service.NewLeaderboardService(feedbackRepo, interactionRepo, validationRepo, redisClient, cfg.StatsCacheTTL, logger)
	analyticsService := service.NewAnalyticsService(analyticsRepo, redisClient, cfg.StatsCacheTTL, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		InteractionHandler: handler.NewInteractionHandler(interactionService, promptService, logger),
		FeedbackHandler:    handler.NewFeedbackHandler(feedbackService, logger),
		ValidationHandler:  handler.NewValidationHandler(validationService, logger),
		DatasetHandler:     handler.NewDatasetHandler(datasetService, logger),
		DimensionHandler:   handler.NewDimensionHandler(dimensionService, logger),
		BookmarkHandler:    handler.NewBookmarkHandler(bookmarkService, logger),
		LeaderboardHandler: handler.NewLeaderboardHandler(leaderboardService, logger),
		AnalyticsHandler:   handler.NewAnalyticsHandler(analyticsService, logger),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
