package handler

import (
	"bufio"
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalforge/feedback-api/internal/middleware"
	"github.com/evalforge/feedback-api/internal/service"
	"github.com/evalforge/feedback-api/internal/utils"
)

// DatasetHandler wires training dataset HTTP routes.
type DatasetHandler struct {
	datasets service.DatasetService
	logger   zerolog.Logger
}

// NewDatasetHandler constructs the handler.
func NewDatasetHandler(datasets service.DatasetService, logger zerolog.Logger) *DatasetHandler {
	return &DatasetHandler{
		datasets: datasets,
		logger:   logger.With().Str("component", "dataset_handler").Logger(),
	}
}

// Register attaches dataset endpoints to the router group.
func (h *DatasetHandler) Register(router fiber.Router) {
	router.Get("/export", h.export)
	router.Get("/stats", h.stats)
	router.Post("/reconcile", h.reconcile)
}

func (h *DatasetHandler) export(c *fiber.Ctx) error {
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if format == "" {
		format = service.ExportFormatJSON
	}
	modelID := strings.TrimSpace(c.Query("model_id"))

	actor := actorFromContext(c)
	// Once the stream writer is installed the 200 and headers are committed, so
	// the capability check has to happen here.
	if !actor.CanValidate() {
		return sendServiceError(c, requestLogger(h.logger, c), service.ErrForbidden)
	}

	switch format {
	case service.ExportFormatJSON:
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="dataset.json"`)
	case service.ExportFormatCSV:
		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="dataset.csv"`)
	default:
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrUnknownExportFormat.Error())
	}

	logger := requestLogger(h.logger, c)
	// The request context dies with the handler; the stream writer runs after it.
	ctx := middleware.ContextWithCorrelation(context.Background(), middleware.GetCorrelationID(c))

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := h.datasets.Export(ctx, actor, modelID, format, w); err != nil {
			// Headers are gone; all we can do is truncate and log.
			logger.Error().Err(err).Str("format", format).Msg("dataset export aborted")
		}
	})

	return nil
}

func (h *DatasetHandler) stats(c *fiber.Ctx) error {
	var modelID *string
	if value := strings.TrimSpace(c.Query("model_id")); value != "" {
		modelID = &value
	}

	stats, err := h.datasets.Stats(c.UserContext(), modelID)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "dataset stats retrieved", stats)
}

func (h *DatasetHandler) reconcile(c *fiber.Ctx) error {
	result, err := h.datasets.Reconcile(c.UserContext(), actorFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "dataset reconciled", result)
}
