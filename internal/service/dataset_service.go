package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/models"
	"github.com/evalforge/feedback-api/internal/repository"
)

// ErrFeedbackNotValidated indicates a materialization attempt against feedback
// that has not been accepted.
var ErrFeedbackNotValidated = errors.New("feedback is not validated")

// ErrUnknownExportFormat indicates the requested export format is not supported.
var ErrUnknownExportFormat = errors.New("unsupported export format")

const (
	// ExportFormatJSON streams entries as a JSON array.
	ExportFormatJSON = "json"
	// ExportFormatCSV streams entries as a flat CSV file.
	ExportFormatCSV = "csv"
)

// exportBatchSize bounds how many entries an export reads per round trip.
const exportBatchSize = 500

// reconcileBatchSize bounds how many missing entries one sweep backfills.
const reconcileBatchSize = 200

// DatasetService materializes validated feedback into training-ready entries and
// serves the resulting dataset.
type DatasetService interface {
	Materializer
	Export(ctx context.Context, actor Actor, modelID, format string, w io.Writer) error
	Stats(ctx context.Context, modelID *string) (dto.DatasetStatsResponse, error)
	Reconcile(ctx context.Context, actor Actor) (dto.ReconcileResponse, error)
}

type datasetService struct {
	datasets repository.DatasetRepository
	feedback repository.FeedbackRepository
	prompts  repository.PromptRepository
	events   EventPublisher
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewDatasetService constructs a DatasetService instance.
func NewDatasetService(
	datasets repository.DatasetRepository,
	feedback repository.FeedbackRepository,
	prompts repository.PromptRepository,
	events EventPublisher,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) DatasetService {
	return &datasetService{
		datasets: datasets,
		feedback: feedback,
		prompts:  prompts,
		events:   events,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "dataset_service").Logger(),
		tracer:   otel.Tracer("github.com/evalforge/feedback-api/internal/service/dataset"),
		now:      time.Now,
	}
}

// MaterializeFromFeedback derives the dataset entry for one validated feedback.
// The operation is idempotent: an existing entry is returned unchanged.
func (s *datasetService) MaterializeFromFeedback(ctx context.Context, feedbackID uint) (dto.DatasetEntryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "dataset.materialize", trace.WithAttributes(
		attribute.Int64("feedback_id", int64(feedbackID)),
	))
	defer span.End()

	if existing, err := s.datasets.GetByFeedbackID(ctx, feedbackID); err == nil {
		span.SetAttributes(attribute.Bool("already_materialized", true))
		return dto.NewDatasetEntryResponse(existing), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.DatasetEntryResponse{}, err
	}

	feedback, err := s.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		span.SetStatus(codes.Error, "feedback_lookup_failed")
		return dto.DatasetEntryResponse{}, translateNotFound(err, ErrFeedbackNotFound)
	}

	if feedback.Status != models.FeedbackStatusValidated {
		span.SetStatus(codes.Error, "feedback_not_validated")
		return dto.DatasetEntryResponse{}, ErrFeedbackNotValidated
	}

	response, err := s.prompts.GetResponse(ctx, feedback.ResponseID)
	if err != nil {
		span.SetStatus(codes.Error, "response_lookup_failed")
		return dto.DatasetEntryResponse{}, translateNotFound(err, ErrResponseNotFound)
	}

	entry := buildDatasetEntry(feedback, response, s.now())

	if err := s.datasets.Create(ctx, &entry); err != nil {
		// A concurrent materialization may win the unique feedback constraint.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, getErr := s.datasets.GetByFeedbackID(ctx, feedbackID)
			if getErr != nil {
				return dto.DatasetEntryResponse{}, getErr
			}
			return dto.NewDatasetEntryResponse(existing), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "entry_create_failed")
		return dto.DatasetEntryResponse{}, err
	}

	s.events.Publish(ctx, EventDatasetEntryCreated, map[string]interface{}{
		"entry_id":    entry.ID,
		"feedback_id": entry.FeedbackID,
		"model_id":    entry.ModelID,
	})

	s.invalidateStats(ctx)

	s.logger.Info().Uint("entry_id", entry.ID).Uint("feedback_id", feedbackID).Str("model_id", entry.ModelID).Msg("dataset entry materialized")

	return dto.NewDatasetEntryResponse(entry), nil
}

// Export streams the dataset for one model to the writer in the requested
// format, reading in cursor batches so the full set is never held in memory.
func (s *datasetService) Export(ctx context.Context, actor Actor, modelID, format string, w io.Writer) error {
	if !actor.CanValidate() {
		return ErrForbidden
	}

	switch format {
	case ExportFormatJSON:
		return s.exportJSON(ctx, modelID, w)
	case ExportFormatCSV:
		return s.exportCSV(ctx, modelID, w)
	default:
		return ErrUnknownExportFormat
	}
}

func (s *datasetService) exportJSON(ctx context.Context, modelID string, w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}

	first := true
	err := s.eachEntry(ctx, modelID, func(entry models.DatasetEntry) error {
		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		first = false

		payload, err := json.Marshal(dto.NewDatasetEntryResponse(entry))
		if err != nil {
			return err
		}
		_, err = w.Write(payload)
		return err
	})
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, "]")
	return err
}

func (s *datasetService) exportCSV(ctx context.Context, modelID string, w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"prompt", "response", "correct_response", "average_rating"}); err != nil {
		return err
	}

	err := s.eachEntry(ctx, modelID, func(entry models.DatasetEntry) error {
		return writer.Write([]string{
			entry.PromptText,
			entry.ResponseText,
			entry.CorrectResponse,
			averageRatingField(entry.Metadata),
		})
	})
	if err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

// eachEntry walks the dataset in (created_at, id) order, invoking fn per entry.
func (s *datasetService) eachEntry(ctx context.Context, modelID string, fn func(models.DatasetEntry) error) error {
	var cursor *repository.DatasetCursor

	for {
		entries, err := s.datasets.ListBatch(ctx, modelID, cursor, exportBatchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		for _, entry := range entries {
			if err := fn(entry); err != nil {
				return err
			}
		}

		last := entries[len(entries)-1]
		cursor = &repository.DatasetCursor{CreatedAt: last.CreatedAt, ID: last.ID}

		if len(entries) < exportBatchSize {
			return nil
		}
	}
}

func (s *datasetService) Stats(ctx context.Context, modelID *string) (dto.DatasetStatsResponse, error) {
	cacheKey := "dataset:stats:all"
	if modelID != nil {
		cacheKey = "dataset:stats:" + *modelID
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var stats dto.DatasetStatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &stats); unmarshalErr == nil {
				return stats, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read dataset stats cache")
		}
	}

	total, breakdown, err := s.datasets.CountByModel(ctx, modelID)
	if err != nil {
		return dto.DatasetStatsResponse{}, err
	}

	byModel := make([]dto.ModelBreakdown, 0, len(breakdown))
	for _, row := range breakdown {
		byModel = append(byModel, dto.ModelBreakdown{ModelID: row.ModelID, Count: row.Total})
	}

	stats := dto.DatasetStatsResponse{
		EntryCount: total,
		ByModel:    byModel,
	}
	if modelID != nil {
		stats.ModelID = *modelID
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dataset stats cache")
			}
		}
	}

	return stats, nil
}

// Reconcile backfills dataset entries for validated feedback whose earlier
// materialization failed.
func (s *datasetService) Reconcile(ctx context.Context, actor Actor) (dto.ReconcileResponse, error) {
	if !actor.IsAdmin() {
		return dto.ReconcileResponse{}, ErrForbidden
	}

	ctx, span := s.tracer.Start(ctx, "dataset.reconcile")
	defer span.End()

	ids, err := s.datasets.ValidatedFeedbackWithoutEntry(ctx, reconcileBatchSize)
	if err != nil {
		span.RecordError(err)
		return dto.ReconcileResponse{}, err
	}

	result := dto.ReconcileResponse{Scanned: len(ids)}
	for _, id := range ids {
		if _, err := s.MaterializeFromFeedback(ctx, id); err != nil {
			result.Failed++
			result.LastError = err.Error()
			s.logger.Warn().Err(err).Uint("feedback_id", id).Msg("reconcile materialization failed")
			continue
		}
		result.Materialized++
	}

	span.SetAttributes(
		attribute.Int("scanned", result.Scanned),
		attribute.Int("materialized", result.Materialized),
		attribute.Int("failed", result.Failed),
	)
	s.logger.Info().Int("scanned", result.Scanned).Int("materialized", result.Materialized).Int("failed", result.Failed).Msg("dataset reconcile completed")

	return result, nil
}

func (s *datasetService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, "dataset:stats:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to invalidate dataset stats cache")
		}
	}
}

// buildDatasetEntry denormalizes one validated feedback and its response chain
// into an immutable training record.
func buildDatasetEntry(feedback models.Feedback, response models.Response, createdAt time.Time) models.DatasetEntry {
	interaction := response.Prompt.Interaction

	ratings := make(map[string]interface{}, len(feedback.Ratings))
	var correct string
	var scoreSum int
	for _, rating := range feedback.Ratings {
		ratings[rating.Dimension.Name] = rating.Score
		scoreSum += rating.Score
		// The last correction present wins when several ratings propose one.
		if rating.CorrectResponse != "" {
			correct = rating.CorrectResponse
		}
	}

	var average float64
	if len(feedback.Ratings) > 0 {
		average = float64(scoreSum) / float64(len(feedback.Ratings))
	}

	// The entry carries the interaction and prompt metadata for training
	// provenance; derived keys win on collision.
	metadata := datatypes.JSONMap{}
	for _, source := range []datatypes.JSONMap{interaction.Metadata, response.Prompt.Context, response.Prompt.ClientMetadata} {
		for key, value := range source {
			metadata[key] = value
		}
	}
	metadata["dimension_ratings"] = ratings
	metadata["average_rating"] = average
	metadata["model_version"] = interaction.ModelVersion
	metadata["endpoint_name"] = interaction.EndpointName
	metadata["overall_comment"] = feedback.OverallComment
	metadata["feedback_user_id"] = feedback.UserID
	metadata["interaction_id"] = interaction.ID

	return models.DatasetEntry{
		FeedbackID:      feedback.ID,
		ModelID:         interaction.ModelID,
		PromptText:      response.Prompt.Content,
		ResponseText:    response.Content,
		CorrectResponse: correct,
		Metadata:        metadata,
		CreatedAt:       createdAt,
	}
}

// averageRatingField renders the stored average rating for CSV export.
func averageRatingField(metadata datatypes.JSONMap) string {
	value, ok := metadata["average_rating"]
	if !ok {
		return ""
	}

	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
