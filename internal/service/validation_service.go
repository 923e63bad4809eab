package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/models"
	"github.com/evalforge/feedback-api/internal/repository"
)

// ErrFeedbackFinalized indicates the feedback already carries a terminal
// validation decision.
var ErrFeedbackFinalized = errors.New("feedback has already been validated")

// Materializer derives dataset entries from validated feedback. It is satisfied
// by the dataset service; the indirection keeps the validation workflow testable
// without a full dataset stack.
type Materializer interface {
	MaterializeFromFeedback(ctx context.Context, feedbackID uint) (dto.DatasetEntryResponse, error)
}

// ValidationService drives the feedback validation state machine.
type ValidationService interface {
	Validate(ctx context.Context, actor Actor, feedbackID uint, payload dto.ValidateFeedbackRequest) (dto.ValidationRecordResponse, error)
	Stats(ctx context.Context, modelID *string) (dto.ValidationStatsResponse, error)
}

type validationService struct {
	feedback    repository.FeedbackRepository
	validations repository.ValidationRepository
	datasets    Materializer
	events      EventPublisher
	cache       *redis.Client
	cacheTTL    time.Duration
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewValidationService constructs a ValidationService instance.
func NewValidationService(
	feedback repository.FeedbackRepository,
	validations repository.ValidationRepository,
	datasets Materializer,
	events EventPublisher,
	cache *redis.Client,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger zerolog.Logger,
) ValidationService {
	return &validationService{
		feedback:    feedback,
		validations: validations,
		datasets:    datasets,
		events:      events,
		cache:       cache,
		cacheTTL:    cacheTTL,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "validation_service").Logger(),
		tracer:      otel.Tracer("github.com/evalforge/feedback-api/internal/service/validation"),
		now:         time.Now,
	}
}

func (s *validationService) Validate(ctx context.Context, actor Actor, feedbackID uint, payload dto.ValidateFeedbackRequest) (dto.ValidationRecordResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ValidationRecordResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "validation.decide", trace.WithAttributes(
		attribute.Int64("feedback_id", int64(feedbackID)),
	))
	defer span.End()

	if !actor.CanValidate() {
		span.SetStatus(codes.Error, "missing_capability")
		return dto.ValidationRecordResponse{}, ErrForbidden
	}

	feedback, err := s.feedback.GetByID(ctx, feedbackID)
	if err != nil {
		span.SetStatus(codes.Error, "feedback_lookup_failed")
		return dto.ValidationRecordResponse{}, translateNotFound(err, ErrFeedbackNotFound)
	}

	if feedback.IsFinalized() {
		span.SetStatus(codes.Error, "feedback_finalized")
		return dto.ValidationRecordResponse{}, ErrFeedbackFinalized
	}

	// Review independence: validators never decide on their own submissions.
	// Admins are exempt, matching the capability model of the review queue.
	if feedback.UserID == actor.ID && !actor.IsAdmin() {
		span.SetStatus(codes.Error, "self_validation")
		return dto.ValidationRecordResponse{}, ErrForbidden
	}

	isValid := *payload.IsValid
	status := models.FeedbackStatusRejected
	if isValid {
		status = models.FeedbackStatusValidated
	}

	record := models.ValidationRecord{
		FeedbackID:  feedbackID,
		ValidatorID: actor.ID,
		IsValid:     isValid,
		Notes:       strings.TrimSpace(s.sanitizer.Sanitize(payload.Notes)),
		ValidatedAt: s.now(),
	}

	if err := s.validations.Finalize(ctx, &record, status); err != nil {
		// A concurrent decision may have won the unique feedback constraint.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetStatus(codes.Error, "concurrent_decision")
			return dto.ValidationRecordResponse{}, ErrFeedbackFinalized
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize_failed")
		return dto.ValidationRecordResponse{}, err
	}

	subject := EventFeedbackRejected
	if isValid {
		subject = EventFeedbackValidated
	}
	s.events.Publish(ctx, subject, map[string]interface{}{
		"feedback_id":  feedbackID,
		"validator_id": actor.ID,
		"is_valid":     isValid,
	})

	result := dto.NewValidationRecordResponse(record)

	// The decision is the authoritative fact; materialization is a derived,
	// idempotently retriable projection and must never roll it back.
	if isValid {
		if _, err := s.datasets.MaterializeFromFeedback(ctx, feedbackID); err != nil {
			s.logger.Warn().Err(err).Uint("feedback_id", feedbackID).Msg("dataset materialization failed after validation")
			span.RecordError(err)
			result.MaterializationWarning = fmt.Sprintf("dataset entry not created: %v", err)
		}
	}

	s.invalidateStats(ctx)

	span.SetAttributes(attribute.Bool("is_valid", isValid))
	s.logger.Info().Uint("feedback_id", feedbackID).Bool("is_valid", isValid).Msg("feedback validated")

	return result, nil
}

func (s *validationService) Stats(ctx context.Context, modelID *string) (dto.ValidationStatsResponse, error) {
	cacheKey := "validation:stats:all"
	if modelID != nil {
		cacheKey = "validation:stats:" + *modelID
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var stats dto.ValidationStatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &stats); unmarshalErr == nil {
				return stats, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read validation stats cache")
		}
	}

	counts, err := s.feedback.CountByStatus(ctx, modelID)
	if err != nil {
		return dto.ValidationStatsResponse{}, err
	}

	latencies, err := s.validations.Latencies(ctx, modelID)
	if err != nil {
		return dto.ValidationStatsResponse{}, err
	}

	var totalSeconds float64
	for _, latency := range latencies {
		totalSeconds += latency.ValidatedAt.Sub(latency.SubmittedAt).Seconds()
	}

	var avg float64
	if len(latencies) > 0 {
		avg = totalSeconds / float64(len(latencies))
	}

	stats := dto.ValidationStatsResponse{
		PendingCount:         counts[models.FeedbackStatusPending],
		ValidatedCount:       counts[models.FeedbackStatusValidated],
		RejectedCount:        counts[models.FeedbackStatusRejected],
		AvgValidationLatency: avg,
	}
	if modelID != nil {
		stats.ModelID = *modelID
	}

	if s.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store validation stats cache")
			}
		}
	}

	return stats, nil
}

func (s *validationService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, "validation:stats:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to invalidate validation stats cache")
		}
	}
}
