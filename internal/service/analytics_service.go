package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/repository"
)

// AnalyticsService reports engagement and quality aggregates for users, models
// and the platform as a whole.
type AnalyticsService interface {
	UserEngagement(ctx context.Context, actor Actor, userID string, window repository.AnalyticsWindow) (dto.UserEngagementResponse, error)
	ModelPerformance(ctx context.Context, modelID string, window repository.AnalyticsWindow) (dto.ModelPerformanceResponse, error)
	System(ctx context.Context, actor Actor, window repository.AnalyticsWindow) (dto.SystemMetricsResponse, error)
}

type analyticsService struct {
	analytics repository.AnalyticsRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

// NewAnalyticsService constructs an AnalyticsService instance.
func NewAnalyticsService(
	analytics repository.AnalyticsRepository,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) AnalyticsService {
	return &analyticsService{
		analytics: analytics,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger.With().Str("component", "analytics_service").Logger(),
	}
}

func (s *analyticsService) UserEngagement(ctx context.Context, actor Actor, userID string, window repository.AnalyticsWindow) (dto.UserEngagementResponse, error) {
	if userID == "" {
		userID = actor.ID
	}
	if userID != actor.ID && !actor.IsAdmin() {
		return dto.UserEngagementResponse{}, ErrForbidden
	}

	totals, err := s.analytics.UserEngagement(ctx, userID, window)
	if err != nil {
		return dto.UserEngagementResponse{}, err
	}

	return dto.UserEngagementResponse{
		UserID:                userID,
		TotalInteractions:     totals.Interactions,
		CompletedInteractions: totals.Completed,
		CompletionRate:        percent(totals.Completed, totals.Interactions),
		TotalPrompts:          totals.Prompts,
		PromptsPerInteraction: ratio(totals.Prompts, totals.Interactions),
		TotalFeedback:         totals.Feedback,
		ValidatedFeedback:     totals.Validated,
		ValidationRate:        percent(totals.Validated, totals.Feedback),
	}, nil
}

func (s *analyticsService) ModelPerformance(ctx context.Context, modelID string, window repository.AnalyticsWindow) (dto.ModelPerformanceResponse, error) {
	// Only the unbounded board is cached; no writer invalidates analytics keys,
	// the TTL bounds staleness.
	cacheKey := ""
	if window.Start == nil && window.End == nil {
		cacheKey = "analytics:model:" + modelID
	}

	if cacheKey != "" && s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var performance dto.ModelPerformanceResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &performance); unmarshalErr == nil {
				return performance, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read model performance cache")
		}
	}

	total, completed, err := s.analytics.ModelInteractionTotals(ctx, modelID, window)
	if err != nil {
		return dto.ModelPerformanceResponse{}, err
	}

	averages, err := s.analytics.ModelDimensionAverages(ctx, modelID, window)
	if err != nil {
		return dto.ModelPerformanceResponse{}, err
	}

	scores := make([]dto.DimensionScore, 0, len(averages))
	for _, average := range averages {
		scores = append(scores, dto.DimensionScore{
			Dimension: average.Dimension,
			Average:   average.Average,
			Count:     average.Count,
		})
	}

	performance := dto.ModelPerformanceResponse{
		ModelID:               modelID,
		TotalInteractions:     total,
		CompletedInteractions: completed,
		CompletionRate:        percent(completed, total),
		DimensionScores:       scores,
	}

	if cacheKey != "" && s.cache != nil {
		if payload, err := json.Marshal(performance); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store model performance cache")
			}
		}
	}

	return performance, nil
}

func (s *analyticsService) System(ctx context.Context, actor Actor, window repository.AnalyticsWindow) (dto.SystemMetricsResponse, error) {
	if !actor.IsAdmin() {
		return dto.SystemMetricsResponse{}, ErrForbidden
	}

	totals, err := s.analytics.SystemTotals(ctx, window)
	if err != nil {
		return dto.SystemMetricsResponse{}, err
	}

	return dto.SystemMetricsResponse{
		TotalInteractions:     totals.Interactions,
		ActiveUsers:           totals.ActiveUsers,
		InteractionsPerUser:   ratio(totals.Interactions, totals.ActiveUsers),
		TotalFeedback:         totals.Feedback,
		PendingValidation:     totals.Pending,
		ValidatedFeedback:     totals.Validated,
		ValidationRate:        percent(totals.Validated, totals.Feedback),
		AverageResponseTimeMs: totals.AverageResponseTimeMs,
	}, nil
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func ratio(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}
