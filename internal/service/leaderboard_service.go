package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/repository"
)

// ErrUnknownPeriod indicates the requested leaderboard window is not supported.
var ErrUnknownPeriod = errors.New("unsupported leaderboard period")

const (
	// PeriodWeekly scores contributions from the last 7 days.
	PeriodWeekly = "weekly"
	// PeriodMonthly scores contributions from the last 30 days.
	PeriodMonthly = "monthly"
	// PeriodAllTime scores all contributions ever recorded.
	PeriodAllTime = "all"
)

// Point weights per contribution kind.
const (
	pointsPerSubmission  = 5
	pointsPerValidated   = 10
	pointsPerInteraction = 2
	pointsPerValidation  = 3
)

// leaderboardLimit caps how many contributors one board returns.
const leaderboardLimit = 50

// LeaderboardService ranks contributors by weighted activity within a window.
type LeaderboardService interface {
	Leaderboard(ctx context.Context, period string) (dto.LeaderboardResponse, error)
}

type leaderboardService struct {
	feedback     repository.FeedbackRepository
	interactions repository.InteractionRepository
	validations  repository.ValidationRepository
	cache        *redis.Client
	cacheTTL     time.Duration
	logger       zerolog.Logger
	now          func() time.Time
}

// NewLeaderboardService constructs a LeaderboardService instance.
func NewLeaderboardService(
	feedback repository.FeedbackRepository,
	interactions repository.InteractionRepository,
	validations repository.ValidationRepository,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) LeaderboardService {
	return &leaderboardService{
		feedback:     feedback,
		interactions: interactions,
		validations:  validations,
		cache:        cache,
		cacheTTL:     cacheTTL,
		logger:       logger.With().Str("component", "leaderboard_service").Logger(),
		now:          time.Now,
	}
}

func (s *leaderboardService) Leaderboard(ctx context.Context, period string) (dto.LeaderboardResponse, error) {
	if period == "" {
		period = PeriodAllTime
	}

	since, err := s.windowStart(period)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	cacheKey := "leaderboard:" + period
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var board dto.LeaderboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &board); unmarshalErr == nil {
				return board, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
	}

	contributors, err := s.feedback.ContributorTotalsSince(ctx, since)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	completed, err := s.interactions.CompletedTotalsSince(ctx, since)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	validations, err := s.validations.ValidatorTotalsSince(ctx, since)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	byUser := make(map[string]*dto.LeaderboardEntry)
	entryFor := func(userID string) *dto.LeaderboardEntry {
		if entry, ok := byUser[userID]; ok {
			return entry
		}
		entry := &dto.LeaderboardEntry{UserID: userID}
		byUser[userID] = entry
		return entry
	}

	for _, totals := range contributors {
		entry := entryFor(totals.UserID)
		entry.FeedbackSubmitted = totals.Submitted
		entry.FeedbackValidated = totals.Validated
	}
	for userID, total := range completed {
		entryFor(userID).InteractionsCompleted = total
	}
	for userID, total := range validations {
		entryFor(userID).ValidationsPerformed = total
	}

	entries := make([]dto.LeaderboardEntry, 0, len(byUser))
	for _, entry := range byUser {
		entry.Points = entry.FeedbackSubmitted*pointsPerSubmission +
			entry.FeedbackValidated*pointsPerValidated +
			entry.InteractionsCompleted*pointsPerInteraction +
			entry.ValidationsPerformed*pointsPerValidation
		entries = append(entries, *entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].UserID < entries[j].UserID
	})

	if len(entries) > leaderboardLimit {
		entries = entries[:leaderboardLimit]
	}

	for i := range entries {
		entries[i].Rank = i + 1
	}

	board := dto.LeaderboardResponse{
		Period:  period,
		Entries: entries,
	}

	if s.cache != nil {
		if payload, err := json.Marshal(board); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
			}
		}
	}

	return board, nil
}

// windowStart maps a period name to the start of its scoring window. A nil
// return means the window is unbounded.
func (s *leaderboardService) windowStart(period string) (*time.Time, error) {
	switch period {
	case PeriodWeekly:
		since := s.now().AddDate(0, 0, -7)
		return &since, nil
	case PeriodMonthly:
		since := s.now().AddDate(0, 0, -30)
		return &since, nil
	case PeriodAllTime, "":
		return nil, nil
	default:
		return nil, ErrUnknownPeriod
	}
}
