package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/models"
)

func TestFeedbackRepositoryCreateWithRatings(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedbackRepository(db)

	interaction := seedInteraction(t, db, "user-1", "gpt-4o")
	_, response := seedExchange(t, db, interaction, 1, "hello", "hi")

	dimension := models.EvaluationDimension{ModelID: "gpt-4o", Name: "accuracy", CreatedBy: "admin-1", Active: true}
	require.NoError(t, db.Create(&dimension).Error)

	feedback := models.Feedback{
		ResponseID:  response.ID,
		UserID:      "user-1",
		Status:      models.FeedbackStatusPending,
		SubmittedAt: time.Now().UTC(),
		Ratings: []models.DimensionRating{
			{DimensionID: dimension.ID, Score: 4, Justification: "mostly right"},
		},
	}
	require.NoError(t, repo.CreateWithRatings(context.Background(), &feedback))

	loaded, err := repo.GetByID(context.Background(), feedback.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Ratings, 1)
	require.Equal(t, "accuracy", loaded.Ratings[0].Dimension.Name)
}

func TestFeedbackRepositoryOneFeedbackPerResponse(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedbackRepository(db)

	interaction := seedInteraction(t, db, "user-1", "gpt-4o")
	_, response := seedExchange(t, db, interaction, 1, "hello", "hi")
	seedFeedback(t, db, response, "user-1", models.FeedbackStatusPending, time.Now().UTC())

	duplicate := models.Feedback{ResponseID: response.ID, UserID: "user-2", Status: models.FeedbackStatusPending, SubmittedAt: time.Now().UTC()}
	err := repo.CreateWithRatings(context.Background(), &duplicate)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestFeedbackRepositoryListPendingOldestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedbackRepository(db)

	interaction := seedInteraction(t, db, "user-1", "gpt-4o")
	_, older := seedExchange(t, db, interaction, 1, "first", "a")
	_, newer := seedExchange(t, db, interaction, 2, "second", "b")

	now := time.Now().UTC()
	newest := seedFeedback(t, db, newer, "user-2", models.FeedbackStatusPending, now)
	oldest := seedFeedback(t, db, older, "user-2", models.FeedbackStatusPending, now.Add(-time.Hour))

	queue, total, err := repo.ListPending(context.Background(), PendingFeedbackFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, queue, 2)
	require.Equal(t, oldest.ID, queue[0].ID)
	require.Equal(t, newest.ID, queue[1].ID)
}

func TestFeedbackRepositoryListPendingFiltersByModel(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedbackRepository(db)

	gpt := seedInteraction(t, db, "user-1", "gpt-4o")
	claude := seedInteraction(t, db, "user-1", "claude-sonnet")
	_, gptResponse := seedExchange(t, db, gpt, 1, "hello", "hi")
	_, claudeResponse := seedExchange(t, db, claude, 1, "hello", "hey")

	seedFeedback(t, db, gptResponse, "user-2", models.FeedbackStatusPending, time.Now().UTC())
	want := seedFeedback(t, db, claudeResponse, "user-2", models.FeedbackStatusPending, time.Now().UTC())

	modelID := "claude-sonnet"
	queue, total, err := repo.ListPending(context.Background(), PendingFeedbackFilter{ModelID: &modelID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, queue, 1)
	require.Equal(t, want.ID, queue[0].ID)
}

func TestFeedbackRepositoryCountByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedbackRepository(db)

	interaction := seedInteraction(t, db, "user-1", "gpt-4o")
	_, first := seedExchange(t, db, interaction, 1, "a", "1")
	_, second := seedExchange(t, db, interaction, 2, "b", "2")
	_, third := seedExchange(t, db, interaction, 3, "c", "3")

	now := time.Now().UTC()
	seedFeedback(t, db, first, "user-2", models.FeedbackStatusPending, now)
	seedFeedback(t, db, second, "user-2", models.FeedbackStatusValidated, now)
	seedFeedback(t, db, third, "user-3", models.FeedbackStatusValidated, now)

	counts, err := repo.CountByStatus(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[models.FeedbackStatusPending])
	require.Equal(t, int64(2), counts[models.FeedbackStatusValidated])
	require.Equal(t, int64(0), counts[models.FeedbackStatusRejected])
}

func TestFeedbackRepositoryContributorTotalsSince(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedbackRepository(db)

	interaction := seedInteraction(t, db, "user-1", "gpt-4o")
	_, recent := seedExchange(t, db, interaction, 1, "a", "1")
	_, old := seedExchange(t, db, interaction, 2, "b", "2")

	now := time.Now().UTC()
	seedFeedback(t, db, recent, "user-2", models.FeedbackStatusValidated, now)
	seedFeedback(t, db, old, "user-2", models.FeedbackStatusPending, now.Add(-30*24*time.Hour))

	since := now.Add(-7 * 24 * time.Hour)
	totals, err := repo.ContributorTotalsSince(context.Background(), &since)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	require.Equal(t, "user-2", totals[0].UserID)
	require.Equal(t, int64(1), totals[0].Submitted)
	require.Equal(t, int64(1), totals[0].Validated)
}
