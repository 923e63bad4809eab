package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/models"
)

type feedbackFixture struct {
	interactions *memoryInteractionRepo
	prompts      *memoryPromptRepo
	dimensions   *memoryDimensionRepo
	feedback     *memoryFeedbackRepo
	events       *recordingPublisher
	svc          FeedbackService
	responseID   uint
	accuracy     models.EvaluationDimension
	clarity      models.EvaluationDimension
}

func newFeedbackFixture(t *testing.T) *feedbackFixture {
	t.Helper()

	interactions := newMemoryInteractionRepo()
	prompts := newMemoryPromptRepo(interactions)
	dimensions := newMemoryDimensionRepo()
	feedback := newMemoryFeedbackRepo(dimensions)
	events := &recordingPublisher{}

	interaction := models.Interaction{UserID: "author", ModelID: "gpt-4o", ModelVersion: "2024-08-06", Status: models.InteractionStatusActive}
	require.NoError(t, interactions.Create(context.Background(), &interaction))

	prompt := models.Prompt{InteractionID: interaction.ID, Content: "hello"}
	require.NoError(t, prompts.CreateWithNextSequence(context.Background(), &prompt))

	response := models.Response{PromptID: prompt.ID, Content: "hi"}
	require.NoError(t, prompts.CreateResponse(context.Background(), &response))

	accuracy := models.EvaluationDimension{ModelID: "gpt-4o", Name: "accuracy", Active: true}
	require.NoError(t, dimensions.Create(context.Background(), &accuracy))
	clarity := models.EvaluationDimension{ModelID: models.DimensionScopeAll, Name: "clarity", Active: true}
	require.NoError(t, dimensions.Create(context.Background(), &clarity))

	return &feedbackFixture{
		interactions: interactions,
		prompts:      prompts,
		dimensions:   dimensions,
		feedback:     feedback,
		events:       events,
		svc:          NewFeedbackService(feedback, prompts, dimensions, events, newTestValidator(), testLogger()),
		responseID:   response.ID,
		accuracy:     accuracy,
		clarity:      clarity,
	}
}

func TestFeedbackServiceSubmitSuccess(t *testing.T) {
	fx := newFeedbackFixture(t)

	result, err := fx.svc.Submit(context.Background(), Actor{ID: "rater"}, dto.SubmitFeedbackRequest{
		ResponseID:     fx.responseID,
		OverallComment: "solid answer",
		Ratings: []dto.RatingInput{
			{Dimension: strconv.FormatUint(uint64(fx.accuracy.ID), 10), Score: 4},
			{Dimension: "clarity", Score: 5, Justification: "well structured"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, models.FeedbackStatusPending, result.Status)
	require.Len(t, result.Ratings, 2)
	require.Equal(t, "accuracy", result.Ratings[0].DimensionName)
	require.Equal(t, "clarity", result.Ratings[1].DimensionName)
	require.Equal(t, []string{EventFeedbackSubmitted}, fx.events.subjects())
}

func TestFeedbackServiceSubmitStripsMarkup(t *testing.T) {
	fx := newFeedbackFixture(t)

	result, err := fx.svc.Submit(context.Background(), Actor{ID: "rater"}, dto.SubmitFeedbackRequest{
		ResponseID:     fx.responseID,
		OverallComment: `<script>alert("x")</script>useful`,
		Ratings:        []dto.RatingInput{{Dimension: "clarity", Score: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, "useful", result.OverallComment)
}

func TestFeedbackServiceSubmitDuplicateRejected(t *testing.T) {
	fx := newFeedbackFixture(t)

	payload := dto.SubmitFeedbackRequest{
		ResponseID: fx.responseID,
		Ratings:    []dto.RatingInput{{Dimension: "clarity", Score: 4}},
	}

	_, err := fx.svc.Submit(context.Background(), Actor{ID: "rater"}, payload)
	require.NoError(t, err)

	_, err = fx.svc.Submit(context.Background(), Actor{ID: "other"}, payload)
	require.ErrorIs(t, err, ErrFeedbackExists)
}

func TestFeedbackServiceSubmitUnknownResponse(t *testing.T) {
	fx := newFeedbackFixture(t)

	_, err := fx.svc.Submit(context.Background(), Actor{ID: "rater"}, dto.SubmitFeedbackRequest{
		ResponseID: 999,
		Ratings:    []dto.RatingInput{{Dimension: "clarity", Score: 4}},
	})
	require.ErrorIs(t, err, ErrResponseNotFound)
}

func TestFeedbackServiceSubmitScoreOutOfRange(t *testing.T) {
	fx := newFeedbackFixture(t)

	for _, score := range []int{0, 6, -1} {
		_, err := fx.svc.Submit(context.Background(), Actor{ID: "rater"}, dto.SubmitFeedbackRequest{
			ResponseID: fx.responseID,
			Ratings:    []dto.RatingInput{{Dimension: "clarity", Score: score}},
		})
		require.Error(t, err, "score %d", score)
	}
}

func TestFeedbackServiceSubmitDimensionScoping(t *testing.T) {
	fx := newFeedbackFixture(t)

	// A dimension bound to another model is invisible here.
	foreign := models.EvaluationDimension{ModelID: "claude-3", Name: "tone", Active: true}
	require.NoError(t, fx.dimensions.Create(context.Background(), &foreign))

	_, err := fx.svc.Submit(context.Background(), Actor{ID: "rater"}, dto.SubmitFeedbackRequest{
		ResponseID: fx.responseID,
		Ratings:    []dto.RatingInput{{Dimension: "tone", Score: 3}},
	})
	require.ErrorIs(t, err, ErrUnknownDimension)

	_, err = fx.svc.Submit(context.Background(), Actor{ID: "rater"}, dto.SubmitFeedbackRequest{
		ResponseID: fx.responseID,
		Ratings:    []dto.RatingInput{{Dimension: strconv.FormatUint(uint64(foreign.ID), 10), Score: 3}},
	})
	require.ErrorIs(t, err, ErrUnknownDimension)
}

func TestFeedbackServiceSubmitInactiveDimension(t *testing.T) {
	fx := newFeedbackFixture(t)

	retired := models.EvaluationDimension{ModelID: "gpt-4o", Name: "speed", Active: false}
	require.NoError(t, fx.dimensions.Create(context.Background(), &retired))

	_, err := fx.svc.Submit(context.Background(), Actor{ID: "rater"}, dto.SubmitFeedbackRequest{
		ResponseID: fx.responseID,
		Ratings:    []dto.RatingInput{{Dimension: "speed", Score: 2}},
	})
	require.ErrorIs(t, err, ErrInactiveDimension)
}

func TestFeedbackServiceSubmitDuplicateDimension(t *testing.T) {
	fx := newFeedbackFixture(t)

	// Same dimension referenced once by id and once by name.
	_, err := fx.svc.Submit(context.Background(), Actor{ID: "rater"}, dto.SubmitFeedbackRequest{
		ResponseID: fx.responseID,
		Ratings: []dto.RatingInput{
			{Dimension: "clarity", Score: 4},
			{Dimension: strconv.FormatUint(uint64(fx.clarity.ID), 10), Score: 2},
		},
	})
	require.ErrorIs(t, err, ErrDuplicateDimension)
}

func TestFeedbackServiceGetForResponse(t *testing.T) {
	fx := newFeedbackFixture(t)

	_, err := fx.svc.GetForResponse(context.Background(), fx.responseID)
	require.ErrorIs(t, err, ErrFeedbackNotFound)

	submitted, err := fx.svc.Submit(context.Background(), Actor{ID: "rater"}, dto.SubmitFeedbackRequest{
		ResponseID: fx.responseID,
		Ratings:    []dto.RatingInput{{Dimension: "clarity", Score: 4}},
	})
	require.NoError(t, err)

	fetched, err := fx.svc.GetForResponse(context.Background(), fx.responseID)
	require.NoError(t, err)
	require.Equal(t, submitted.ID, fetched.ID)
}

func TestFeedbackServiceListPendingRequiresCapability(t *testing.T) {
	fx := newFeedbackFixture(t)

	_, err := fx.svc.ListPending(context.Background(), Actor{ID: "rater"}, nil, 1, 10)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestFeedbackServiceListPendingOldestFirst(t *testing.T) {
	fx := newFeedbackFixture(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		feedback := models.Feedback{
			ResponseID:  uint(100 + i),
			UserID:      "rater",
			Status:      models.FeedbackStatusPending,
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, fx.feedback.CreateWithRatings(context.Background(), &feedback))
	}

	page, err := fx.svc.ListPending(context.Background(), Actor{ID: "mod", Roles: []string{RoleValidator}}, nil, 1, 2)
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	require.True(t, page.Items[0].SubmittedAt.Before(page.Items[1].SubmittedAt))
}
