package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/evalforge/feedback-api/internal/dto"
	"github.com/evalforge/feedback-api/internal/models"
)

func newInteractionService(interactions *memoryInteractionRepo, prompts *memoryPromptRepo, registry *stubRegistry, events EventPublisher) InteractionService {
	if events == nil {
		events = NewNopPublisher()
	}
	return NewInteractionService(interactions, prompts, registry, events, newTestValidator(), testLogger())
}

func TestInteractionServiceStartSuccess(t *testing.T) {
	interactions := newMemoryInteractionRepo()
	prompts := newMemoryPromptRepo(interactions)
	events := &recordingPublisher{}
	svc := newInteractionService(interactions, prompts, &stubRegistry{known: true}, events)

	result, err := svc.Start(context.Background(), Actor{ID: "user-1"}, dto.StartInteractionRequest{
		ModelID:      "gpt-4o",
		ModelVersion: "2024-08-06",
		EndpointName: "chat",
		Tags:         []string{"exp", "baseline"},
	})
	require.NoError(t, err)
	require.Equal(t, "user-1", result.UserID)
	require.Equal(t, models.InteractionStatusActive, result.Status)
	require.NotEmpty(t, result.SessionID)
	require.Equal(t, []string{"exp", "baseline"}, result.Tags)
	require.Equal(t, []string{EventInteractionStarted}, events.subjects())
}

func TestInteractionServiceStartUnknownModel(t *testing.T) {
	interactions := newMemoryInteractionRepo()
	prompts := newMemoryPromptRepo(interactions)
	svc := newInteractionService(interactions, prompts, &stubRegistry{known: false}, nil)

	_, err := svc.Start(context.Background(), Actor{ID: "user-1"}, dto.StartInteractionRequest{
		ModelID:      "no-such-model",
		ModelVersion: "1",
	})
	require.ErrorIs(t, err, ErrUnknownModel)
}

func TestInteractionServiceEndCompletesActive(t *testing.T) {
	interactions := newMemoryInteractionRepo()
	prompts := newMemoryPromptRepo(interactions)
	svc := newInteractionService(interactions, prompts, &stubRegistry{known: true}, nil)

	started, err := svc.Start(context.Background(), Actor{ID: "user-1"}, dto.StartInteractionRequest{
		ModelID:      "gpt-4o",
		ModelVersion: "2024-08-06",
	})
	require.NoError(t, err)

	ended, err := svc.End(context.Background(), Actor{ID: "user-1"}, started.ID, dto.EndInteractionRequest{
		Status: models.InteractionStatusCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, models.InteractionStatusCompleted, ended.Status)
	require.NotNil(t, ended.EndedAt)
}

func TestInteractionServiceEndTerminalRejected(t *testing.T) {
	interactions := newMemoryInteractionRepo()
	prompts := newMemoryPromptRepo(interactions)
	svc := newInteractionService(interactions, prompts, &stubRegistry{known: true}, nil)

	started, err := svc.Start(context.Background(), Actor{ID: "user-1"}, dto.StartInteractionRequest{
		ModelID:      "gpt-4o",
		ModelVersion: "2024-08-06",
	})
	require.NoError(t, err)

	_, err = svc.End(context.Background(), Actor{ID: "user-1"}, started.ID, dto.EndInteractionRequest{
		Status: models.InteractionStatusAbandoned,
	})
	require.NoError(t, err)

	// A terminal interaction cannot be closed again, not even with the same status.
	_, err = svc.End(context.Background(), Actor{ID: "user-1"}, started.ID, dto.EndInteractionRequest{
		Status: models.InteractionStatusCompleted,
	})
	require.ErrorIs(t, err, ErrInteractionClosed)
}

func TestInteractionServiceEndHidesForeignInteraction(t *testing.T) {
	interactions := newMemoryInteractionRepo()
	prompts := newMemoryPromptRepo(interactions)
	svc := newInteractionService(interactions, prompts, &stubRegistry{known: true}, nil)

	started, err := svc.Start(context.Background(), Actor{ID: "user-1"}, dto.StartInteractionRequest{
		ModelID:      "gpt-4o",
		ModelVersion: "2024-08-06",
	})
	require.NoError(t, err)

	_, err = svc.End(context.Background(), Actor{ID: "user-2"}, started.ID, dto.EndInteractionRequest{
		Status: models.InteractionStatusCompleted,
	})
	require.ErrorIs(t, err, ErrInteractionNotFound)
}

func TestInteractionServiceHistoryPairsPromptsWithResponses(t *testing.T) {
	interactions := newMemoryInteractionRepo()
	prompts := newMemoryPromptRepo(interactions)
	svc := newInteractionService(interactions, prompts, &stubRegistry{known: true}, nil)

	interaction := models.Interaction{UserID: "user-1", ModelID: "gpt-4o", Status: models.InteractionStatusActive}
	require.NoError(t, interactions.Create(context.Background(), &interaction))

	first := models.Prompt{InteractionID: interaction.ID, Content: "hello"}
	require.NoError(t, prompts.CreateWithNextSequence(context.Background(), &first))
	second := models.Prompt{InteractionID: interaction.ID, Content: "how are you"}
	require.NoError(t, prompts.CreateWithNextSequence(context.Background(), &second))

	require.NoError(t, prompts.CreateResponse(context.Background(), &models.Response{PromptID: first.ID, Content: "hi"}))
	require.NoError(t, prompts.CreateResponse(context.Background(), &models.Response{PromptID: second.ID, Content: degradedResponseContent, Error: "gateway timeout"}))

	history, err := svc.History(context.Background(), Actor{ID: "user-1"}, interaction.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 1, history[0].Prompt.SequenceNumber)
	require.False(t, history[0].Degraded)
	require.True(t, history[1].Degraded)
}

func TestInteractionServiceHistoryForbiddenForStrangers(t *testing.T) {
	interactions := newMemoryInteractionRepo()
	prompts := newMemoryPromptRepo(interactions)
	svc := newInteractionService(interactions, prompts, &stubRegistry{known: true}, nil)

	interaction := models.Interaction{UserID: "user-1", ModelID: "gpt-4o", Status: models.InteractionStatusActive}
	require.NoError(t, interactions.Create(context.Background(), &interaction))

	_, err := svc.History(context.Background(), Actor{ID: "user-2"}, interaction.ID)
	require.ErrorIs(t, err, ErrForbidden)

	// Validators may inspect any interaction's history.
	_, err = svc.History(context.Background(), Actor{ID: "user-2", Roles: []string{RoleValidator}}, interaction.ID)
	require.NoError(t, err)
}

func TestInteractionServiceSearchScopesNonAdminsToOwnRows(t *testing.T) {
	interactions := newMemoryInteractionRepo()
	prompts := newMemoryPromptRepo(interactions)
	svc := newInteractionService(interactions, prompts, &stubRegistry{known: true}, nil)

	now := time.Now()
	require.NoError(t, interactions.Create(context.Background(), &models.Interaction{UserID: "user-1", ModelID: "gpt-4o", Status: models.InteractionStatusActive, StartedAt: now}))
	require.NoError(t, interactions.Create(context.Background(), &models.Interaction{UserID: "user-2", ModelID: "gpt-4o", Status: models.InteractionStatusActive, StartedAt: now.Add(time.Minute)}))

	mine, err := svc.Search(context.Background(), Actor{ID: "user-1"}, dto.InteractionSearchRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 1, mine.Total)
	require.Equal(t, "user-1", mine.Items[0].UserID)

	all, err := svc.Search(context.Background(), Actor{ID: "admin", Roles: []string{RoleAdmin}}, dto.InteractionSearchRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 2, all.Total)
}
