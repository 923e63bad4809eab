package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/evalforge/feedback-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared-cache database keeps all pooled connections on the same
	// in-memory store while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Interaction{},
		&models.Prompt{},
		&models.Response{},
		&models.EvaluationDimension{},
		&models.Feedback{},
		&models.DimensionRating{},
		&models.ValidationRecord{},
		&models.DatasetEntry{},
		&models.InteractionBookmark{},
	))

	return db
}

func seedInteraction(t *testing.T, db *gorm.DB, userID, modelID string) models.Interaction {
	t.Helper()

	interaction := models.Interaction{
		UserID:       userID,
		ModelID:      modelID,
		ModelVersion: "2026-01",
		SessionID:    fmt.Sprintf("session-%s-%d", userID, time.Now().UnixNano()),
		Status:       models.InteractionStatusActive,
		StartedAt:    time.Now().UTC(),
	}
	require.NoError(t, db.Create(&interaction).Error)
	return interaction
}

func seedExchange(t *testing.T, db *gorm.DB, interaction models.Interaction, sequence int, promptText, responseText string) (models.Prompt, models.Response) {
	t.Helper()

	prompt := models.Prompt{
		InteractionID:  interaction.ID,
		Content:        promptText,
		SequenceNumber: sequence,
		SubmittedAt:    time.Now().UTC(),
	}
	require.NoError(t, db.Create(&prompt).Error)

	response := models.Response{
		PromptID:    prompt.ID,
		Content:     responseText,
		GeneratedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&response).Error)

	return prompt, response
}

func seedFeedback(t *testing.T, db *gorm.DB, response models.Response, userID, status string, submittedAt time.Time) models.Feedback {
	t.Helper()

	feedback := models.Feedback{
		ResponseID:  response.ID,
		UserID:      userID,
		Status:      status,
		SubmittedAt: submittedAt,
	}
	require.NoError(t, db.Create(&feedback).Error)
	return feedback
}
