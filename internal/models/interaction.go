package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Interaction represents one user-model conversation session bounded by start and end.
type Interaction struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	UserID       string            `gorm:"size:64;not null;index" json:"user_id"`
	ModelID      string            `gorm:"size:128;not null;index" json:"model_id"`
	ModelVersion string            `gorm:"size:64;not null" json:"model_version"`
	EndpointName string            `gorm:"size:128" json:"endpoint_name"`
	SessionID    string            `gorm:"size:64;uniqueIndex;not null" json:"session_id"`
	Status       string            `gorm:"size:16;not null;default:ACTIVE" json:"status"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	Tags         string            `gorm:"size:512" json:"-"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      *time.Time        `json:"ended_at"`
}

const (
	// InteractionStatusActive indicates the session is open for prompt submission.
	InteractionStatusActive = "ACTIVE"
	// InteractionStatusCompleted indicates the session finished normally.
	InteractionStatusCompleted = "COMPLETED"
	// InteractionStatusAbandoned indicates the session was terminated without completion.
	InteractionStatusAbandoned = "ABANDONED"
)

// IsTerminal reports whether the interaction has reached a final status.
func (i Interaction) IsTerminal() bool {
	return i.Status == InteractionStatusCompleted || i.Status == InteractionStatusAbandoned
}

// TagList splits the stored tag column into individual tags.
func (i Interaction) TagList() []string {
	if strings.TrimSpace(i.Tags) == "" {
		return []string{}
	}
	parts := strings.Split(i.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

// JoinTags renders a tag slice into the stored column format.
func JoinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, ",")
}
