package models

import (
	"time"

	"gorm.io/datatypes"
)

// Prompt is a single user turn within an interaction. Prompts are immutable once
// written and ordered by a per-interaction sequence number.
type Prompt struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	InteractionID  uint              `gorm:"not null;uniqueIndex:idx_prompt_sequence,priority:1" json:"interaction_id"`
	Content        string            `gorm:"type:text;not null" json:"content"`
	SequenceNumber int               `gorm:"not null;uniqueIndex:idx_prompt_sequence,priority:2" json:"sequence_number"`
	Context        datatypes.JSONMap `gorm:"type:json" json:"context"`
	ClientMetadata datatypes.JSONMap `gorm:"type:json" json:"client_metadata"`
	SubmittedAt    time.Time         `json:"submitted_at"`
	Interaction    Interaction       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Response is the model output for exactly one prompt. A response is always written,
// carrying either generated content or an error marker when generation failed.
type Response struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	PromptID         uint      `gorm:"not null;uniqueIndex" json:"prompt_id"`
	Content          string    `gorm:"type:text" json:"content"`
	ProcessingTimeMs *int      `json:"processing_time_ms"`
	TokensUsed       *int      `json:"tokens_used"`
	Confidence       *float64  `json:"confidence"`
	Error            string    `gorm:"type:text" json:"error,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
	Prompt           Prompt    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Failed reports whether the response records a generation failure.
func (r Response) Failed() bool {
	return r.Error != ""
}
