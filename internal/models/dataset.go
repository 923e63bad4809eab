package models

import (
	"time"

	"gorm.io/datatypes"
)

// DatasetEntry is a training-ready record derived from exactly one validated
// feedback. Entries are denormalized snapshots and never updated after creation.
type DatasetEntry struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	FeedbackID      uint              `gorm:"not null;uniqueIndex" json:"feedback_id"`
	ModelID         string            `gorm:"size:128;not null;index" json:"model_id"`
	PromptText      string            `gorm:"type:text;not null" json:"prompt_text"`
	ResponseText    string            `gorm:"type:text;not null" json:"response_text"`
	CorrectResponse string            `gorm:"type:text" json:"correct_response"`
	Metadata        datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt       time.Time         `gorm:"index" json:"created_at"`
	Feedback        Feedback          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
