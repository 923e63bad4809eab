package models

import "time"

// ValidationRecord captures an independent reviewer's accept/reject decision on a
// feedback. Exactly one record exists per feedback and it is never updated.
type ValidationRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FeedbackID  uint      `gorm:"not null;uniqueIndex" json:"feedback_id"`
	ValidatorID string    `gorm:"size:64;not null;index" json:"validator_id"`
	IsValid     bool      `gorm:"not null" json:"is_valid"`
	Notes       string    `gorm:"type:text" json:"notes"`
	ValidatedAt time.Time `json:"validated_at"`
	Feedback    Feedback  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
