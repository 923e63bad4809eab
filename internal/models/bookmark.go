package models

import "time"

// InteractionBookmark lets a user tag an interaction for later retrieval. A user
// holds at most one bookmark per interaction.
type InteractionBookmark struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	UserID        string      `gorm:"size:64;not null;uniqueIndex:idx_bookmark_user_interaction,priority:1" json:"user_id"`
	InteractionID uint        `gorm:"not null;uniqueIndex:idx_bookmark_user_interaction,priority:2" json:"interaction_id"`
	Name          string      `gorm:"size:255;not null" json:"name"`
	Notes         string      `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time   `json:"created_at"`
	Interaction   Interaction `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
