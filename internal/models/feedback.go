package models

import "time"

// Feedback is a user's structured evaluation of one response. At most one feedback
// exists per response, and its status is terminal once it leaves PENDING.
type Feedback struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	ResponseID     uint              `gorm:"not null;uniqueIndex" json:"response_id"`
	UserID         string            `gorm:"size:64;not null;index" json:"user_id"`
	OverallComment string            `gorm:"type:text" json:"overall_comment"`
	Status         string            `gorm:"size:16;not null;default:PENDING;index" json:"status"`
	SubmittedAt    time.Time         `json:"submitted_at"`
	Ratings        []DimensionRating `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"ratings"`
	Response       Response          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

const (
	// FeedbackStatusPending indicates the feedback awaits a validation decision.
	FeedbackStatusPending = "PENDING"
	// FeedbackStatusValidated indicates the feedback was accepted by a validator.
	FeedbackStatusValidated = "VALIDATED"
	// FeedbackStatusRejected indicates the feedback was rejected by a validator.
	FeedbackStatusRejected = "REJECTED"
)

// IsFinalized reports whether a validation decision has already been recorded.
func (f Feedback) IsFinalized() bool {
	return f.Status != FeedbackStatusPending
}

// DimensionRating scores a feedback against one evaluation dimension. The score is
// an integer between 1 and 5; a correction may propose a better response.
type DimensionRating struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	FeedbackID      uint                `gorm:"not null;uniqueIndex:idx_rating_feedback_dimension,priority:1" json:"feedback_id"`
	DimensionID     uint                `gorm:"not null;uniqueIndex:idx_rating_feedback_dimension,priority:2" json:"dimension_id"`
	Score           int                 `gorm:"not null" json:"score"`
	Justification   string              `gorm:"type:text" json:"justification"`
	CorrectResponse string              `gorm:"type:text" json:"correct_response"`
	Dimension       EvaluationDimension `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"dimension"`
}

const (
	// RatingScoreMin is the lowest accepted dimension score.
	RatingScoreMin = 1
	// RatingScoreMax is the highest accepted dimension score.
	RatingScoreMax = 5
)
