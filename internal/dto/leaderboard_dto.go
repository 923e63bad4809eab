package dto

// LeaderboardEntry ranks one contributor by weighted activity points.
type LeaderboardEntry struct {
	Rank                  int    `json:"rank"`
	UserID                string `json:"user_id"`
	FeedbackSubmitted     int64  `json:"feedback_submitted"`
	FeedbackValidated     int64  `json:"feedback_validated"`
	InteractionsCompleted int64  `json:"interactions_completed"`
	ValidationsPerformed  int64  `json:"validations_performed"`
	Points                int64  `json:"points"`
}

// LeaderboardResponse is the ranked contributor list for a time window.
type LeaderboardResponse struct {
	Period  string             `json:"period"`
	Entries []LeaderboardEntry `json:"entries"`
}
