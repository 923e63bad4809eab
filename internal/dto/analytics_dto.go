package dto

// UserEngagementResponse summarizes one user's activity over a window. Rates
// are percentages.
type UserEngagementResponse struct {
	UserID                string  `json:"user_id"`
	TotalInteractions     int64   `json:"total_interactions"`
	CompletedInteractions int64   `json:"completed_interactions"`
	CompletionRate        float64 `json:"completion_rate"`
	TotalPrompts          int64   `json:"total_prompts"`
	PromptsPerInteraction float64 `json:"prompts_per_interaction"`
	TotalFeedback         int64   `json:"total_feedback"`
	ValidatedFeedback     int64   `json:"validated_feedback"`
	ValidationRate        float64 `json:"validation_rate"`
}

// DimensionScore reports the mean score one evaluation dimension received.
type DimensionScore struct {
	Dimension string  `json:"dimension"`
	Average   float64 `json:"average"`
	Count     int64   `json:"count"`
}

// ModelPerformanceResponse summarizes how one model scores across its
// evaluation dimensions.
type ModelPerformanceResponse struct {
	ModelID               string           `json:"model_id"`
	TotalInteractions     int64            `json:"total_interactions"`
	CompletedInteractions int64            `json:"completed_interactions"`
	CompletionRate        float64          `json:"completion_rate"`
	DimensionScores       []DimensionScore `json:"dimension_scores"`
}

// SystemMetricsResponse summarizes platform-wide activity.
type SystemMetricsResponse struct {
	TotalInteractions     int64   `json:"total_interactions"`
	ActiveUsers           int64   `json:"active_users"`
	InteractionsPerUser   float64 `json:"interactions_per_user"`
	TotalFeedback         int64   `json:"total_feedback"`
	PendingValidation     int64   `json:"pending_validation"`
	ValidatedFeedback     int64   `json:"validated_feedback"`
	ValidationRate        float64 `json:"validation_rate"`
	AverageResponseTimeMs float64 `json:"average_response_time_ms"`
}
