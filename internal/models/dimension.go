package models

import "time"

// EvaluationDimension is a named axis of quality scoped to a model, referenced by
// dimension ratings. Deactivating a dimension keeps historical ratings intact.
type EvaluationDimension struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ModelID     string    `gorm:"size:128;not null;uniqueIndex:idx_dimension_model_name,priority:1" json:"model_id"`
	Name        string    `gorm:"size:128;not null;uniqueIndex:idx_dimension_model_name,priority:2" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedBy   string    `gorm:"size:64;not null" json:"created_by"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DimensionScopeAll marks a dimension as applicable to every model.
const DimensionScopeAll = "all"

// AppliesTo reports whether the dimension may rate responses from the given model.
func (d EvaluationDimension) AppliesTo(modelID string) bool {
	return d.ModelID == modelID || d.ModelID == DimensionScopeAll
}
