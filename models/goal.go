package models

// Goal statuses
const (
	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"
	GoalStatusAbandoned = "abandoned"
)

// Goal is a user-declared target (weight, frequency, ...). Goal management
// lives in the surrounding API; the engine only reads completion state for
// custom badge predicates and credits points when one completes.
type Goal struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"index;not null" json:"external_user_id"`
	GoalType       string `gorm:"index;type:varchar(32);not null" json:"goal_type"` // e.g. "weight", "frequency"
	Status         string `gorm:"type:varchar(16);default:'active'" json:"status"`

	Timestamps
}
