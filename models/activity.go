package models

import "time"

// Activity types accepted by the ledger. Closed set — unknown types are a
// validation error, not a new row.
const (
	ActivityWorkout     = "workout"
	ActivityMeal        = "meal"
	ActivityBiometric   = "biometric"
	ActivityCommunity   = "community"
	ActivityGoal        = "goal"
	ActivityStreakBonus = "streak_bonus"
	ActivityBadgeReward = "badge_reward"
	ActivityAdminGrant  = "admin_grant"
)

// KnownActivityTypes is the validation set for ledger writes.
var KnownActivityTypes = map[string]bool{
	ActivityWorkout:     true,
	ActivityMeal:        true,
	ActivityBiometric:   true,
	ActivityCommunity:   true,
	ActivityGoal:        true,
	ActivityStreakBonus: true,
	ActivityBadgeReward: true,
	ActivityAdminGrant:  true,
}

// ActivityEntry is one append-only ledger row: what happened, when, and how many
// points it was worth. Entries are never updated or deleted by application logic;
// the archive worker expires them after the retention window.
type ActivityEntry struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"index;not null" json:"external_user_id"`
	ActivityType   string  `gorm:"index;type:varchar(32);not null" json:"activity_type"`
	Description    string  `json:"description,omitempty"`
	RelatedEntityID *string `gorm:"index" json:"related_entity_id,omitempty"` // e.g. workout/goal/badge id

	PointsEarned int64     `json:"points_earned" gorm:"default:0"`
	OccurredAt   time.Time `gorm:"index;not null" json:"occurred_at"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}
