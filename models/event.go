package models

import "time"

// Engagement event kinds emitted for the external notifier.
const (
	EventStreakMilestone = "streak_milestone"
	EventStreakBroken    = "streak_broken"
	EventBadgeEarned     = "badge_earned"
)

// EngagementEvent is a persisted domain event (transactional outbox).
// Rows are written in the same transaction as the state change that caused
// them; the notifier and the SSE feed consume them at-least-once. The engine
// never performs delivery itself.
type EngagementEvent struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"index;not null" json:"external_user_id"`
	Kind           string    `gorm:"index;type:varchar(32);not null" json:"kind"`
	Payload        string    `gorm:"type:jsonb" json:"payload"` // e.g. {"streak_length": 7}
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}
