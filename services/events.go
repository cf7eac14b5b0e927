package services

import (
	"encoding/json"
	"log"

	"fitness-progress-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventService writes engagement events to the outbox table. Rows are created
// inside the caller's transaction so an event exists exactly when the state
// change that caused it committed. Delivery (push, email, ...) is the
// external notifier's job.
type EventService struct {
	DB *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

func (s *EventService) emit(tx *gorm.DB, userID, kind string, payload map[string]interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return NewPersistenceError("failed to encode event payload", err)
	}
	event := models.EngagementEvent{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Kind:           kind,
		Payload:        string(raw),
	}
	if err := tx.Create(&event).Error; err != nil {
		return NewPersistenceError("failed to write engagement event", err)
	}
	log.Printf("📣 Event emitted: %s for %s → %s", kind, userID, event.Payload)
	return nil
}

// EmitStreakMilestone records StreakMilestoneReached{userId, streakLength}.
func (s *EventService) EmitStreakMilestone(tx *gorm.DB, userID string, streakLength int) error {
	return s.emit(tx, userID, models.EventStreakMilestone, map[string]interface{}{
		"streak_length": streakLength,
	})
}

// EmitStreakBroken records StreakBroken{userId, priorLength}.
func (s *EventService) EmitStreakBroken(tx *gorm.DB, userID string, priorLength int) error {
	return s.emit(tx, userID, models.EventStreakBroken, map[string]interface{}{
		"prior_length": priorLength,
	})
}

// EmitBadgeEarned records BadgeEarned{userId, badgeId}.
func (s *EventService) EmitBadgeEarned(tx *gorm.DB, userID, badgeTypeID, badgeCode string) error {
	return s.emit(tx, userID, models.EventBadgeEarned, map[string]interface{}{
		"badge_type_id": badgeTypeID,
		"badge_code":    badgeCode,
	})
}

// GetRecentEvents returns a user's latest events, newest first.
func (s *EventService) GetRecentEvents(userID string, limit int) ([]models.EngagementEvent, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	var events []models.EngagementEvent
	err := s.DB.Where("external_user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, NewPersistenceError("failed to load events", err)
	}
	return events, nil
}
