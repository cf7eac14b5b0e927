package services

import (
	"fmt"
	"time"

	"fitness-progress-system/models"

	"gorm.io/gorm"
)

// ActivityService is the read side of the ledger. Writes go through
// ProgressService so a ledger append never travels without its point credit.
type ActivityService struct {
	DB *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{DB: db}
}

// CountByType counts a user's ledger entries of one type since the given
// time. A zero since counts the whole retained window.
func (s *ActivityService) CountByType(externalUserID, activityType string, since time.Time) (int64, error) {
	if !models.KnownActivityTypes[activityType] {
		return 0, NewValidationError(fmt.Sprintf("unknown activity type %q", activityType), nil)
	}
	query := s.DB.Model(&models.ActivityEntry{}).
		Where("external_user_id = ? AND activity_type = ?", externalUserID, activityType)
	if !since.IsZero() {
		query = query.Where("occurred_at >= ?", since)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, NewPersistenceError("failed to count ledger entries", err)
	}
	return count, nil
}

// LatestByType returns the user's most recent entry per activity type.
func (s *ActivityService) LatestByType(externalUserID string) (map[string]models.ActivityEntry, error) {
	var entries []models.ActivityEntry
	err := s.DB.Where("external_user_id = ?", externalUserID).
		Order("occurred_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, NewPersistenceError("failed to load ledger entries", err)
	}
	latest := make(map[string]models.ActivityEntry)
	for _, entry := range entries {
		if _, seen := latest[entry.ActivityType]; !seen {
			latest[entry.ActivityType] = entry
		}
	}
	return latest, nil
}

// GetRecentActivity returns entries from the last N days, newest first.
// The window is a presentation knob: out-of-range values fall back to the
// default week instead of failing the read. 90 days is the ledger retention
// horizon, so nothing older is queryable anyway.
func (s *ActivityService) GetRecentActivity(externalUserID string, days int) ([]models.ActivityEntry, error) {
	if days < 1 || days > 90 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	var entries []models.ActivityEntry
	err := s.DB.Where("external_user_id = ? AND occurred_at >= ?", externalUserID, since).
		Order("occurred_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, NewPersistenceError("failed to load recent activity", err)
	}
	return entries, nil
}
