package services

import (
	"fmt"
	"testing"
	"time"

	"fitness-progress-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a fresh in-memory sqlite database per test. The unique
// name keeps tests from sharing state through the connection pool.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.UserProgress{},
		&models.ActivityEntry{},
		&models.BadgeType{},
		&models.UserBadge{},
		&models.BiometricSample{},
		&models.Goal{},
		&models.EngagementEvent{},
		&models.ProfileUser{},
	))
	return db
}

// newProgressService wires a ProgressService without badge evaluation, so
// point assertions stay exact. Badge tests wire the evaluator themselves.
func newProgressService(t *testing.T) (*gorm.DB, *ProgressService) {
	t.Helper()
	db := setupTestDB(t)
	events := NewEventService(db)
	return db, NewProgressService(db, events)
}

// day returns noon UTC on day n of a fixed test month, so streak math sees
// well-defined calendar days.
func day(n int) time.Time {
	return time.Date(2026, 8, n, 12, 0, 0, 0, time.UTC)
}

func timeNowMinusDays(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -days)
}

func ledgerCount(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.ActivityEntry{}).
		Where("external_user_id = ?", userID).Count(&count).Error)
	return count
}

func eventsOfKind(t *testing.T, db *gorm.DB, userID, kind string) []models.EngagementEvent {
	t.Helper()
	var events []models.EngagementEvent
	require.NoError(t, db.Where("external_user_id = ? AND kind = ?", userID, kind).
		Order("created_at ASC").Find(&events).Error)
	return events
}
