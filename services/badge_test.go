package services

import (
	"testing"
	"time"

	"fitness-progress-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newBadgeServices(t *testing.T) (*gorm.DB, *ProgressService, *BadgeService) {
	t.Helper()
	db := setupTestDB(t)
	events := NewEventService(db)
	badges := NewBadgeService(db, events)
	prog := NewProgressService(db, events)
	prog.Badges = badges
	require.NoError(t, badges.SeedCatalog())
	return db, prog, badges
}

func TestSeedCatalog_IsIdempotent(t *testing.T) {
	_, _, badges := newBadgeServices(t)
	require.NoError(t, badges.SeedCatalog())

	var count int64
	require.NoError(t, badges.DB.Model(&models.BadgeType{}).Count(&count).Error)
	assert.EqualValues(t, len(models.BadgeCatalog), count)
}

func TestEvaluate_CountBadgeAwardedOnFirstWorkout(t *testing.T) {
	db, prog, _ := newBadgeServices(t)
	userID := "user-a"

	// RecordActivity triggers evaluation after commit
	_, err := prog.RecordActivity(userID, models.ActivityWorkout, day(1), "workout", nil)
	require.NoError(t, err)

	var earned []models.UserBadge
	require.NoError(t, db.Where("external_user_id = ?", userID).Find(&earned).Error)
	require.Len(t, earned, 1)

	var badge models.BadgeType
	require.NoError(t, db.First(&badge, "id = ?", earned[0].BadgeTypeID).Error)
	assert.Equal(t, "first-workout", badge.Code)

	// Reward credited with its own ledger entry
	updated, err := prog.GetProgress(userID)
	require.NoError(t, err)
	assert.Equal(t, DefaultPointWeights.WorkoutPoints+badge.RewardPoints, updated.TotalPoints)

	var rewardEntries int64
	require.NoError(t, db.Model(&models.ActivityEntry{}).
		Where("external_user_id = ? AND activity_type = ?", userID, models.ActivityBadgeReward).
		Count(&rewardEntries).Error)
	assert.EqualValues(t, 1, rewardEntries)

	assert.Len(t, eventsOfKind(t, db, userID, models.EventBadgeEarned), 1)
}

func TestEvaluate_IsIdempotent(t *testing.T) {
	db, prog, badges := newBadgeServices(t)
	userID := "user-a"

	_, err := prog.RecordActivity(userID, models.ActivityWorkout, day(1), "workout", nil)
	require.NoError(t, err)

	before, err := prog.GetProgress(userID)
	require.NoError(t, err)

	// No new activity — re-running evaluation must award nothing
	newly, err := badges.Evaluate(userID)
	require.NoError(t, err)
	assert.Empty(t, newly)

	after, err := prog.GetProgress(userID)
	require.NoError(t, err)
	assert.Equal(t, before.TotalPoints, after.TotalPoints)

	// No duplicate badge ids
	var earned []models.UserBadge
	require.NoError(t, db.Where("external_user_id = ?", userID).Find(&earned).Error)
	seen := map[string]bool{}
	for _, ub := range earned {
		assert.False(t, seen[ub.BadgeTypeID], "duplicate badge %s", ub.BadgeTypeID)
		seen[ub.BadgeTypeID] = true
	}
}

func TestEvaluate_StreakBadge(t *testing.T) {
	db, prog, badges := newBadgeServices(t)
	userID := "user-a"

	rec, err := prog.EnsureProgressRecord(userID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.UserProgress{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{"current_streak": 7, "longest_streak": 7}).Error)

	newly, err := badges.Evaluate(userID)
	require.NoError(t, err)

	codes := earnedCodes(t, db, newly)
	assert.Contains(t, codes, "week-warrior")
	assert.NotContains(t, codes, "iron-month")
}

func TestEvaluate_LongestStreakMetricSurvivesBreak(t *testing.T) {
	db, prog, badges := newBadgeServices(t)
	userID := "user-a"

	rec, err := prog.EnsureProgressRecord(userID)
	require.NoError(t, err)
	// Streak already broken, but the 100-day peak happened
	require.NoError(t, db.Model(&models.UserProgress{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{"current_streak": 0, "longest_streak": 120}).Error)

	newly, err := badges.Evaluate(userID)
	require.NoError(t, err)
	assert.Contains(t, earnedCodes(t, db, newly), "centurion")
}

func TestEvaluate_AccumulatedValueFirstVsLatest(t *testing.T) {
	db, prog, badges := newBadgeServices(t)
	userID := "user-a"

	_, err := prog.EnsureProgressRecord(userID)
	require.NoError(t, err)

	samples := []models.BiometricSample{
		{ID: "s1", ExternalUserID: userID, Metric: models.MetricWeightKg, Value: 92.0, RecordedAt: day(1)},
		{ID: "s2", ExternalUserID: userID, Metric: models.MetricWeightKg, Value: 89.5, RecordedAt: day(10)},
		{ID: "s3", ExternalUserID: userID, Metric: models.MetricWeightKg, Value: 86.4, RecordedAt: day(20)},
	}
	require.NoError(t, db.Create(&samples).Error)

	// 92.0 − 86.4 = 5.6 ≥ 5
	newly, err := badges.Evaluate(userID)
	require.NoError(t, err)
	assert.Contains(t, earnedCodes(t, db, newly), "five-kilos-down")
}

func TestEvaluate_AccumulatedValueNotMet(t *testing.T) {
	db, prog, badges := newBadgeServices(t)
	userID := "user-a"

	_, err := prog.EnsureProgressRecord(userID)
	require.NoError(t, err)

	samples := []models.BiometricSample{
		{ID: "s1", ExternalUserID: userID, Metric: models.MetricWeightKg, Value: 90.0, RecordedAt: day(1)},
		{ID: "s2", ExternalUserID: userID, Metric: models.MetricWeightKg, Value: 88.0, RecordedAt: day(10)},
	}
	require.NoError(t, db.Create(&samples).Error)

	newly, err := badges.Evaluate(userID)
	require.NoError(t, err)
	assert.NotContains(t, earnedCodes(t, db, newly), "five-kilos-down")
}

func TestEvaluate_CustomPredicate(t *testing.T) {
	db, prog, badges := newBadgeServices(t)
	userID := "user-a"

	_, err := prog.EnsureProgressRecord(userID)
	require.NoError(t, err)

	goal := models.Goal{
		ID:             "g1",
		ExternalUserID: userID,
		GoalType:       "weight",
		Status:         models.GoalStatusCompleted,
	}
	require.NoError(t, db.Create(&goal).Error)

	newly, err := badges.Evaluate(userID)
	require.NoError(t, err)
	assert.Contains(t, earnedCodes(t, db, newly), "goal-getter")
}

func TestEvaluate_InactiveBadgeExcluded(t *testing.T) {
	db, prog, _ := newBadgeServices(t)
	userID := "user-a"

	require.NoError(t, db.Model(&models.BadgeType{}).
		Where("code = ?", "first-workout").
		Update("is_active", false).Error)

	_, err := prog.RecordActivity(userID, models.ActivityWorkout, day(1), "workout", nil)
	require.NoError(t, err)

	var earned []models.UserBadge
	require.NoError(t, db.Where("external_user_id = ?", userID).Find(&earned).Error)
	assert.NotContains(t, earnedCodes(t, db, earned), "first-workout")
}

func TestEvaluate_UnknownUser(t *testing.T) {
	_, _, badges := newBadgeServices(t)

	_, err := badges.Evaluate("ghost")
	assert.True(t, IsNotFoundError(err))
}

func TestCreateBadgeType_Validation(t *testing.T) {
	_, _, badges := newBadgeServices(t)

	cases := []struct {
		name  string
		input models.BadgeType
	}{
		{"missing name", models.BadgeType{CriterionKind: models.CriterionStreak, TargetMetric: "current_streak", TargetValue: int64Ptr(3)}},
		{"unknown kind", models.BadgeType{Name: "X", CriterionKind: "vibes", TargetMetric: "current_streak"}},
		{"unknown streak metric", models.BadgeType{Name: "X", CriterionKind: models.CriterionStreak, TargetMetric: "weekly_streak", TargetValue: int64Ptr(3)}},
		{"missing target", models.BadgeType{Name: "X", CriterionKind: models.CriterionStreak, TargetMetric: "current_streak"}},
		{"unknown count metric", models.BadgeType{Name: "X", CriterionKind: models.CriterionCount, TargetMetric: "not-a-type", TargetValue: int64Ptr(3)}},
		{"unknown custom predicate", models.BadgeType{Name: "X", CriterionKind: models.CriterionCustom, TargetMetric: "not-registered"}},
		{"negative reward", models.BadgeType{Name: "X", CriterionKind: models.CriterionStreak, TargetMetric: "current_streak", TargetValue: int64Ptr(3), RewardPoints: -1}},
		{"duplicate name", models.BadgeType{Name: "Week Warrior", CriterionKind: models.CriterionStreak, TargetMetric: "current_streak", TargetValue: int64Ptr(3)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := tc.input
			_, err := badges.CreateBadgeType(&input)
			assert.True(t, IsValidationError(err), "expected validation error, got %v", err)
		})
	}
}

func TestCreateBadgeType_DerivesSlugCode(t *testing.T) {
	_, _, badges := newBadgeServices(t)

	created, err := badges.CreateBadgeType(&models.BadgeType{
		Name:          "Early Bird Special",
		CriterionKind: models.CriterionCount,
		TargetMetric:  models.ActivityWorkout,
		TargetValue:   int64Ptr(5),
		RewardPoints:  20,
		IsActive:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "early-bird-special", created.Code)
	assert.NotEmpty(t, created.ID)
}

func TestGetAvailableBadges_EarnedFlag(t *testing.T) {
	_, prog, badges := newBadgeServices(t)
	userID := "user-a"

	_, err := prog.RecordActivity(userID, models.ActivityWorkout, day(1), "workout", nil)
	require.NoError(t, err)

	available, err := badges.GetAvailableBadges(userID)
	require.NoError(t, err)
	require.Len(t, available, len(models.BadgeCatalog))

	byCode := map[string]BadgeWithStatus{}
	for _, b := range available {
		byCode[b.Code] = b
	}
	assert.True(t, byCode["first-workout"].Earned)
	require.NotNil(t, byCode["first-workout"].AwardedAt)
	assert.False(t, byCode["iron-month"].Earned)
}

func TestGetEarnedBadges(t *testing.T) {
	_, prog, badges := newBadgeServices(t)
	userID := "user-a"

	_, err := prog.RecordActivity(userID, models.ActivityWorkout, day(1), "workout", nil)
	require.NoError(t, err)

	earned, err := badges.GetEarnedBadges(userID)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, "first-workout", earned[0].Code)
	assert.WithinDuration(t, time.Now(), earned[0].AwardedAt, time.Minute)
}

func int64Ptr(v int64) *int64 { return &v }

// earnedCodes resolves badge type ids to catalog codes.
func earnedCodes(t *testing.T, db *gorm.DB, earned []models.UserBadge) []string {
	t.Helper()
	codes := make([]string, 0, len(earned))
	for _, ub := range earned {
		var badge models.BadgeType
		require.NoError(t, db.First(&badge, "id = ?", ub.BadgeTypeID).Error)
		codes = append(codes, badge.Code)
	}
	return codes
}
