package models

import (
	"time"
)

// Criterion kinds — closed set, dispatched exhaustively in the evaluator.
const (
	CriterionStreak           = "streak"
	CriterionCount            = "count"
	CriterionAccumulatedValue = "accumulated_value"
	CriterionCustom           = "custom"
)

// BadgeType: static catalog config (seeded at boot, extendable via admin API)
type BadgeType struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string `gorm:"uniqueIndex;not null" json:"code"` // slug of Name, e.g. "week-warrior"
	Name        string `gorm:"uniqueIndex;not null" json:"name"` // "Week Warrior"
	Description string `json:"description,omitempty"`
	IconURL     string `gorm:"type:text" json:"icon_url,omitempty"` // e.g. R2 URL to SVG/png

	// Criterion: kind × metric × threshold. TargetValue is nil for custom
	// predicates (the predicate itself decides).
	CriterionKind string `gorm:"type:varchar(32);not null" json:"criterion_kind"`
	TargetMetric  string `gorm:"type:varchar(64);not null" json:"target_metric"`
	TargetValue   *int64 `json:"target_value,omitempty"`

	RewardPoints int64 `json:"reward_points" gorm:"default:0"`
	IsActive     bool  `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// UserBadge: awarded instance. The composite unique index is what makes
// badge awarding at-most-once even when two evaluations race.
type UserBadge struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"index;not null;uniqueIndex:idx_user_badge_once" json:"external_user_id"`
	BadgeTypeID    string    `gorm:"index;not null;uniqueIndex:idx_user_badge_once" json:"badge_type_id"`
	AwardedAt      time.Time `gorm:"autoCreateTime" json:"awarded_at"`
	Metadata       string    `gorm:"type:jsonb" json:"metadata,omitempty"` // e.g. {"streak": 7}
}

func int64Ptr(v int64) *int64 { return &v }

// BadgeCatalog is the seed catalog, upserted on code at boot.
var BadgeCatalog = []BadgeType{
	{
		Code:          "first-workout",
		Name:          "First Workout",
		Description:   "Completed your first workout",
		CriterionKind: CriterionCount,
		TargetMetric:  ActivityWorkout,
		TargetValue:   int64Ptr(1),
		RewardPoints:  10,
		IsActive:      true,
	},
	{
		Code:          "ten-workouts",
		Name:          "Regular",
		Description:   "Completed 10 workouts",
		CriterionKind: CriterionCount,
		TargetMetric:  ActivityWorkout,
		TargetValue:   int64Ptr(10),
		RewardPoints:  50,
		IsActive:      true,
	},
	{
		Code:          "meal-tracker",
		Name:          "Meal Tracker",
		Description:   "Logged 50 meals",
		CriterionKind: CriterionCount,
		TargetMetric:  ActivityMeal,
		TargetValue:   int64Ptr(50),
		RewardPoints:  75,
		IsActive:      true,
	},
	{
		Code:          "week-warrior",
		Name:          "Week Warrior",
		Description:   "7-day workout streak",
		CriterionKind: CriterionStreak,
		TargetMetric:  "current_streak",
		TargetValue:   int64Ptr(7),
		RewardPoints:  100,
		IsActive:      true,
	},
	{
		Code:          "iron-month",
		Name:          "Iron Month",
		Description:   "30-day workout streak",
		CriterionKind: CriterionStreak,
		TargetMetric:  "current_streak",
		TargetValue:   int64Ptr(30),
		RewardPoints:  300,
		IsActive:      true,
	},
	{
		Code:          "centurion",
		Name:          "Centurion",
		Description:   "100-day workout streak — at any point",
		CriterionKind: CriterionStreak,
		TargetMetric:  "longest_streak",
		TargetValue:   int64Ptr(100),
		RewardPoints:  1000,
		IsActive:      true,
	},
	{
		Code:          "five-kilos-down",
		Name:          "Five Kilos Down",
		Description:   "Lost 5kg since your first weigh-in",
		CriterionKind: CriterionAccumulatedValue,
		TargetMetric:  MetricWeightKg,
		TargetValue:   int64Ptr(5),
		RewardPoints:  250,
		IsActive:      true,
	},
	{
		Code:          "goal-getter",
		Name:          "Goal Getter",
		Description:   "Completed a weight goal",
		CriterionKind: CriterionCustom,
		TargetMetric:  "completed_weight_goal",
		RewardPoints:  150,
		IsActive:      true,
	},
}
