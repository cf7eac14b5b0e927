package services

import (
	"fmt"
	"log"
	"time"

	"fitness-progress-system/models"
	"fitness-progress-system/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PointWeights define relative point values per activity type (tunable via config/env later)
type PointWeights struct {
	WorkoutPoints   int64
	MealPoints      int64
	BiometricPoints int64
	CommunityPoints int64
	GoalPoints      int64
}

var DefaultPointWeights = PointWeights{
	WorkoutPoints:   10,
	MealPoints:      5,
	BiometricPoints: 5,
	CommunityPoints: 2,
	GoalPoints:      25,
}

func basePointsFor(activityType string) int64 {
	switch activityType {
	case models.ActivityWorkout:
		return DefaultPointWeights.WorkoutPoints
	case models.ActivityMeal:
		return DefaultPointWeights.MealPoints
	case models.ActivityBiometric:
		return DefaultPointWeights.BiometricPoints
	case models.ActivityCommunity:
		return DefaultPointWeights.CommunityPoints
	case models.ActivityGoal:
		return DefaultPointWeights.GoalPoints
	}
	return 0
}

// StreakMilestones are the streak lengths that emit a milestone event.
var StreakMilestones = []int{3, 7, 14, 21, 30, 50, 100, 365}

// MilestoneBonusPoints: the subset of milestones that also credit bonus points.
var MilestoneBonusPoints = map[int]int64{
	7:   50,
	30:  200,
	100: 500,
}

func isMilestone(streak int) bool {
	for _, m := range StreakMilestones {
		if streak == m {
			return true
		}
	}
	return false
}

const maxConflictRetries = 3

type ProgressService struct {
	DB     *gorm.DB
	Events *EventService
	Badges *BadgeService // wired in main after both services exist
}

func NewProgressService(db *gorm.DB, events *EventService) *ProgressService {
	return &ProgressService{DB: db, Events: events}
}

// withConflictRetry reruns op while it loses optimistic-concurrency races,
// up to maxConflictRetries attempts. A conflict that survives the budget
// surfaces as a PersistenceError; every other error passes through unchanged.
func withConflictRetry(op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsConflictError(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithMaxRetries(b, maxConflictRetries))

	if err != nil && IsConflictError(err) {
		return NewPersistenceError("optimistic update exhausted its retry budget", err)
	}
	return err
}

// casUpdateProgress writes the progress row guarded by its version counter.
// Zero rows affected means another writer got there first.
func casUpdateProgress(tx *gorm.DB, prog *models.UserProgress) error {
	res := tx.Model(&models.UserProgress{}).
		Where("id = ? AND version = ?", prog.ID, prog.Version).
		Updates(map[string]interface{}{
			"total_points":         prog.TotalPoints,
			"current_streak":       prog.CurrentStreak,
			"longest_streak":       prog.LongestStreak,
			"last_qualifying_date": prog.LastQualifyingDate,
			"version":              prog.Version + 1,
		})
	if res.Error != nil {
		return NewPersistenceError("failed to update progress record", res.Error)
	}
	if res.RowsAffected == 0 {
		return NewConflictError(fmt.Sprintf("progress record %s changed underneath us", prog.ID))
	}
	prog.Version++
	return nil
}

func loadProgressTx(tx *gorm.DB, externalUserID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := tx.Where("external_user_id = ?", externalUserID).First(&prog).Error
	if err == gorm.ErrRecordNotFound {
		return nil, NewNotFoundError(fmt.Sprintf("progress record not found for %s", externalUserID))
	}
	if err != nil {
		return nil, NewPersistenceError("failed to load progress record", err)
	}
	return &prog, nil
}

// EnsureProgressRecord ensures a UserProgress row exists (idempotent)
func (s *ProgressService) EnsureProgressRecord(externalUserID string) (*models.UserProgress, error) {
	prog, err := loadProgressTx(s.DB, externalUserID)
	if err == nil {
		return prog, nil
	}
	if !IsNotFoundError(err) {
		return nil, err
	}
	fresh := models.UserProgress{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
	}
	if err := s.DB.Create(&fresh).Error; err != nil {
		// Lost a create race — the other writer's row is the one we want
		if existing, loadErr := loadProgressTx(s.DB, externalUserID); loadErr == nil {
			return existing, nil
		}
		return nil, NewPersistenceError("failed to create progress record", err)
	}
	return &fresh, nil
}

// creditPointsTx appends a ledger entry and credits its points in one unit of
// work against tx. The two writes always travel together — a credit without
// a ledger row (or the reverse) must be impossible.
func creditPointsTx(tx *gorm.DB, prog *models.UserProgress, amount int64, activityType, description string, relatedID *string, occurredAt time.Time) error {
	prog.TotalPoints += amount
	if err := casUpdateProgress(tx, prog); err != nil {
		return err
	}
	entry := models.ActivityEntry{
		ID:              uuid.NewString(),
		ExternalUserID:  prog.ExternalUserID,
		ActivityType:    activityType,
		Description:     description,
		RelatedEntityID: relatedID,
		PointsEarned:    amount,
		OccurredAt:      occurredAt,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return NewPersistenceError("failed to append ledger entry", err)
	}
	return nil
}

// CreditPoints credits amount to a user and records the reason in the ledger,
// atomically. Negative amounts are rejected — administrative corrections are
// a different operation that does not exist here.
func (s *ProgressService) CreditPoints(externalUserID string, amount int64, activityType, description string, relatedID *string) (*models.UserProgress, error) {
	if amount < 0 {
		return nil, NewValidationError("point amount must not be negative", nil)
	}
	if !models.KnownActivityTypes[activityType] {
		return nil, NewValidationError(fmt.Sprintf("unknown activity type %q", activityType), nil)
	}

	var result *models.UserProgress
	err := withConflictRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			prog, err := loadProgressTx(tx, externalUserID)
			if err != nil {
				return err
			}
			if err := creditPointsTx(tx, prog, amount, activityType, description, relatedID, time.Now().UTC()); err != nil {
				return err
			}
			result = prog
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🎮 Points credited: %s +%d → total=%d (%s)", externalUserID, amount, result.TotalPoints, description)
	return result, nil
}

// RecordActivity is the engine's inbound entry point for a scoring-eligible
// action. For the qualifying type (workout) it also drives the streak state
// machine on UTC calendar days:
//
//	same day as last qualifying   → full no-op (idempotent)
//	yesterday, or first ever      → streak extends (first event starts at 1)
//	older than yesterday          → streak restarts at 1
//
// Milestone streaks emit an event and, for {7, 30, 100}, a bonus credit with
// its own ledger entry. Badge evaluation runs after the transaction commits;
// a failed evaluation is logged and retried on the next activity.
func (s *ProgressService) RecordActivity(externalUserID, activityType string, occurredAt time.Time, description string, relatedID *string) (*models.UserProgress, error) {
	switch activityType {
	case models.ActivityWorkout, models.ActivityMeal, models.ActivityBiometric,
		models.ActivityCommunity, models.ActivityGoal:
		// scoring-eligible
	default:
		return nil, NewValidationError(fmt.Sprintf("activity type %q cannot be recorded directly", activityType), nil)
	}
	if occurredAt.IsZero() {
		return nil, NewValidationError("occurred_at is required", nil)
	}

	if _, err := s.EnsureProgressRecord(externalUserID); err != nil {
		return nil, err
	}

	var result *models.UserProgress
	err := withConflictRetry(func() error {
		return s.DB.Transaction(func(tx *gorm.DB) error {
			prog, err := loadProgressTx(tx, externalUserID)
			if err != nil {
				return err
			}

			day := utils.DayUTC(occurredAt)
			milestone := 0

			advanceStreak := activityType == models.ActivityWorkout
			if advanceStreak && prog.LastQualifyingDate != nil {
				if utils.SameDayUTC(*prog.LastQualifyingDate, day) {
					// Already counted today — no second credit, no second ledger row
					result = prog
					return nil
				}
				if day.Before(*prog.LastQualifyingDate) {
					// Backfilled workout: still credit points below, but the
					// streak never rewinds to an earlier day
					advanceStreak = false
				}
			}

			if advanceStreak {
				switch {
				case prog.LastQualifyingDate == nil:
					prog.CurrentStreak = 1
				case utils.DaysBetween(*prog.LastQualifyingDate, day) == 1:
					prog.CurrentStreak++
				default:
					prog.CurrentStreak = 1
				}
				if prog.CurrentStreak > prog.LongestStreak {
					prog.LongestStreak = prog.CurrentStreak
				}
				prog.LastQualifyingDate = &day
				if isMilestone(prog.CurrentStreak) {
					milestone = prog.CurrentStreak
				}
				log.Printf("🔥 Streak: %s → current=%d longest=%d (day %s)",
					externalUserID, prog.CurrentStreak, prog.LongestStreak, day.Format("2006-01-02"))
			}

			if err := creditPointsTx(tx, prog, basePointsFor(activityType), activityType, description, relatedID, occurredAt); err != nil {
				return err
			}

			if milestone > 0 {
				if err := s.Events.EmitStreakMilestone(tx, externalUserID, milestone); err != nil {
					return err
				}
				if bonus, ok := MilestoneBonusPoints[milestone]; ok {
					bonusDesc := fmt.Sprintf("%d-day streak bonus", milestone)
					if err := creditPointsTx(tx, prog, bonus, models.ActivityStreakBonus, bonusDesc, nil, occurredAt); err != nil {
						return err
					}
				}
			}

			result = prog
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Evaluation is idempotent, so a crash or error here is recovered by
	// simply running it again on the next triggering event.
	if s.Badges != nil {
		if _, err := s.Badges.Evaluate(externalUserID); err != nil {
			log.Printf("⚠️ Badge evaluation failed for %s (will retry on next activity): %v", externalUserID, err)
		}
	}

	return result, nil
}

// RunDailySweep breaks streaks for every user whose last qualifying day is
// older than the day before asOf. The UPDATE re-checks last_qualifying_date
// at write time, so a sweep racing a live workout resolves in the workout's
// favour. Sweeping an already-broken streak is a no-op, which makes the job
// safe to rerun. Returns the number of streaks broken.
func (s *ProgressService) RunDailySweep(asOf time.Time) (int, error) {
	if asOf.IsZero() {
		return 0, NewValidationError("as_of date is required", nil)
	}
	cutoff := utils.DayUTC(asOf).AddDate(0, 0, -1)

	var stale []models.UserProgress
	if err := s.DB.Where("current_streak > 0 AND last_qualifying_date < ?", cutoff).
		Find(&stale).Error; err != nil {
		return 0, NewPersistenceError("failed to load stale streaks", err)
	}

	broken := 0
	for _, prog := range stale {
		prior := prog.CurrentStreak
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.UserProgress{}).
				Where("id = ? AND version = ? AND current_streak > 0 AND last_qualifying_date < ?",
					prog.ID, prog.Version, cutoff).
				Updates(map[string]interface{}{
					"current_streak": 0,
					"version":        prog.Version + 1,
				})
			if res.Error != nil {
				return NewPersistenceError("failed to break streak", res.Error)
			}
			if res.RowsAffected == 0 {
				// The user logged a workout (or another writer moved the row)
				// between our read and this write — leave it alone; the next
				// sweep re-checks from scratch.
				return nil
			}
			if err := s.Events.EmitStreakBroken(tx, prog.ExternalUserID, prior); err != nil {
				return err
			}
			broken++
			log.Printf("💔 Streak broken: %s (was %d days)", prog.ExternalUserID, prior)
			return nil
		})
		if err != nil {
			log.Printf("⚠️ [SWEEP] Failed to process %s: %v", prog.ExternalUserID, err)
		}
	}

	log.Printf("✅ [SWEEP] Done for %s: %d candidate(s), %d streak(s) broken",
		utils.DayUTC(asOf).Format("2006-01-02"), len(stale), broken)
	return broken, nil
}

// GetProgress returns the user's progress record.
func (s *ProgressService) GetProgress(externalUserID string) (*models.UserProgress, error) {
	return loadProgressTx(s.DB, externalUserID)
}
