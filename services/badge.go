package services

import (
	"fmt"
	"log"
	"time"

	"fitness-progress-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	DB     *gorm.DB
	Events *EventService
}

func NewBadgeService(db *gorm.DB, events *EventService) *BadgeService {
	return &BadgeService{DB: db, Events: events}
}

// customPredicates is the fixed registry behind the "custom" criterion kind.
// A badge's TargetMetric names one of these; open-ended field reflection is
// deliberately not a thing.
var customPredicates = map[string]func(db *gorm.DB, externalUserID string) (bool, error){
	"completed_weight_goal": func(db *gorm.DB, externalUserID string) (bool, error) {
		var count int64
		err := db.Model(&models.Goal{}).
			Where("external_user_id = ? AND goal_type = ? AND status = ?",
				externalUserID, "weight", models.GoalStatusCompleted).
			Count(&count).Error
		return count > 0, err
	},
	"completed_any_goal": func(db *gorm.DB, externalUserID string) (bool, error) {
		var count int64
		err := db.Model(&models.Goal{}).
			Where("external_user_id = ? AND status = ?", externalUserID, models.GoalStatusCompleted).
			Count(&count).Error
		return count > 0, err
	},
}

// SeedCatalog upserts the built-in badge catalog. Existing rows are left
// untouched so admin edits survive redeploys.
func (s *BadgeService) SeedCatalog() error {
	for _, badge := range models.BadgeCatalog {
		badge.ID = uuid.NewString()
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&badge).Error; err != nil {
			return NewPersistenceError(fmt.Sprintf("failed to seed badge %s", badge.Code), err)
		}
	}
	log.Printf("✅ Badge catalog seeded (%d definitions)", len(models.BadgeCatalog))
	return nil
}

// CreateBadgeType adds a badge definition to the catalog (admin operation).
// The code is derived from the name, and the name must be unique.
func (s *BadgeService) CreateBadgeType(input *models.BadgeType) (*models.BadgeType, error) {
	if input.Name == "" {
		return nil, NewValidationError("badge name is required", nil)
	}

	switch input.CriterionKind {
	case models.CriterionStreak:
		if input.TargetMetric != "current_streak" && input.TargetMetric != "longest_streak" {
			return nil, NewValidationError(fmt.Sprintf("unknown streak metric %q", input.TargetMetric), nil)
		}
		if input.TargetValue == nil || *input.TargetValue < 1 {
			return nil, NewValidationError("streak badges need a positive target value", nil)
		}
	case models.CriterionCount:
		if !models.KnownActivityTypes[input.TargetMetric] {
			return nil, NewValidationError(fmt.Sprintf("unknown activity type %q", input.TargetMetric), nil)
		}
		if input.TargetValue == nil || *input.TargetValue < 1 {
			return nil, NewValidationError("count badges need a positive target value", nil)
		}
	case models.CriterionAccumulatedValue:
		if input.TargetMetric != models.MetricWeightKg {
			return nil, NewValidationError(fmt.Sprintf("unknown accumulated metric %q", input.TargetMetric), nil)
		}
		if input.TargetValue == nil || *input.TargetValue < 1 {
			return nil, NewValidationError("accumulated-value badges need a positive target value", nil)
		}
	case models.CriterionCustom:
		if _, ok := customPredicates[input.TargetMetric]; !ok {
			return nil, NewValidationError(fmt.Sprintf("unknown custom predicate %q", input.TargetMetric), nil)
		}
	default:
		return nil, NewValidationError(fmt.Sprintf("unknown criterion kind %q", input.CriterionKind), nil)
	}
	if input.RewardPoints < 0 {
		return nil, NewValidationError("reward points must not be negative", nil)
	}

	var existing int64
	if err := s.DB.Model(&models.BadgeType{}).Where("name = ?", input.Name).Count(&existing).Error; err != nil {
		return nil, NewPersistenceError("failed to check badge name", err)
	}
	if existing > 0 {
		return nil, NewValidationError(fmt.Sprintf("badge name %q already exists", input.Name), nil)
	}

	input.ID = uuid.NewString()
	input.Code = slug.Make(input.Name)
	if err := s.DB.Create(input).Error; err != nil {
		return nil, NewPersistenceError("failed to create badge type", err)
	}
	log.Printf("🎖️ Badge type created: %s (%s)", input.Name, input.Code)
	return input, nil
}

// Evaluate awards every active, not-yet-earned badge whose criterion now
// holds for the user, in catalog order. Re-running with no new activity
// awards nothing — the earned-set check plus the unique index on
// (user, badge) make the whole thing idempotent. Returns the newly awarded
// instances.
func (s *BadgeService) Evaluate(externalUserID string) ([]models.UserBadge, error) {
	prog, err := loadProgressTx(s.DB, externalUserID)
	if err != nil {
		return nil, err
	}

	// Catalog order is the documented (deterministic) evaluation order
	var catalog []models.BadgeType
	if err := s.DB.Where("is_active = ?", true).
		Order("created_at ASC, id ASC").
		Find(&catalog).Error; err != nil {
		return nil, NewPersistenceError("failed to load badge catalog", err)
	}

	var earned []models.UserBadge
	if err := s.DB.Where("external_user_id = ?", externalUserID).Find(&earned).Error; err != nil {
		return nil, NewPersistenceError("failed to load earned badges", err)
	}
	earnedSet := make(map[string]bool, len(earned))
	for _, ub := range earned {
		earnedSet[ub.BadgeTypeID] = true
	}

	var newlyAwarded []models.UserBadge
	for i := range catalog {
		badge := &catalog[i]
		if earnedSet[badge.ID] {
			continue
		}
		ok, err := s.criterionMet(prog, badge)
		if err != nil {
			return newlyAwarded, err
		}
		if !ok {
			continue
		}
		awarded, err := s.award(externalUserID, badge)
		if err != nil {
			return newlyAwarded, err
		}
		if awarded != nil {
			newlyAwarded = append(newlyAwarded, *awarded)
		}
	}
	return newlyAwarded, nil
}

func (s *BadgeService) criterionMet(prog *models.UserProgress, badge *models.BadgeType) (bool, error) {
	switch badge.CriterionKind {
	case models.CriterionStreak:
		if badge.TargetValue == nil {
			return false, NewValidationError(fmt.Sprintf("badge %s has no target value", badge.Code), nil)
		}
		metric := int64(prog.CurrentStreak)
		if badge.TargetMetric == "longest_streak" {
			metric = int64(prog.LongestStreak)
		}
		return metric >= *badge.TargetValue, nil

	case models.CriterionCount:
		if badge.TargetValue == nil {
			return false, NewValidationError(fmt.Sprintf("badge %s has no target value", badge.Code), nil)
		}
		var count int64
		if err := s.DB.Model(&models.ActivityEntry{}).
			Where("external_user_id = ? AND activity_type = ?", prog.ExternalUserID, badge.TargetMetric).
			Count(&count).Error; err != nil {
			return false, NewPersistenceError("failed to count ledger entries", err)
		}
		return count >= *badge.TargetValue, nil

	case models.CriterionAccumulatedValue:
		if badge.TargetValue == nil {
			return false, NewValidationError(fmt.Sprintf("badge %s has no target value", badge.Code), nil)
		}
		// First-ever sample vs latest sample, by recorded time. Backfilled
		// entries change the delta; nothing is ever retracted.
		var first, latest models.BiometricSample
		err := s.DB.Where("external_user_id = ? AND metric = ?", prog.ExternalUserID, badge.TargetMetric).
			Order("recorded_at ASC").First(&first).Error
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		if err != nil {
			return false, NewPersistenceError("failed to load first biometric sample", err)
		}
		if err := s.DB.Where("external_user_id = ? AND metric = ?", prog.ExternalUserID, badge.TargetMetric).
			Order("recorded_at DESC").First(&latest).Error; err != nil {
			return false, NewPersistenceError("failed to load latest biometric sample", err)
		}
		return first.Value-latest.Value >= float64(*badge.TargetValue), nil

	case models.CriterionCustom:
		predicate, ok := customPredicates[badge.TargetMetric]
		if !ok {
			return false, NewValidationError(fmt.Sprintf("badge %s names unknown predicate %q", badge.Code, badge.TargetMetric), nil)
		}
		met, err := predicate(s.DB, prog.ExternalUserID)
		if err != nil {
			return false, NewPersistenceError("custom predicate failed", err)
		}
		return met, nil
	}
	return false, NewValidationError(fmt.Sprintf("badge %s has unknown criterion kind %q", badge.Code, badge.CriterionKind), nil)
}

// award inserts the UserBadge, credits the reward and emits the event in one
// transaction. A concurrent evaluation that already awarded the badge makes
// the insert a no-op, in which case nothing else happens either.
func (s *BadgeService) award(externalUserID string, badge *models.BadgeType) (*models.UserBadge, error) {
	var awarded *models.UserBadge
	err := withConflictRetry(func() error {
		awarded = nil
		return s.DB.Transaction(func(tx *gorm.DB) error {
			candidate := models.UserBadge{
				ID:             uuid.NewString(),
				ExternalUserID: externalUserID,
				BadgeTypeID:    badge.ID,
				Metadata:       fmt.Sprintf(`{"badge_code": %q}`, badge.Code),
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate)
			if res.Error != nil {
				return NewPersistenceError("failed to create user badge", res.Error)
			}
			if res.RowsAffected == 0 {
				// Someone else awarded it between our earned-set read and now
				return nil
			}

			if badge.RewardPoints > 0 {
				prog, err := loadProgressTx(tx, externalUserID)
				if err != nil {
					return err
				}
				desc := fmt.Sprintf("badge reward: %s", badge.Name)
				if err := creditPointsTx(tx, prog, badge.RewardPoints, models.ActivityBadgeReward, desc, &badge.ID, time.Now().UTC()); err != nil {
					return err
				}
			}

			if err := s.Events.EmitBadgeEarned(tx, externalUserID, badge.ID, badge.Code); err != nil {
				return err
			}

			awarded = &candidate
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if awarded != nil {
		log.Printf("🎖️ Badge awarded: %s → %s (+%d pts)", badge.Name, externalUserID, badge.RewardPoints)
	}
	return awarded, nil
}

// EarnedBadge is a catalog badge joined with its award instance.
type EarnedBadge struct {
	models.BadgeType
	AwardedAt time.Time `json:"awarded_at"`
}

// GetEarnedBadges returns the user's earned badges, newest first.
func (s *BadgeService) GetEarnedBadges(externalUserID string) ([]EarnedBadge, error) {
	var result []EarnedBadge
	err := s.DB.Model(&models.UserBadge{}).
		Select("badge_types.*, user_badges.awarded_at").
		Joins("INNER JOIN badge_types ON badge_types.id = user_badges.badge_type_id").
		Where("user_badges.external_user_id = ?", externalUserID).
		Order("user_badges.awarded_at DESC").
		Scan(&result).Error
	if err != nil {
		return nil, NewPersistenceError("failed to load earned badges", err)
	}
	return result, nil
}

// BadgeWithStatus is a catalog entry flagged with the user's earned state.
type BadgeWithStatus struct {
	models.BadgeType
	Earned    bool       `json:"earned"`
	AwardedAt *time.Time `json:"awarded_at,omitempty"`
}

// GetAvailableBadges returns the active catalog with a per-user earned flag.
func (s *BadgeService) GetAvailableBadges(externalUserID string) ([]BadgeWithStatus, error) {
	var catalog []models.BadgeType
	if err := s.DB.Where("is_active = ?", true).
		Order("created_at ASC, id ASC").
		Find(&catalog).Error; err != nil {
		return nil, NewPersistenceError("failed to load badge catalog", err)
	}

	var earned []models.UserBadge
	if err := s.DB.Where("external_user_id = ?", externalUserID).Find(&earned).Error; err != nil {
		return nil, NewPersistenceError("failed to load earned badges", err)
	}
	awardedAt := make(map[string]time.Time, len(earned))
	for _, ub := range earned {
		awardedAt[ub.BadgeTypeID] = ub.AwardedAt
	}

	result := make([]BadgeWithStatus, 0, len(catalog))
	for _, badge := range catalog {
		entry := BadgeWithStatus{BadgeType: badge}
		if at, ok := awardedAt[badge.ID]; ok {
			entry.Earned = true
			entry.AwardedAt = &at
		}
		result = append(result, entry)
	}
	return result, nil
}
