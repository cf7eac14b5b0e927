package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Leaderboard metrics
const (
	MetricTotalPoints   = "total_points"
	MetricCurrentStreak = "current_streak"
	MetricLongestStreak = "longest_streak"
)

// Column whitelist — metric names never reach SQL unvalidated.
var leaderboardColumns = map[string]string{
	MetricTotalPoints:   "p.total_points",
	MetricCurrentStreak: "p.current_streak",
	MetricLongestStreak: "p.longest_streak",
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	ExternalUserID string `json:"external_user_id"`
	Username       string `json:"username"`
	TotalPoints    int64  `json:"total_points"`
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
}

// LeaderboardService ranks users live over progress records. Only users with
// an active profile mirror participate. Ties break toward the earlier
// progress record, so repeated queries over unchanged data return identical
// rankings.
type LeaderboardService struct {
	DB *gorm.DB
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{DB: db}
}

// Top returns the first n users ranked descending on metric.
func (s *LeaderboardService) Top(n int, metric string) ([]LeaderboardEntry, error) {
	column, ok := leaderboardColumns[metric]
	if !ok {
		return nil, NewValidationError(fmt.Sprintf("unknown leaderboard metric %q", metric), nil)
	}
	// Page size is a presentation knob, not domain input: out-of-range values
	// fall back to the default instead of failing the read. The metric, which
	// reaches SQL, is validated above.
	if n < 1 || n > 100 {
		n = 10
	}

	var entries []LeaderboardEntry
	err := s.DB.Raw(fmt.Sprintf(`
		SELECT p.external_user_id, u.username, p.total_points, p.current_streak, p.longest_streak
		FROM user_progresses p
		INNER JOIN profile_users u ON u.external_user_id = p.external_user_id
		WHERE u.is_active = ? AND u.deleted_at IS NULL AND p.deleted_at IS NULL
		ORDER BY %s DESC, p.created_at ASC
		LIMIT ?
	`, column), true, n).Scan(&entries).Error
	if err != nil {
		return nil, NewPersistenceError("failed to query leaderboard", err)
	}

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// RankOf returns the user's 1-based rank on metric: one plus the number of
// active users strictly greater, plus equal-metric users with an earlier
// progress record (the same tie-break Top uses). Count-based, so it does not
// depend on any page size.
func (s *LeaderboardService) RankOf(externalUserID, metric string) (int, error) {
	column, ok := leaderboardColumns[metric]
	if !ok {
		return 0, NewValidationError(fmt.Sprintf("unknown leaderboard metric %q", metric), nil)
	}

	var mine struct {
		TotalPoints   int64
		CurrentStreak int
		LongestStreak int
		CreatedAt     time.Time
	}
	res := s.DB.Raw(`
		SELECT p.total_points, p.current_streak, p.longest_streak, p.created_at
		FROM user_progresses p
		INNER JOIN profile_users u ON u.external_user_id = p.external_user_id
		WHERE p.external_user_id = ? AND u.is_active = ? AND u.deleted_at IS NULL AND p.deleted_at IS NULL
	`, externalUserID, true).Scan(&mine)
	if res.Error != nil {
		return 0, NewPersistenceError("failed to load user for ranking", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, NewNotFoundError(fmt.Sprintf("no active leaderboard entry for %s", externalUserID))
	}

	var myValue int64
	switch metric {
	case MetricTotalPoints:
		myValue = mine.TotalPoints
	case MetricCurrentStreak:
		myValue = int64(mine.CurrentStreak)
	case MetricLongestStreak:
		myValue = int64(mine.LongestStreak)
	}

	var ahead int64
	err := s.DB.Raw(fmt.Sprintf(`
		SELECT COUNT(*)
		FROM user_progresses p
		INNER JOIN profile_users u ON u.external_user_id = p.external_user_id
		WHERE u.is_active = ? AND u.deleted_at IS NULL AND p.deleted_at IS NULL
		  AND (%s > ? OR (%s = ? AND p.created_at < ?))
	`, column, column), true, myValue, myValue, mine.CreatedAt).Scan(&ahead).Error
	if err != nil {
		return 0, NewPersistenceError("failed to compute rank", err)
	}

	return int(ahead) + 1, nil
}
