package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgress tracks gamified progression for each user (denormalized for performance).
// Points, streak counters and the last qualifying date live on one row because they
// must move together in a single transaction.
type UserProgress struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	// Core progression
	TotalPoints   int64 `json:"total_points" gorm:"default:0"`
	CurrentStreak int   `json:"current_streak" gorm:"default:0"`
	LongestStreak int   `json:"longest_streak" gorm:"default:0"` // invariant: longest >= current

	// Date (UTC midnight) of the most recent qualifying activity; nil = no streak yet
	LastQualifyingDate *time.Time `json:"last_qualifying_date,omitempty"`

	// Optimistic lock counter — every write bumps it, every write checks it.
	// Concurrent updates to the same user lose the race instead of overwriting each other.
	Version int64 `json:"-" gorm:"default:0;not null"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
