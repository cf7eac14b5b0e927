package models

import (
	"time"

	"gorm.io/gorm"
)

// ProfileUser is a local snapshot of user data needed for leaderboards.
// Owned and managed solely by this service; populated via sync worker from
// the profile service. IsActive gates leaderboard membership.
type ProfileUser struct {
	ID                string     `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID    string     `gorm:"uniqueIndex;not null" json:"external_user_id"` // the profile service's UUID
	Username          string     `gorm:"index;not null" json:"username"`
	Email             string     `json:"email,omitempty"`
	ProfilePictureURL *string    `json:"profile_picture_url,omitempty"`
	IsActive          bool       `gorm:"default:true;index" json:"is_active"` // false = suspended/deactivated upstream
	LastSeen          *time.Time `json:"last_seen,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
