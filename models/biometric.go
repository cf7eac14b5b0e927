package models

import "time"

// Biometric metrics tracked for accumulated-value badge criteria.
const (
	MetricWeightKg = "weight_kg"
)

// BiometricSample is one recorded measurement (weight, etc.). The
// accumulated-value criterion compares the first-ever sample to the latest
// one by RecordedAt — backfilled entries change the computed delta, they do
// not retract anything.
type BiometricSample struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"index;not null" json:"external_user_id"`
	Metric         string    `gorm:"index;type:varchar(32);not null" json:"metric"` // e.g. weight_kg
	Value          float64   `json:"value"`
	RecordedAt     time.Time `gorm:"index;not null" json:"recorded_at"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}
