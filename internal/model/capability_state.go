package model

import "time"

// Tier is the ordinal capability level derived from a score.
type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

func (t Tier) Valid() bool {
	switch t {
	case TierLow, TierMedium, TierHigh:
		return true
	}
	return false
}

// Rank orders tiers from LOW (0) to HIGH (2).
func (t Tier) Rank() int {
	switch t {
	case TierLow:
		return 0
	case TierMedium:
		return 1
	case TierHigh:
		return 2
	}
	return -1
}

// CapabilityState is the per-learner session state. SimplifyClicks never
// decreases except through an explicit session clear.
type CapabilityState struct {
	StudentID      string    `gorm:"primaryKey;type:varchar(36)" json:"studentId"`
	SimplifyClicks int       `gorm:"not null;default:0" json:"simplifyClicks"`
	Score          int       `gorm:"not null;default:0" json:"score"`
	Tier           Tier      `gorm:"size:10" json:"tier"`
	SessionStarted time.Time `json:"sessionStarted"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (CapabilityState) TableName() string {
	return "capability_states"
}

// Penalty is the score deduction accumulated from simplify clicks.
func (s *CapabilityState) Penalty(step int) int {
	if s == nil {
		return 0
	}
	return s.SimplifyClicks * step
}
