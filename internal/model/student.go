package model

import "time"

// DefaultCapabilityScore is assigned to new profiles before any interaction is scored.
const DefaultCapabilityScore = 50

// swagger:model Student
type Student struct {
	UUIDBase
	Name            string    `gorm:"size:100;not null" json:"name"`
	Grade           int       `gorm:"not null;index" json:"grade"`
	CapabilityScore int       `gorm:"not null;default:50" json:"capabilityScore"`
	LastActive      time.Time `json:"lastActive"`
}

func (Student) TableName() string {
	return "student_profiles"
}
