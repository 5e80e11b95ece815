package model

import (
	"fmt"
	"net/url"
)

// DoubtKey identifies a cached answer to a normalized question.
type DoubtKey struct {
	Chapter      string
	Tier         Tier
	QuestionHash string
}

func (k DoubtKey) CacheKey() string {
	return fmt.Sprintf("doubt:%s:%s:%s", url.QueryEscape(k.Chapter), k.Tier, k.QuestionHash)
}

// DoubtAnswer is the three-part answer produced by the generation service.
type DoubtAnswer struct {
	Answer        string `json:"answer" validate:"required"`
	SimpleAnalogy string `json:"simple_analogy" validate:"required"`
	Encouragement string `json:"encouragement" validate:"required"`
}

// CapabilityResponse stores one doubt answer per (chapter, tier, question hash).
type CapabilityResponse struct {
	CacheRow
	Chapter      string `gorm:"size:191;not null;uniqueIndex:idx_doubt_key,priority:1" json:"chapter"`
	Tier         Tier   `gorm:"column:capability_cluster;size:10;not null;uniqueIndex:idx_doubt_key,priority:2" json:"tier"`
	QuestionHash string `gorm:"size:32;not null;uniqueIndex:idx_doubt_key,priority:3" json:"questionHash"`
	ResponseText string `gorm:"type:text;not null" json:"responseText"`
}

func (CapabilityResponse) TableName() string {
	return "capability_responses"
}
