package model

import (
	"fmt"
	"net/url"
)

// TeachingBlockKey identifies the lesson a tier has already seen for a chapter.
type TeachingBlockKey struct {
	Grade   int
	Subject string
	Chapter string
	Tier    Tier
}

// CacheKey escapes the free-text fields so no subject or chapter can
// contain the separator.
func (k TeachingBlockKey) CacheKey() string {
	return fmt.Sprintf("teaching:%d:%s:%s:%s", k.Grade, url.QueryEscape(k.Subject), url.QueryEscape(k.Chapter), k.Tier)
}

// TeachingContent is the four-part lesson produced by the generation service.
type TeachingContent struct {
	Introduction     string `json:"introduction" validate:"required"`
	MainExplanation  string `json:"main_explanation" validate:"required"`
	Summary          string `json:"summary" validate:"required"`
	FollowUpQuestion string `json:"follow_up_question" validate:"required"`
}

type TeachingBlock struct {
	CacheRow
	Grade   int    `gorm:"not null;uniqueIndex:idx_teaching_key,priority:1" json:"grade"`
	Subject string `gorm:"size:100;not null;uniqueIndex:idx_teaching_key,priority:2" json:"subject"`
	Chapter string `gorm:"size:191;not null;uniqueIndex:idx_teaching_key,priority:3" json:"chapter"`
	Tier    Tier   `gorm:"column:capability_cluster;size:10;not null;uniqueIndex:idx_teaching_key,priority:4" json:"tier"`
	Content string `gorm:"type:text;not null" json:"content"`
}

func (TeachingBlock) TableName() string {
	return "teaching_blocks"
}
