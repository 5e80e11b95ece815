package model

import "time"

// SyllabusChunk is a slice of textbook material used as generation context.
type SyllabusChunk struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Grade      int       `gorm:"not null;index:idx_syllabus_scope" json:"grade"`
	Subject    string    `gorm:"size:100;not null;index:idx_syllabus_scope" json:"subject"`
	Chapter    string    `gorm:"size:191;not null;index" json:"chapter"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	ChunkOrder int       `gorm:"not null" json:"chunkOrder"`
	Embedding  []byte    `gorm:"type:blob" json:"-"`
	CreatedAt  time.Time `json:"createdAt"`

	Similarity float64 `gorm:"-" json:"similarity,omitempty"`
}

func (SyllabusChunk) TableName() string {
	return "syllabus_chunks"
}

// ChapterIndex lists the chapters of one subject.
type ChapterIndex struct {
	Name     string   `json:"name"`
	Chapters []string `json:"chapters"`
}
