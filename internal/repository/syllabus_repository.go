package repository

import (
	"context"
	"vidyabot_backend/internal/model"

	"gorm.io/gorm"
)

type SyllabusRepository struct {
	DB *gorm.DB
}

func NewSyllabusRepository(db *gorm.DB) *SyllabusRepository {
	return &SyllabusRepository{DB: db}
}

func (r *SyllabusRepository) CreateChunks(ctx context.Context, chunks []*model.SyllabusChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Create(chunks).Error
}

// NextChunkOrder returns the order number the next chunk of a chapter should take.
func (r *SyllabusRepository) NextChunkOrder(ctx context.Context, grade int, subject, chapter string) (int, error) {
	var max int
	err := r.DB.WithContext(ctx).Model(&model.SyllabusChunk{}).
		Where("grade = ? AND subject = ? AND chapter = ?", grade, subject, chapter).
		Select("COALESCE(MAX(chunk_order), 0)").
		Scan(&max).Error
	return max + 1, err
}

// FindEmbedded returns every embedded chunk at or below gradeCeiling for subject.
func (r *SyllabusRepository) FindEmbedded(ctx context.Context, gradeCeiling int, subject string) ([]model.SyllabusChunk, error) {
	var chunks []model.SyllabusChunk
	q := r.DB.WithContext(ctx).Where("grade <= ? AND embedding IS NOT NULL", gradeCeiling)
	if subject != "" {
		q = q.Where("subject = ?", subject)
	}
	err := q.Find(&chunks).Error
	return chunks, err
}

// FindByChapter returns the first limit chunks of a chapter at or below grade, in reading order.
func (r *SyllabusRepository) FindByChapter(ctx context.Context, grade int, subject, chapter string, limit int) ([]model.SyllabusChunk, error) {
	var chunks []model.SyllabusChunk
	q := r.DB.WithContext(ctx).Where("grade <= ? AND chapter = ?", grade, chapter)
	if subject != "" {
		q = q.Where("subject = ?", subject)
	}
	err := q.Order("chunk_order ASC").Limit(limit).Find(&chunks).Error
	return chunks, err
}

type chapterRow struct {
	Subject string
	Chapter string
}

// ListChapters groups the chapters available to a grade by subject.
func (r *SyllabusRepository) ListChapters(ctx context.Context, grade int) ([]model.ChapterIndex, error) {
	var rows []chapterRow
	err := r.DB.WithContext(ctx).Model(&model.SyllabusChunk{}).
		Distinct("subject", "chapter").
		Where("grade = ?", grade).
		Order("subject ASC, chapter ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var index []model.ChapterIndex
	for _, row := range rows {
		if n := len(index); n > 0 && index[n-1].Name == row.Subject {
			index[n-1].Chapters = append(index[n-1].Chapters, row.Chapter)
			continue
		}
		index = append(index, model.ChapterIndex{Name: row.Subject, Chapters: []string{row.Chapter}})
	}
	return index, nil
}
