package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"vidyabot_backend/internal/model"
	"vidyabot_backend/pkg/cache"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TeachingBlockEntry = cache.Entry[model.TeachingBlockKey, model.TeachingContent]

// TeachingBlockRepository is the durable backend of the teaching-block cache.
type TeachingBlockRepository struct {
	DB *gorm.DB
}

func NewTeachingBlockRepository(db *gorm.DB) *TeachingBlockRepository {
	return &TeachingBlockRepository{DB: db}
}

func teachingKeyScope(key model.TeachingBlockKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("grade = ? AND subject = ? AND chapter = ? AND capability_cluster = ?",
			key.Grade, key.Subject, key.Chapter, key.Tier)
	}
}

func teachingEntry(row *model.TeachingBlock) (*TeachingBlockEntry, error) {
	var content model.TeachingContent
	if err := json.Unmarshal([]byte(row.Content), &content); err != nil {
		return nil, err
	}
	return &TeachingBlockEntry{
		ID:         row.ID,
		Key:        model.TeachingBlockKey{Grade: row.Grade, Subject: row.Subject, Chapter: row.Chapter, Tier: row.Tier},
		Payload:    content,
		UsageCount: row.UsageCount,
		CreatedAt:  row.CreatedAt,
		LastUsedAt: row.LastUsedAt,
	}, nil
}

func newTeachingRow(key model.TeachingBlockKey, payload model.TeachingContent, at time.Time) (*model.TeachingBlock, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &model.TeachingBlock{
		CacheRow: model.CacheRow{UsageCount: 1, LastUsedAt: at, CreatedAt: at, UpdatedAt: at},
		Grade:    key.Grade,
		Subject:  key.Subject,
		Chapter:  key.Chapter,
		Tier:     key.Tier,
		Content:  string(content),
	}, nil
}

func (r *TeachingBlockRepository) Find(ctx context.Context, key model.TeachingBlockKey) (*TeachingBlockEntry, error) {
	var row model.TeachingBlock
	err := r.DB.WithContext(ctx).Scopes(teachingKeyScope(key)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return teachingEntry(&row)
}

func (r *TeachingBlockRepository) Insert(ctx context.Context, key model.TeachingBlockKey, payload model.TeachingContent, at time.Time) (*TeachingBlockEntry, bool, error) {
	row, err := newTeachingRow(key, payload, at)
	if err != nil {
		return nil, false, err
	}
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := r.Find(ctx, key)
		return existing, false, err
	}
	entry, err := teachingEntry(row)
	return entry, true, err
}

func (r *TeachingBlockRepository) IncrementUsage(ctx context.Context, key model.TeachingBlockKey, at time.Time) (int, error) {
	var count int
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.TeachingBlock{}).Scopes(teachingKeyScope(key)).
			Updates(map[string]interface{}{
				"usage_count":  gorm.Expr("usage_count + ?", 1),
				"last_used_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return cache.ErrNotFound
		}
		return tx.Model(&model.TeachingBlock{}).Scopes(teachingKeyScope(key)).
			Select("usage_count").Scan(&count).Error
	})
	return count, err
}

func (r *TeachingBlockRepository) Upsert(ctx context.Context, key model.TeachingBlockKey, payload model.TeachingContent, at time.Time) (*TeachingBlockEntry, error) {
	row, err := newTeachingRow(key, payload, at)
	if err != nil {
		return nil, err
	}
	err = r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "grade"}, {Name: "subject"}, {Name: "chapter"}, {Name: "capability_cluster"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "last_used_at", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, key)
}

func (r *TeachingBlockRepository) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Where("last_used_at < ?", cutoff).Delete(&model.TeachingBlock{})
	return res.RowsAffected, res.Error
}

// UsageByGrade sums how often cached lessons of one grade were served.
func (r *TeachingBlockRepository) UsageByGrade(ctx context.Context, grade int) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&model.TeachingBlock{}).
		Where("grade = ?", grade).
		Select("COALESCE(SUM(usage_count), 0)").
		Scan(&total).Error
	return total, err
}
