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

type DoubtAnswerEntry = cache.Entry[model.DoubtKey, model.DoubtAnswer]

// CapabilityResponseRepository is the durable backend of the doubt-answer cache.
type CapabilityResponseRepository struct {
	DB *gorm.DB
}

func NewCapabilityResponseRepository(db *gorm.DB) *CapabilityResponseRepository {
	return &CapabilityResponseRepository{DB: db}
}

func doubtKeyScope(key model.DoubtKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("chapter = ? AND capability_cluster = ? AND question_hash = ?",
			key.Chapter, key.Tier, key.QuestionHash)
	}
}

func doubtEntry(row *model.CapabilityResponse) (*DoubtAnswerEntry, error) {
	var answer model.DoubtAnswer
	if err := json.Unmarshal([]byte(row.ResponseText), &answer); err != nil {
		return nil, err
	}
	return &DoubtAnswerEntry{
		ID:         row.ID,
		Key:        model.DoubtKey{Chapter: row.Chapter, Tier: row.Tier, QuestionHash: row.QuestionHash},
		Payload:    answer,
		UsageCount: row.UsageCount,
		CreatedAt:  row.CreatedAt,
		LastUsedAt: row.LastUsedAt,
	}, nil
}

func newDoubtRow(key model.DoubtKey, payload model.DoubtAnswer, at time.Time) (*model.CapabilityResponse, error) {
	text, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &model.CapabilityResponse{
		CacheRow:     model.CacheRow{UsageCount: 1, LastUsedAt: at, CreatedAt: at, UpdatedAt: at},
		Chapter:      key.Chapter,
		Tier:         key.Tier,
		QuestionHash: key.QuestionHash,
		ResponseText: string(text),
	}, nil
}

func (r *CapabilityResponseRepository) Find(ctx context.Context, key model.DoubtKey) (*DoubtAnswerEntry, error) {
	var row model.CapabilityResponse
	err := r.DB.WithContext(ctx).Scopes(doubtKeyScope(key)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doubtEntry(&row)
}

func (r *CapabilityResponseRepository) Insert(ctx context.Context, key model.DoubtKey, payload model.DoubtAnswer, at time.Time) (*DoubtAnswerEntry, bool, error) {
	row, err := newDoubtRow(key, payload, at)
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
	entry, err := doubtEntry(row)
	return entry, true, err
}

func (r *CapabilityResponseRepository) IncrementUsage(ctx context.Context, key model.DoubtKey, at time.Time) (int, error) {
	var count int
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.CapabilityResponse{}).Scopes(doubtKeyScope(key)).
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
		return tx.Model(&model.CapabilityResponse{}).Scopes(doubtKeyScope(key)).
			Select("usage_count").Scan(&count).Error
	})
	return count, err
}

func (r *CapabilityResponseRepository) Upsert(ctx context.Context, key model.DoubtKey, payload model.DoubtAnswer, at time.Time) (*DoubtAnswerEntry, error) {
	row, err := newDoubtRow(key, payload, at)
	if err != nil {
		return nil, err
	}
	err = r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chapter"}, {Name: "capability_cluster"}, {Name: "question_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"response_text", "last_used_at", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, key)
}

func (r *CapabilityResponseRepository) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Where("last_used_at < ?", cutoff).Delete(&model.CapabilityResponse{})
	return res.RowsAffected, res.Error
}
