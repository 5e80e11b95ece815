package repository

import (
	"context"
	"errors"
	"time"
	"vidyabot_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CapabilityStateRepository struct {
	DB *gorm.DB
}

func NewCapabilityStateRepository(db *gorm.DB) *CapabilityStateRepository {
	return &CapabilityStateRepository{DB: db}
}

// Get returns the learner's state, or a zero state if none was stored yet.
func (r *CapabilityStateRepository) Get(ctx context.Context, studentID string) (*model.CapabilityState, error) {
	var state model.CapabilityState
	err := r.DB.WithContext(ctx).Where("student_id = ?", studentID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.CapabilityState{StudentID: studentID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *CapabilityStateRepository) ensure(tx *gorm.DB, studentID string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.CapabilityState{StudentID: studentID, SessionStarted: time.Now()}).Error
}

// IncrementSimplify adds one click with a single UPDATE so concurrent
// requests never lose an increment, and returns the new click count.
func (r *CapabilityStateRepository) IncrementSimplify(ctx context.Context, studentID string) (int, error) {
	var clicks int
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensure(tx, studentID); err != nil {
			return err
		}
		if err := tx.Model(&model.CapabilityState{}).
			Where("student_id = ?", studentID).
			Update("simplify_clicks", gorm.Expr("simplify_clicks + ?", 1)).Error; err != nil {
			return err
		}
		return tx.Model(&model.CapabilityState{}).
			Where("student_id = ?", studentID).
			Select("simplify_clicks").
			Scan(&clicks).Error
	})
	return clicks, err
}

// SaveScore records the last computed score and tier without touching the click counter.
func (r *CapabilityStateRepository) SaveScore(ctx context.Context, studentID string, score int, tier model.Tier) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensure(tx, studentID); err != nil {
			return err
		}
		return tx.Model(&model.CapabilityState{}).
			Where("student_id = ?", studentID).
			Updates(map[string]interface{}{"score": score, "tier": tier}).Error
	})
}

// Reset clears the click counter and starts a new session.
func (r *CapabilityStateRepository) Reset(ctx context.Context, studentID string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensure(tx, studentID); err != nil {
			return err
		}
		return tx.Model(&model.CapabilityState{}).
			Where("student_id = ?", studentID).
			Updates(map[string]interface{}{"simplify_clicks": 0, "session_started": time.Now()}).Error
	})
}
