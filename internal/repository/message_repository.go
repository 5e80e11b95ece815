package repository

import (
	"context"
	"vidyabot_backend/internal/model"

	"gorm.io/gorm"
)

type MessageRepository struct {
	DB *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{DB: db}
}

// Append inserts the records in order inside one transaction.
func (r *MessageRepository) Append(ctx context.Context, messages ...*model.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range messages {
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Recent returns the learner's last limit records, oldest first.
func (r *MessageRepository) Recent(ctx context.Context, studentID string, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.DB.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepository) CountByStudent(ctx context.Context, studentID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Message{}).Where("student_id = ?", studentID).Count(&count).Error
	return count, err
}
