package repository

import (
	"context"
	"time"
	"vidyabot_backend/internal/model"

	"gorm.io/gorm"
)

type StudentRepository struct {
	DB *gorm.DB
}

func NewStudentRepository(db *gorm.DB) *StudentRepository {
	return &StudentRepository{DB: db}
}

func (r *StudentRepository) Create(ctx context.Context, student *model.Student) error {
	if student.LastActive.IsZero() {
		student.LastActive = time.Now()
	}
	return r.DB.WithContext(ctx).Create(student).Error
}

func (r *StudentRepository) FindByID(ctx context.Context, id string) (*model.Student, error) {
	var student model.Student
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&student).Error
	return &student, err
}

// UpdateScore writes back the latest capability score and marks the learner active.
func (r *StudentRepository) UpdateScore(ctx context.Context, id string, score int) error {
	return r.DB.WithContext(ctx).Model(&model.Student{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"capability_score": score,
			"last_active":      time.Now(),
		}).Error
}

func (r *StudentRepository) List(ctx context.Context, grade int) ([]model.Student, error) {
	var students []model.Student
	q := r.DB.WithContext(ctx).Order("name ASC")
	if grade > 0 {
		q = q.Where("grade = ?", grade)
	}
	err := q.Find(&students).Error
	return students, err
}
