package service

import (
	"context"
	"errors"
	"vidyabot_backend/internal/model"
	"vidyabot_backend/internal/repository"
	"vidyabot_backend/internal/util"

	"gorm.io/gorm"
)

type StudentService struct {
	Students   *repository.StudentRepository
	Messages   *repository.MessageRepository
	Capability *CapabilityService
	Lessons    *repository.TeachingBlockRepository
}

func NewStudentService(students *repository.StudentRepository, messages *repository.MessageRepository, lessons *repository.TeachingBlockRepository, capability *CapabilityService) *StudentService {
	return &StudentService{Students: students, Messages: messages, Lessons: lessons, Capability: capability}
}

type CreateStudentRequest struct {
	Name  string `json:"name" binding:"required,max=100"`
	Grade int    `json:"grade" binding:"required,min=1,max=12"`
}

func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*model.Student, error) {
	student := &model.Student{
		Name:            req.Name,
		Grade:           req.Grade,
		CapabilityScore: model.DefaultCapabilityScore,
	}
	if err := s.Students.Create(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *StudentService) Get(ctx context.Context, id string) (*model.Student, error) {
	student, err := s.Students.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}
	return student, nil
}

// StudentReport is the instructor-facing view of one learner.
type StudentReport struct {
	Student        *model.Student  `json:"student"`
	Assessment     *Assessment     `json:"assessment"`
	TotalMessages  int64           `json:"totalMessages"`
	RecentMessages []model.Message `json:"recentMessages"`

	// GradeLessonsServed counts cached lessons served to the learner's whole grade.
	GradeLessonsServed int64 `json:"gradeLessonsServed"`
}

func (s *StudentService) Report(ctx context.Context, id string, recent int) (*StudentReport, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	assessment, err := s.Capability.Assess(ctx, id)
	if err != nil {
		return nil, err
	}
	total, err := s.Messages.CountByStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.Messages.Recent(ctx, id, recent)
	if err != nil {
		return nil, err
	}
	served, err := s.Lessons.UsageByGrade(ctx, student.Grade)
	if err != nil {
		return nil, err
	}
	return &StudentReport{
		Student:            student,
		Assessment:         assessment,
		TotalMessages:      total,
		RecentMessages:     messages,
		GradeLessonsServed: served,
	}, nil
}
