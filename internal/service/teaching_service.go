package service

import (
	"context"
	"time"
	"vidyabot_backend/internal/model"
	"vidyabot_backend/pkg/cache"
	"vidyabot_backend/pkg/logger"
	"vidyabot_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type (
	TeachingCache = cache.Store[model.TeachingBlockKey, model.TeachingContent]
	DoubtCache    = cache.Store[model.DoubtKey, model.DoubtAnswer]
)

// TeachingSession is one lesson delivered to a learner.
type TeachingSession struct {
	BlockID   uint                  `json:"blockId"`
	FromCache bool                  `json:"fromCache"`
	Subject   string                `json:"subject"`
	Chapter   string                `json:"chapter"`
	Tier      model.Tier            `json:"tier"`
	Score     int                   `json:"score"`
	Content   model.TeachingContent `json:"content"`
}

// SimplifyResult is a regenerated lesson plus the penalty state that caused it.
type SimplifyResult struct {
	*TeachingSession
	Simplified             bool       `json:"simplified"`
	ClickCount             int        `json:"clickCount"`
	SimplifyPenaltyApplied int        `json:"simplifyPenaltyApplied"`
	CurrentCluster         model.Tier `json:"currentCluster"`
}

type StartSessionRequest struct {
	StudentID string `json:"studentId" binding:"required,uuid"`
	Subject   string `json:"subject" binding:"required"`
	Chapter   string `json:"chapter" binding:"required"`
}

type TeachingService struct {
	Students   *StudentService
	Capability *CapabilityService
	Syllabus   *SyllabusService
	Generator  ContentGenerator
	Cache      *TeachingCache
	// ContextLimit caps the syllabus chunks passed to the generator.
	ContextLimit int
}

func NewTeachingService(
	students *StudentService,
	capability *CapabilityService,
	syllabus *SyllabusService,
	generator ContentGenerator,
	blocks *TeachingCache,
	contextLimit int,
) *TeachingService {
	return &TeachingService{
		Students:     students,
		Capability:   capability,
		Syllabus:     syllabus,
		Generator:    generator,
		Cache:        blocks,
		ContextLimit: contextLimit,
	}
}

// StartSession scores the learner and returns the lesson cached for their
// tier, generating it on a miss. With force set the cached lesson is
// regenerated and overwritten.
func (s *TeachingService) StartSession(ctx context.Context, studentID, subject, chapter string, force bool) (session *TeachingSession, err error) {
	ctx, span := tracing.Start(ctx, "teaching.start_session")
	defer func() { tracing.End(span, err) }()

	student, err := s.Students.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	assessment, err := s.Capability.Assess(ctx, studentID)
	if err != nil {
		return nil, err
	}

	key := model.TeachingBlockKey{
		Grade:   student.Grade,
		Subject: subject,
		Chapter: chapter,
		Tier:    assessment.Tier,
	}
	span.SetAttributes(
		attribute.String("cache.key", key.CacheKey()),
		attribute.Bool("teaching.force", force),
	)

	gen := func(ctx context.Context) (model.TeachingContent, error) {
		chunks := s.Syllabus.ChapterContext(ctx, chapter, student.Grade, subject, chapter, s.ContextLimit)
		logger.Log.Info("generating teaching block",
			zap.String("key", key.CacheKey()),
			zap.Int("chunks", len(chunks)),
		)
		return s.Generator.GenerateTeaching(ctx, TeachingRequest{
			StudentName: student.Name,
			Grade:       student.Grade,
			Subject:     subject,
			Chapter:     chapter,
			Tier:        assessment.Tier,
			Chunks:      chunks,
		})
	}

	var (
		entry     *cache.Entry[model.TeachingBlockKey, model.TeachingContent]
		fromCache bool
	)
	if force {
		entry, err = s.Cache.Regenerate(ctx, key, gen)
	} else {
		entry, fromCache, err = s.Cache.GetOrGenerate(ctx, key, gen)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Capability.Persist(ctx, assessment); err != nil {
		return nil, err
	}

	logger.Log.Info("teaching session started",
		zap.String("studentId", studentID),
		zap.String("chapter", chapter),
		zap.String("tier", string(assessment.Tier)),
		zap.Bool("fromCache", fromCache),
		zap.Bool("force", force),
	)
	return &TeachingSession{
		BlockID:   entry.ID,
		FromCache: fromCache,
		Subject:   subject,
		Chapter:   chapter,
		Tier:      assessment.Tier,
		Score:     assessment.Score,
		Content:   entry.Payload,
	}, nil
}

// Simplify records one simplify click and regenerates the lesson at the
// learner's lowered tier.
func (s *TeachingService) Simplify(ctx context.Context, studentID, subject, chapter string) (*SimplifyResult, error) {
	if _, err := s.Students.Get(ctx, studentID); err != nil {
		return nil, err
	}

	start := time.Now()
	clicks, err := s.Capability.RecordSimplify(ctx, studentID)
	if err != nil {
		return nil, err
	}

	session, err := s.StartSession(ctx, studentID, subject, chapter, true)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("lesson simplified",
		zap.String("studentId", studentID),
		zap.Int("clicks", clicks),
		zap.String("tier", string(session.Tier)),
		zap.Duration("took", time.Since(start)),
	)
	return &SimplifyResult{
		TeachingSession:        session,
		Simplified:             true,
		ClickCount:             clicks,
		SimplifyPenaltyApplied: s.Capability.Scorer.Penalty(clicks),
		CurrentCluster:         session.Tier,
	}, nil
}

// Browse lists the subjects and chapters available at the learner's grade.
func (s *TeachingService) Browse(ctx context.Context, studentID string) ([]model.ChapterIndex, error) {
	student, err := s.Students.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.Syllabus.Browse(ctx, student.Grade)
}
