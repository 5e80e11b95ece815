package service

import (
	"context"
	"fmt"
	"strings"
	"vidyabot_backend/internal/model"
	"vidyabot_backend/internal/repository"
	"vidyabot_backend/internal/util"
	"vidyabot_backend/pkg/logger"
	"vidyabot_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DoubtInput is one learner question, typed or spoken.
type DoubtInput struct {
	StudentID string
	Subject   string
	Chapter   string
	InputType model.InputType
	Text      string
	Audio     []byte
	// AudioName is the uploaded file name, if any.
	AudioName string
}

type DoubtResult struct {
	MessageID  uint              `json:"messageId"`
	FromCache  bool              `json:"fromCache"`
	Question   string            `json:"question"`
	Tier       model.Tier        `json:"tier"`
	Response   model.DoubtAnswer `json:"response"`
	ArchiveURL string            `json:"archiveUrl,omitempty"`
}

type DoubtService struct {
	Students   *StudentService
	Capability *CapabilityService
	Syllabus   *SyllabusService
	Speech     *SpeechService
	Generator  ContentGenerator
	Messages   *repository.MessageRepository
	Cache      *DoubtCache
	// ContextLimit caps the syllabus chunks passed to the generator.
	ContextLimit int
}

func NewDoubtService(
	students *StudentService,
	capability *CapabilityService,
	syllabus *SyllabusService,
	speech *SpeechService,
	generator ContentGenerator,
	messages *repository.MessageRepository,
	answers *DoubtCache,
	contextLimit int,
) *DoubtService {
	return &DoubtService{
		Students:     students,
		Capability:   capability,
		Syllabus:     syllabus,
		Speech:       speech,
		Generator:    generator,
		Messages:     messages,
		Cache:        answers,
		ContextLimit: contextLimit,
	}
}

// HandleDoubt answers one question. Voice input is transcribed first and a
// transcription failure ends the turn. Answers are shared between learners of
// the same tier asking the same normalized question in the same chapter.
// Both the question and the answer are appended to the learner's history on
// hits and misses alike.
func (s *DoubtService) HandleDoubt(ctx context.Context, in DoubtInput) (result *DoubtResult, err error) {
	ctx, span := tracing.Start(ctx, "doubt.handle")
	defer func() { tracing.End(span, err) }()

	student, err := s.Students.Get(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}

	result = &DoubtResult{}
	question, err := s.question(ctx, in, result)
	if err != nil {
		return nil, err
	}
	result.Question = question

	assessment, err := s.Capability.Assess(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}
	result.Tier = assessment.Tier

	key := model.DoubtKey{
		Chapter:      in.Chapter,
		Tier:         assessment.Tier,
		QuestionHash: util.HashQuestion(question),
	}
	span.SetAttributes(
		attribute.String("cache.key", key.CacheKey()),
		attribute.String("doubt.input_type", string(in.InputType)),
	)

	entry, fromCache, err := s.Cache.GetOrGenerate(ctx, key, func(ctx context.Context) (model.DoubtAnswer, error) {
		chunks := s.Syllabus.SearchRelevantChunks(ctx, in.Chapter+" "+question, student.Grade, in.Subject, s.ContextLimit)
		return s.Generator.GenerateDoubtAnswer(ctx, DoubtRequest{
			StudentName: student.Name,
			Grade:       student.Grade,
			Chapter:     in.Chapter,
			Tier:        assessment.Tier,
			Question:    question,
			Context:     doubtContext(in.Chapter, chunks),
		})
	})
	if err != nil {
		return nil, err
	}
	result.FromCache = fromCache
	result.Response = entry.Payload

	asked := &model.Message{
		StudentID: in.StudentID,
		Role:      model.RoleStudent,
		Content:   question,
		InputType: in.InputType,
	}
	answered := &model.Message{
		StudentID: in.StudentID,
		Role:      model.RoleTutor,
		Content:   entry.Payload.Answer,
		InputType: model.InputText,
	}
	if err := s.Messages.Append(ctx, asked, answered); err != nil {
		return nil, fmt.Errorf("record doubt turn: %w", err)
	}
	result.MessageID = asked.ID

	if err := s.Capability.Persist(ctx, assessment); err != nil {
		return nil, err
	}

	logger.Log.Info("doubt handled",
		zap.String("studentId", in.StudentID),
		zap.String("chapter", in.Chapter),
		zap.String("tier", string(assessment.Tier)),
		zap.String("hash", key.QuestionHash),
		zap.Bool("fromCache", fromCache),
	)
	return result, nil
}

// question resolves the text of the turn, transcribing voice input.
func (s *DoubtService) question(ctx context.Context, in DoubtInput, result *DoubtResult) (string, error) {
	var text string
	switch in.InputType {
	case model.InputVoice:
		if len(in.Audio) == 0 {
			return "", util.ErrAudioRequired
		}
		transcript, err := s.Speech.Transcribe(ctx, in.StudentID, in.Audio, in.AudioName)
		if err != nil {
			return "", err
		}
		result.ArchiveURL = transcript.ArchiveURL
		text = transcript.Text
		logger.Log.Info("voice question transcribed", zap.String("studentId", in.StudentID), zap.Int64("durationMs", transcript.DurationMs))
	case model.InputText:
		if in.Text == "" {
			return "", util.ErrTextRequired
		}
		text = in.Text
	default:
		return "", util.ErrInvalidInputType
	}

	text = strings.TrimSpace(text)
	if util.NormalizeQuestion(text) == "" {
		return "", util.ErrEmptyQuestion
	}
	return text, nil
}

func doubtContext(chapter string, chunks []model.SyllabusChunk) string {
	if len(chunks) == 0 {
		return "General conceptual knowledge of chapter: " + chapter
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, "\n\n")
}
