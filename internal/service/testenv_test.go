package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"vidyabot_backend/internal/config"
	"vidyabot_backend/internal/model"
	"vidyabot_backend/internal/repository"
	"vidyabot_backend/internal/util"
	"vidyabot_backend/pkg/cache"
	"vidyabot_backend/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGenerator struct {
	mu            sync.Mutex
	teachingCalls int
	doubtCalls    int
	lastTeaching  TeachingRequest
	lastDoubt     DoubtRequest
	err           error
}

func (g *fakeGenerator) GenerateTeaching(ctx context.Context, req TeachingRequest) (model.TeachingContent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.teachingCalls++
	g.lastTeaching = req
	if g.err != nil {
		return model.TeachingContent{}, g.err
	}
	return model.TeachingContent{
		Introduction:     fmt.Sprintf("%s for %s", req.Chapter, req.Tier),
		MainExplanation:  fmt.Sprintf("lesson %d", g.teachingCalls),
		Summary:          "summary",
		FollowUpQuestion: "what did you learn?",
	}, nil
}

func (g *fakeGenerator) GenerateDoubtAnswer(ctx context.Context, req DoubtRequest) (model.DoubtAnswer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.doubtCalls++
	g.lastDoubt = req
	if g.err != nil {
		return model.DoubtAnswer{}, g.err
	}
	return model.DoubtAnswer{
		Answer:        fmt.Sprintf("answer %d to %s", g.doubtCalls, req.Question),
		SimpleAnalogy: "like a kitchen",
		Encouragement: "well asked",
	}, nil
}

func (g *fakeGenerator) calls() (teaching, doubt int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.teachingCalls, g.doubtCalls
}

func (g *fakeGenerator) fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

// keywordEmbedder places text on one axis per keyword it mentions.
type keywordEmbedder struct {
	keywords []string
	err      error
}

func (e *keywordEmbedder) Embed(ctx context.Context, text, taskType string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	lower := strings.ToLower(text)
	vec := make([]float32, len(e.keywords)+1)
	vec[len(e.keywords)] = 0.1
	for i, k := range e.keywords {
		vec[i] = float32(strings.Count(lower, k))
	}
	return vec, nil
}

type testEnv struct {
	db          *gorm.DB
	students    *repository.StudentRepository
	messages    *repository.MessageRepository
	states      *repository.CapabilityStateRepository
	syllabusRep *repository.SyllabusRepository
	capability  *CapabilityService
	studentSvc  *StudentService
	syllabus    *SyllabusService
	storage     *StorageService
	speech      *SpeechService
	generator   *fakeGenerator
	transcriber *fakeTranscriber
	lessons     *TeachingCache
	answers     *DoubtCache
	teaching    *TeachingService
	doubts      *DoubtService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		db:          db,
		students:    repository.NewStudentRepository(db),
		messages:    repository.NewMessageRepository(db),
		states:      repository.NewCapabilityStateRepository(db),
		syllabusRep: repository.NewSyllabusRepository(db),
		generator:   &fakeGenerator{},
		transcriber: &fakeTranscriber{text: "explain osmosis"},
	}
	env.capability = NewCapabilityService(NewCapabilityScorer(defaultCapability()), env.states, env.messages, env.students)
	env.studentSvc = NewStudentService(env.students, env.messages, repository.NewTeachingBlockRepository(db), env.capability)
	env.syllabus = NewSyllabusService(env.syllabusRep, nil, 3)
	env.storage = NewStorageService(&config.Config{Storage: config.StorageConfig{Type: util.StorageMemory}})
	env.speech = NewSpeechService(env.transcriber, env.storage, 1<<20, false)
	env.lessons = cache.New[model.TeachingBlockKey, model.TeachingContent]("teaching", repository.NewTeachingBlockRepository(db))
	env.answers = cache.New[model.DoubtKey, model.DoubtAnswer]("doubt", repository.NewCapabilityResponseRepository(db))
	env.teaching = NewTeachingService(env.studentSvc, env.capability, env.syllabus, env.generator, env.lessons, 4)
	env.doubts = NewDoubtService(env.studentSvc, env.capability, env.syllabus, env.speech, env.generator, env.messages, env.answers, 3)
	return env
}

func (e *testEnv) createStudent(t *testing.T, grade int) *model.Student {
	t.Helper()
	s, err := e.studentSvc.Create(context.Background(), CreateStudentRequest{Name: "Anu", Grade: grade})
	require.NoError(t, err)
	return s
}

// said appends learner records to the student's history.
func (e *testEnv) said(t *testing.T, studentID string, texts ...string) {
	t.Helper()
	for _, text := range texts {
		require.NoError(t, e.messages.Append(context.Background(), &model.Message{
			StudentID: studentID,
			Role:      model.RoleStudent,
			Content:   text,
			InputType: model.InputText,
		}))
	}
}

var errUpstream = errors.New("upstream unavailable")
