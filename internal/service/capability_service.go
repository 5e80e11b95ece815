package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"vidyabot_backend/internal/config"
	"vidyabot_backend/internal/model"
	"vidyabot_backend/internal/repository"
	"vidyabot_backend/internal/util"
	"vidyabot_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minScore = 0
	maxScore = 100
)

// CapabilityScorer turns recent interaction records and an accumulated
// simplify penalty into a score and tier. It is a pure function of its
// inputs and the current tunables, which can be swapped at runtime.
type CapabilityScorer struct {
	mu       sync.RWMutex
	cfg      config.CapabilityConfig
	keywords []string
}

func NewCapabilityScorer(cfg config.CapabilityConfig) *CapabilityScorer {
	s := &CapabilityScorer{}
	s.Update(cfg)
	return s
}

// Update replaces the tunables. Calls in flight keep the values they started with.
func (s *CapabilityScorer) Update(cfg config.CapabilityConfig) {
	keywords := make([]string, 0, len(cfg.ConfusionKeywords))
	for _, k := range cfg.ConfusionKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	s.mu.Lock()
	s.cfg = cfg
	s.keywords = keywords
	s.mu.Unlock()
}

func (s *CapabilityScorer) snapshot() (config.CapabilityConfig, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.keywords
}

// Score starts from the baseline, deducts one step for every learner record
// in the last Window records that contains a confusion keyword, then deducts
// penalty. The result is clamped to [0, 100] after every deduction.
func (s *CapabilityScorer) Score(history []model.Message, penalty int) (int, model.Tier) {
	cfg, keywords := s.snapshot()

	if len(history) > cfg.Window {
		history = history[len(history)-cfg.Window:]
	}

	score := clamp(cfg.Baseline)
	for _, m := range history {
		if m.Role != model.RoleStudent {
			continue
		}
		if containsAny(strings.ToLower(m.Content), keywords) {
			score = clamp(score - cfg.Step)
		}
	}
	score = clamp(score - penalty)

	return score, tierFor(score, cfg)
}

// Tier maps a score to its tier under the current thresholds.
func (s *CapabilityScorer) Tier(score int) model.Tier {
	cfg, _ := s.snapshot()
	return tierFor(clamp(score), cfg)
}

// Penalty converts a simplify click count into score points.
func (s *CapabilityScorer) Penalty(clicks int) int {
	cfg, _ := s.snapshot()
	return clicks * cfg.SimplifyPenalty
}

func (s *CapabilityScorer) Window() int {
	cfg, _ := s.snapshot()
	return cfg.Window
}

func tierFor(score int, cfg config.CapabilityConfig) model.Tier {
	switch {
	case score <= cfg.LowMax:
		return model.TierLow
	case score <= cfg.MediumMax:
		return model.TierMedium
	default:
		return model.TierHigh
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func clamp(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// Assessment is the result of scoring one learner for one turn.
type Assessment struct {
	StudentID      string     `json:"studentId"`
	Score          int        `json:"score"`
	Tier           model.Tier `json:"tier"`
	SimplifyClicks int        `json:"simplifyClicks"`
	Penalty        int        `json:"penalty"`
}

// CapabilityService loads the per-learner state the scorer needs and writes
// the outcome back.
type CapabilityService struct {
	Scorer   *CapabilityScorer
	States   *repository.CapabilityStateRepository
	Messages *repository.MessageRepository
	Students *repository.StudentRepository
}

func NewCapabilityService(
	scorer *CapabilityScorer,
	states *repository.CapabilityStateRepository,
	messages *repository.MessageRepository,
	students *repository.StudentRepository,
) *CapabilityService {
	return &CapabilityService{Scorer: scorer, States: states, Messages: messages, Students: students}
}

// Assess scores the learner from stored history and session state.
func (s *CapabilityService) Assess(ctx context.Context, studentID string) (*Assessment, error) {
	state, err := s.States.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	history, err := s.Messages.Recent(ctx, studentID, s.Scorer.Window())
	if err != nil {
		return nil, err
	}

	penalty := s.Scorer.Penalty(state.SimplifyClicks)
	score, tier := s.Scorer.Score(history, penalty)
	return &Assessment{
		StudentID:      studentID,
		Score:          score,
		Tier:           tier,
		SimplifyClicks: state.SimplifyClicks,
		Penalty:        penalty,
	}, nil
}

// Persist writes the score to the learner profile and the session state.
func (s *CapabilityService) Persist(ctx context.Context, a *Assessment) error {
	if err := s.Students.UpdateScore(ctx, a.StudentID, a.Score); err != nil {
		return err
	}
	return s.States.SaveScore(ctx, a.StudentID, a.Score, a.Tier)
}

// RecordSimplify counts one "simplify" request and returns the new click total.
func (s *CapabilityService) RecordSimplify(ctx context.Context, studentID string) (int, error) {
	clicks, err := s.States.IncrementSimplify(ctx, studentID)
	if err != nil {
		return 0, err
	}
	logger.Log.Info("simplify recorded", zap.String("studentId", studentID), zap.Int("clicks", clicks))
	return clicks, nil
}

// ClearSession resets the learner's simplify counter.
func (s *CapabilityService) ClearSession(ctx context.Context, studentID string) error {
	if _, err := s.Students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrStudentNotFound
		}
		return err
	}
	return s.States.Reset(ctx, studentID)
}
