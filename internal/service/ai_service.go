package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"vidyabot_backend/internal/config"
	"vidyabot_backend/internal/model"
	"vidyabot_backend/pkg/logger"
	"vidyabot_backend/pkg/monitoring"
	"vidyabot_backend/pkg/tracing"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// GenerationErrorKind classifies why a generation call produced no payload.
type GenerationErrorKind string

const (
	GenerationTransport GenerationErrorKind = "transport"
	GenerationStatus    GenerationErrorKind = "status"
	GenerationEmpty     GenerationErrorKind = "empty"
	GenerationSchema    GenerationErrorKind = "schema"
)

type GenerationError struct {
	Kind   GenerationErrorKind
	Status int
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("generation %s error (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("generation %s error: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// TeachingRequest carries everything the generation call needs for one lesson.
type TeachingRequest struct {
	StudentName string
	Grade       int
	Subject     string
	Chapter     string
	Tier        model.Tier
	Chunks      []model.SyllabusChunk
}

type DoubtRequest struct {
	StudentName string
	Grade       int
	Chapter     string
	Tier        model.Tier
	Question    string
	Context     string
}

// ContentGenerator produces validated lesson and answer payloads.
type ContentGenerator interface {
	GenerateTeaching(ctx context.Context, req TeachingRequest) (model.TeachingContent, error)
	GenerateDoubtAnswer(ctx context.Context, req DoubtRequest) (model.DoubtAnswer, error)
}

type AIService struct {
	config   config.AIConfig
	client   *http.Client
	validate *validator.Validate
}

func NewAIService(cfg config.AIConfig) *AIService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &AIService{
		config:   cfg,
		client:   &http.Client{Timeout: timeout},
		validate: validator.New(),
	}
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []AIChatMessage `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func teachingTone(tier model.Tier) string {
	switch tier {
	case model.TierLow:
		return "Explain like a story with simple Malayalam words, use examples from daily life. Keep it very simple and engaging. Avoid technical jargon."
	case model.TierHigh:
		return "Provide an in-depth conceptual explanation with reasoning, underlying principles, and connections to other topics. Use technical terminology appropriately."
	default:
		return "Use a structured lesson with headings, key points, and relatable examples. Balance simplicity with accuracy."
	}
}

func doubtTone(tier model.Tier) string {
	switch tier {
	case model.TierLow:
		return "Answer in very simple language, like explaining to a young child. Use everyday analogies."
	case model.TierHigh:
		return "Answer with depth and precision. Include any relevant nuances or deeper connections."
	default:
		return "Answer clearly and concisely with a simple analogy. Confirm their understanding."
	}
}

func (s *AIService) languageDirective() string {
	if s.config.Language == "en" {
		return "Respond in English."
	}
	return "Respond ENTIRELY in Malayalam (മലയാളം) script. Do not use English except for technical terms that have no Malayalam equivalent."
}

func (s *AIService) GenerateTeaching(ctx context.Context, req TeachingRequest) (model.TeachingContent, error) {
	var material string
	if len(req.Chunks) == 0 {
		material = "No textbook content available. Use your general knowledge for this chapter."
	} else {
		parts := make([]string, len(req.Chunks))
		for i, c := range req.Chunks {
			parts[i] = fmt.Sprintf("Chunk %d:\n%s", i+1, c.Content)
		}
		material = strings.Join(parts, "\n\n")
	}

	prompt := fmt.Sprintf(`Student: %s, Grade %d, capability level %s.
Lesson: subject %q, chapter %q. Teach only this chapter.

Teaching style: %s
Language: %s

Textbook content for %q:
%s

Return a JSON object with exactly these string fields:
introduction, main_explanation, summary, follow_up_question.`,
		req.StudentName, req.Grade, req.Tier,
		req.Subject, req.Chapter,
		teachingTone(req.Tier),
		s.languageDirective(),
		req.Chapter, material)

	var out model.TeachingContent
	err := s.generate(ctx, "teaching", prompt, &out)
	return out, err
}

func (s *AIService) GenerateDoubtAnswer(ctx context.Context, req DoubtRequest) (model.DoubtAnswer, error) {
	prompt := fmt.Sprintf(`Student: %s, Grade %d, capability level %s.

Response style: %s
Language: %s

Current topic context:
%s

Student's question:
%q

Return a JSON object with exactly these string fields:
answer, simple_analogy, encouragement.`,
		req.StudentName, req.Grade, req.Tier,
		doubtTone(req.Tier),
		s.languageDirective(),
		req.Context,
		req.Question)

	var out model.DoubtAnswer
	err := s.generate(ctx, "doubt", prompt, &out)
	return out, err
}

const systemPrompt = "You are VidyaBot, a patient AI tutor for Kerala school students. Reply with a single JSON object and nothing else."

// generate calls the chat completions endpoint in JSON mode and decodes the
// reply strictly into out: unknown fields, malformed JSON and empty required
// fields are all schema errors.
func (s *AIService) generate(ctx context.Context, kind, prompt string, out interface{}) (err error) {
	ctx, span := tracing.Start(ctx, "ai.generate."+kind)
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		monitoring.GenerationDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())
		tracing.End(span, err)
	}()

	content, err := s.complete(ctx, prompt)
	if err != nil {
		logger.Log.Error("generation call failed", zap.String("kind", kind), zap.Error(err))
		return err
	}

	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &GenerationError{Kind: GenerationSchema, Err: err}
	}
	if dec.More() {
		return &GenerationError{Kind: GenerationSchema, Err: errors.New("trailing data after JSON object")}
	}
	if err := s.validate.Struct(out); err != nil {
		return &GenerationError{Kind: GenerationSchema, Err: err}
	}
	return nil
}

func (s *AIService) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []AIChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", &GenerationError{Kind: GenerationTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &GenerationError{Kind: GenerationTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GenerationError{Kind: GenerationTransport, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &GenerationError{Kind: GenerationStatus, Status: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &GenerationError{Kind: GenerationTransport, Err: err}
	}
	if result.Error != nil {
		return "", &GenerationError{Kind: GenerationStatus, Status: resp.StatusCode, Err: errors.New(result.Error.Message)}
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", &GenerationError{Kind: GenerationEmpty, Err: errors.New("AI returned no content")}
	}
	return result.Choices[0].Message.Content, nil
}
