package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"vidyabot_backend/internal/config"
	"vidyabot_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completionServer answers every chat completion with content.
func completionServer(t *testing.T, status int, content string, seen *ChatCompletionRequest) *AIService {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return NewAIService(config.AIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model", Language: "en", TimeoutSeconds: 5})
}

func TestGenerateTeachingDecodesValidPayload(t *testing.T) {
	var seen ChatCompletionRequest
	ai := completionServer(t, http.StatusOK,
		`{"introduction":"i","main_explanation":"m","summary":"s","follow_up_question":"q"}`, &seen)

	out, err := ai.GenerateTeaching(context.Background(), TeachingRequest{
		StudentName: "Anu", Grade: 8, Subject: "Biology", Chapter: "Photosynthesis", Tier: model.TierLow,
		Chunks: []model.SyllabusChunk{{Content: "Plants make food"}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.TeachingContent{Introduction: "i", MainExplanation: "m", Summary: "s", FollowUpQuestion: "q"}, out)

	assert.Equal(t, "test-model", seen.Model)
	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, "json_object", seen.ResponseFormat.Type)
	require.Len(t, seen.Messages, 2)
	assert.Contains(t, seen.Messages[1].Content, "Plants make food")
	assert.Contains(t, seen.Messages[1].Content, teachingTone(model.TierLow))
	assert.Contains(t, seen.Messages[1].Content, "Respond in English.")
}

func TestGenerateRejectsUnknownFields(t *testing.T) {
	ai := completionServer(t, http.StatusOK,
		`{"answer":"a","simple_analogy":"b","encouragement":"c","extra":"x"}`, nil)

	_, err := ai.GenerateDoubtAnswer(context.Background(), DoubtRequest{Question: "why?"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, GenerationSchema, genErr.Kind)
}

func TestGenerateRejectsEmptyRequiredField(t *testing.T) {
	ai := completionServer(t, http.StatusOK,
		`{"answer":"a","simple_analogy":"","encouragement":"c"}`, nil)

	_, err := ai.GenerateDoubtAnswer(context.Background(), DoubtRequest{Question: "why?"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, GenerationSchema, genErr.Kind)
}

func TestGenerateRejectsFencedJSON(t *testing.T) {
	ai := completionServer(t, http.StatusOK,
		"```json\n{\"answer\":\"a\",\"simple_analogy\":\"b\",\"encouragement\":\"c\"}\n```", nil)

	_, err := ai.GenerateDoubtAnswer(context.Background(), DoubtRequest{Question: "why?"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, GenerationSchema, genErr.Kind)
}

func TestGenerateUpstreamStatusError(t *testing.T) {
	ai := completionServer(t, http.StatusTooManyRequests, "", nil)

	_, err := ai.GenerateDoubtAnswer(context.Background(), DoubtRequest{Question: "why?"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, GenerationStatus, genErr.Kind)
	assert.Equal(t, http.StatusTooManyRequests, genErr.Status)
}

func TestGenerateEmptyContent(t *testing.T) {
	ai := completionServer(t, http.StatusOK, "  ", nil)

	_, err := ai.GenerateTeaching(context.Background(), TeachingRequest{Chapter: "x"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, GenerationEmpty, genErr.Kind)
}
