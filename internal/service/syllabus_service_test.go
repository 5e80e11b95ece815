package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
	"vidyabot_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunksPacksParagraphs(t *testing.T) {
	text := "First paragraph about light.\r\n\r\nSecond paragraph about water.\n \nok\n\n"
	chunks := SplitChunks(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, "First paragraph about light.\n\nSecond paragraph about water.\n\nok", chunks[0])
}

func TestSplitChunksRespectsLimit(t *testing.T) {
	para := strings.Repeat("അ", 700)
	chunks := SplitChunks(para + "\n\n" + para + "\n\n" + strings.Repeat("b", 2500))
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), maxChunkRunes)
		assert.GreaterOrEqual(t, utf8.RuneCountInString(c), minChunkRunes)
	}
	assert.Len(t, chunks, 5)
}

func TestSplitChunksEmpty(t *testing.T) {
	assert.Empty(t, SplitChunks("  \n\n short \n\n"))
}

func TestSearchRelevantChunksRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.syllabus.Embedder = &keywordEmbedder{keywords: []string{"light", "water"}}

	for _, req := range []IngestRequest{
		{Grade: 8, Subject: "Biology", Chapter: "Photosynthesis", Text: "Roots absorb water, and water moves up the stem."},
		{Grade: 8, Subject: "Biology", Chapter: "Photosynthesis", Text: "Leaves trap light energy using chlorophyll."},
		{Grade: 9, Subject: "Biology", Chapter: "Photosynthesis", Text: "Light reactions happen in the thylakoid under light."},
		{Grade: 8, Subject: "Physics", Chapter: "Optics", Text: "Light bends when it enters water."},
	} {
		n, err := env.syllabus.Ingest(ctx, req)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}

	got := env.syllabus.SearchRelevantChunks(ctx, "how does light help", 8, "Biology", 5)
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Content, "trap light")
	assert.Greater(t, got[0].Similarity, got[1].Similarity)

	got = env.syllabus.SearchRelevantChunks(ctx, "light", 8, "Biology", 1)
	require.Len(t, got, 1)
}

func TestSearchRelevantChunksFailureIsEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.syllabus.Embedder = &keywordEmbedder{err: errors.New("quota exceeded")}
	assert.Empty(t, env.syllabus.SearchRelevantChunks(context.Background(), "light", 8, "Biology", 3))

	env.syllabus.Embedder = nil
	assert.Empty(t, env.syllabus.SearchRelevantChunks(context.Background(), "light", 8, "Biology", 3))
}

func TestIngestKeepsChunksWhenEmbeddingFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.syllabus.Embedder = &keywordEmbedder{err: errors.New("quota exceeded")}

	req := IngestRequest{Grade: 8, Subject: "Biology", Chapter: "Photosynthesis", Text: "Plants make their own food."}
	_, err := env.syllabus.Ingest(ctx, req)
	require.NoError(t, err)
	_, err = env.syllabus.Ingest(ctx, req)
	require.NoError(t, err)

	chunks := env.syllabus.ChapterContext(ctx, "Photosynthesis", 8, "Biology", "Photosynthesis", 4)
	require.Len(t, chunks, 2)
	assert.Nil(t, chunks[0].Embedding)
	assert.Less(t, chunks[0].ChunkOrder, chunks[1].ChunkOrder)
}

func TestChapterContextPrefersSearchResults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.syllabus.Embedder = &keywordEmbedder{keywords: []string{"light"}}

	require.NoError(t, env.syllabusRep.CreateChunks(ctx, []*model.SyllabusChunk{
		{Grade: 8, Subject: "Biology", Chapter: "Photosynthesis", Content: "unembedded opening paragraph", ChunkOrder: 1},
	}))
	_, err := env.syllabus.Ingest(ctx, IngestRequest{Grade: 8, Subject: "Biology", Chapter: "Photosynthesis", Text: "Light is captured by leaves."})
	require.NoError(t, err)

	chunks := env.syllabus.ChapterContext(ctx, "light", 8, "Biology", "Photosynthesis", 4)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Light is captured by leaves.", chunks[0].Content)
}
