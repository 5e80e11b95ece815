package service

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
	"vidyabot_backend/internal/model"
	"vidyabot_backend/internal/repository"
	"vidyabot_backend/internal/util"
	"vidyabot_backend/pkg/logger"

	"go.uber.org/zap"
)

const (
	maxChunkRunes = 1000
	minChunkRunes = 10
)

type SyllabusService struct {
	Repo          *repository.SyllabusRepository
	Embedder      Embedder
	FallbackLimit int
}

func NewSyllabusService(repo *repository.SyllabusRepository, embedder Embedder, fallbackLimit int) *SyllabusService {
	return &SyllabusService{Repo: repo, Embedder: embedder, FallbackLimit: fallbackLimit}
}

// SearchRelevantChunks ranks the embedded chunks at or below gradeCeiling for
// subject by cosine similarity to query. Any failure yields an empty result.
func (s *SyllabusService) SearchRelevantChunks(ctx context.Context, query string, gradeCeiling int, subject string, limit int) []model.SyllabusChunk {
	if s.Embedder == nil || limit <= 0 {
		return nil
	}

	queryVec, err := s.Embedder.Embed(ctx, query, TaskRetrievalQuery)
	if err != nil {
		logger.Log.Warn("syllabus search embedding failed", zap.Error(err))
		return nil
	}

	candidates, err := s.Repo.FindEmbedded(ctx, gradeCeiling, subject)
	if err != nil {
		logger.Log.Warn("syllabus search query failed", zap.Error(err))
		return nil
	}

	ranked := make([]model.SyllabusChunk, 0, len(candidates))
	for _, c := range candidates {
		vec, err := util.DecodeVector(c.Embedding)
		if err != nil {
			continue
		}
		sim, err := util.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}
		c.Similarity = sim
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Similarity > ranked[j].Similarity })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	logger.Log.Debug("syllabus search", zap.String("subject", subject), zap.Int("grade", gradeCeiling), zap.Int("found", len(ranked)))
	return ranked
}

// ChapterContext returns search results for query, falling back to the first
// chunks of the chapter in reading order when the search finds nothing.
func (s *SyllabusService) ChapterContext(ctx context.Context, query string, grade int, subject, chapter string, limit int) []model.SyllabusChunk {
	if chunks := s.SearchRelevantChunks(ctx, query, grade, subject, limit); len(chunks) > 0 {
		return chunks
	}
	chunks, err := s.Repo.FindByChapter(ctx, grade, subject, chapter, s.FallbackLimit)
	if err != nil {
		logger.Log.Warn("syllabus fallback query failed", zap.Error(err))
		return nil
	}
	return chunks
}

func (s *SyllabusService) Browse(ctx context.Context, grade int) ([]model.ChapterIndex, error) {
	return s.Repo.ListChapters(ctx, grade)
}

type IngestRequest struct {
	Grade   int    `json:"grade" binding:"required,min=1,max=12"`
	Subject string `json:"subject" binding:"required"`
	Chapter string `json:"chapter" binding:"required"`
	Text    string `json:"text" binding:"required"`
}

// Ingest splits the material into chunks, embeds each one and stores them
// after the chapter's existing chunks. A chunk whose embedding fails is
// stored without one so the ordered fallback can still use it.
func (s *SyllabusService) Ingest(ctx context.Context, req IngestRequest) (int, error) {
	pieces := SplitChunks(req.Text)
	if len(pieces) == 0 {
		return 0, nil
	}

	order, err := s.Repo.NextChunkOrder(ctx, req.Grade, req.Subject, req.Chapter)
	if err != nil {
		return 0, err
	}

	chunks := make([]*model.SyllabusChunk, 0, len(pieces))
	for i, text := range pieces {
		chunk := &model.SyllabusChunk{
			Grade:      req.Grade,
			Subject:    req.Subject,
			Chapter:    req.Chapter,
			Content:    text,
			ChunkOrder: order + i,
		}
		if s.Embedder != nil {
			if vec, err := s.Embedder.Embed(ctx, text, TaskRetrievalDocument); err != nil {
				logger.Log.Warn("chunk embedding failed", zap.String("chapter", req.Chapter), zap.Int("order", chunk.ChunkOrder), zap.Error(err))
			} else if blob, err := util.EncodeVector(vec); err == nil {
				chunk.Embedding = blob
			}
		}
		chunks = append(chunks, chunk)
	}

	if err := s.Repo.CreateChunks(ctx, chunks); err != nil {
		return 0, err
	}
	logger.Log.Info("syllabus ingested", zap.Int("grade", req.Grade), zap.String("subject", req.Subject), zap.String("chapter", req.Chapter), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

var blankLines = regexp.MustCompile(`\n\s*\n`)

// SplitChunks splits text on blank lines, packs consecutive paragraphs into
// chunks of at most maxChunkRunes, hard-splits longer paragraphs and drops
// fragments shorter than minChunkRunes.
func SplitChunks(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); utf8.RuneCountInString(s) >= minChunkRunes {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range blankLines.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, piece := range splitRunes(para, maxChunkRunes) {
			if current.Len() > 0 && utf8.RuneCountInString(current.String())+2+utf8.RuneCountInString(piece) > maxChunkRunes {
				flush()
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(piece)
		}
	}
	flush()
	return chunks
}

func splitRunes(s string, n int) []string {
	runes := []rune(s)
	if len(runes) <= n {
		return []string{s}
	}
	var out []string
	for len(runes) > n {
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return append(out, string(runes))
}
