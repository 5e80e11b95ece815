package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"vidyabot_backend/internal/util"
	"vidyabot_backend/pkg/logger"
	"vidyabot_backend/pkg/tracing"

	"go.uber.org/zap"
)

// Transcriber turns one recording into text. *transcription.Pool satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type SpeechService struct {
	Pool          Transcriber
	Storage       *StorageService
	MaxAudioBytes int64
	// Archive keeps a copy of every recording in Storage.
	Archive bool
}

func NewSpeechService(pool Transcriber, storage *StorageService, maxAudioBytes int64, archive bool) *SpeechService {
	return &SpeechService{Pool: pool, Storage: storage, MaxAudioBytes: maxAudioBytes, Archive: archive}
}

type TranscriptionResult struct {
	Text       string `json:"text"`
	DurationMs int64  `json:"durationMs"`
	ArchiveURL string `json:"archiveUrl,omitempty"`
}

// Transcribe runs the recording through the pool. studentID and filename are
// only used to name the archived copy.
func (s *SpeechService) Transcribe(ctx context.Context, studentID string, audio []byte, filename string) (result *TranscriptionResult, err error) {
	if len(audio) == 0 {
		return nil, util.ErrAudioRequired
	}
	if s.MaxAudioBytes > 0 && int64(len(audio)) > s.MaxAudioBytes {
		return nil, util.ErrAudioTooLarge
	}

	ctx, span := tracing.Start(ctx, "speech.transcribe")
	defer func() { tracing.End(span, err) }()

	result = &TranscriptionResult{}
	if s.Archive && s.Storage != nil {
		result.ArchiveURL = s.archive(ctx, studentID, audio, filename)
	}

	start := time.Now()
	text, err := s.Pool.Transcribe(ctx, audio)
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		logger.Log.Warn("transcription failed", zap.String("studentId", studentID), zap.Int("bytes", len(audio)), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", util.ErrTranscriptionFailed, err)
	}

	result.Text = strings.TrimSpace(text)
	if result.Text == "" {
		return nil, fmt.Errorf("%w: recognizer produced no text", util.ErrTranscriptionFailed)
	}
	logger.Log.Info("audio transcribed",
		zap.String("studentId", studentID),
		zap.Int64("durationMs", result.DurationMs),
		zap.Int("chars", len(result.Text)),
	)
	return result, nil
}

// archive failures never fail the turn.
func (s *SpeechService) archive(ctx context.Context, studentID string, audio []byte, filename string) string {
	mime, err := util.ValidateAudio(audio)
	if err != nil {
		logger.Log.Warn("skip archiving unrecognized audio", zap.String("studentId", studentID), zap.Error(err))
		return ""
	}
	if studentID == "" {
		studentID = "anonymous"
	}
	url, err := s.Storage.ArchiveAudio(ctx, studentID, audio, mime, filename)
	if err != nil {
		logger.Log.Warn("audio archive failed", zap.String("studentId", studentID), zap.Error(err))
		return ""
	}
	return url
}
