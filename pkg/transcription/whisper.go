package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Recognize waits for output pipes after the
// process was killed, in case a grandchild still holds them open.
const waitDelay = 2 * time.Second

// WhisperRecognizer runs a whisper.cpp style command line once per file.
type WhisperRecognizer struct {
	Binary   string
	Model    string
	Language string
}

func NewWhisperRecognizer(binary, model, language string) *WhisperRecognizer {
	return &WhisperRecognizer{Binary: binary, Model: model, Language: language}
}

func (w *WhisperRecognizer) Args(audioPath string) []string {
	return []string{
		"--model", w.Model,
		"--language", w.Language,
		"--output-txt",
		"--no-timestamps",
		audioPath,
	}
}

func (w *WhisperRecognizer) Recognize(ctx context.Context, audioPath string) (string, error) {
	cmd := exec.CommandContext(ctx, w.Binary, w.Args(audioPath)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExitError{Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return "", fmt.Errorf("start recognizer %s: %w", w.Binary, err)
	}

	return ParseTranscript(stdout.String()), nil
}

// ParseTranscript joins the non-empty stdout lines with single spaces,
// dropping bracketed progress and system lines such as "[BLANK_AUDIO]".
func ParseTranscript(out string) string {
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}
