package util

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// NormalizeAudioArgs builds the ffmpeg argument list that converts any input
// recording to 16 kHz mono 16-bit PCM WAV, the format whisper.cpp expects.
func NormalizeAudioArgs(inputPath, outputPath string) []string {
	return ffmpeg.Input(inputPath).
		Output(outputPath, ffmpeg.KwArgs{
			"ar":     "16000",
			"ac":     "1",
			"acodec": "pcm_s16le",
		}).
		OverWriteOutput().
		GetArgs()
}

// NormalizeAudio runs ffmpeg under ctx so a stuck conversion is killed with the job.
func NormalizeAudio(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", NormalizeAudioArgs(inputPath, outputPath)...)
	var errOut bytes.Buffer
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("normalize audio: %w: %s", err, errOut.String())
	}
	return nil
}

// FFmpegVersion runs `ffmpeg -version` and returns its first line. An error
// means ffmpeg is missing from PATH or cannot start.
func FFmpegVersion(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-version")
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg unavailable: %w: %s", err, strings.TrimSpace(errOut.String()))
	}
	return FirstLine(out.String()), nil
}

// FirstLine returns the first non-blank line of s, trimmed.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
