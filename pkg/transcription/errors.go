package transcription

import (
	"errors"
	"fmt"
)

var (
	ErrPoolClosed = errors.New("transcription pool closed")
	ErrEmptyAudio = errors.New("audio payload is empty")
	ErrJobTimeout = errors.New("transcription job timed out")
)

// ExitError is returned when the recognizer process exits with a non-zero status.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("recognizer exited with status %d", e.Code)
	}
	return fmt.Sprintf("recognizer exited with status %d: %s", e.Code, e.Stderr)
}
