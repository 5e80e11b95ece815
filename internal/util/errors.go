package util

import "errors"

var (
	ErrStudentNotFound     = errors.New("student not found")
	ErrChapterNotFound     = errors.New("chapter not found")
	ErrEmptyQuestion       = errors.New("question text must not be empty")
	ErrAudioRequired       = errors.New("audio data is required for voice input")
	ErrTextRequired        = errors.New("text is required for text input")
	ErrInvalidInputType    = errors.New("input type must be voice or text")
	ErrAudioTooLarge       = errors.New("audio payload exceeds the configured limit")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrInvalidAudioType    = errors.New("unsupported audio type")
)
