package util

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// ValidateMimeType sniffs the first 512 bytes and checks them against
// allowedTypes, which may hold prefixes ("audio/") or full types.
func ValidateMimeType(reader io.Reader, allowedTypes []string) (string, error) {
	buffer := make([]byte, 512)
	n, err := reader.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	mimeType := http.DetectContentType(buffer[:n])

	for _, allowed := range allowedTypes {
		if strings.HasPrefix(mimeType, allowed) || mimeType == allowed {
			return mimeType, nil
		}
	}

	return mimeType, errors.New("invalid file type: " + mimeType)
}

// ValidateAudio accepts raw audio bytes that sniff as an audio container.
func ValidateAudio(data []byte) (string, error) {
	mimeType, err := ValidateMimeType(strings.NewReader(string(data)), AllowedAudioMimeTypes)
	if err != nil {
		return mimeType, ErrInvalidAudioType
	}
	return mimeType, nil
}

func IsAudio(mimeType string) bool {
	return strings.HasPrefix(mimeType, MimeAudio) || mimeType == MimeWebM
}

// AudioExtension picks a file extension for an archived recording.
func AudioExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedAudioExtensions {
		if ext == allowed {
			return ext
		}
	}
	return ".wav"
}
