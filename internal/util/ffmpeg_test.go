package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAudioArgs(t *testing.T) {
	args := NormalizeAudioArgs("in.webm", "out.wav")

	assert.Contains(t, args, "in.webm")
	assert.Contains(t, args, "out.wav")
	assert.Contains(t, args, "-y")
	assert.Contains(t, args, "16000")
	assert.Contains(t, args, "pcm_s16le")
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"version banner", "ffmpeg version 6.1.1 Copyright (c) 2000-2023\nbuilt with gcc 13\n", "ffmpeg version 6.1.1 Copyright (c) 2000-2023"},
		{"leading blank lines", "\n  \n ffmpeg version n7.0\r\n", "ffmpeg version n7.0"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstLine(tt.in))
		})
	}
}
