package logger

import (
	"os"
	"path/filepath"
	"testing"
	"vidyabot_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name  string
		mode  string
		level string
		want  zapcore.Level
	}{
		{"debug mode default", "debug", "", zap.DebugLevel},
		{"release mode default", "release", "", zap.InfoLevel},
		{"explicit level wins", "debug", "warn", zap.WarnLevel},
		{"unparseable level falls back", "release", "loud", zap.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Server: config.ServerConfig{Mode: tt.mode}, Log: config.LogConfig{Level: tt.level}}
			assert.Equal(t, tt.want, levelFor(cfg))
		})
	}
}

func TestInitLoggerWritesFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "app.log")
	InitLogger(&config.Config{
		Server: config.ServerConfig{Mode: "release"},
		Log:    config.LogConfig{File: path, MaxSizeMB: 1},
	})
	Named("test").Info("cache filled", zap.String("key", "doubt:Light:HIGH:abc"))
	_ = Log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"cache filled"`)
	assert.Contains(t, string(data), `"logger":"test"`)
	assert.Contains(t, string(data), `"service":"vidyabot"`)
}
