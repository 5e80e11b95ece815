package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
	"vidyabot_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "storage:\n  type: memory\n")

	reloaded := make(chan *config.Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, func(cfg *config.Config) { reloaded <- cfg })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	writeConfig(t, dir, "storage:\n  type: memory\ncapability:\n  medium_max: 70\n")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 70, cfg.Capability.MediumMax)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatchIgnoresInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "storage:\n  type: memory\n")

	reloaded := make(chan *config.Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, func(cfg *config.Config) { reloaded <- cfg })
	}()

	time.Sleep(200 * time.Millisecond)
	writeConfig(t, dir, "storage:\n  type: memory\ncapability:\n  low_max: 80\n  medium_max: 40\n")

	select {
	case <-reloaded:
		t.Fatal("invalid config must not be delivered")
	case <-time.After(2 * time.Second):
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatchMissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), func(*config.Config) {})
	assert.Error(t, err)
}
