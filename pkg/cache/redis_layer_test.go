package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLayer(t *testing.T) (*miniredis.Miniredis, *RedisLayer) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisLayer(client, "test:", time.Hour)
}

func TestRedisLayerServesHitsAndCountsUsage(t *testing.T) {
	ctx := context.Background()
	mr, layer := newTestLayer(t)
	backend := newMemBackend()
	s := New[lessonKey, lesson]("lessons", backend, WithLayer(layer))

	_, err := s.Put(ctx, photosynthesis, lesson{Body: "light to sugar"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:"+photosynthesis.CacheKey()))

	// Backend reads fail, so a hit can only come from the layer.
	backend.failOn = "find"
	got, found, err := s.Get(ctx, photosynthesis)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "light to sugar", got.Payload.Body)
	assert.Equal(t, 2, got.UsageCount)
	assert.Equal(t, 2, backend.entries[photosynthesis.CacheKey()].UsageCount)
}

func TestRedisLayerDropsEntriesEvictedFromBackend(t *testing.T) {
	ctx := context.Background()
	mr, layer := newTestLayer(t)
	backend := newMemBackend()
	s := New[lessonKey, lesson]("lessons", backend, WithLayer(layer))

	_, err := s.Put(ctx, photosynthesis, lesson{Body: "stale"})
	require.NoError(t, err)

	_, err = s.Evict(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, found, err := s.Get(ctx, photosynthesis)
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, mr.Exists("test:"+photosynthesis.CacheKey()))
}

func TestRedisLayerUnavailableFallsBackToBackend(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	s := New[lessonKey, lesson]("lessons", newMemBackend(), WithLayer(NewRedisLayer(client, "test:", time.Hour)))

	_, err := s.Put(ctx, photosynthesis, lesson{Body: "durable"})
	require.NoError(t, err)

	got, found, err := s.Get(ctx, photosynthesis)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "durable", got.Payload.Body)
}
