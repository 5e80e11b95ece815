package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Layer is a best-effort lookaside copy of backend entries. Errors from a
// Layer are logged and otherwise ignored.
type Layer interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type RedisLayer struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLayer(client *redis.Client, prefix string, ttl time.Duration) *RedisLayer {
	return &RedisLayer{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLayer) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := l.client.Get(ctx, l.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (l *RedisLayer) Set(ctx context.Context, key string, value []byte) error {
	return l.client.Set(ctx, l.prefix+key, value, l.ttl).Err()
}

func (l *RedisLayer) Delete(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}
