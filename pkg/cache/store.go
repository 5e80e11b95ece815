// Package cache implements a keyed content cache over a durable backend.
// A lookup that hits bumps the entry's usage count; a miss may be filled by a
// generator, and concurrent misses for one key share a single generator call.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vidyabot_backend/pkg/logger"
	"vidyabot_backend/pkg/monitoring"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Key is a composite cache key. CacheKey must be stable and injective over
// the key's fields.
type Key interface {
	CacheKey() string
}

type Entry[K Key, P any] struct {
	ID         uint      `json:"id"`
	Key        K         `json:"key"`
	Payload    P         `json:"payload"`
	UsageCount int       `json:"usageCount"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

// Backend is the durable collaborator. Implementations must enforce at most
// one row per key.
type Backend[K Key, P any] interface {
	// Find returns ErrNotFound when no entry exists.
	Find(ctx context.Context, key K) (*Entry[K, P], error)
	// Insert stores a new entry with usage count 1. If an entry for key
	// already exists it is left untouched and returned with created=false.
	Insert(ctx context.Context, key K, payload P, at time.Time) (entry *Entry[K, P], created bool, err error)
	// IncrementUsage atomically adds one to the usage count and returns the
	// new value, or ErrNotFound.
	IncrementUsage(ctx context.Context, key K, at time.Time) (int, error)
	// Upsert overwrites the payload of the canonical entry, creating it if needed.
	Upsert(ctx context.Context, key K, payload P, at time.Time) (*Entry[K, P], error)
	// DeleteIdle removes entries whose last use is before cutoff.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// Generator produces a payload on a miss.
type Generator[P any] func(ctx context.Context) (P, error)

type Option func(*options)

type options struct {
	layer Layer
	now   func() time.Time
}

// WithLayer puts a fast lookaside layer (usually Redis) in front of the backend.
func WithLayer(l Layer) Option {
	return func(o *options) { o.layer = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

type Store[K Key, P any] struct {
	name    string
	backend Backend[K, P]
	layer   Layer
	now     func() time.Time
	group   singleflight.Group
	log     *zap.Logger
}

func New[K Key, P any](name string, backend Backend[K, P], opts ...Option) *Store[K, P] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[K, P]{
		name:    name,
		backend: backend,
		layer:   o.layer,
		now:     o.now,
		log:     logger.Named("cache").With(zap.String("cache", name)),
	}
}

func (s *Store[K, P]) Name() string { return s.name }

// Get looks key up and, on a hit, increments its usage count by exactly one.
// A miss returns found=false and a nil error.
func (s *Store[K, P]) Get(ctx context.Context, key K) (*Entry[K, P], bool, error) {
	entry, found, err := s.lookup(ctx, key)
	switch {
	case err != nil:
		monitoring.CacheLookups.WithLabelValues(s.name, "error").Inc()
	case found:
		monitoring.CacheLookups.WithLabelValues(s.name, "hit").Inc()
	default:
		monitoring.CacheLookups.WithLabelValues(s.name, "miss").Inc()
	}
	return entry, found, err
}

func (s *Store[K, P]) lookup(ctx context.Context, key K) (*Entry[K, P], bool, error) {
	ck := key.CacheKey()
	now := s.now()

	if entry := s.layerGet(ctx, ck); entry != nil {
		count, err := s.backend.IncrementUsage(ctx, key, now)
		if err == nil {
			entry.UsageCount = count
			entry.LastUsedAt = now
			s.log.Debug("cache hit", zap.String("key", ck), zap.String("source", "layer"), zap.Int("usage", count))
			return entry, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, &StoreError{Cache: s.name, Op: "increment", Key: ck, Err: err}
		}
		// Evicted from the backend; the layer copy is stale.
		s.layerDelete(ctx, ck)
		return nil, false, nil
	}

	entry, err := s.backend.Find(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{Cache: s.name, Op: "find", Key: ck, Err: err}
	}

	count, err := s.backend.IncrementUsage(ctx, key, now)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{Cache: s.name, Op: "increment", Key: ck, Err: err}
	}
	entry.UsageCount = count
	entry.LastUsedAt = now

	s.layerSet(ctx, ck, entry)
	s.log.Debug("cache hit", zap.String("key", ck), zap.String("source", "backend"), zap.Int("usage", count))
	return entry, true, nil
}

// Put stores payload under key unless an entry already exists, in which case
// the existing entry wins and is returned unchanged.
func (s *Store[K, P]) Put(ctx context.Context, key K, payload P) (*Entry[K, P], error) {
	ck := key.CacheKey()
	entry, created, err := s.backend.Insert(ctx, key, payload, s.now())
	if err != nil {
		return nil, &StoreError{Cache: s.name, Op: "insert", Key: ck, Err: err}
	}
	if !created {
		s.log.Debug("insert lost race, keeping existing entry", zap.String("key", ck))
	}
	s.layerSet(ctx, ck, entry)
	return entry, nil
}

// GetOrGenerate returns the entry for key, calling gen only on a miss.
// Concurrent misses for the same key in this process share one gen call;
// across processes the backend's unique key keeps a single canonical entry.
// fromCache reports whether the returned entry existed before this call.
func (s *Store[K, P]) GetOrGenerate(ctx context.Context, key K, gen Generator[P]) (*Entry[K, P], bool, error) {
	entry, found, err := s.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return entry, true, nil
	}

	ck := key.CacheKey()
	v, err, shared := s.group.Do(ck, func() (interface{}, error) {
		// A previous flight may have filled the key after our lookup missed.
		if entry, found, err := s.lookup(ctx, key); err != nil || found {
			return fillResult[K, P]{entry: entry, hit: found}, err
		}

		// Generation outlives a cancelled caller so waiters sharing this call still get a result.
		genCtx := context.WithoutCancel(ctx)

		payload, err := gen(genCtx)
		if err != nil {
			return nil, &GenerationError{Cache: s.name, Key: ck, Err: err}
		}
		entry, err := s.Put(genCtx, key, payload)
		if err != nil {
			return nil, err
		}
		return fillResult[K, P]{entry: entry}, nil
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		monitoring.CacheLookups.WithLabelValues(s.name, "shared").Inc()
	}

	res := v.(fillResult[K, P])
	if !res.hit {
		s.log.Info("cache filled", zap.String("key", ck), zap.Bool("shared", shared))
	}
	return res.entry, res.hit, nil
}

type fillResult[K Key, P any] struct {
	entry *Entry[K, P]
	hit   bool
}

// Regenerate skips the lookup, always calls gen and overwrites the canonical
// entry for key with the result.
func (s *Store[K, P]) Regenerate(ctx context.Context, key K, gen Generator[P]) (*Entry[K, P], error) {
	ck := key.CacheKey()
	monitoring.CacheLookups.WithLabelValues(s.name, "bypass").Inc()

	payload, err := gen(ctx)
	if err != nil {
		return nil, &GenerationError{Cache: s.name, Key: ck, Err: err}
	}

	entry, err := s.backend.Upsert(ctx, key, payload, s.now())
	if err != nil {
		return nil, &StoreError{Cache: s.name, Op: "upsert", Key: ck, Err: err}
	}
	s.layerSet(ctx, ck, entry)
	s.log.Info("cache entry regenerated", zap.String("key", ck))
	return entry, nil
}

// Evict removes entries not used since idleSince and returns how many went.
// Layer copies of evicted entries are dropped lazily on their next hit.
func (s *Store[K, P]) Evict(ctx context.Context, idleSince time.Time) (int64, error) {
	n, err := s.backend.DeleteIdle(ctx, idleSince)
	if err != nil {
		return 0, &StoreError{Cache: s.name, Op: "evict", Key: idleSince.Format(time.RFC3339), Err: err}
	}
	monitoring.CacheEvictions.WithLabelValues(s.name).Add(float64(n))
	return n, nil
}

func (s *Store[K, P]) layerGet(ctx context.Context, ck string) *Entry[K, P] {
	if s.layer == nil {
		return nil
	}
	data, ok, err := s.layer.Get(ctx, ck)
	if err != nil {
		s.log.Warn("layer get failed", zap.String("key", ck), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var entry Entry[K, P]
	if err := json.Unmarshal(data, &entry); err != nil {
		s.log.Warn("layer entry undecodable", zap.String("key", ck), zap.Error(err))
		s.layerDelete(ctx, ck)
		return nil
	}
	return &entry
}

func (s *Store[K, P]) layerSet(ctx context.Context, ck string, entry *Entry[K, P]) {
	if s.layer == nil || entry == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		s.log.Warn("layer encode failed", zap.String("key", ck), zap.Error(err))
		return
	}
	if err := s.layer.Set(ctx, ck, data); err != nil {
		s.log.Warn("layer set failed", zap.String("key", ck), zap.Error(err))
	}
}

func (s *Store[K, P]) layerDelete(ctx context.Context, ck string) {
	if s.layer == nil {
		return
	}
	if err := s.layer.Delete(ctx, ck); err != nil {
		s.log.Warn("layer delete failed", zap.String("key", ck), zap.Error(err))
	}
}
