package service

import (
	"context"
	"sync"
	"time"
	"vidyabot_backend/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Evictor is a cache that can drop entries idle since a cutoff.
type Evictor interface {
	Name() string
	Evict(ctx context.Context, idleSince time.Time) (int64, error)
}

// CacheEvictionService periodically removes cache entries that have not been
// used for MaxIdle.
type CacheEvictionService struct {
	Caches   []Evictor
	MaxIdle  time.Duration
	Schedule string

	mu   sync.Mutex
	cron *cron.Cron
	now  func() time.Time
}

func NewCacheEvictionService(schedule string, maxIdle time.Duration, caches ...Evictor) *CacheEvictionService {
	return &CacheEvictionService{
		Caches:   caches,
		MaxIdle:  maxIdle,
		Schedule: schedule,
		now:      time.Now,
	}
}

// Start registers the sweep on the cron schedule.
func (s *CacheEvictionService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.Schedule, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	logger.Log.Info("cache eviction scheduled", zap.String("schedule", s.Schedule), zap.Duration("maxIdle", s.MaxIdle))
	return nil
}

// Stop waits for a running sweep to finish.
func (s *CacheEvictionService) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// RunOnce sweeps every cache and returns the number of entries removed per cache.
// A failing cache is logged and skipped.
func (s *CacheEvictionService) RunOnce(ctx context.Context) map[string]int64 {
	cutoff := s.now().Add(-s.MaxIdle)
	removed := make(map[string]int64, len(s.Caches))
	for _, c := range s.Caches {
		n, err := c.Evict(ctx, cutoff)
		if err != nil {
			logger.Log.Error("cache eviction failed", zap.String("cache", c.Name()), zap.Error(err))
			continue
		}
		removed[c.Name()] = n
		logger.Log.Info("cache eviction", zap.String("cache", c.Name()), zap.Int64("removed", n), zap.Time("cutoff", cutoff))
	}
	return removed
}
