package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

const defaultReportTTL = 10 * time.Minute

// CacheRepository stores encoded report payloads by key.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheOptions switches the report cache on and sets the entry lifetime.
type CacheOptions struct {
	Enabled bool
	TTL     time.Duration
}

// CacheService fronts the report cache with hit/miss accounting. A nil or
// disabled service behaves as an always-empty cache.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	logger  *zap.Logger
	opts    CacheOptions
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, logger *zap.Logger, opts CacheOptions) *CacheService {
	if opts.TTL <= 0 {
		opts.TTL = defaultReportTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, logger: logger, opts: opts}
}

// Enabled reports whether reads and writes reach the backend.
func (s *CacheService) Enabled() bool {
	return s != nil && s.opts.Enabled && s.repo != nil
}

// Get decodes the entry at key into dest and reports a hit. A backend failure
// is returned with hit=false so the caller can recompute.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	started := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(started))

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	case ctx.Err() == nil:
		s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false, err
}

// Set writes value under key. A non-positive ttl uses the configured lifetime.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.opts.TTL
	}
	started := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(started))
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate deletes every entry matching the glob pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	started := time.Now()
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	s.logger.Debug("report cache invalidated", zap.String("pattern", pattern), zap.Duration("took", time.Since(started)))
	return nil
}
