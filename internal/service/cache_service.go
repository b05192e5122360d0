package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/teamcal/teamcal-api/pkg/errors"
)

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService is a thin policy layer over the cache store. It can be
// disabled entirely via configuration, in which case every read is a miss and
// writes are dropped.
type CacheService struct {
	store   cacheStore
	logger  *zap.Logger
	enabled bool
	ttl     time.Duration
	metrics *MetricsService
}

// NewCacheService constructs a CacheService.
func NewCacheService(store cacheStore, logger *zap.Logger, enabled bool, ttl time.Duration, metrics *MetricsService) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{store: store, logger: logger, enabled: enabled, ttl: ttl, metrics: metrics}
}

// Get fetches a cached value into dest. Returns ErrCacheMiss when caching is
// disabled, the key is absent, or the backing store misbehaves; callers fall
// through to the source of truth in every case.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if !s.enabled || s.store == nil {
		return appErrors.ErrCacheMiss
	}
	err := s.store.Get(ctx, key, dest)
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.CacheMiss()
		}
		return appErrors.ErrCacheMiss
	}
	if s.metrics != nil {
		s.metrics.CacheHit()
	}
	return nil
}

// Set stores a value under key with the configured TTL. Failures are logged
// and swallowed; the cache is never load-bearing.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.enabled || s.store == nil {
		return
	}
	if err := s.store.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every key matching pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) {
	if !s.enabled || s.store == nil {
		return
	}
	if err := s.store.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
