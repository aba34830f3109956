package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/hr-admin-api/pkg/errors"
)

// CacheRepository is the key/value store behind CacheService.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheService is a read-through cache for employee payloads. Keys are
// prefixed with a namespace so several services can share one Redis database.
// A disabled or nil service behaves as a permanent miss.
type CacheService struct {
	repo      CacheRepository
	metrics   *MetricsService
	namespace string
	ttl       time.Duration
	logger    *zap.Logger
	enabled   bool
}

// NewCacheService constructs a cache service. A non-positive ttl falls back
// to five minutes.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{
		repo:      repo,
		metrics:   metrics,
		namespace: "hr",
		ttl:       ttl,
		logger:    logger.Named("cache"),
		enabled:   enabled,
	}
}

// Enabled reports whether lookups reach the repository.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

func (s *CacheService) key(parts ...string) string {
	return s.namespace + ":" + strings.Join(parts, ":")
}

// Get loads key into dest. Misses and backend failures both report false;
// only failures carry an error, and callers are free to ignore it.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	started := time.Now()
	err := s.repo.Get(ctx, s.key(key), dest)
	hit := err == nil
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit, time.Since(started))
	}
	switch {
	case hit:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("lookup failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value under key. ttl <= 0 uses the service default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	started := time.Now()
	err := s.repo.Set(ctx, s.key(key), value, ttl)
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(started))
	}
	if err != nil {
		s.logger.Warn("store failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Forget evicts keys after a write so the next read goes to PostgreSQL.
func (s *CacheService) Forget(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.repo.Delete(ctx, full...); err != nil {
		s.logger.Warn("evict failed", zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}
