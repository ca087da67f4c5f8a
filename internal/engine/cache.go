package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/reqview/internal/domain"
	"github.com/xela07ax/reqview/internal/infra"
	"go.uber.org/zap"
)

// ErrCacheMiss — ключа нет в хранилище.
var ErrCacheMiss = errors.New("cache miss")

// CacheStore — минимальный контракт L2 хранилища.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore реализует CacheStore поверх go-redis.
type RedisStore struct {
	rdb redis.Cmdable
}

func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// CachedFetcher отдает ответ из Redis, если он есть, иначе идет в источник.
// Кэшируются только успешные ответы. Сбой Redis не ломает выборку.
type CachedFetcher struct {
	next    Fetcher
	store   CacheStore
	ttl     time.Duration
	source  string
	metrics *Metrics
	logger  *zap.Logger
}

func NewCachedFetcher(next Fetcher, store CacheStore, ttl time.Duration, source string, metrics *Metrics, logger *zap.Logger) *CachedFetcher {
	return &CachedFetcher{
		next:    next,
		store:   store,
		ttl:     ttl,
		source:  source,
		metrics: metrics,
		logger:  logger.With(zap.String("mod", "cache")),
	}
}

func (c *CachedFetcher) Fetch(ctx context.Context, q domain.Query) (*domain.Response, error) {
	key := infra.QueryCacheKey(c.source, q.String())

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var resp domain.Response
		if jErr := json.Unmarshal(raw, &resp); jErr == nil && resp.OK() {
			c.count("hit")
			c.logger.Debug("served from cache", zap.String("key", key))
			return &resp, nil
		}
		c.count("error")
		c.logger.Warn("corrupted cache entry, refetching", zap.String("key", key))
	case errors.Is(err, ErrCacheMiss):
		c.count("miss")
	default:
		c.count("error")
		c.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
	}

	resp, err := c.next.Fetch(ctx, q)
	if err != nil || !resp.OK() {
		return resp, err
	}

	payload, mErr := json.Marshal(resp)
	if mErr != nil {
		return resp, nil
	}
	if sErr := c.store.Set(ctx, key, payload, c.ttl); sErr != nil {
		c.logger.Warn("cache store failed", zap.String("key", key), zap.Error(sErr))
	}
	return resp, nil
}

func (c *CachedFetcher) count(result string) {
	if c.metrics != nil {
		c.metrics.CacheTotal.WithLabelValues(result).Inc()
	}
}
