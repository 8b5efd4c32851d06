package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fintelhq/fintel/internal/metrics"
)

// Config controls the Redis research cache.
type Config struct {
	Enabled bool
	Addr    string
	TTL     time.Duration
}

// Cache is a Redis-backed JSON cache for tool results (per-ticker sentiment
// and performance reports, the symbol universe). A nil *Cache is a valid,
// fully disabled cache so callers never branch on configuration.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New returns a cache or nil when disabled.
func New(cfg Config, logger *zap.Logger) *Cache {
	if !cfg.Enabled {
		return nil
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{
		rdb:    redis.NewClient(&redis.Options{Addr: cfg.Addr}),
		ttl:    ttl,
		logger: logger.Named("cache"),
	}
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// GetJSON loads key into dest, reporting whether it was a hit. Errors are
// treated as misses; the cache never fails a research run.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	if c == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.CacheRequests.WithLabelValues("error").Inc()
			c.logger.Debug("Cache get failed", zap.String("key", key), zap.Error(err))
		} else {
			metrics.CacheRequests.WithLabelValues("miss").Inc()
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		c.logger.Debug("Cache entry corrupt, ignoring", zap.String("key", key), zap.Error(err))
		return false
	}
	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return true
}

// SetJSON stores val under key with the configured TTL. Best-effort.
func (c *Cache) SetJSON(ctx context.Context, key string, val interface{}) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		c.logger.Debug("Cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("Cache set failed", zap.String("key", key), zap.Error(err))
	}
}
