// Package ratecache wraps an externals.RateProvider with a Redis-backed
// cache so repeated lookups of the same pair within its validity window
// (spec §6 "rate validity period") don't round-trip to the upstream oracle
// on every call. A cache miss or a Redis error always falls through to the
// wrapped provider — the cache is a latency optimization, never a source
// of truth.
package ratecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/epic1st/fxcore/config"
	"github.com/epic1st/fxcore/externals"
	"github.com/epic1st/fxcore/logging"
)

const keyPrefix = "fxcore:rate:"

// Stats mirrors the hit/miss/error counters the teacher's cache package
// tracks for its own backends.
type Stats struct {
	Hits   int64
	Misses int64
	Errors int64
}

// Cache is a Redis-backed decorator over a RateProvider.
type Cache struct {
	client   *redis.Client
	upstream externals.RateProvider
	ttl      time.Duration

	mu    sync.RWMutex
	stats Stats
}

// New dials Redis using cfg and wraps upstream. It does not fail construction
// on a dead Redis: every call degrades to upstream on connection error, so a
// cache outage never takes the Rate Provider down with it.
func New(cfg config.RedisConfig, ttl time.Duration, upstream externals.RateProvider) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if ttl <= 0 {
		ttl = time.Second
	}
	return &Cache{client: client, upstream: upstream, ttl: ttl}
}

// GetRate satisfies externals.RateProvider. It serves a cached quote when
// one exists and is younger than the configured validity period, otherwise
// calls through to upstream and (best-effort) refreshes the cache entry.
func (c *Cache) GetRate(ctx context.Context, from, to string) (externals.Rate, error) {
	key := cacheKey(from, to)

	if rate, ok := c.lookup(ctx, key); ok {
		c.recordHit()
		return rate, nil
	}
	c.recordMiss()

	rate, err := c.upstream.GetRate(ctx, from, to)
	if err != nil {
		return externals.Rate{}, err
	}
	c.store(ctx, key, rate)
	return rate, nil
}

// Subscribe passes straight through; streaming quotes are always live and
// never cached.
func (c *Cache) Subscribe(ctx context.Context, pair string) (<-chan externals.Rate, error) {
	return c.upstream.Subscribe(ctx, pair)
}

func (c *Cache) lookup(ctx context.Context, key string) (externals.Rate, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.recordError()
			logging.Error("rate cache get failed", err, logging.String("key", key))
		}
		return externals.Rate{}, false
	}

	var rate externals.Rate
	if err := json.Unmarshal(data, &rate); err != nil {
		c.recordError()
		return externals.Rate{}, false
	}
	if time.Since(rate.Timestamp) > c.ttl {
		return externals.Rate{}, false
	}
	return rate, true
}

func (c *Cache) store(ctx context.Context, key string, rate externals.Rate) {
	data, err := json.Marshal(rate)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.recordError()
		logging.Error("rate cache set failed", err, logging.String("key", key))
	}
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Cache) recordHit()   { c.mu.Lock(); c.stats.Hits++; c.mu.Unlock() }
func (c *Cache) recordMiss()  { c.mu.Lock(); c.stats.Misses++; c.mu.Unlock() }
func (c *Cache) recordError() { c.mu.Lock(); c.stats.Errors++; c.mu.Unlock() }

// Close releases the underlying Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

func cacheKey(from, to string) string {
	return fmt.Sprintf("%s%s/%s", keyPrefix, from, to)
}
