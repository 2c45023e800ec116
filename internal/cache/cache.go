package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nexuscore/orcruntime/pkg/models"
)

// Producer computes the value for a cache miss or background refresh.
type Producer func(ctx context.Context) ([]byte, error)

// Cache is the combinator over a Backend implementing the
// get/set/invalidate/get_or_compute contract common to the plan,
// tool, and completion caches.
type Cache struct {
	backend Backend
	ttl     time.Duration
	grace   time.Duration
	logger  *slog.Logger
}

// New wraps backend with a fixed TTL and SWR grace window.
func New(backend Backend, ttl, grace time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{backend: backend, ttl: ttl, grace: grace, logger: logger}
}

// Get returns the raw cached bytes for key, ignoring staleness
// (callers that need freshness semantics should use GetOrCompute).
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, ok, err := c.backend.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return entry.Value, true, nil
}

// Set stores value under key with the cache's configured TTL/grace.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	return c.setWithTTL(ctx, key, value, c.ttl)
}

func (c *Cache) setWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	t := now()
	return c.backend.Set(ctx, key, models.CacheEntry{
		Value:     value,
		CachedAt:  t,
		ExpiresAt: t.Add(ttl),
		Grace:     c.grace,
	})
}

// Invalidate deletes key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, key)
}

// InvalidateByPrefix deletes every key sharing prefix, for
// webhook-driven invalidation of stale provider data.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix string) error {
	keys, err := c.backend.Scan(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := c.backend.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// GetOrCompute implements the freshness decision from §4.1: a fresh
// entry is returned immediately; a stale-but-in-grace entry is
// returned immediately and producer is scheduled in the background to
// refresh it (failures are logged, never surfaced); a miss awaits
// producer, stores its result on success, and propagates its error
// uncached on failure.
func (c *Cache) GetOrCompute(ctx context.Context, key string, producer Producer) ([]byte, error) {
	return c.getOrComputeTTL(ctx, key, producer, c.ttl)
}

// GetOrComputeTTL is GetOrCompute with a per-call TTL override, used
// by the completion cache's temporal-marker TTL reduction.
func (c *Cache) GetOrComputeTTL(ctx context.Context, key string, producer Producer, ttl time.Duration) ([]byte, error) {
	return c.getOrComputeTTL(ctx, key, producer, ttl)
}

func (c *Cache) getOrComputeTTL(ctx context.Context, key string, producer Producer, ttl time.Duration) ([]byte, error) {
	entry, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache backend read failed, falling back to direct compute", "key", key, "error", err)
	} else if ok {
		switch entry.Classify(now()) {
		case models.FreshnessHit:
			return entry.Value, nil
		case models.FreshnessStale:
			go c.refreshInBackground(key, producer, ttl)
			return entry.Value, nil
		}
	}

	value, err := producer(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.setWithTTL(ctx, key, value, ttl); err != nil {
		c.logger.Warn("cache backend write failed", "key", key, "error", err)
	}
	return value, nil
}

func (c *Cache) refreshInBackground(key string, producer Producer, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	value, err := producer(ctx)
	if err != nil {
		c.logger.Warn("background cache refresh failed", "key", key, "error", err)
		return
	}
	if err := c.setWithTTL(ctx, key, value, ttl); err != nil {
		c.logger.Warn("background cache write failed", "key", key, "error", err)
	}
}

// MarshalJSON is a convenience producer helper for callers that want
// to cache arbitrary JSON-serializable values.
func MarshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
