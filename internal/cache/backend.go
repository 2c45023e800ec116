// Package cache implements the tiered, stale-while-revalidate cache
// shared by the completion, tool, and plan caches: a pluggable
// CacheBackend underneath a freshness combinator that serves stale
// values during a grace window while refreshing them in the
// background, consistent with the write-through, eventually-consistent
// policy the rest of the orchestration core assumes.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/nexuscore/orcruntime/pkg/models"
)

// Backend is the pluggable key-value seam a Cache sits on top of.
// Every method must be goroutine-safe.
type Backend interface {
	Get(ctx context.Context, key string) (models.CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry models.CacheEntry) error
	Delete(ctx context.Context, key string) error
	Scan(ctx context.Context, prefix string) ([]string, error)
}

// MemoryBackend is the always-available in-process Backend
// implementation. Backend failures of any remote implementation must
// fall back to a MemoryBackend with identical semantics.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
}

// NewMemoryBackend constructs an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]models.CacheEntry)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (models.CacheEntry, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[key]
	return e, ok, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, entry models.CacheEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = entry
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

// Scan returns every key with the given prefix, enabling
// invalidate_by_prefix for webhook-driven tool cache invalidation.
func (b *MemoryBackend) Scan(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for k := range b.entries {
		if len(prefix) == 0 || (len(k) >= len(prefix) && k[:len(prefix)] == prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

var _ Backend = (*MemoryBackend)(nil)

// now is overridable in tests.
var now = time.Now
