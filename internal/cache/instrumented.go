package cache

import (
	"context"

	"github.com/nexuscore/orcruntime/internal/telemetry"
	"github.com/nexuscore/orcruntime/pkg/models"
)

// InstrumentedBackend decorates a Backend with Prometheus counters for
// hit/miss/stale outcomes, keyed by tier. It changes no semantics; Get
// still returns exactly what the wrapped backend returns.
type InstrumentedBackend struct {
	backend Backend
	metrics *telemetry.Metrics
	tier    string
}

// NewInstrumentedBackend wraps backend, recording outcomes against
// metrics under the given tier label (completion|tool|plan).
func NewInstrumentedBackend(backend Backend, metrics *telemetry.Metrics, tier string) *InstrumentedBackend {
	return &InstrumentedBackend{backend: backend, metrics: metrics, tier: tier}
}

func (b *InstrumentedBackend) Get(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	entry, ok, err := b.backend.Get(ctx, key)
	if err != nil || !ok {
		b.metrics.CacheLookup(b.tier, "miss")
		return entry, ok, err
	}
	switch entry.Classify(now()) {
	case models.FreshnessHit:
		b.metrics.CacheLookup(b.tier, "hit")
	case models.FreshnessStale:
		b.metrics.CacheLookup(b.tier, "stale")
	default:
		b.metrics.CacheLookup(b.tier, "miss")
	}
	return entry, ok, err
}

func (b *InstrumentedBackend) Set(ctx context.Context, key string, entry models.CacheEntry) error {
	return b.backend.Set(ctx, key, entry)
}

func (b *InstrumentedBackend) Delete(ctx context.Context, key string) error {
	return b.backend.Delete(ctx, key)
}

func (b *InstrumentedBackend) Scan(ctx context.Context, prefix string) ([]string, error) {
	return b.backend.Scan(ctx, prefix)
}

var _ Backend = (*InstrumentedBackend)(nil)
