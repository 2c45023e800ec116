package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexuscore/orcruntime/pkg/models"
)

func withFixedNow(t time.Time) func() {
	orig := now
	now = func() time.Time { return t }
	return func() { now = orig }
}

func TestGetOrComputeMissAwaitsProducer(t *testing.T) {
	backend := NewMemoryBackend()
	c := New(backend, time.Minute, time.Minute, nil)

	calls := 0
	producer := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	value, err := c.GetOrCompute(context.Background(), "k", producer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(value) != "computed" || calls != 1 {
		t.Fatalf("expected one producer call returning 'computed', got %q calls=%d", value, calls)
	}
}

func TestGetOrComputeFreshHitSkipsProducer(t *testing.T) {
	backend := NewMemoryBackend()
	c := New(backend, time.Minute, time.Minute, nil)
	restore := withFixedNow(time.Unix(1000, 0))
	defer restore()

	producer := func(ctx context.Context) ([]byte, error) { return []byte("v1"), nil }
	if _, err := c.GetOrCompute(context.Background(), "k", producer); err != nil {
		t.Fatal(err)
	}

	calls := 0
	producer2 := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("v2"), nil
	}
	value, err := c.GetOrCompute(context.Background(), "k", producer2)
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != "v1" || calls != 0 {
		t.Fatalf("expected cached v1 without invoking producer, got %q calls=%d", value, calls)
	}
}

func TestGetOrComputeStaleServesImmediatelyAndRefreshes(t *testing.T) {
	backend := NewMemoryBackend()
	c := New(backend, time.Minute, 5*time.Minute, nil)
	restore := withFixedNow(time.Unix(1000, 0))

	if _, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) ([]byte, error) {
		return []byte("v1"), nil
	}); err != nil {
		t.Fatal(err)
	}
	restore()

	// Advance past TTL but still within grace.
	restore2 := withFixedNow(time.Unix(1000, 0).Add(90 * time.Second))
	defer restore2()

	refreshed := make(chan struct{})
	value, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) ([]byte, error) {
		close(refreshed)
		return []byte("v2"), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != "v1" {
		t.Fatalf("expected stale read to return v1 immediately, got %q", value)
	}
	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("expected background refresh to run")
	}
}

func TestGetOrComputeMissPropagatesProducerErrorUncached(t *testing.T) {
	backend := NewMemoryBackend()
	c := New(backend, time.Minute, time.Minute, nil)

	wantErr := errors.New("boom")
	_, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected producer error to propagate, got %v", err)
	}

	if _, ok, _ := backend.Get(context.Background(), "k"); ok {
		t.Fatal("expected nothing cached after a failed producer")
	}
}

func TestInvalidateByPrefix(t *testing.T) {
	backend := NewMemoryBackend()
	c := New(backend, time.Hour, time.Minute, nil)
	ctx := context.Background()

	for _, key := range []string{"tool:weather:a", "tool:weather:b", "tool:calendar:c"} {
		if _, err := c.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) { return []byte("v"), nil }); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.InvalidateByPrefix(ctx, "tool:weather"); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := backend.Get(ctx, "tool:weather:a"); ok {
		t.Fatal("expected tool:weather:a invalidated")
	}
	if _, ok, _ := backend.Get(ctx, "tool:calendar:c"); !ok {
		t.Fatal("expected tool:calendar:c to remain cached")
	}
}

func TestMemoryBackendScanPrefix(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()
	entry := func(v string) {
		_ = backend.Set(ctx, v, models.CacheEntry{
			Value:     []byte(v),
			CachedAt:  time.Unix(0, 0),
			ExpiresAt: time.Unix(0, 0).Add(time.Hour),
		})
	}
	entry("a:1")
	entry("a:2")
	entry("b:1")

	keys, err := backend.Scan(ctx, "a:")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys with prefix a:, got %d", len(keys))
	}
}
