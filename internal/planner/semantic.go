package planner

import (
	"container/list"
	"context"
	"sync"

	"github.com/nexuscore/orcruntime/internal/embeddings"
	"github.com/nexuscore/orcruntime/pkg/models"
)

const (
	defaultLookupThreshold = 0.80
	defaultStoreThreshold  = 0.85
	defaultCapacity        = 500
)

type semanticEntry struct {
	query  string
	vector []float32
	plan   models.ToolPlan
}

// SemanticCache is the L2 tier: embedding-similarity lookup over
// previously successful plans, capped in size with LRU eviction.
type SemanticCache struct {
	mu              sync.Mutex
	embedder        embeddings.Provider
	capacity        int
	lookupThreshold float64
	storeThreshold  float64

	order *list.List // front = least recently used
}

// NewSemanticCache constructs the L2 tier. embedder may be nil, in
// which case the cache degrades to always-miss (the planner falls
// through to L3).
func NewSemanticCache(embedder embeddings.Provider, capacity int) *SemanticCache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &SemanticCache{
		embedder:        embedder,
		capacity:        capacity,
		lookupThreshold: defaultLookupThreshold,
		storeThreshold:  defaultStoreThreshold,
		order:           list.New(),
	}
}

// Lookup embeds query and returns the stored plan with the best
// cosine similarity, iff that similarity meets the lookup threshold
// (0.80). Reports a miss (and never errors) when no embedder is
// configured or the embedding call fails.
func (s *SemanticCache) Lookup(ctx context.Context, query string) (models.ToolPlan, bool) {
	if s.embedder == nil {
		return models.ToolPlan{}, false
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return models.ToolPlan{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var best *list.Element
	bestScore := 0.0
	for el := s.order.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*semanticEntry)
		score := embeddings.CosineSimilarity(vec, entry.vector)
		if score > bestScore {
			bestScore = score
			best = el
		}
	}
	if best == nil || bestScore < s.lookupThreshold {
		return models.ToolPlan{}, false
	}
	s.order.MoveToBack(best)
	return best.Value.(*semanticEntry).plan, true
}

// Store embeds query and records (query, plan) for future semantic
// lookups, skipping the write if an existing entry is already a
// near-duplicate (cosine similarity >= the 0.85 store threshold).
// Evicts the least-recently-used entry when the cache is at capacity.
func (s *SemanticCache) Store(ctx context.Context, query string, plan models.ToolPlan) {
	if s.embedder == nil {
		return
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for el := s.order.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*semanticEntry)
		if embeddings.CosineSimilarity(vec, entry.vector) >= s.storeThreshold {
			return
		}
	}

	if s.order.Len() >= s.capacity {
		oldest := s.order.Front()
		if oldest != nil {
			s.order.Remove(oldest)
		}
	}

	entry := &semanticEntry{query: query, vector: vec, plan: plan}
	s.order.PushBack(entry)
}
