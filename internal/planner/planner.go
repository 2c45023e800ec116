// Package planner implements SmartPlanner: a three-tier (pattern,
// semantic, LLM) resolver from a natural-language query to a ToolPlan.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexuscore/orcruntime/internal/cache"
	"github.com/nexuscore/orcruntime/internal/telemetry"
	"github.com/nexuscore/orcruntime/pkg/models"
)

// LLMPlanner is the L3 collaborator: a single model call that, given
// a query and the catalog of available tools, proposes a ToolPlan.
type LLMPlanner interface {
	GeneratePlan(ctx context.Context, query string, toolCatalog []string) (models.ToolPlan, error)
}

// PlanningError is returned when the LLM tier produces malformed
// output twice in a row (the initial attempt and one retry).
type PlanningError struct {
	Query string
	Err   error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed for query %q: %v", e.Query, e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// SmartPlanner resolves queries to ToolPlans through the plan cache,
// then L1 pattern matching, then L2 semantic similarity, then L3 LLM
// planning, short-circuiting on the first hit.
type SmartPlanner struct {
	patterns    *PatternMatcher
	semantic    *SemanticCache
	llm         LLMPlanner
	planCache   *cache.PlanCache
	toolCatalog []string
	metrics     *telemetry.Metrics
}

// New constructs a SmartPlanner. semantic and planCache may be nil
// (the corresponding tier is then always a miss); llm may be nil only
// if every expected query is covered by patterns, otherwise L3 misses
// return an error.
func New(patterns *PatternMatcher, semantic *SemanticCache, llm LLMPlanner, planCache *cache.PlanCache, toolCatalog []string, metrics *telemetry.Metrics) *SmartPlanner {
	if patterns == nil {
		patterns = NewPatternMatcher()
	}
	return &SmartPlanner{
		patterns:    patterns,
		semantic:    semantic,
		llm:         llm,
		planCache:   planCache,
		toolCatalog: toolCatalog,
		metrics:     metrics,
	}
}

// Plan resolves query.Text to a ToolPlan. An empty tool list is a
// legal result meaning "answer conversationally without tools."
func (p *SmartPlanner) Plan(ctx context.Context, query models.Query) (models.ToolPlan, error) {
	start := time.Now()

	if p.planCache != nil {
		key := cache.PlanKey(query.Text, "")
		if raw, ok, err := p.planCache.Get(ctx, key); err == nil && ok {
			var plan models.ToolPlan
			if jsonErr := json.Unmarshal(raw, &plan); jsonErr == nil {
				p.recordTier("plan_cache", start)
				return plan, nil
			}
		}
	}

	if plan, ok := p.patterns.Match(query.Text); ok {
		p.recordTier("l1_pattern", start)
		return plan, nil
	}

	if p.semantic != nil {
		if plan, ok := p.semantic.Lookup(ctx, query.Text); ok {
			p.recordTier("l2_semantic", start)
			return plan, nil
		}
	}

	plan, err := p.planViaLLM(ctx, query)
	p.recordTier("l3_llm", start)
	if err != nil {
		return models.ToolPlan{}, err
	}

	p.storeAsync(query.Text, plan)
	return plan, nil
}

func (p *SmartPlanner) planViaLLM(ctx context.Context, query models.Query) (models.ToolPlan, error) {
	if p.llm == nil {
		return models.ToolPlan{}, &PlanningError{Query: query.Text, Err: fmt.Errorf("no LLM planner configured")}
	}

	plan, err := p.llm.GeneratePlan(ctx, query.Text, p.toolCatalog)
	if err == nil {
		if verr := validate(plan); verr == nil {
			return plan, nil
		} else {
			err = verr
		}
	}

	// One retry on malformed output, then surface a planning error.
	plan, retryErr := p.llm.GeneratePlan(ctx, query.Text, p.toolCatalog)
	if retryErr != nil {
		return models.ToolPlan{}, &PlanningError{Query: query.Text, Err: retryErr}
	}
	if verr := validate(plan); verr != nil {
		return models.ToolPlan{}, &PlanningError{Query: query.Text, Err: verr}
	}
	return plan, nil
}

// storeAsync writes a successfully LLM-generated plan into both the
// plan cache and the semantic cache without blocking the caller.
func (p *SmartPlanner) storeAsync(query string, plan models.ToolPlan) {
	go func() {
		ctx := context.Background()
		if p.planCache != nil {
			if raw, err := json.Marshal(plan); err == nil {
				_ = p.planCache.Set(ctx, cache.PlanKey(query, ""), raw)
			}
		}
		if p.semantic != nil {
			p.semantic.Store(ctx, query, plan)
		}
	}()
}

func (p *SmartPlanner) recordTier(tier string, start time.Time) {
	if p.metrics != nil {
		p.metrics.PlannerResolution(tier, time.Since(start).Seconds())
	}
}

// validate checks the structural invariant that the union of tools
// across parallel groups equals the plan's declared tool list, with
// no tool scheduled in more than one group.
func validate(plan models.ToolPlan) error {
	seen := make(map[string]bool)
	for _, group := range plan.ParallelGroups {
		for _, t := range group {
			if seen[t] {
				return fmt.Errorf("tool %q scheduled in more than one parallel group", t)
			}
			seen[t] = true
		}
	}
	if len(seen) != len(plan.Tools) {
		return fmt.Errorf("parallel_groups tool set (%d) does not match tools list (%d)", len(seen), len(plan.Tools))
	}
	for _, t := range plan.Tools {
		if !seen[t] {
			return fmt.Errorf("tool %q listed but not scheduled in any parallel group", t)
		}
	}
	return nil
}
