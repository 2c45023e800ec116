package cache

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	completionTTLDefault  = 24 * time.Hour
	completionTTLTemporal = 4 * time.Hour
	completionGrace       = time.Hour

	toolTTLDefault = time.Hour
	toolGrace      = 5 * time.Minute

	planTTL   = 30 * 24 * time.Hour
	planGrace = 7 * 24 * time.Hour
)

var temporalMarkers = regexp.MustCompile(`(?i)\b(today|now|current|this (morning|afternoon|evening|week|month)|tomorrow|yesterday)\b`)

// CompletionCache memoizes LanguageModel completions keyed by prompt,
// model, and sampling parameters.
type CompletionCache struct {
	*Cache
}

// NewCompletionCache constructs the completion-cache tier.
func NewCompletionCache(backend Backend, logger *slog.Logger) *CompletionCache {
	return &CompletionCache{Cache: New(backend, completionTTLDefault, completionGrace, logger)}
}

// CompletionKey builds the cache key from prompt and sampling params.
func CompletionKey(prompt, model string, temperature, topP float64, maxTokens int, presencePenalty, frequencyPenalty float64) string {
	return fmt.Sprintf("completion:%s:%s:%s:%s:%d:%s:%s",
		model, hashPrompt(prompt),
		trimFloat(temperature), trimFloat(topP), maxTokens,
		trimFloat(presencePenalty), trimFloat(frequencyPenalty))
}

// GetOrComputeCompletion applies the temporal-marker TTL reduction and
// the temperature>0.5 bypass-but-write rule: above 0.5, the lookup is
// skipped but the result is still written for future identical-
// temperature requests.
func (c *CompletionCache) GetOrComputeCompletion(ctx context.Context, prompt, key string, temperature float64, producer Producer) ([]byte, error) {
	ttl := completionTTLDefault
	if temporalMarkers.MatchString(prompt) {
		ttl = completionTTLTemporal
	}
	if temperature > 0.5 {
		value, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.setWithTTL(ctx, key, value, ttl)
		return value, nil
	}
	return c.GetOrComputeTTL(ctx, key, producer, ttl)
}

// ToolCache memoizes tool invocation results keyed by tool name and
// canonicalized arguments.
type ToolCache struct {
	*Cache
	perToolTTL map[string]time.Duration
}

// NewToolCache constructs the tool-cache tier. perToolTTL overrides
// the 1-hour default for named tools (30min-4h per §4.1).
func NewToolCache(backend Backend, perToolTTL map[string]time.Duration, logger *slog.Logger) *ToolCache {
	return &ToolCache{
		Cache:      New(backend, toolTTLDefault, toolGrace, logger),
		perToolTTL: perToolTTL,
	}
}

// ToolKey builds the cache key from the tool name and sorted args.
func ToolKey(toolName string, args map[string]any) string {
	return "tool:" + toolName + ":" + canonicalizeArgs(args)
}

// GetOrComputeTool looks up the per-tool TTL override if configured.
func (c *ToolCache) GetOrComputeTool(ctx context.Context, toolName, key string, producer Producer) ([]byte, error) {
	ttl := toolTTLDefault
	if override, ok := c.perToolTTL[toolName]; ok {
		ttl = override
	}
	return c.GetOrComputeTTL(ctx, key, producer, ttl)
}

// InvalidateToolType deletes every cached result for toolType,
// supporting webhook-driven invalidation of stale provider data.
func (c *ToolCache) InvalidateToolType(ctx context.Context, toolType string) error {
	return c.InvalidateByPrefix(ctx, "tool:"+toolType)
}

// PlanCache memoizes ToolPlans keyed by query (and optional context digest).
type PlanCache struct {
	*Cache
}

// NewPlanCache constructs the plan-cache tier.
func NewPlanCache(backend Backend, logger *slog.Logger) *PlanCache {
	return &PlanCache{Cache: New(backend, planTTL, planGrace, logger)}
}

// PlanKey builds the cache key from a query and an optional context digest.
func PlanKey(query, contextDigest string) string {
	if contextDigest == "" {
		return "plan:" + hashPrompt(query)
	}
	return "plan:" + hashPrompt(query) + ":" + contextDigest
}

func canonicalizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fmt.Sprintf("%v", args[k]))
	}
	return strings.Join(parts, "&")
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func hashPrompt(s string) string {
	// A cheap, deterministic, collision-tolerant key fragment: cache
	// correctness doesn't require cryptographic hashing, only a stable
	// digest that keeps keys short. FNV-1a avoids pulling in crypto/sha256
	// for a non-security-sensitive cache key.
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return strconv.FormatUint(h, 36)
}
