package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexuscore/orcruntime/internal/agent"
	"github.com/nexuscore/orcruntime/internal/cache"
	"github.com/nexuscore/orcruntime/internal/config"
	"github.com/nexuscore/orcruntime/internal/ctxwindow"
	"github.com/nexuscore/orcruntime/internal/decision"
	"github.com/nexuscore/orcruntime/internal/embeddings"
	"github.com/nexuscore/orcruntime/internal/insight"
	"github.com/nexuscore/orcruntime/internal/planner"
	"github.com/nexuscore/orcruntime/internal/providers"
	"github.com/nexuscore/orcruntime/internal/risk"
	"github.com/nexuscore/orcruntime/internal/streaming"
	"github.com/nexuscore/orcruntime/internal/telemetry"
	"github.com/nexuscore/orcruntime/internal/tokenizer"
)

// runtime bundles everything buildRuntime constructs so the command
// handlers can reach the pieces they need (the agent to serve
// requests, the bus to subscribe for streamed output, metrics for a
// final summary) without re-deriving them.
type runtime struct {
	agent   *agent.Agent
	bus     *streaming.EventBus
	metrics *telemetry.Metrics
	llm     agent.LanguageModel
	logger  *slog.Logger
}

// buildRuntime wires a full EnhancedAgent stack from cfg, following
// the same construction order HandleRequest's eight-step lifecycle
// depends on: tool registry, embedder, provider, planner tiers,
// caches, context window, risk/insight, then the agent itself.
func buildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	llm, err := buildLanguageModel(ctx, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("building language model: %w", err)
	}

	embedder, err := buildEmbedder(cfg.Provider)
	if err != nil {
		logger.Warn("embeddings unavailable, semantic cache and decision-memory loop checks disabled", "error", err)
		embedder = nil
	}

	metrics := telemetry.NewMetrics()
	bus := streaming.NewEventBus()

	tools := agent.NewToolRegistry()
	registerSampleTools(tools)

	backend := cache.NewInstrumentedBackend(cache.NewMemoryBackend(), metrics, "memory")
	completions := cache.NewCompletionCache(backend, logger)
	toolCache := cache.NewToolCache(backend, nil, logger)
	planCache := cache.NewPlanCache(backend, logger)

	patterns := planner.NewPatternMatcher()
	var semantic *planner.SemanticCache
	if embedder != nil {
		semantic = planner.NewSemanticCache(embedder, cfg.Planner.SemanticCacheCapacity)
	}
	smartPlanner := planner.New(patterns, semantic, newPlanningModel(llm), planCache, tools.Names(), metrics)

	window := ctxwindow.New(
		ctxwindow.Config{
			MaxTokens:        cfg.Context.MaxTokens,
			CompactThreshold: cfg.Context.CompactThreshold,
			KeepRecent:       cfg.Context.KeepRecent,
		},
		tokenizer.ForModel(cfg.Provider.Model),
		newSummarizingModel(llm),
		metrics,
	)

	assessor := risk.New()
	insightEngine := insight.New()
	approval := newAutoApprovalGate(logger, cfg.Risk.AutoApproveBelow)

	agentCfg := agent.Config{
		AgentID:           "orcruntime",
		ApprovalThreshold: cfg.Risk.AutoApproveBelow,
		ApprovalTimeout:   cfg.Risk.ApprovalTimeout,
		Decision: decision.Config{
			MaxFailedAttempts: cfg.Decision.MaxFailedAttempts,
		},
	}

	ag := agent.New(
		agentCfg,
		tools,
		smartPlanner,
		window,
		completions,
		toolCache,
		bus,
		metrics,
		llm,
		embedder,
		assessor,
		approval,
		insightEngine,
	)

	return &runtime{agent: ag, bus: bus, metrics: metrics, llm: llm, logger: logger}, nil
}

func buildLanguageModel(ctx context.Context, cfg config.ProviderConfig) (agent.LanguageModel, error) {
	switch cfg.Name {
	case "", "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
		})
	case "openai":
		if cfg.BaseURL != "" {
			return providers.NewOpenAIProviderWithBaseURL(cfg.APIKey, cfg.BaseURL), nil
		}
		return providers.NewOpenAIProvider(cfg.APIKey), nil
	case "gemini":
		return providers.NewGeminiProvider(ctx, providers.GeminiConfig{
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q (want anthropic, openai, or gemini)", cfg.Name)
	}
}

// buildEmbedder returns nil, nil when no embedding API key is
// configured: an absent embedder is a supported degraded mode, not an
// error (SemanticCache and DecisionMemory's semantic loop check are
// simply skipped).
func buildEmbedder(cfg config.ProviderConfig) (embeddings.Provider, error) {
	switch cfg.Name {
	case "openai":
		if cfg.APIKey == "" {
			return nil, nil
		}
		return embeddings.NewOpenAIEmbedder(embeddings.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
	default:
		return nil, nil
	}
}
