// Package config loads the orcruntime configuration file, resolving
// $include directives and environment variable expansion before
// decoding into the typed Config tree consumed by cmd/orcruntime.
package config

import "time"

// Config is the root configuration tree for an orcruntime deployment.
type Config struct {
	Planner  PlannerConfig  `yaml:"planner"`
	Cache    CacheConfig    `yaml:"cache"`
	Decision DecisionConfig `yaml:"decision"`
	Context  ContextConfig  `yaml:"context"`
	Risk     RiskConfig     `yaml:"risk"`
	Provider ProviderConfig `yaml:"provider"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PlannerConfig tunes the L1/L2/L3 planning tiers.
type PlannerConfig struct {
	SemanticLookupThreshold float64 `yaml:"semantic_lookup_threshold"`
	SemanticStoreThreshold  float64 `yaml:"semantic_store_threshold"`
	SemanticCacheCapacity   int     `yaml:"semantic_cache_capacity"`
	MaxRetries              int     `yaml:"max_retries"`
}

// CacheConfig tunes the three tiered-cache configurations.
type CacheConfig struct {
	CompletionTTL   time.Duration `yaml:"completion_ttl"`
	CompletionGrace time.Duration `yaml:"completion_grace"`
	ToolTTL         time.Duration `yaml:"tool_ttl"`
	ToolGrace       time.Duration `yaml:"tool_grace"`
	PlanTTL         time.Duration `yaml:"plan_ttl"`
	PlanGrace       time.Duration `yaml:"plan_grace"`
}

// DecisionConfig tunes DecisionMemory's loop detection and circuit breaker.
type DecisionConfig struct {
	MaxFailedAttempts int           `yaml:"max_failed_attempts"`
	LoopWindow        time.Duration `yaml:"loop_window"`
	LoopThreshold     int           `yaml:"loop_threshold"`
}

// ContextConfig tunes ContextWindowManager.
type ContextConfig struct {
	MaxTokens        int     `yaml:"max_tokens"`
	KeepRecent       int     `yaml:"keep_recent"`
	CompactThreshold float64 `yaml:"compact_threshold"`
	MaxChunkTokens   int     `yaml:"max_chunk_tokens"`
}

// RiskConfig tunes the approval-gating domain expansion.
type RiskConfig struct {
	AutoApproveBelow int           `yaml:"auto_approve_below"`
	ApprovalTimeout  time.Duration `yaml:"approval_timeout"`
}

// ProviderConfig selects and configures the LanguageModel adapter.
type ProviderConfig struct {
	Name    string `yaml:"name"` // anthropic, openai, gemini
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// TelemetryConfig tunes logging and metrics.
type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns a Config populated with the documented defaults from
// spec.md's per-cache-tier table and the decision/context invariants.
func Default() Config {
	return Config{
		Planner: PlannerConfig{
			SemanticLookupThreshold: 0.80,
			SemanticStoreThreshold:  0.85,
			SemanticCacheCapacity:   1000,
			MaxRetries:              1,
		},
		Cache: CacheConfig{
			CompletionTTL:   5 * time.Minute,
			CompletionGrace: time.Minute,
			ToolTTL:         10 * time.Minute,
			ToolGrace:       2 * time.Minute,
			PlanTTL:         30 * time.Minute,
			PlanGrace:       5 * time.Minute,
		},
		Decision: DecisionConfig{
			MaxFailedAttempts: 3,
			LoopWindow:        2 * time.Minute,
			LoopThreshold:     3,
		},
		Context: ContextConfig{
			MaxTokens:        128_000,
			KeepRecent:       10,
			CompactThreshold: 0.80,
			MaxChunkTokens:   8_000,
		},
		Risk: RiskConfig{
			AutoApproveBelow: 30,
			ApprovalTimeout:  2 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			MetricsAddr: ":9090",
		},
	}
}

// Load reads path, resolving $include directives and expanding
// ${VAR}/$VAR environment references, then decodes onto Default().
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := decodeRawConfigInto(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
