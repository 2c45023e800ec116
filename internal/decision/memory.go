// Package decision implements DecisionMemory: per-conversation loop
// prevention across three failure modes — repeated questions,
// over-budget tool re-execution, and oscillating decisions — plus a
// circuit breaker that trips after repeated failures.
package decision

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nexuscore/orcruntime/internal/embeddings"
	"github.com/nexuscore/orcruntime/internal/telemetry"
	"github.com/nexuscore/orcruntime/pkg/models"
)

// Config tunes a Memory's thresholds. Zero values fall back to the
// documented defaults.
type Config struct {
	MaxSameQuestion    int
	MaxSameTool        int
	MaxFailedAttempts  int
	SimilarityThreshold float64
}

func (c Config) withDefaults() Config {
	if c.MaxSameQuestion <= 0 {
		c.MaxSameQuestion = 1
	}
	if c.MaxSameTool <= 0 {
		c.MaxSameTool = 2
	}
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = 3
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.85
	}
	return c
}

// Memory is a per-conversation DecisionMemory. Embedder is optional;
// when nil, has_asked degrades to exact case-insensitive match only.
type Memory struct {
	mu       sync.Mutex
	cfg      Config
	embedder embeddings.Provider
	metrics  *telemetry.Metrics
	sessionID string

	questions []models.Decision
	tools     []models.Decision
	actions   []models.Decision

	failedAttempts int
	circuitOpen    bool
	loopsPrevented int
}

// New constructs a Memory. embedder and metrics may both be nil.
func New(cfg Config, embedder embeddings.Provider, metrics *telemetry.Metrics, sessionID string) *Memory {
	return &Memory{
		cfg:       cfg.withDefaults(),
		embedder:  embedder,
		metrics:   metrics,
		sessionID: sessionID,
	}
}

// HasAsked reports whether question was already asked at least
// MaxSameQuestion times (exact, case-insensitive) or is semantically
// similar (cosine similarity >= SimilarityThreshold) to a prior
// question, when an Embedder is configured.
func (m *Memory) HasAsked(ctx context.Context, question string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.circuitOpen {
		return true
	}

	normalized := strings.ToLower(strings.TrimSpace(question))
	exact := 0
	for _, d := range m.questions {
		if strings.ToLower(strings.TrimSpace(d.Content)) == normalized {
			exact++
		}
	}
	if exact >= m.cfg.MaxSameQuestion {
		m.recordLoopPrevented()
		return true
	}

	if m.embedder != nil && len(m.questions) > 0 {
		qVec, err := m.embedder.Embed(ctx, question)
		if err == nil {
			for _, d := range m.questions {
				priorVec, err := m.embedder.Embed(ctx, d.Content)
				if err != nil {
					continue
				}
				if embeddings.CosineSimilarity(qVec, priorVec) >= m.cfg.SimilarityThreshold {
					m.recordLoopPrevented()
					return true
				}
			}
		}
	}

	return false
}

// RecordQuestion appends a question decision and updates failure
// tracking: failedAttempts increments on a nil or error-bearing
// result, and decrements (floor 0) otherwise.
func (m *Memory) RecordQuestion(question string, result any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := models.Decision{Type: models.DecisionQuestion, Content: question, Timestamp: time.Now(), Result: result}
	m.questions = append(m.questions, d)
	m.trackFailure(d)
}

// HasExecutedTool reports whether (name, args) was already executed
// at least MaxSameTool times.
func (m *Memory) HasExecutedTool(name string, args map[string]any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.circuitOpen {
		return true
	}

	key := canonicalizeArgs(args)
	executions := 0
	for _, d := range m.tools {
		if d.Content == name {
			if ctxKey, _ := d.Context["args"].(string); ctxKey == key {
				executions++
			}
		}
	}
	if executions >= m.cfg.MaxSameTool {
		m.recordLoopPrevented()
		return true
	}
	return false
}

// RecordToolExecution appends a tool_execution decision keyed by
// (name, canonicalized args) and updates failure tracking.
func (m *Memory) RecordToolExecution(name string, args map[string]any, result any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := models.Decision{
		Type:      models.DecisionToolExecution,
		Content:   name,
		Context:   map[string]any{"args": canonicalizeArgs(args)},
		Timestamp: time.Now(),
		Result:    result,
	}
	m.tools = append(m.tools, d)
	m.trackFailure(d)
}

// IsLooping inspects the last window decisions across all three
// categories, sorted by timestamp, and returns true on an AB/AB or
// AA/AA repeating pattern.
func (m *Memory) IsLooping(window int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if window <= 0 {
		window = 5
	}

	all := append(append(append([]models.Decision{}, tail(m.questions, window)...), tail(m.tools, window)...), tail(m.actions, window)...)
	if len(all) < 3 {
		return false
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })

	recent := tail(all, window)
	labels := make([]string, len(recent))
	for i, d := range recent {
		labels[i] = string(d.Type) + ":" + d.Content
	}

	n := len(labels)
	if n < 4 {
		return false
	}
	// Covers both the AB/AB alternating pattern and the AA/AA repeat:
	// the last two decisions equal the two immediately before them.
	if labels[n-2] == labels[n-4] && labels[n-1] == labels[n-3] {
		m.recordLoopPrevented()
		return true
	}
	return false
}

// ShouldEarlyExit reports whether the circuit breaker is open.
func (m *Memory) ShouldEarlyExit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.circuitOpen
}

// ResetCircuitBreaker manually clears the breaker.
func (m *Memory) ResetCircuitBreaker() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitOpen = false
	m.failedAttempts = 0
}

// Stats summarizes the memory's current counters.
type Stats struct {
	QuestionsAsked int
	ToolsExecuted  int
	ActionsTaken   int
	FailedAttempts int
	CircuitOpen    bool
	LoopsPrevented int
}

// GetStats returns a Stats snapshot.
func (m *Memory) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		QuestionsAsked: len(m.questions),
		ToolsExecuted:  len(m.tools),
		ActionsTaken:   len(m.actions),
		FailedAttempts: m.failedAttempts,
		CircuitOpen:    m.circuitOpen,
		LoopsPrevented: m.loopsPrevented,
	}
}

func (m *Memory) trackFailure(d models.Decision) {
	if d.FailedResult() {
		m.failedAttempts++
		if m.failedAttempts >= m.cfg.MaxFailedAttempts {
			m.circuitOpen = true
			if m.metrics != nil {
				m.metrics.DecisionCircuitTrip(m.sessionID)
			}
		}
	} else if m.failedAttempts > 0 {
		m.failedAttempts--
	}
}

func (m *Memory) recordLoopPrevented() {
	m.loopsPrevented++
	if m.metrics != nil {
		m.metrics.DecisionLoopPrevented(m.sessionID)
	}
}

func tail(decisions []models.Decision, n int) []models.Decision {
	if len(decisions) <= n {
		return decisions
	}
	return decisions[len(decisions)-n:]
}

// canonicalizeArgs serializes args as the sorted list of key=value
// pairs, stringified with fmt's default conversion.
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
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, "&")
}
