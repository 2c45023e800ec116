// Package ctxwindow implements ContextWindowManager: a per-session,
// in-memory conversation buffer that auto-compacts near a token
// budget, preserving the most recent messages verbatim and replacing
// the rest with a single summary message.
package ctxwindow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nexuscore/orcruntime/internal/compaction"
	"github.com/nexuscore/orcruntime/internal/telemetry"
	"github.com/nexuscore/orcruntime/internal/tokenizer"
	"github.com/nexuscore/orcruntime/pkg/models"
)

// Config tunes a Manager. Zero values fall back to the documented
// defaults (126,000 max tokens, 80% compact threshold, 10 recent
// messages kept verbatim, 2000-token summary budget).
type Config struct {
	MaxTokens         int
	CompactThreshold  float64
	KeepRecent        int
	SummaryTokenBudget int
	Model             string
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 126000
	}
	if c.CompactThreshold <= 0 {
		c.CompactThreshold = 0.80
	}
	if c.KeepRecent <= 0 {
		c.KeepRecent = 10
	}
	if c.SummaryTokenBudget <= 0 {
		c.SummaryTokenBudget = 2000
	}
	return c
}

func (c Config) compactTrigger() int {
	return int(float64(c.MaxTokens) * c.CompactThreshold)
}

// Stats is global, cross-session Manager statistics.
type Stats struct {
	TotalCompactions int
	TokensSaved      int
	SessionsCreated  int
}

// Manager owns per-session conversation buffers and their compaction.
// Safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	cfg        Config
	tok        tokenizer.Tokenizer
	summarizer compaction.Summarizer // LLM-backed; nil falls back to rule-based.
	metrics    *telemetry.Metrics

	sessions map[string]*models.ConversationSession
	stats    Stats
}

// New constructs a Manager. summarizer may be nil, in which case
// compaction always uses the rule-based fallback.
func New(cfg Config, tok tokenizer.Tokenizer, summarizer compaction.Summarizer, metrics *telemetry.Metrics) *Manager {
	if tok == nil {
		tok = tokenizer.ForModel(cfg.Model)
	}
	return &Manager{
		cfg:        cfg.withDefaults(),
		tok:        tok,
		summarizer: summarizer,
		metrics:    metrics,
		sessions:   make(map[string]*models.ConversationSession),
	}
}

func (m *Manager) getOrCreateSession(sessionID string) *models.ConversationSession {
	if s, ok := m.sessions[sessionID]; ok {
		return s
	}
	s := &models.ConversationSession{ID: sessionID}
	m.sessions[sessionID] = s
	m.stats.SessionsCreated++
	return s
}

// AddMessage appends a message to sessionID's buffer and runs
// compaction if the trigger is crossed. Returns whether compaction
// fired.
func (m *Manager) AddMessage(ctx context.Context, sessionID string, role models.Role, content string, metadata map[string]any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.getOrCreateSession(sessionID)
	tokens := m.tok.Count(content)
	entry := models.MessageEntry{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Tokens:    tokens,
		Metadata:  metadata,
	}
	session.Messages = append(session.Messages, entry)
	session.TotalTokens += tokens

	if session.TotalTokens >= m.cfg.compactTrigger() {
		if err := m.compactSession(ctx, session); err != nil {
			return true, err
		}
		return true, nil
	}
	return false, nil
}

// compactSession replaces session's old messages (everything but the
// last KeepRecent) with a single summary message. Caller holds m.mu.
func (m *Manager) compactSession(ctx context.Context, session *models.ConversationSession) error {
	if len(session.Messages) <= m.cfg.KeepRecent {
		return nil
	}

	old := session.Messages[:len(session.Messages)-m.cfg.KeepRecent]
	recent := session.Messages[len(session.Messages)-m.cfg.KeepRecent:]

	oldTotal := 0
	for _, e := range old {
		oldTotal += e.Tokens
	}

	method := "rule_based"
	summaryContent, err := m.summarize(ctx, old)
	if err != nil {
		// Context compaction failure falls back to the rule-based
		// summarizer; never surfaced.
		summaryContent = ruleBasedSummary(old)
	} else if m.summarizer != nil {
		method = "llm"
	}
	summaryTokens := m.tok.Count(summaryContent)

	summary := models.MessageEntry{
		Role:      models.RoleSystem,
		Content:   summaryContent,
		Timestamp: time.Now(),
		Tokens:    summaryTokens,
		Metadata: map[string]any{
			"is_summary":        true,
			"original_messages": len(old),
			"original_tokens":   oldTotal,
		},
	}

	session.Messages = append([]models.MessageEntry{summary}, recent...)
	recentTotal := 0
	for _, e := range recent {
		recentTotal += e.Tokens
	}
	session.TotalTokens = summaryTokens + recentTotal
	session.CompactionCount++
	session.LastCompactedAt = time.Now()

	tokensSaved := oldTotal - summaryTokens
	m.stats.TotalCompactions++
	m.stats.TokensSaved += tokensSaved
	if m.metrics != nil {
		m.metrics.ContextCompaction(method, tokensSaved)
	}
	return nil
}

func (m *Manager) summarize(ctx context.Context, old []models.MessageEntry) (string, error) {
	if m.summarizer == nil {
		return ruleBasedSummary(old), nil
	}
	msgs := toCompactionMessages(old)
	cfg := &compaction.SummarizationConfig{
		Model:         m.cfg.Model,
		ReserveTokens: m.cfg.SummaryTokenBudget,
		ContextWindow: m.cfg.MaxTokens,
		Tokenizer:     m.tok,
	}
	return compaction.SummarizeInStages(ctx, msgs, m.summarizer, cfg)
}

// toCompactionMessages carries Metadata through so a prior compaction
// summary (tagged is_summary by compactSession) keeps that identity
// once it reaches compaction.FormatMessagesForSummary.
func toCompactionMessages(entries []models.MessageEntry) []*compaction.Message {
	out := make([]*compaction.Message, len(entries))
	for i, e := range entries {
		out[i] = &compaction.Message{
			Role:      string(e.Role),
			Content:   e.Content,
			Timestamp: e.Timestamp.Unix(),
			Metadata:  e.Metadata,
		}
	}
	return out
}

// GetContextForLLM returns session's messages in canonical {role,
// content} form, optionally excluding system summaries.
func (m *Manager) GetContextForLLM(sessionID string, includeSystem bool) []models.LLMMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.getOrCreateSession(sessionID)
	out := make([]models.LLMMessage, 0, len(session.Messages))
	for _, e := range session.Messages {
		if !includeSystem && e.Role == models.RoleSystem {
			continue
		}
		out = append(out, models.LLMMessage{Role: string(e.Role), Content: e.Content})
	}
	return out
}

// TokenUsage reports a session's current budget utilization.
type TokenUsage struct {
	TotalTokens   int
	MaxTokens     int
	Utilization   float64
	Available     int
	Messages      int
	Compactions   int
	WillCompactAt int
}

// GetTokenUsage reports sessionID's current token budget state.
func (m *Manager) GetTokenUsage(sessionID string) TokenUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.getOrCreateSession(sessionID)
	return TokenUsage{
		TotalTokens:   session.TotalTokens,
		MaxTokens:     m.cfg.MaxTokens,
		Utilization:   float64(session.TotalTokens) / float64(m.cfg.MaxTokens),
		Available:     m.cfg.MaxTokens - session.TotalTokens,
		Messages:      len(session.Messages),
		Compactions:   session.CompactionCount,
		WillCompactAt: m.cfg.compactTrigger(),
	}
}

// ResetSession discards sessionID's buffer. The next AddMessage call
// starts a fresh session.
func (m *Manager) ResetSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// GetStats returns a snapshot of global compaction statistics.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (c Config) String() string {
	return fmt.Sprintf("ContextWindowManager(max=%d, compact_at=%d)", c.MaxTokens, c.compactTrigger())
}
