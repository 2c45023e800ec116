// Package triage classifies a batch of tool results — typically
// inbox-shaped items from a search_emails call — into priority
// buckets using an LLM-backed classifier. It implements the same
// Agent{run, stream} capability record as EnhancedAgent: Run returns a
// batch result directly, Stream does the same work while narrating
// progress onto a caller-owned StreamingSession. Triage never persists
// its output; what a host does with a Classification (label the
// message, schedule a follow-up) is out of scope here.
package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/nexuscore/orcruntime/internal/agent"
	"github.com/nexuscore/orcruntime/internal/streaming"
	"github.com/nexuscore/orcruntime/pkg/models"
)

// Item is one unit of work to classify: an email, a message, anything
// with a subject/body/sender shape worth triaging.
type Item struct {
	ID         string
	Subject    string
	Body       string
	From       string
	ReceivedAt time.Time
}

// Label is a single {type, value} tag attached to a classification,
// e.g. {"project", "migration"} or {"sender_domain", "acme.com"}.
type Label struct {
	Type  string
	Value string
}

// Classification is one item's triage verdict.
type Classification struct {
	ItemID     string
	Category   string // deadline, meeting, invite, admin, offer, scam, newsletter, fyi, other
	Importance string // critical, high, medium, low, ignore
	ActionType string // reply, attend, add_event, pay, read, none
	DueAt      *time.Time
	Confidence float64
	Labels     []Label
	IsScam     bool
	IsNoise    bool
	Summary    string
}

// Result is the aggregate outcome of one Run/Stream call.
type Result struct {
	ItemsProcessed  int
	Classifications []Classification
	Errors          map[string]string // item ID -> error, for items that failed to classify
	Duration        time.Duration
}

var validCategories = map[string]bool{
	"deadline": true, "meeting": true, "invite": true, "admin": true,
	"offer": true, "scam": true, "newsletter": true, "fyi": true, "other": true,
}

var validImportance = map[string]bool{
	"critical": true, "high": true, "medium": true, "low": true, "ignore": true,
}

var validActionType = map[string]bool{
	"reply": true, "attend": true, "add_event": true, "pay": true, "read": true, "none": true,
}

// Agent classifies items with an LLM, one completion per item,
// continuing past individual item failures the way a batch job should
// (one malformed email must not sink the rest of the inbox).
type Agent struct {
	llm         agent.LanguageModel
	temperature float64
	topP        float64
	maxTokens   int
}

// New builds an Agent over llm. Defaults match the sampling
// parameters a classification prompt wants: low temperature, narrow
// top-p, a small token budget for a structured JSON reply.
func New(llm agent.LanguageModel) *Agent {
	return &Agent{llm: llm, temperature: 0.2, topP: 0.7, maxTokens: 1024}
}

// Run classifies items and returns the aggregate result. It never
// returns an error itself; per-item failures are recorded in
// Result.Errors so one bad item doesn't abort the batch.
func (a *Agent) Run(ctx context.Context, items []Item) (*Result, error) {
	return a.run(ctx, items, nil)
}

// Stream does the same work as Run but narrates progress onto session:
// a progress event per item classified and a closing message event
// summarizing the batch.
func (a *Agent) Stream(ctx context.Context, items []Item, session *streaming.StreamingSession) (*Result, error) {
	return a.run(ctx, items, session)
}

func (a *Agent) run(ctx context.Context, items []Item, session *streaming.StreamingSession) (*Result, error) {
	start := time.Now()
	result := &Result{Errors: make(map[string]string)}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		classification, err := a.classify(ctx, item)
		if err != nil {
			result.Errors[item.ID] = err.Error()
			if session != nil {
				session.Progress(i+1, len(items), fmt.Sprintf("failed to triage item %d/%d", i+1, len(items)))
			}
			continue
		}

		result.Classifications = append(result.Classifications, *classification)
		result.ItemsProcessed++
		if session != nil {
			session.Progress(i+1, len(items), fmt.Sprintf("triaged item %d/%d: %s", i+1, len(items), classification.Category))
		}
	}

	result.Duration = time.Since(start)
	if session != nil {
		session.Message(summarize(result), models.TimingPayload{TotalMS: result.Duration.Milliseconds()}, nil)
	}
	return result, nil
}

func (a *Agent) classify(ctx context.Context, item Item) (*Classification, error) {
	prompt := buildPrompt(item)
	raw, err := agent.CompleteJSON(ctx, a.llm, prompt, a.temperature, a.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("triage: classifying item %s: %w", item.ID, err)
	}
	return parseClassification(item.ID, raw)
}

func buildPrompt(item Item) string {
	return fmt.Sprintf(`Classify the following message. Respond with a single JSON object and nothing else.

From: %s
Subject: %s
Received: %s
Body:
%s

Fields:
- category: one of deadline, meeting, invite, admin, offer, scam, newsletter, fyi, other
- importance: one of critical, high, medium, low, ignore
- action_type: one of reply, attend, add_event, pay, read, none
- due_datetime: an RFC3339 timestamp if the message implies a deadline or event time, else null
- confidence_score: a number from 0.0 to 1.0
- labels: an array of {"type": "...", "value": "..."} tags, may be empty
- summary: a one-sentence summary of the message

Classification rules:
- scam: unsolicited requests for money, credentials, or gift cards, or messages impersonating a known sender from a mismatched address
- newsletter: bulk/marketing sends with no action expected from the recipient
- deadline: any message naming a date or time the recipient must act by

Importance rules:
- critical: time-sensitive with real consequences if missed (legal, financial, security)
- ignore: newsletters and notifications with no action needed
`, item.From, item.Subject, item.ReceivedAt.Format(time.RFC3339), item.Body)
}

func parseClassification(itemID string, raw map[string]any) (*Classification, error) {
	category := stringField(raw, "category", "other")
	if !validCategories[category] {
		category = "other"
	}
	importance := stringField(raw, "importance", "low")
	if !validImportance[importance] {
		importance = "low"
	}
	actionType := stringField(raw, "action_type", "none")
	if !validActionType[actionType] {
		actionType = "none"
	}

	confidence, _ := raw["confidence_score"].(float64)

	var dueAt *time.Time
	if due, ok := raw["due_datetime"].(string); ok && due != "" {
		if t, err := time.Parse(time.RFC3339, due); err == nil {
			dueAt = &t
		}
	}

	labels := parseLabels(raw["labels"])

	return &Classification{
		ItemID:     itemID,
		Category:   category,
		Importance: importance,
		ActionType: actionType,
		DueAt:      dueAt,
		Confidence: confidence,
		Labels:     labels,
		IsScam:     category == "scam",
		IsNoise:    importance == "ignore",
		Summary:    stringField(raw, "summary", ""),
	}, nil
}

func parseLabels(v any) []Label {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	labels := make([]Label, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		labels = append(labels, Label{
			Type:  stringField(m, "type", ""),
			Value: stringField(m, "value", ""),
		})
	}
	return labels
}

func stringField(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func summarize(result *Result) string {
	noise := 0
	for _, c := range result.Classifications {
		if c.IsNoise {
			noise++
		}
	}
	return fmt.Sprintf("triaged %d item(s), %d flagged as noise, %d failed to classify",
		result.ItemsProcessed, noise, len(result.Errors))
}
