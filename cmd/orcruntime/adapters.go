package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexuscore/orcruntime/internal/agent"
	"github.com/nexuscore/orcruntime/internal/compaction"
	"github.com/nexuscore/orcruntime/pkg/models"
)

// planningModel adapts an agent.LanguageModel into a planner.LLMPlanner
// for SmartPlanner's L3 tier: it asks the model to propose a ToolPlan
// as JSON and decodes the result by hand, the same defensive-field
// extraction agent.CompleteJSON's callers use elsewhere rather than a
// strict json.Unmarshal onto the struct.
type planningModel struct {
	llm         agent.LanguageModel
	temperature float64
	maxTokens   int
}

func newPlanningModel(llm agent.LanguageModel) *planningModel {
	return &planningModel{llm: llm, temperature: 0.2, maxTokens: 1024}
}

func (p *planningModel) GeneratePlan(ctx context.Context, query string, toolCatalog []string) (models.ToolPlan, error) {
	prompt := fmt.Sprintf(`You are planning which tools to call to answer a user's request. Respond with a single JSON object and nothing else.

Available tools: %s

Request: %s

Fields:
- parallel_groups: an array of arrays of tool names; group k+1 may only depend on tools in groups 0..k
- tools: the flat union of every tool name across parallel_groups
- reasoning: one or two sentences explaining the plan
- expected_synthesis: one sentence describing what the final answer should cover

If the request needs no tools, return {"parallel_groups": [], "tools": [], "reasoning": "...", "expected_synthesis": "..."}.`,
		strings.Join(toolCatalog, ", "), query)

	raw, err := agent.CompleteJSON(ctx, p.llm, prompt, p.temperature, p.maxTokens)
	if err != nil {
		return models.ToolPlan{}, fmt.Errorf("planning_model: %w", err)
	}
	return parseToolPlan(raw), nil
}

func parseToolPlan(raw map[string]any) models.ToolPlan {
	return models.ToolPlan{
		ParallelGroups:    parseGroups(raw["parallel_groups"]),
		Tools:             parseStrings(raw["tools"]),
		Reasoning:         stringOr(raw, "reasoning", ""),
		ExpectedSynthesis: stringOr(raw, "expected_synthesis", ""),
	}
}

func parseGroups(v any) [][]string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	groups := make([][]string, 0, len(list))
	for _, entry := range list {
		groups = append(groups, parseStrings(entry))
	}
	return groups
}

func parseStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, entry := range list {
		if s, ok := entry.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringOr(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// summarizingModel adapts an agent.LanguageModel into a
// compaction.Summarizer: a summary is plain prose, not JSON, so this
// calls Complete directly instead of going through CompleteJSON.
type summarizingModel struct {
	llm agent.LanguageModel
}

func newSummarizingModel(llm agent.LanguageModel) *summarizingModel {
	return &summarizingModel{llm: llm}
}

func (s *summarizingModel) GenerateSummary(ctx context.Context, messages []*compaction.Message, config *compaction.SummarizationConfig) (string, error) {
	var b strings.Builder
	b.WriteString("Summarize the following conversation concisely, preserving facts, decisions, and open questions a later turn will need.\n\n")
	if config != nil && config.PreviousSummary != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(config.PreviousSummary)
		b.WriteString("\n\n")
	}
	if config != nil && config.CustomInstructions != "" {
		b.WriteString("Additional instructions: ")
		b.WriteString(config.CustomInstructions)
		b.WriteString("\n\n")
	}
	for _, msg := range messages {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}

	maxTokens := 1024
	if config != nil && config.MaxChunkTokens > 0 {
		maxTokens = config.MaxChunkTokens
	}
	summary, err := s.llm.Complete(ctx, b.String(), 0.3, maxTokens, 1.0)
	if err != nil {
		return "", fmt.Errorf("summarizing_model: %w", err)
	}
	return strings.TrimSpace(summary), nil
}
