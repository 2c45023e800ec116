package ctxwindow

import (
	"context"
	"strings"
	"testing"

	"github.com/nexuscore/orcruntime/pkg/models"
)

func TestAddMessageAccumulatesTokens(t *testing.T) {
	m := New(Config{MaxTokens: 1000000}, nil, nil, nil)
	ctx := context.Background()

	compacted, err := m.AddMessage(ctx, "s1", models.RoleUser, "hello there", nil)
	if err != nil {
		t.Fatal(err)
	}
	if compacted {
		t.Fatal("expected no compaction for a tiny session")
	}

	usage := m.GetTokenUsage("s1")
	if usage.Messages != 1 || usage.TotalTokens == 0 {
		t.Fatalf("expected one message with nonzero tokens, got %+v", usage)
	}
}

func TestAutoCompactionKeepsRecentVerbatim(t *testing.T) {
	cfg := Config{MaxTokens: 1000, CompactThreshold: 0.8, KeepRecent: 3}
	m := New(cfg, nil, nil, nil)
	ctx := context.Background()

	// ~50 tokens per message (200 chars / 4).
	body := strings.Repeat("x", 200)

	var lastTwoContents []string
	for i := 0; i < 20; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		content := body
		if i >= 18 {
			lastTwoContents = append(lastTwoContents, content)
		}
		if _, err := m.AddMessage(ctx, "s1", role, content, nil); err != nil {
			t.Fatal(err)
		}
	}

	usage := m.GetTokenUsage("s1")
	if usage.Compactions < 1 {
		t.Fatal("expected at least one compaction over 20 messages")
	}
	if usage.TotalTokens >= 800 {
		t.Fatalf("expected total tokens under compact trigger, got %d", usage.TotalTokens)
	}
	if usage.Messages > 5 {
		t.Fatalf("expected a small visible message count after compaction, got %d", usage.Messages)
	}

	ctxMsgs := m.GetContextForLLM("s1", true)
	if len(ctxMsgs) < 4 {
		t.Fatalf("expected summary plus 3 recent messages, got %d", len(ctxMsgs))
	}
	// Last keep_recent=3 appended messages preserved verbatim, in order.
	tail := ctxMsgs[len(ctxMsgs)-3:]
	if tail[1].Content != lastTwoContents[0] || tail[2].Content != lastTwoContents[1] {
		t.Fatal("expected the last appended messages to survive compaction byte-identical")
	}
}

func TestGetContextForLLMExcludesSystemSummaries(t *testing.T) {
	cfg := Config{MaxTokens: 500, CompactThreshold: 0.8, KeepRecent: 2}
	m := New(cfg, nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := m.AddMessage(ctx, "s1", models.RoleUser, strings.Repeat("y", 200), nil); err != nil {
			t.Fatal(err)
		}
	}

	withSystem := m.GetContextForLLM("s1", true)
	withoutSystem := m.GetContextForLLM("s1", false)
	if len(withoutSystem) >= len(withSystem) {
		t.Fatalf("expected filtering system summaries to shrink the list: with=%d without=%d", len(withSystem), len(withoutSystem))
	}
	for _, msg := range withoutSystem {
		if msg.Role == "system" {
			t.Fatal("expected no system role messages when includeSystem=false")
		}
	}
}

func TestResetSessionDiscardsState(t *testing.T) {
	m := New(Config{}, nil, nil, nil)
	ctx := context.Background()
	if _, err := m.AddMessage(ctx, "s1", models.RoleUser, "hi", nil); err != nil {
		t.Fatal(err)
	}
	m.ResetSession("s1")

	usage := m.GetTokenUsage("s1")
	if usage.Messages != 0 || usage.TotalTokens != 0 {
		t.Fatalf("expected a fresh session after reset, got %+v", usage)
	}
}

func TestRuleBasedSummaryExtractsTopicsAndActions(t *testing.T) {
	msgs := []models.MessageEntry{
		{Role: models.RoleUser, Content: "What is the status of my invoice. Please check."},
		{Role: models.RoleAssistant, Content: "I searched the records and found your invoice, then updated it."},
	}
	summary := ruleBasedSummary(msgs)
	if !strings.Contains(summary, "What is the status of my invoice") {
		t.Fatalf("expected first-sentence topic extraction, got: %s", summary)
	}
	if !strings.Contains(summary, "searched") || !strings.Contains(summary, "found") || !strings.Contains(summary, "updated") {
		t.Fatalf("expected detected action verbs, got: %s", summary)
	}
}
