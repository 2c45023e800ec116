package decision

import (
	"context"
	"testing"
)

func TestHasAskedExactMatchAfterThreshold(t *testing.T) {
	m := New(Config{MaxSameQuestion: 1}, nil, nil, "s1")
	q := "Did I check the calendar?"

	if m.HasAsked(context.Background(), q) {
		t.Fatal("expected first ask to not be flagged")
	}
	m.RecordQuestion(q, map[string]any{"ok": true})

	if !m.HasAsked(context.Background(), q) {
		t.Fatal("expected repeated question to be flagged after threshold")
	}
	if !m.HasAsked(context.Background(), "did i check the calendar?") {
		t.Fatal("expected case-insensitive exact match to be flagged")
	}
}

func TestCircuitBreakerTripsAfterFailedAttempts(t *testing.T) {
	m := New(Config{MaxFailedAttempts: 3}, nil, nil, "s1")
	for i := 0; i < 3; i++ {
		m.RecordQuestion("q", map[string]any{"error": "boom"})
	}
	if !m.ShouldEarlyExit() {
		t.Fatal("expected circuit breaker to trip after 3 failed attempts")
	}
	if !m.HasAsked(context.Background(), "anything") {
		t.Fatal("expected has_asked to return true unconditionally while circuit is open")
	}

	m.ResetCircuitBreaker()
	if m.ShouldEarlyExit() {
		t.Fatal("expected circuit breaker to be cleared after reset")
	}
}

func TestFailedAttemptsDecrementsOnSuccess(t *testing.T) {
	m := New(Config{MaxFailedAttempts: 3}, nil, nil, "s1")
	m.RecordQuestion("q1", map[string]any{"error": "x"})
	m.RecordQuestion("q2", map[string]any{"ok": true})
	stats := m.GetStats()
	if stats.FailedAttempts != 0 {
		t.Fatalf("expected failed attempts to decrement back to 0, got %d", stats.FailedAttempts)
	}
}

func TestHasExecutedToolBudget(t *testing.T) {
	m := New(Config{MaxSameTool: 2}, nil, nil, "s1")
	args := map[string]any{"query": "invoices"}

	if m.HasExecutedTool("search_emails", args) {
		t.Fatal("expected first execution to not be flagged")
	}
	m.RecordToolExecution("search_emails", args, map[string]any{"count": 3})
	if m.HasExecutedTool("search_emails", args) {
		t.Fatal("expected second execution to not yet be flagged (budget is 2)")
	}
	m.RecordToolExecution("search_emails", args, map[string]any{"count": 0})
	if !m.HasExecutedTool("search_emails", args) {
		t.Fatal("expected third check to be flagged after budget exhausted")
	}

	if m.HasExecutedTool("search_emails", map[string]any{"query": "receipts"}) {
		t.Fatal("expected distinct args to not be flagged")
	}
}

func TestIsLoopingDetectsAlternatingPattern(t *testing.T) {
	m := New(Config{}, nil, nil, "s1")
	m.RecordToolExecution("a", nil, map[string]any{"ok": true})
	m.RecordToolExecution("b", nil, map[string]any{"ok": true})
	m.RecordToolExecution("a", nil, map[string]any{"ok": true})
	m.RecordToolExecution("b", nil, map[string]any{"ok": true})

	if !m.IsLooping(5) {
		t.Fatal("expected AB/AB pattern to be detected as looping")
	}
}

func TestIsLoopingDetectsRepeatingPair(t *testing.T) {
	m := New(Config{}, nil, nil, "s1")
	m.RecordToolExecution("a", nil, map[string]any{"ok": true})
	m.RecordToolExecution("a", nil, map[string]any{"ok": true})
	m.RecordToolExecution("a", nil, map[string]any{"ok": true})
	m.RecordToolExecution("a", nil, map[string]any{"ok": true})

	if !m.IsLooping(5) {
		t.Fatal("expected AA/AA repeat to be detected as looping")
	}
}

func TestIsLoopingFalseForDistinctDecisions(t *testing.T) {
	m := New(Config{}, nil, nil, "s1")
	m.RecordToolExecution("a", nil, map[string]any{"ok": true})
	m.RecordToolExecution("b", nil, map[string]any{"ok": true})
	m.RecordToolExecution("c", nil, map[string]any{"ok": true})
	m.RecordToolExecution("d", nil, map[string]any{"ok": true})

	if m.IsLooping(5) {
		t.Fatal("expected distinct decisions to not be flagged as looping")
	}
}
