package triage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nexuscore/orcruntime/internal/streaming"
)

type scriptedLLM struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int, topP float64) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i >= len(s.responses) {
		return "", errors.New("scriptedLLM: no more responses queued")
	}
	return s.responses[i], nil
}

func sampleItem(id string) Item {
	return Item{ID: id, Subject: "Invoice due", From: "billing@acme.com", ReceivedAt: time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC), Body: "Please pay by Friday."}
}

func TestRunClassifiesEachItem(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"category": "deadline", "importance": "high", "action_type": "pay", "due_datetime": "2026-08-01T00:00:00Z", "confidence_score": 0.9, "labels": [{"type":"project","value":"billing"}], "summary": "invoice due friday"}`,
	}}
	a := New(llm)

	result, err := a.Run(context.Background(), []Item{sampleItem("1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ItemsProcessed != 1 || len(result.Classifications) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	c := result.Classifications[0]
	if c.Category != "deadline" || c.ActionType != "pay" || c.Importance != "high" {
		t.Fatalf("unexpected classification: %+v", c)
	}
	if c.DueAt == nil || !c.DueAt.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected due date: %+v", c.DueAt)
	}
	if len(c.Labels) != 1 || c.Labels[0].Type != "project" {
		t.Fatalf("unexpected labels: %+v", c.Labels)
	}
}

func TestRunContinuesPastPerItemFailure(t *testing.T) {
	llm := &scriptedLLM{
		errs:      []error{errors.New("model unavailable"), nil},
		responses: []string{"", `{"category": "fyi", "importance": "low", "action_type": "none", "confidence_score": 0.5, "summary": "fyi"}`},
	}
	a := New(llm)

	result, err := a.Run(context.Background(), []Item{sampleItem("bad"), sampleItem("good")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ItemsProcessed != 1 {
		t.Fatalf("expected exactly one successful classification, got %d", result.ItemsProcessed)
	}
	if _, failed := result.Errors["bad"]; !failed {
		t.Fatal("expected item \"bad\" to be recorded as an error")
	}
}

func TestParseClassificationFallsBackOnInvalidEnum(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"category": "not_a_real_category", "importance": "not_real_either", "action_type": "also_fake", "confidence_score": 0.3, "summary": "weird response"}`,
	}}
	a := New(llm)

	result, err := a.Run(context.Background(), []Item{sampleItem("1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := result.Classifications[0]
	if c.Category != "other" || c.Importance != "low" || c.ActionType != "none" {
		t.Fatalf("expected fallback values for invalid enums, got %+v", c)
	}
}

func TestIsNoiseAndIsScamDerivedFromClassification(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"category": "scam", "importance": "ignore", "action_type": "none", "confidence_score": 0.95, "summary": "phishing attempt"}`,
	}}
	a := New(llm)

	result, _ := a.Run(context.Background(), []Item{sampleItem("1")})
	c := result.Classifications[0]
	if !c.IsScam || !c.IsNoise {
		t.Fatalf("expected both IsScam and IsNoise to be true, got %+v", c)
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`{"category": "fyi", "importance": "low", "action_type": "none", "confidence_score": 0.1, "summary": "x"}`}}
	a := New(llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := a.Run(ctx, []Item{sampleItem("1"), sampleItem("2")})
	if err == nil {
		t.Fatal("expected a context cancellation error")
	}
	if result.ItemsProcessed != 0 {
		t.Fatalf("expected no items processed after immediate cancellation, got %d", result.ItemsProcessed)
	}
}

func TestStreamEmitsProgressAndMessageEvents(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"category": "meeting", "importance": "medium", "action_type": "attend", "confidence_score": 0.6, "summary": "standup"}`,
	}}
	a := New(llm)

	bus := streaming.NewEventBus()
	ch, unsubscribe := bus.Subscribe("session-1")
	defer unsubscribe()
	session := streaming.NewSession("session-1", "triage-agent", bus)

	result, err := a.Stream(context.Background(), []Item{sampleItem("1")}, session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ItemsProcessed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var sawProgress, sawMessage bool
	for i := 0; i < 2; i++ {
		select {
		case evt := <-ch:
			switch evt.Type {
			case "progress":
				sawProgress = true
			case "message":
				sawMessage = true
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for streamed events")
		}
	}
	if !sawProgress || !sawMessage {
		t.Fatalf("expected both a progress and a message event, got progress=%v message=%v", sawProgress, sawMessage)
	}
}

func TestBuildPromptIncludesItemFields(t *testing.T) {
	item := sampleItem("1")
	prompt := buildPrompt(item)
	for _, want := range []string{item.From, item.Subject, item.Body} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q:\n%s", want, prompt)
		}
	}
}
