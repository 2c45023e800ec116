package agent

import (
	"context"
	"testing"

	"github.com/nexuscore/orcruntime/internal/ctxwindow"
	"github.com/nexuscore/orcruntime/internal/planner"
	"github.com/nexuscore/orcruntime/internal/streaming"
	"github.com/nexuscore/orcruntime/pkg/models"
)

type stubLLM struct {
	response string
	err      error
	calls    int
}

func (s *stubLLM) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int, topP float64) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func newTestAgent(t *testing.T, llm LanguageModel, tools *ToolRegistry, p *planner.SmartPlanner) *Agent {
	t.Helper()
	window := ctxwindow.New(ctxwindow.Config{}, nil, nil, nil)
	bus := streaming.NewEventBus()
	return New(Config{}, tools, p, window, nil, nil, bus, nil, llm, nil, nil, nil, nil)
}

func TestHandleRequestEmptyPlanUsesFallback(t *testing.T) {
	llm := &stubLLM{response: "Hi there!"}
	tools := NewToolRegistry()
	p := planner.New(planner.NewPatternMatcher(), nil, nil, nil, nil, nil)

	a := newTestAgent(t, llm, tools, p)
	session := a.HandleRequest(context.Background(), models.Query{
		Text:    "just chatting, nothing to do",
		Context: models.SessionContext{SessionID: "s1"},
	})

	hist := session.History()
	var gotMessage bool
	for _, e := range hist {
		if e.Type == models.EventMessage {
			gotMessage = true
			if e.Message.Content != "Hi there!" {
				t.Fatalf("unexpected content: %q", e.Message.Content)
			}
		}
		if e.Type == models.EventError {
			t.Fatalf("unexpected error event: %+v", e.Error)
		}
	}
	if !gotMessage {
		t.Fatal("expected a message event from the fallback path")
	}
}

func TestHandleRequestRunsToolPlanAndSynthesizes(t *testing.T) {
	llm := &stubLLM{response: "Here is your summary."}
	tools := NewToolRegistry()
	tools.Register(HandleFunc{
		Desc: ToolDescriptor{Name: "get_weather"},
		Handle: func(ctx context.Context, args map[string]any) (any, error) {
			return "sunny", nil
		},
	})

	p := planner.New(planner.NewPatternMatcher(), nil, nil, nil, nil, nil)
	a := newTestAgent(t, llm, tools, p)

	session := a.HandleRequest(context.Background(), models.Query{
		Text:    "what's the weather like tomorrow?",
		Context: models.SessionContext{SessionID: "s2"},
	})

	hist := session.History()
	var sawPlan, sawToolCompleted, sawMessage bool
	for _, e := range hist {
		switch e.Type {
		case models.EventPlan:
			sawPlan = true
		case models.EventToolExecution:
			if e.ToolExecution.Status == models.ToolExecCompleted {
				sawToolCompleted = true
			}
		case models.EventMessage:
			sawMessage = true
			if e.Message.Content != "Here is your summary." {
				t.Fatalf("unexpected synthesis content: %q", e.Message.Content)
			}
		case models.EventError:
			t.Fatalf("unexpected error event: %+v", e.Error)
		}
	}
	if !sawPlan || !sawToolCompleted || !sawMessage {
		t.Fatalf("missing expected events: plan=%v tool=%v message=%v", sawPlan, sawToolCompleted, sawMessage)
	}
	if llm.calls != 1 {
		t.Fatalf("expected exactly one synthesis call, got %d", llm.calls)
	}
}

func TestHandleRequestDeniesUnapprovedSensitiveTool(t *testing.T) {
	llm := &stubLLM{response: "done"}
	tools := NewToolRegistry()
	tools.Register(HandleFunc{
		Desc: ToolDescriptor{Name: "get_weather", RequiresApproval: true},
		Handle: func(ctx context.Context, args map[string]any) (any, error) {
			return "sunny", nil
		},
	})
	p := planner.New(planner.NewPatternMatcher(), nil, nil, nil, nil, nil)
	a := newTestAgent(t, llm, tools, p) // no RiskAssessor/ApprovalGate configured

	session := a.HandleRequest(context.Background(), models.Query{
		Text:    "what's the weather like tomorrow?",
		Context: models.SessionContext{SessionID: "s3"},
	})

	var sawError bool
	for _, e := range session.History() {
		if e.Type == models.EventError {
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("expected an error event when a required approval has no gate configured")
	}
}

func TestCompleteJSONStripsMarkdownFence(t *testing.T) {
	llm := &stubLLM{response: "```json\n{\"tools\": [\"a\"]}\n```"}
	out, err := CompleteJSON(context.Background(), llm, "prompt", 0, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tools, ok := out["tools"].([]any)
	if !ok || len(tools) != 1 || tools[0] != "a" {
		t.Fatalf("unexpected parsed result: %+v", out)
	}
}
