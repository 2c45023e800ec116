package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexuscore/orcruntime/pkg/models"
)

func step(name string, deps []string, priority int) *models.ExecutionStep {
	return &models.ExecutionStep{
		ToolName:     name,
		Args:         map[string]any{},
		Dependencies: deps,
		Priority:     priority,
		RetryCount:   0,
		Timeout:      1000,
		Status:       models.StepPending,
	}
}

func TestExecuteRunsIndependentStepsConcurrently(t *testing.T) {
	tools := MapLookup{
		"a": func(ctx context.Context, args map[string]any) (any, error) { return "ra", nil },
		"b": func(ctx context.Context, args map[string]any) (any, error) { return "rb", nil },
	}
	e := New(Config{}, tools, nil, nil)
	steps := []*models.ExecutionStep{step("a", nil, 5), step("b", nil, 5)}

	result := e.Execute(context.Background(), steps)
	if !result.Success {
		t.Fatalf("expected success, got errors: %v", result.Errors)
	}
	if result.Results["a"] != "ra" || result.Results["b"] != "rb" {
		t.Fatalf("unexpected results: %+v", result.Results)
	}
}

func TestExecuteRespectsDependencyOrder(t *testing.T) {
	var bRanAfterA atomic.Bool
	var aCompleted atomic.Bool

	tools := MapLookup{
		"a": func(ctx context.Context, args map[string]any) (any, error) {
			time.Sleep(10 * time.Millisecond)
			aCompleted.Store(true)
			return "ra", nil
		},
		"b": func(ctx context.Context, args map[string]any) (any, error) {
			bRanAfterA.Store(aCompleted.Load())
			return "rb", nil
		},
	}
	e := New(Config{}, tools, nil, nil)
	steps := []*models.ExecutionStep{step("a", nil, 5), step("b", []string{"a"}, 5)}

	result := e.Execute(context.Background(), steps)
	if !result.Success {
		t.Fatalf("expected success, got errors: %v", result.Errors)
	}
	if !bRanAfterA.Load() {
		t.Fatal("expected b to run only after a completed")
	}
}

func TestExecuteSkipsDependentsOfFailedStep(t *testing.T) {
	tools := MapLookup{
		"a": func(ctx context.Context, args map[string]any) (any, error) { return nil, errors.New("boom") },
		"b": func(ctx context.Context, args map[string]any) (any, error) { return "rb", nil },
	}
	e := New(Config{}, tools, nil, nil)
	steps := []*models.ExecutionStep{step("a", nil, 5), step("b", []string{"a"}, 5)}

	result := e.Execute(context.Background(), steps)
	if result.Success {
		t.Fatal("expected failure")
	}
	if _, ok := result.Errors["a"]; !ok {
		t.Fatal("expected a's error recorded")
	}
	if _, ok := result.Errors["b"]; !ok {
		t.Fatal("expected b to be skipped due to unmet dependency")
	}

	var bStep *models.ExecutionStep
	for _, s := range steps {
		if s.ToolName == "b" {
			bStep = s
		}
	}
	if bStep.Status != models.StepSkipped {
		t.Fatalf("expected b to be skipped, got %s", bStep.Status)
	}
}

func TestExecuteSkipsUnregisteredTool(t *testing.T) {
	tools := MapLookup{}
	e := New(Config{}, tools, nil, nil)
	steps := []*models.ExecutionStep{step("missing", nil, 5)}

	result := e.Execute(context.Background(), steps)
	if result.Success {
		t.Fatal("expected failure for an unregistered tool")
	}
	if steps[0].Status != models.StepSkipped {
		t.Fatalf("expected skipped status, got %s", steps[0].Status)
	}
}

func TestExecuteRetriesOnErrorThenSucceeds(t *testing.T) {
	var calls int32
	tools := MapLookup{
		"flaky": func(ctx context.Context, args map[string]any) (any, error) {
			n := atomic.AddInt32(&calls, 1)
			if n < 2 {
				return nil, errors.New("transient")
			}
			return "ok", nil
		},
	}
	e := New(Config{RetryDelay: time.Millisecond}, tools, nil, nil)
	s := step("flaky", nil, 5)
	s.RetryCount = 2

	result := e.Execute(context.Background(), []*models.ExecutionStep{s})
	if !result.Success {
		t.Fatalf("expected eventual success, got errors: %v", result.Errors)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls)
	}
}

func TestExecuteTimesOutAndDiscardsPartialResult(t *testing.T) {
	tools := MapLookup{
		"slow": func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return "too late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	e := New(Config{RetryDelay: time.Millisecond}, tools, nil, nil)
	s := step("slow", nil, 5)
	s.Timeout = 20

	result := e.Execute(context.Background(), []*models.ExecutionStep{s})
	if result.Success {
		t.Fatal("expected a timeout failure")
	}
	if s.Status != models.StepFailed {
		t.Fatalf("expected failed status, got %s", s.Status)
	}
}

func TestExecuteHonorsMaxParallelAndPriority(t *testing.T) {
	tools := MapLookup{
		"a": func(ctx context.Context, args map[string]any) (any, error) { return "a", nil },
		"b": func(ctx context.Context, args map[string]any) (any, error) { return "b", nil },
		"c": func(ctx context.Context, args map[string]any) (any, error) { return "c", nil },
	}
	e := New(Config{MaxParallel: 1}, tools, nil, nil)
	steps := []*models.ExecutionStep{step("a", nil, 1), step("b", nil, 5), step("c", nil, 10)}

	result := e.Execute(context.Background(), steps)
	if !result.Success {
		t.Fatalf("expected success, got errors: %v", result.Errors)
	}
	if len(result.Results) != 3 {
		t.Fatalf("expected all three steps to eventually complete, got %d", len(result.Results))
	}
}
