// Package executor implements DAGExecutor: a concurrent,
// dependency-aware runner for ExecutionSteps with bounded parallelism,
// retries, and mandatory per-attempt timeouts.
package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/nexuscore/orcruntime/internal/backoff"
	"github.com/nexuscore/orcruntime/internal/telemetry"
	"github.com/nexuscore/orcruntime/pkg/models"
)

// Config tunes a DAGExecutor. Zero values fall back to the documented
// defaults (10-way parallelism, 1s base retry delay).
type Config struct {
	MaxParallel int
	RetryDelay  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxParallel <= 0 {
		c.MaxParallel = 10
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	return c
}

// ToolLookup resolves a registered tool's normalized handle by name.
// Tools named in a plan but absent here are skipped with a warning.
type ToolLookup interface {
	Lookup(name string) (models.ToolHandle, bool)
}

// MapLookup is the trivial ToolLookup over a static map, typically
// used in tests or for a fixed tool set.
type MapLookup map[string]models.ToolHandle

func (m MapLookup) Lookup(name string) (models.ToolHandle, bool) {
	h, ok := m[name]
	return h, ok
}

// EventSink receives progress events during execution. Implementations
// must not block; the executor never retries a failed emit.
type EventSink interface {
	Emit(models.Event)
}

// DAGExecutor runs a set of ExecutionSteps honoring their declared
// dependencies, executing independent steps concurrently.
type DAGExecutor struct {
	cfg     Config
	tools   ToolLookup
	sink    EventSink
	metrics *telemetry.Metrics
}

// New constructs a DAGExecutor. sink and metrics may be nil.
func New(cfg Config, tools ToolLookup, sink EventSink, metrics *telemetry.Metrics) *DAGExecutor {
	return &DAGExecutor{cfg: cfg.withDefaults(), tools: tools, sink: sink, metrics: metrics}
}

// Execute runs steps to completion: looping over ready batches until
// every step is completed, or a dependency deadlock (caused by prior
// failures) skips the remainder.
func (e *DAGExecutor) Execute(ctx context.Context, steps []*models.ExecutionStep) *models.ExecutionResult {
	start := time.Now()
	result := models.NewExecutionResult()

	for _, s := range steps {
		if s.Status == models.StepSkipped {
			// Already terminal before Execute ran (e.g. an approval gate
			// denied it): readySteps and pendingSteps both ignore this
			// status, so it must be recorded here or it vanishes from
			// both Results and Errors.
			result.Errors[s.ToolName] = s.Error
			continue
		}
		if _, ok := e.tools.Lookup(s.ToolName); !ok {
			s.Status = models.StepSkipped
			s.Error = fmt.Sprintf("tool %q not registered", s.ToolName)
			result.Errors[s.ToolName] = s.Error
		}
	}

	completed := make(map[string]bool, len(steps))
	for {
		if len(completed) >= len(steps) {
			break
		}

		ready := e.readySteps(steps, completed)
		if len(ready) == 0 {
			pending := pendingSteps(steps)
			if len(pending) == 0 {
				break
			}
			for _, s := range pending {
				s.Status = models.StepSkipped
				s.Error = "Unmet dependencies or dependency failure"
				result.Errors[s.ToolName] = s.Error
			}
			break
		}

		if len(ready) > e.cfg.MaxParallel {
			ready = ready[:e.cfg.MaxParallel]
		}

		var wg sync.WaitGroup
		for _, s := range ready {
			wg.Add(1)
			go func(step *models.ExecutionStep) {
				defer wg.Done()
				e.runStepWithRetry(ctx, step)
			}(s)
		}
		wg.Wait()

		for _, s := range ready {
			switch s.Status {
			case models.StepCompleted:
				completed[s.ToolName] = true
				result.Results[s.ToolName] = s.Result
				if e.metrics != nil {
					e.metrics.ExecutorStep(s.ToolName, "completed", s.EndTime.Sub(s.StartTime).Seconds())
				}
			case models.StepFailed:
				result.Errors[s.ToolName] = s.Error
				if e.metrics != nil {
					e.metrics.ExecutorStep(s.ToolName, "failed", s.EndTime.Sub(s.StartTime).Seconds())
				}
			}
		}
	}

	result.TotalDuration = time.Since(start)
	result.StepDetails = steps
	result.Success = len(result.Errors) == 0
	return result
}

// readySteps marks and returns steps whose dependencies are satisfied
// and whose status is still pending or ready (ready steps carried
// over from a prior batch that exceeded MaxParallel), sorted by
// descending priority.
func (e *DAGExecutor) readySteps(steps []*models.ExecutionStep, completed map[string]bool) []*models.ExecutionStep {
	var ready []*models.ExecutionStep
	for _, s := range steps {
		if s.Status != models.StepPending && s.Status != models.StepReady {
			continue
		}
		satisfied := true
		for _, dep := range s.Dependencies {
			if !completed[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			s.Status = models.StepReady
			ready = append(ready, s)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].Priority > ready[j].Priority })
	return ready
}

func pendingSteps(steps []*models.ExecutionStep) []*models.ExecutionStep {
	var out []*models.ExecutionStep
	for _, s := range steps {
		if s.Status == models.StepPending {
			out = append(out, s)
		}
	}
	return out
}

// runStepWithRetry transitions step through running -> {completed,
// failed}, retrying on error or timeout with exponential backoff and
// 10% jitter (internal/backoff, base retry_delay * 2^attempt) up to
// RetryCount additional attempts.
func (e *DAGExecutor) runStepWithRetry(ctx context.Context, step *models.ExecutionStep) {
	handle, _ := e.tools.Lookup(step.ToolName)
	policy := backoff.BackoffPolicy{
		InitialMs: float64(e.cfg.RetryDelay.Milliseconds()),
		MaxMs:     float64(e.cfg.RetryDelay.Milliseconds()) * float64(uint(1)<<uint(step.RetryCount+1)),
		Factor:    2,
		Jitter:    0.1,
	}

	step.Status = models.StepRunning
	step.StartTime = time.Now()
	e.emit(models.Event{Type: models.EventToolExecution, ToolExecution: &models.ToolExecutionPayload{
		ToolName: step.ToolName, Status: "started", Args: step.Args,
	}})

	timeout := time.Duration(step.Timeout) * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= step.RetryCount; attempt++ {
		step.Attempts = attempt + 1

		result, err := invokeWithTimeout(ctx, handle, step.Args, timeout)
		if err == nil {
			step.Status = models.StepCompleted
			step.Result = result
			step.EndTime = time.Now()
			e.emit(models.Event{Type: models.EventToolExecution, ToolExecution: &models.ToolExecutionPayload{
				ToolName: step.ToolName, Status: "completed", Result: result,
				Duration: step.EndTime.Sub(step.StartTime),
			}})
			return
		}
		lastErr = err

		if attempt < step.RetryCount {
			if e.metrics != nil {
				e.metrics.ExecutorRetry(step.ToolName)
			}
			if err := backoff.SleepWithBackoff(ctx, policy, attempt+1); err != nil {
				lastErr = err
				attempt = step.RetryCount // stop retrying; fall through to failure below
			}
		}
	}

	step.Status = models.StepFailed
	step.Error = lastErr.Error()
	step.EndTime = time.Now()
	e.emit(models.Event{Type: models.EventToolExecution, ToolExecution: &models.ToolExecutionPayload{
		ToolName: step.ToolName, Status: "failed", Error: step.Error,
	}})
}

// invokeWithTimeout runs handle on its own goroutine, enforcing
// timeout and parent cancellation; a mid-flight timeout discards the
// partial result. A panicking handle is converted into an error.
func invokeWithTimeout(ctx context.Context, handle models.ToolHandle, args map[string]any, timeout time.Duration) (any, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panic: %v\n%s", r, debug.Stack())}
			}
		}()
		value, err := handle(execCtx, args)
		done <- outcome{value: value, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("tool execution timed out after %s", timeout)
	}
}

func (e *DAGExecutor) emit(evt models.Event) {
	if e.sink != nil {
		e.sink.Emit(evt)
	}
}
