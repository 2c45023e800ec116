package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/orcruntime/internal/cache"
	"github.com/nexuscore/orcruntime/internal/ctxwindow"
	"github.com/nexuscore/orcruntime/internal/decision"
	"github.com/nexuscore/orcruntime/internal/embeddings"
	"github.com/nexuscore/orcruntime/internal/executor"
	"github.com/nexuscore/orcruntime/internal/planner"
	"github.com/nexuscore/orcruntime/internal/streaming"
	"github.com/nexuscore/orcruntime/internal/telemetry"
	"github.com/nexuscore/orcruntime/pkg/models"
)

// LanguageModel is the narrow collaborator EnhancedAgent needs from a
// model provider: one sampling call. Each provider adapter in
// internal/providers implements this directly.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int, topP float64) (string, error)
}

// RiskAssessor scores a proposed tool invocation for EnhancedAgent's
// approval gate. Optional; when nil every tool runs unchecked
// regardless of its RequiresApproval flag.
type RiskAssessor interface {
	Assess(ctx context.Context, toolName string, args map[string]any) (score int, level models.RiskLevel, reasoning string)
}

// ApprovalGate resolves a pending approval_required event, typically
// by waiting on a human decision delivered out of band. Optional;
// required only when a registered tool sets RequiresApproval.
type ApprovalGate interface {
	RequestApproval(ctx context.Context, payload models.ApprovalRequiredPayload) (approved bool, err error)
}

// InsightEngine looks for cross-domain patterns in a completed
// ExecutionResult's tool outputs. Optional and best-effort: its
// failures are swallowed, never surfaced to the request.
type InsightEngine interface {
	Generate(ctx context.Context, results map[string]any) (*models.InsightPayload, bool)
}

// Config tunes an Agent. Zero values fall back to the documented
// defaults.
type Config struct {
	AgentID string

	DefaultStepTimeoutMS int
	DefaultRetries       int

	SynthesisTemperature float64
	SynthesisMaxTokens   int

	FallbackTemperature float64
	FallbackMaxTokens   int

	// ApprovalThreshold is the risk score (0-100) at or above which a
	// sensitive tool blocks on ApprovalGate rather than auto-approving.
	ApprovalThreshold int
	ApprovalTimeout   time.Duration

	Decision decision.Config
}

func (c Config) withDefaults() Config {
	if c.AgentID == "" {
		c.AgentID = "orcruntime"
	}
	if c.DefaultStepTimeoutMS <= 0 {
		c.DefaultStepTimeoutMS = 30000
	}
	if c.DefaultRetries < 0 {
		c.DefaultRetries = 2
	}
	if c.SynthesisTemperature <= 0 {
		c.SynthesisTemperature = 0.3
	}
	if c.SynthesisMaxTokens <= 0 {
		c.SynthesisMaxTokens = 1024
	}
	if c.FallbackTemperature <= 0 {
		c.FallbackTemperature = 0.7
	}
	if c.FallbackMaxTokens <= 0 {
		c.FallbackMaxTokens = 1024
	}
	if c.ApprovalThreshold <= 0 {
		c.ApprovalThreshold = 30
	}
	if c.ApprovalTimeout <= 0 {
		c.ApprovalTimeout = 2 * time.Minute
	}
	return c
}

// Agent is EnhancedAgent: the top-level controller. One instance
// serves every request in a process; per-session state (DecisionMemory,
// the conversation buffer) is keyed internally by session id, the same
// pattern ctxwindow.Manager uses for its own session map.
type Agent struct {
	cfg Config

	tools   *ToolRegistry
	planner *planner.SmartPlanner
	window  *ctxwindow.Manager

	completions *cache.CompletionCache
	toolCache   *cache.ToolCache
	bus         *streaming.EventBus
	metrics     *telemetry.Metrics

	llm      LanguageModel
	embedder embeddings.Provider
	risk     RiskAssessor
	approval ApprovalGate
	insight  InsightEngine

	mu       sync.Mutex
	memories map[string]*decision.Memory
}

// New constructs an EnhancedAgent. embedder, risk, approval, insight,
// and metrics may be nil; toolCache and bus may be nil (caching and
// broadcasting are then skipped).
func New(
	cfg Config,
	tools *ToolRegistry,
	smartPlanner *planner.SmartPlanner,
	window *ctxwindow.Manager,
	completions *cache.CompletionCache,
	toolCache *cache.ToolCache,
	bus *streaming.EventBus,
	metrics *telemetry.Metrics,
	llm LanguageModel,
	embedder embeddings.Provider,
	risk RiskAssessor,
	approval ApprovalGate,
	insight InsightEngine,
) *Agent {
	return &Agent{
		cfg:         cfg.withDefaults(),
		tools:       tools,
		planner:     smartPlanner,
		window:      window,
		completions: completions,
		toolCache:   toolCache,
		bus:         bus,
		metrics:     metrics,
		llm:         llm,
		embedder:    embedder,
		risk:        risk,
		approval:    approval,
		insight:     insight,
		memories:    make(map[string]*decision.Memory),
	}
}

func (a *Agent) memoryFor(sessionID string) *decision.Memory {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m, ok := a.memories[sessionID]; ok {
		return m
	}
	m := decision.New(a.cfg.Decision, a.embedder, a.metrics, sessionID)
	a.memories[sessionID] = m
	return m
}

// HandleRequest runs the full eight-step request lifecycle from
// spec.md §4.7, streaming structured events on a fresh StreamingSession
// for query.Context.SessionID (generated if empty). It always returns
// a session whose History() holds every emitted event; HandleRequest
// itself never returns an error because every failure mode terminates
// by emitting an `error` event on the session instead.
func (a *Agent) HandleRequest(ctx context.Context, query models.Query) *streaming.StreamingSession {
	start := time.Now()

	sessionID := query.Context.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	session := streaming.NewSession(sessionID, a.cfg.AgentID, a.bus)

	// Step 1: append user message, note whether compaction fired.
	if _, err := a.window.AddMessage(ctx, sessionID, models.RoleUser, query.Text, nil); err != nil {
		session.Error(fmt.Sprintf("failed to buffer message: %v", err), "context_error", "")
		return session
	}

	// Step 2: consult DecisionMemory.
	memory := a.memoryFor(sessionID)
	if memory.ShouldEarlyExit() {
		session.Error("too many repeated or failed attempts; please rephrase your request", "circuit_open", "rephrase and try again")
		return session
	}

	// Step 3: plan.
	session.Reasoning("Analyzing your request...", 1.0, nil)
	planStart := time.Now()
	plan, err := a.planner.Plan(ctx, query)
	planMS := time.Since(planStart).Milliseconds()
	if err != nil {
		session.Error(err.Error(), "planning_error", "")
		return session
	}

	// Step 4: no-tool plans take the conversational fallback path.
	if plan.Empty() {
		a.runFallback(ctx, session, sessionID, query, start, planMS)
		return session
	}

	// Step 5: build steps, run the approval gate, execute.
	session.Plan(plan, "parallel_groups")
	steps := plan.ToExecutionSteps(a.cfg.DefaultStepTimeoutMS, a.cfg.DefaultRetries)
	a.gateApprovals(ctx, session, steps)

	execStart := time.Now()
	exec := executor.New(executor.Config{}, a.cachingLookup(), sessionSink{session}, a.metrics)
	result := exec.Execute(ctx, steps)
	execMS := time.Since(execStart).Milliseconds()

	for _, s := range steps {
		if s.Status == models.StepCompleted {
			memory.RecordToolExecution(s.ToolName, s.Args, s.Result)
		} else if s.Status == models.StepFailed {
			memory.RecordToolExecution(s.ToolName, s.Args, nil)
		}
	}

	if len(result.Results) == 0 && len(steps) > 0 {
		session.Error("execution could not make progress: every step was skipped or failed", "executor_deadlock", "rephrase and try again")
		return session
	}

	a.emitInsight(ctx, session, result)

	// Step 7: synthesize.
	session.Reasoning("Synthesizing response...", 1.0, nil)
	synthStart := time.Now()
	response, err := a.synthesize(ctx, sessionID, query, result)
	synthMS := time.Since(synthStart).Milliseconds()
	if err != nil {
		session.Error(err.Error(), "synthesis_error", "")
		return session
	}

	// Step 8: append assistant response, emit the final message.
	if _, err := a.window.AddMessage(ctx, sessionID, models.RoleAssistant, response, nil); err != nil {
		session.Error(fmt.Sprintf("failed to record response: %v", err), "context_error", "")
		return session
	}

	usage := a.window.GetTokenUsage(sessionID)
	session.Message(response, models.TimingPayload{
		TotalMS:     time.Since(start).Milliseconds(),
		PlanMS:      planMS,
		ExecutionMS: execMS,
		SynthesisMS: synthMS,
	}, map[string]any{
		"total_tokens": usage.TotalTokens,
		"max_tokens":   usage.MaxTokens,
		"utilization":  usage.Utilization,
	})
	return session
}

// gateApprovals assesses every step whose tool requires approval and,
// at or above the configured risk threshold, blocks scheduling on the
// ApprovalGate. A denied or timed-out approval marks the step skipped
// so the executor's existing dependency-deadlock cascade handles its
// dependents without any executor changes.
func (a *Agent) gateApprovals(ctx context.Context, session *streaming.StreamingSession, steps []*models.ExecutionStep) {
	for _, s := range steps {
		if !a.tools.RequiresApproval(s.ToolName) {
			continue
		}

		// No assessor configured means the risk is unknown, not zero:
		// default to the maximum score so the tool blocks on the
		// approval gate rather than silently auto-approving.
		score, level, reasoning := 100, models.RiskHigh, "no risk assessor configured"
		if a.risk != nil {
			score, level, reasoning = a.risk.Assess(ctx, s.ToolName, s.Args)
		}
		if score < a.cfg.ApprovalThreshold {
			if a.metrics != nil {
				a.metrics.ApprovalOutcome("auto_approved")
			}
			continue
		}

		session.ApprovalRequired(s.ToolName, s.Args, score, level, reasoning)

		if a.approval == nil {
			s.Status = models.StepSkipped
			s.Error = ErrApprovalDenied.Error()
			if a.metrics != nil {
				a.metrics.ApprovalOutcome("denied")
			}
			continue
		}

		approvalCtx, cancel := context.WithTimeout(ctx, a.cfg.ApprovalTimeout)
		approved, err := a.approval.RequestApproval(approvalCtx, models.ApprovalRequiredPayload{
			ToolName: s.ToolName, Args: s.Args, Score: score, Level: level, Reasoning: reasoning,
		})
		cancel()

		outcome := "approved"
		if err != nil {
			outcome = "timed_out"
		} else if !approved {
			outcome = "denied"
		}
		if a.metrics != nil {
			a.metrics.ApprovalOutcome(outcome)
		}
		if outcome != "approved" {
			s.Status = models.StepSkipped
			s.Error = ErrApprovalDenied.Error()
		}
	}
}

// emitInsight runs the optional InsightEngine over a completed
// result's tool outputs. Failures and nil engines are silent no-ops.
func (a *Agent) emitInsight(ctx context.Context, session *streaming.StreamingSession, result *models.ExecutionResult) {
	if a.insight == nil {
		return
	}
	insightCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload, ok := a.insight.Generate(insightCtx, result.Results)
	if !ok || payload == nil {
		return
	}
	session.Emit(models.Event{Type: models.EventInsight, Insight: payload})
}

// synthesize builds the synthesis prompt (user message, serialized
// tool results, trailing history, and failed-tool notice) and calls
// the language model once, through the completion cache.
func (a *Agent) synthesize(ctx context.Context, sessionID string, query models.Query, result *models.ExecutionResult) (string, error) {
	if a.llm == nil {
		return "", ErrNoProvider
	}

	resultsJSON, err := json.Marshal(result.Results)
	if err != nil {
		return "", fmt.Errorf("marshal tool results: %w", err)
	}

	history := a.window.GetContextForLLM(sessionID, false)
	trailing := history
	if len(trailing) > 3 {
		trailing = trailing[len(trailing)-3:]
	}

	var sb strings.Builder
	sb.WriteString("You are responding to the user's message using the results of tools that were already run.\n")
	sb.WriteString("User message: ")
	sb.WriteString(query.Text)
	sb.WriteString("\n\nTool results (JSON): ")
	sb.Write(resultsJSON)
	if len(result.Errors) > 0 {
		sb.WriteString("\n\nThe following tools failed; acknowledge this helpfully without being asked: ")
		for name, errMsg := range result.Errors {
			fmt.Fprintf(&sb, "%s (%s); ", name, errMsg)
		}
	}
	if len(trailing) > 0 {
		sb.WriteString("\n\nRecent conversation:\n")
		for _, m := range trailing {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
	}
	sb.WriteString("\nRespond concisely and naturally. Do not mention tool names.")
	prompt := sb.String()

	producer := func(ctx context.Context) ([]byte, error) {
		text, err := a.llm.Complete(ctx, prompt, a.cfg.SynthesisTemperature, a.cfg.SynthesisMaxTokens, 1.0)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	}

	if a.completions == nil {
		out, err := producer(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSynthesis, err)
		}
		return string(out), nil
	}

	key := cache.CompletionKey(prompt, a.cfg.AgentID, a.cfg.SynthesisTemperature, 1.0, a.cfg.SynthesisMaxTokens, 0, 0)
	out, err := a.completions.GetOrComputeCompletion(ctx, prompt, key, a.cfg.SynthesisTemperature, producer)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	return string(out), nil
}

// runFallback is step 4's no-tools path: a single LLM call
// synthesizing directly from conversation history.
func (a *Agent) runFallback(ctx context.Context, session *streaming.StreamingSession, sessionID string, query models.Query, start time.Time, planMS int64) {
	session.AgentStatus("executing")
	if a.llm == nil {
		session.Error(ErrNoProvider.Error(), "no_provider", "")
		return
	}

	history := a.window.GetContextForLLM(sessionID, false)
	var sb strings.Builder
	sb.WriteString("Continue this conversation naturally, answering the user's latest message.\n\n")
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}

	response, err := a.llm.Complete(ctx, sb.String(), a.cfg.FallbackTemperature, a.cfg.FallbackMaxTokens, 1.0)
	if err != nil {
		session.Error(fmt.Sprintf("%v: %v", ErrSynthesis, err), "synthesis_error", "")
		return
	}

	if _, err := a.window.AddMessage(ctx, sessionID, models.RoleAssistant, response, nil); err != nil {
		session.Error(fmt.Sprintf("failed to record response: %v", err), "context_error", "")
		return
	}

	session.AgentStatus("completed")
	usage := a.window.GetTokenUsage(sessionID)
	session.Message(response, models.TimingPayload{
		TotalMS: time.Since(start).Milliseconds(),
		PlanMS:  planMS,
	}, map[string]any{
		"total_tokens": usage.TotalTokens,
		"max_tokens":   usage.MaxTokens,
		"utilization":  usage.Utilization,
	})
}

// cachingLookup wraps the tool registry with the tool-result cache so
// the executor transparently gets cached tool invocations, per §4.5's
// "optionally wrapping each tool handle with the tool cache."
func (a *Agent) cachingLookup() executor.ToolLookup {
	if a.toolCache == nil {
		return a.tools
	}
	return cachedLookup{tools: a.tools, cache: a.toolCache}
}

type cachedLookup struct {
	tools *ToolRegistry
	cache *cache.ToolCache
}

func (c cachedLookup) Lookup(name string) (models.ToolHandle, bool) {
	handle, ok := c.tools.Lookup(name)
	if !ok {
		return nil, false
	}
	return func(ctx context.Context, args map[string]any) (any, error) {
		key := cache.ToolKey(name, args)
		raw, err := c.cache.GetOrComputeTool(ctx, name, key, func(ctx context.Context) ([]byte, error) {
			value, err := handle(ctx, args)
			if err != nil {
				return nil, err
			}
			return json.Marshal(value)
		})
		if err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, err
		}
		return value, nil
	}, true
}

// sessionSink adapts a StreamingSession into executor.EventSink: the
// executor's tool_execution events flow straight onto the request's
// event stream, already stamped with session/agent identity and
// sequence by StreamingSession.Emit.
type sessionSink struct {
	session *streaming.StreamingSession
}

func (s sessionSink) Emit(e models.Event) { s.session.Emit(e) }

// CompleteJSON is the "complete_json" convenience from spec.md §6: it
// strips Markdown code fences from the model's response and parses the
// remainder as a JSON object, failing with a parse error when invalid.
func CompleteJSON(ctx context.Context, llm LanguageModel, prompt string, temperature float64, maxTokens int) (map[string]any, error) {
	text, err := llm.Complete(ctx, prompt, temperature, maxTokens, 1.0)
	if err != nil {
		return nil, err
	}
	text = stripMarkdownFence(text)

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("complete_json: invalid JSON in model response: %w", err)
	}
	return out, nil
}

var fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")

func stripMarkdownFence(text string) string {
	text = strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}
