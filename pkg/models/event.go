package models

import "time"

// Event is the unified streaming event model. A single discriminated
// struct with a Type tag and optional per-kind payload pointers,
// mirroring the versioned-event pattern used elsewhere in this
// codebase for agent telemetry. Exactly one payload should be
// non-nil for a given Type.
type Event struct {
	Type      EventType `json:"type"`
	Time      time.Time `json:"time"`
	Sequence  uint64    `json:"seq"`
	SessionID string    `json:"session_id"`
	AgentID   string    `json:"agent_id"`

	Reasoning        *ReasoningPayload        `json:"reasoning,omitempty"`
	Plan             *PlanPayload             `json:"plan,omitempty"`
	ToolExecution    *ToolExecutionPayload    `json:"tool_execution,omitempty"`
	Progress         *ProgressPayload         `json:"progress,omitempty"`
	AgentStatus      *AgentStatusPayload      `json:"agent_status,omitempty"`
	Data             *DataPayload             `json:"data,omitempty"`
	Insight          *InsightPayload          `json:"insight,omitempty"`
	Decision         *DecisionPayload         `json:"decision,omitempty"`
	Thought          *ThoughtPayload          `json:"thought,omitempty"`
	ApprovalRequired *ApprovalRequiredPayload `json:"approval_required,omitempty"`
	Message          *MessagePayload          `json:"message,omitempty"`
	Error            *EventErrorPayload       `json:"error,omitempty"`
}

// EventType discriminates the Event taxonomy.
type EventType string

const (
	EventReasoning        EventType = "reasoning"
	EventPlan             EventType = "plan"
	EventToolExecution    EventType = "tool_execution"
	EventProgress         EventType = "progress"
	EventAgentStatus      EventType = "agent_status"
	EventData             EventType = "data"
	EventInsight          EventType = "insight"
	EventDecision         EventType = "decision"
	EventThought          EventType = "thought"
	EventApprovalRequired EventType = "approval_required"
	EventMessage          EventType = "message"
	EventError            EventType = "error"
)

// ReasoningPayload is free-form step commentary.
type ReasoningPayload struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence,omitempty"`
	Chain      []string `json:"chain,omitempty"`
}

// PlanPayload is emitted once per request, describing the chosen ToolPlan.
type PlanPayload struct {
	Steps          []string   `json:"steps"`
	ParallelGroups [][]string `json:"parallel_groups"`
	Strategy       string     `json:"strategy"`
}

// ToolExecStatus is the status carried by a ToolExecutionPayload.
type ToolExecStatus string

const (
	ToolExecStarted    ToolExecStatus = "started"
	ToolExecInProgress ToolExecStatus = "in_progress"
	ToolExecCompleted  ToolExecStatus = "completed"
	ToolExecFailed     ToolExecStatus = "failed"
)

// ToolExecutionPayload reports the lifecycle of a single tool call.
type ToolExecutionPayload struct {
	ToolName        string         `json:"tool_name"`
	Status          ToolExecStatus `json:"status"`
	Args            map[string]any `json:"args,omitempty"`
	Result          any            `json:"result,omitempty"`
	ProgressPercent float64        `json:"progress_percent,omitempty"`
	Duration        time.Duration  `json:"duration,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// ProgressPayload summarizes overall request progress.
type ProgressPayload struct {
	CurrentStep     int           `json:"current_step"`
	TotalSteps      int           `json:"total_steps"`
	PercentComplete float64       `json:"percent_complete"`
	CurrentAction   string        `json:"current_action"`
	ETA             time.Duration `json:"eta"`
}

// AgentStatusPayload reports a top-level lifecycle transition.
type AgentStatusPayload struct {
	Status string `json:"status"` // initializing, executing, completed, completed_with_errors
}

// DataPayload is a free-form optional commentary payload.
type DataPayload struct {
	Data any `json:"data"`
}

// InsightPayload carries a cross-domain observation from insight.Engine.
type InsightPayload struct {
	Summary    string         `json:"summary"`
	Confidence float64        `json:"confidence,omitempty"`
	Sources    []string       `json:"sources,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// DecisionPayload mirrors a recorded Decision for observability.
type DecisionPayload struct {
	Type    DecisionType `json:"decision_type"`
	Content string       `json:"content"`
}

// ThoughtPayload is free-text internal commentary, distinct from
// Reasoning in that it carries no confidence/chain structure.
type ThoughtPayload struct {
	Text string `json:"text"`
}

// RiskLevel buckets a risk.Assessment score for display.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
)

// ApprovalRequiredPayload carries a pending action proposal and its
// assessed risk, blocking scheduling until an ApprovalGate responds.
type ApprovalRequiredPayload struct {
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args,omitempty"`
	Score     int            `json:"score"`
	Level     RiskLevel      `json:"level"`
	Reasoning string         `json:"reasoning"`
}

// MessagePayload is the final assistant response.
type MessagePayload struct {
	Content      string         `json:"content"`
	Timing       TimingPayload  `json:"timing"`
	ContextUsage map[string]any `json:"context_usage,omitempty"`
}

// TimingPayload breaks down a request's wall-clock cost.
type TimingPayload struct {
	TotalMS     int64 `json:"total"`
	PlanMS      int64 `json:"plan"`
	ExecutionMS int64 `json:"execution"`
	SynthesisMS int64 `json:"synthesis"`
}

// EventErrorPayload standardizes recoverable/unrecoverable failures.
type EventErrorPayload struct {
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Recovery string `json:"recovery,omitempty"`
}
