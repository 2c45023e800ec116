// Package streaming implements StreamingSession and EventBus: a
// per-session, append-only log of structured events fanned out to
// zero or more subscribers (typically a websocket room keyed by
// session id) and buffered in memory for replay.
package streaming

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexuscore/orcruntime/pkg/models"
)

// subscriberBuffer is the default channel depth for a subscription.
// A subscriber slower than this is dropped rather than allowed to
// block the emitter.
const subscriberBuffer = 64

// EventBus fans out events to per-session subscribers. The zero value
// is not usable; construct with NewEventBus. Safe for concurrent use.
type EventBus struct {
	mu   sync.RWMutex
	subs map[string][]*subscriber
}

type subscriber struct {
	ch     chan models.Event
	closed atomic.Bool
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string][]*subscriber)}
}

// Subscribe registers a new subscriber for sessionID and returns a
// receive-only channel of its events plus an unsubscribe func. The
// channel is closed when unsubscribe is called or when the bus drops
// the subscriber for falling behind.
func (b *EventBus) Subscribe(sessionID string) (<-chan models.Event, func()) {
	sub := &subscriber{ch: make(chan models.Event, subscriberBuffer)}

	b.mu.Lock()
	b.subs[sessionID] = append(b.subs[sessionID], sub)
	b.mu.Unlock()

	unsubscribe := func() { b.remove(sessionID, sub) }
	return sub.ch, unsubscribe
}

// Publish delivers event to every current subscriber of sessionID.
// A subscriber whose buffer is full is dropped: broadcast failures
// must never block or fail the emitter.
func (b *EventBus) Publish(sessionID string, event models.Event) {
	b.mu.RLock()
	subs := append([]*subscriber(nil), b.subs[sessionID]...)
	b.mu.RUnlock()

	var dead []*subscriber
	for _, sub := range subs {
		select {
		case sub.ch <- event:
		default:
			dead = append(dead, sub)
		}
	}
	for _, sub := range dead {
		b.remove(sessionID, sub)
	}
}

func (b *EventBus) remove(sessionID string, sub *subscriber) {
	if !sub.closed.CompareAndSwap(false, true) {
		return
	}
	close(sub.ch)

	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[sessionID]
	for i, s := range subs {
		if s == sub {
			b.subs[sessionID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
}

// SubscriberCount reports how many live subscribers sessionID has,
// for tests and diagnostics.
func (b *EventBus) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

// StreamingSession is a single agent run's event log: it stamps every
// event with session/agent identity and a monotonic sequence number,
// appends it to an in-memory replay buffer, and publishes it to the
// bus. Events from one session preserve emission order; order across
// sessions is undefined.
type StreamingSession struct {
	sessionID string
	agentID   string
	bus       *EventBus
	startTime time.Time

	sequence atomic.Uint64

	mu     sync.Mutex
	buffer []models.Event
}

// NewSession starts a streaming session. bus may be nil, in which
// case events are still buffered for replay but never fanned out.
func NewSession(sessionID, agentID string, bus *EventBus) *StreamingSession {
	return &StreamingSession{
		sessionID: sessionID,
		agentID:   agentID,
		bus:       bus,
		startTime: time.Now(),
	}
}

// Emit stamps event with this session's identity, sequence, and
// timestamp, appends it to the replay buffer, and publishes it to the
// bus (a no-op if no bus was configured). Never blocks.
func (s *StreamingSession) Emit(event models.Event) models.Event {
	event.SessionID = s.sessionID
	event.AgentID = s.agentID
	event.Sequence = s.sequence.Add(1)
	event.Time = time.Now()

	s.mu.Lock()
	s.buffer = append(s.buffer, event)
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(s.sessionID, event)
	}
	return event
}

// Reasoning emits an EventReasoning.
func (s *StreamingSession) Reasoning(text string, confidence float64, chain []string) models.Event {
	return s.Emit(models.Event{Type: models.EventReasoning, Reasoning: &models.ReasoningPayload{
		Text: text, Confidence: confidence, Chain: chain,
	}})
}

// Plan emits an EventPlan describing the chosen ToolPlan.
func (s *StreamingSession) Plan(plan models.ToolPlan, strategy string) models.Event {
	return s.Emit(models.Event{Type: models.EventPlan, Plan: &models.PlanPayload{
		Steps: plan.Tools, ParallelGroups: plan.ParallelGroups, Strategy: strategy,
	}})
}

// ToolStarted emits a tool_execution event with status started.
func (s *StreamingSession) ToolStarted(toolName string, args map[string]any) models.Event {
	return s.Emit(models.Event{Type: models.EventToolExecution, ToolExecution: &models.ToolExecutionPayload{
		ToolName: toolName, Status: models.ToolExecStarted, Args: args,
	}})
}

// ToolProgress emits a tool_execution event with status in_progress.
func (s *StreamingSession) ToolProgress(toolName string, percent float64) models.Event {
	return s.Emit(models.Event{Type: models.EventToolExecution, ToolExecution: &models.ToolExecutionPayload{
		ToolName: toolName, Status: models.ToolExecInProgress, ProgressPercent: percent,
	}})
}

// ToolCompleted emits a tool_execution event with status completed.
func (s *StreamingSession) ToolCompleted(toolName string, result any, duration time.Duration) models.Event {
	return s.Emit(models.Event{Type: models.EventToolExecution, ToolExecution: &models.ToolExecutionPayload{
		ToolName: toolName, Status: models.ToolExecCompleted, Result: result, Duration: duration,
	}})
}

// ToolFailed emits a tool_execution event with status failed.
func (s *StreamingSession) ToolFailed(toolName string, errMsg string) models.Event {
	return s.Emit(models.Event{Type: models.EventToolExecution, ToolExecution: &models.ToolExecutionPayload{
		ToolName: toolName, Status: models.ToolExecFailed, Error: errMsg,
	}})
}

// Progress emits an overall-progress event, deriving percent complete
// and an ETA from the elapsed time and step counts.
func (s *StreamingSession) Progress(currentStep, totalSteps int, action string) models.Event {
	var percent float64
	if totalSteps > 0 {
		percent = float64(currentStep) / float64(totalSteps) * 100
	}

	var eta time.Duration
	if currentStep > 0 {
		elapsed := time.Since(s.startTime)
		perStep := elapsed / time.Duration(currentStep)
		eta = perStep * time.Duration(totalSteps-currentStep)
	}

	return s.Emit(models.Event{Type: models.EventProgress, Progress: &models.ProgressPayload{
		CurrentStep: currentStep, TotalSteps: totalSteps,
		PercentComplete: percent, CurrentAction: action, ETA: eta,
	}})
}

// AgentStatus emits a top-level lifecycle transition.
func (s *StreamingSession) AgentStatus(status string) models.Event {
	return s.Emit(models.Event{Type: models.EventAgentStatus, AgentStatus: &models.AgentStatusPayload{Status: status}})
}

// ApprovalRequired emits an event blocking scheduling until an
// approval gate responds.
func (s *StreamingSession) ApprovalRequired(toolName string, args map[string]any, score int, level models.RiskLevel, reasoning string) models.Event {
	return s.Emit(models.Event{Type: models.EventApprovalRequired, ApprovalRequired: &models.ApprovalRequiredPayload{
		ToolName: toolName, Args: args, Score: score, Level: level, Reasoning: reasoning,
	}})
}

// Message emits the final assistant response.
func (s *StreamingSession) Message(content string, timing models.TimingPayload, contextUsage map[string]any) models.Event {
	return s.Emit(models.Event{Type: models.EventMessage, Message: &models.MessagePayload{
		Content: content, Timing: timing, ContextUsage: contextUsage,
	}})
}

// Error emits a terminal or recoverable error event.
func (s *StreamingSession) Error(message, code, recovery string) models.Event {
	return s.Emit(models.Event{Type: models.EventError, Error: &models.EventErrorPayload{
		Message: message, Code: code, Recovery: recovery,
	}})
}

// History returns a snapshot of every event emitted so far, in order.
func (s *StreamingSession) History() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, len(s.buffer))
	copy(out, s.buffer)
	return out
}

// ClearHistory discards the replay buffer without affecting live subscribers.
func (s *StreamingSession) ClearHistory() {
	s.mu.Lock()
	s.buffer = nil
	s.mu.Unlock()
}

// Duration reports how long this session has been running.
func (s *StreamingSession) Duration() time.Duration {
	return time.Since(s.startTime)
}

// Close unsubscribes every live subscriber of this session from the
// bus, if one was configured.
func (s *StreamingSession) Close() {
	if s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	subs := append([]*subscriber(nil), s.bus.subs[s.sessionID]...)
	s.bus.mu.Unlock()
	for _, sub := range subs {
		s.bus.remove(s.sessionID, sub)
	}
}
