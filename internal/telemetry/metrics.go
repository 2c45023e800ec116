package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a centralized collection of Prometheus instruments for
// the orchestration core: cache behavior, planner tier resolution,
// DAG execution, decision memory, and context compaction.
//
// Usage:
//
//	metrics := telemetry.NewMetrics()
//	metrics.CacheLookup("tool", "hit")
//	defer metrics.ExecutorStep("search_emails", "completed", elapsed.Seconds())
type Metrics struct {
	// CacheLookups counts Cache.GetOrCompute outcomes.
	// Labels: tier (completion|tool|plan), outcome (hit|stale|miss)
	CacheLookups *prometheus.CounterVec

	// CacheBackgroundRefreshes counts SWR background refreshes.
	// Labels: tier, status (success|error)
	CacheBackgroundRefreshes *prometheus.CounterVec

	// PlannerResolutions counts which tier resolved a query.
	// Labels: tier (l1_pattern|l2_semantic|l3_llm)
	PlannerResolutions *prometheus.CounterVec

	// PlannerLatency measures planning latency in seconds.
	// Labels: tier
	PlannerLatency *prometheus.HistogramVec

	// ExecutorStepTotal counts ExecutionStep outcomes.
	// Labels: tool_name, status (completed|failed|skipped)
	ExecutorStepTotal *prometheus.CounterVec

	// ExecutorStepDurationSeconds measures per-step execution time.
	// Labels: tool_name
	ExecutorStepDurationSeconds *prometheus.HistogramVec

	// ExecutorStepRetries counts retry attempts by tool.
	ExecutorStepRetries *prometheus.CounterVec

	// DecisionCircuitOpen counts circuit-breaker trips.
	DecisionCircuitOpen *prometheus.CounterVec

	// DecisionLoopsPrevented counts loop detections.
	DecisionLoopsPrevented *prometheus.CounterVec

	// ContextCompactions counts ContextWindowManager compactions.
	// Labels: method (llm|rule_based)
	ContextCompactions *prometheus.CounterVec

	// ContextTokensSaved sums tokens reclaimed by compaction.
	ContextTokensSaved prometheus.Counter

	// ActiveSessions tracks concurrently open conversation sessions.
	ActiveSessions prometheus.Gauge

	// ApprovalsRequested counts approval_required gate invocations.
	// Labels: outcome (auto_approved|approved|denied|timed_out)
	ApprovalsRequested *prometheus.CounterVec
}

// NewMetrics registers all instruments with Prometheus's default
// registry. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		CacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcruntime_cache_lookups_total",
				Help: "Cache lookups by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		CacheBackgroundRefreshes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcruntime_cache_background_refreshes_total",
				Help: "Stale-while-revalidate background refreshes by tier and status",
			},
			[]string{"tier", "status"},
		),
		PlannerResolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcruntime_planner_resolutions_total",
				Help: "Query resolutions by planning tier",
			},
			[]string{"tier"},
		),
		PlannerLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orcruntime_planner_latency_seconds",
				Help:    "Planning latency by tier",
				Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"tier"},
		),
		ExecutorStepTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcruntime_executor_steps_total",
				Help: "ExecutionStep outcomes by tool and status",
			},
			[]string{"tool_name", "status"},
		),
		ExecutorStepDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orcruntime_executor_step_duration_seconds",
				Help:    "ExecutionStep duration by tool",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		ExecutorStepRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcruntime_executor_step_retries_total",
				Help: "ExecutionStep retry attempts by tool",
			},
			[]string{"tool_name"},
		),
		DecisionCircuitOpen: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcruntime_decision_circuit_open_total",
				Help: "Circuit breaker trips",
			},
			[]string{"session_id"},
		),
		DecisionLoopsPrevented: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcruntime_decision_loops_prevented_total",
				Help: "Loop patterns detected and prevented",
			},
			[]string{"session_id"},
		),
		ContextCompactions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcruntime_context_compactions_total",
				Help: "ContextWindowManager compactions by summarization method",
			},
			[]string{"method"},
		),
		ContextTokensSaved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "orcruntime_context_tokens_saved_total",
				Help: "Tokens reclaimed by context compaction",
			},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "orcruntime_active_sessions",
				Help: "Currently open conversation sessions",
			},
		),
		ApprovalsRequested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orcruntime_approvals_requested_total",
				Help: "approval_required gate invocations by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// CacheLookup records a single GetOrCompute outcome.
func (m *Metrics) CacheLookup(tier, outcome string) {
	m.CacheLookups.WithLabelValues(tier, outcome).Inc()
}

// CacheBackgroundRefresh records a single SWR background refresh.
func (m *Metrics) CacheBackgroundRefresh(tier, status string) {
	m.CacheBackgroundRefreshes.WithLabelValues(tier, status).Inc()
}

// PlannerResolution records which tier resolved a query and how long it took.
func (m *Metrics) PlannerResolution(tier string, durationSeconds float64) {
	m.PlannerResolutions.WithLabelValues(tier).Inc()
	m.PlannerLatency.WithLabelValues(tier).Observe(durationSeconds)
}

// ExecutorStep records a single ExecutionStep's terminal outcome and duration.
func (m *Metrics) ExecutorStep(toolName, status string, durationSeconds float64) {
	m.ExecutorStepTotal.WithLabelValues(toolName, status).Inc()
	m.ExecutorStepDurationSeconds.WithLabelValues(toolName).Observe(durationSeconds)
}

// ExecutorRetry records one retry attempt for toolName.
func (m *Metrics) ExecutorRetry(toolName string) {
	m.ExecutorStepRetries.WithLabelValues(toolName).Inc()
}

// DecisionCircuitTrip records a circuit breaker trip for sessionID.
func (m *Metrics) DecisionCircuitTrip(sessionID string) {
	m.DecisionCircuitOpen.WithLabelValues(sessionID).Inc()
}

// DecisionLoopPrevented records a detected loop pattern for sessionID.
func (m *Metrics) DecisionLoopPrevented(sessionID string) {
	m.DecisionLoopsPrevented.WithLabelValues(sessionID).Inc()
}

// ContextCompaction records a single compaction and the tokens it saved.
func (m *Metrics) ContextCompaction(method string, tokensSaved int) {
	m.ContextCompactions.WithLabelValues(method).Inc()
	if tokensSaved > 0 {
		m.ContextTokensSaved.Add(float64(tokensSaved))
	}
}

// SessionOpened/SessionClosed track ActiveSessions.
func (m *Metrics) SessionOpened() { m.ActiveSessions.Inc() }
func (m *Metrics) SessionClosed() { m.ActiveSessions.Dec() }

// ApprovalOutcome records a single approval gate resolution.
func (m *Metrics) ApprovalOutcome(outcome string) {
	m.ApprovalsRequested.WithLabelValues(outcome).Inc()
}
