package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCacheLookupsCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "test_cache_lookups_total",
			Help: "Test cache lookup counter",
		},
		[]string{"tier", "outcome"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("tool", "hit").Inc()
	counter.WithLabelValues("tool", "hit").Inc()
	counter.WithLabelValues("plan", "miss").Inc()

	if count := testutil.CollectAndCount(counter); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("tool", "hit")); got != 2 {
		t.Errorf("expected tool/hit=2, got %v", got)
	}
}

func TestMetricsHelpersDoNotPanic(t *testing.T) {
	m := &Metrics{
		CacheLookups:                prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t1"}, []string{"tier", "outcome"}),
		CacheBackgroundRefreshes:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t2"}, []string{"tier", "status"}),
		PlannerResolutions:          prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t3"}, []string{"tier"}),
		PlannerLatency:              prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "t4"}, []string{"tier"}),
		ExecutorStepTotal:           prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t5"}, []string{"tool_name", "status"}),
		ExecutorStepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "t6"}, []string{"tool_name"}),
		ExecutorStepRetries:         prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t7"}, []string{"tool_name"}),
		DecisionCircuitOpen:         prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t8"}, []string{"session_id"}),
		DecisionLoopsPrevented:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t9"}, []string{"session_id"}),
		ContextCompactions:          prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t10"}, []string{"method"}),
		ContextTokensSaved:          prometheus.NewCounter(prometheus.CounterOpts{Name: "t11"}),
		ActiveSessions:              prometheus.NewGauge(prometheus.GaugeOpts{Name: "t12"}),
		ApprovalsRequested:          prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t13"}, []string{"outcome"}),
	}

	m.CacheLookup("tool", "hit")
	m.CacheBackgroundRefresh("completion", "success")
	m.PlannerResolution("l1_pattern", 0.0001)
	m.ExecutorStep("search_emails", "completed", 0.2)
	m.ExecutorRetry("search_emails")
	m.DecisionCircuitTrip("session-1")
	m.DecisionLoopPrevented("session-1")
	m.ContextCompaction("llm", 500)
	m.SessionOpened()
	m.SessionClosed()
	m.ApprovalOutcome("auto_approved")

	if got := testutil.ToFloat64(m.ContextTokensSaved); got != 500 {
		t.Errorf("expected 500 tokens saved, got %v", got)
	}
}
