package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nexuscore/orcruntime/pkg/models"
)

// EventSink receives a session's events as they're emitted. It has the
// same shape as executor.EventSink and streaming's own consumers, so
// any of these can stand in wherever one is expected without an
// import: Emit must never block and must be safe for concurrent use.
type EventSink interface {
	Emit(models.Event)
}

// ChanSink forwards every event onto a channel, dropping it instead of
// blocking when the channel is full.
type ChanSink struct {
	ch chan<- models.Event
}

// NewChanSink wraps ch, which should be buffered; an unbuffered
// channel with no concurrent reader will drop every event.
func NewChanSink(ch chan<- models.Event) *ChanSink {
	return &ChanSink{ch: ch}
}

func (s *ChanSink) Emit(e models.Event) {
	select {
	case s.ch <- e:
	default:
	}
}

// MultiSink fans an event out to every non-nil sink it wraps.
type MultiSink struct {
	sinks []EventSink
}

// NewMultiSink builds a MultiSink over sinks, silently dropping nil
// entries.
func NewMultiSink(sinks ...EventSink) *MultiSink {
	filtered := make([]EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (s *MultiSink) Emit(e models.Event) {
	for _, sink := range s.sinks {
		sink.Emit(e)
	}
}

// CallbackSink adapts a plain function into an EventSink.
type CallbackSink struct {
	fn func(models.Event)
}

// NewCallbackSink wraps fn as an EventSink. A nil fn is a no-op.
func NewCallbackSink(fn func(models.Event)) *CallbackSink {
	return &CallbackSink{fn: fn}
}

func (s *CallbackSink) Emit(e models.Event) {
	if s.fn != nil {
		s.fn(e)
	}
}

// NopSink discards every event. Useful where a sink is required but
// the caller has nowhere to send events (tests, headless batch runs).
type NopSink struct{}

func (NopSink) Emit(models.Event) {}

// PrometheusSink is an EventSink decorator: it counts events by type
// through the wrapped Metrics instrument, then forwards the event to
// an optional inner sink unchanged. Wrap any sink in this to get
// per-event-type counters for free.
type PrometheusSink struct {
	inner   EventSink
	counter *prometheus.CounterVec
}

var prometheusSinkOnce sync.Once
var prometheusSinkCounter *prometheus.CounterVec

// NewPrometheusSink builds a decorator around inner (which may be
// nil, in which case events are only counted, never forwarded). The
// underlying counter is registered once per process; a second call
// reuses it rather than panicking on Prometheus's duplicate-registration
// check, since more than one PrometheusSink may wrap different
// sessions' inner sinks concurrently.
func NewPrometheusSink(inner EventSink) *PrometheusSink {
	prometheusSinkOnce.Do(func() {
		prometheusSinkCounter = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orcruntime",
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Events emitted through a StreamingSession, by event type.",
		}, []string{"type"})
	})
	return &PrometheusSink{inner: inner, counter: prometheusSinkCounter}
}

func (s *PrometheusSink) Emit(e models.Event) {
	s.counter.WithLabelValues(string(e.Type)).Inc()
	if s.inner != nil {
		s.inner.Emit(e)
	}
}

var (
	_ EventSink = (*ChanSink)(nil)
	_ EventSink = (*MultiSink)(nil)
	_ EventSink = (*CallbackSink)(nil)
	_ EventSink = NopSink{}
	_ EventSink = (*PrometheusSink)(nil)
)
