package telemetry

import (
	"testing"

	"github.com/nexuscore/orcruntime/pkg/models"
)

func TestChanSinkForwardsEvent(t *testing.T) {
	ch := make(chan models.Event, 1)
	sink := NewChanSink(ch)
	sink.Emit(models.Event{Type: models.EventMessage})

	select {
	case e := <-ch:
		if e.Type != models.EventMessage {
			t.Fatalf("unexpected event type: %v", e.Type)
		}
	default:
		t.Fatal("expected the event to be forwarded")
	}
}

func TestChanSinkDropsWhenFull(t *testing.T) {
	ch := make(chan models.Event, 1)
	sink := NewChanSink(ch)
	sink.Emit(models.Event{Type: models.EventMessage})
	sink.Emit(models.Event{Type: models.EventError}) // should drop, not block

	e := <-ch
	if e.Type != models.EventMessage {
		t.Fatalf("expected only the first event to be buffered, got %v", e.Type)
	}
}

func TestMultiSinkFansOutAndSkipsNil(t *testing.T) {
	var a, b []models.Event
	s1 := NewCallbackSink(func(e models.Event) { a = append(a, e) })
	s2 := NewCallbackSink(func(e models.Event) { b = append(b, e) })
	multi := NewMultiSink(s1, nil, s2)

	multi.Emit(models.Event{Type: models.EventPlan})
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected both sinks to receive the event, got a=%d b=%d", len(a), len(b))
	}
}

func TestNopSinkDiscardsSilently(t *testing.T) {
	NopSink{}.Emit(models.Event{Type: models.EventMessage}) // must not panic
}

func TestPrometheusSinkForwardsToInner(t *testing.T) {
	var got models.Event
	inner := NewCallbackSink(func(e models.Event) { got = e })
	sink := NewPrometheusSink(inner)

	sink.Emit(models.Event{Type: models.EventToolExecution})
	if got.Type != models.EventToolExecution {
		t.Fatalf("expected the inner sink to receive the event, got %v", got.Type)
	}
}

func TestPrometheusSinkWithNilInnerDoesNotPanic(t *testing.T) {
	sink := NewPrometheusSink(nil)
	sink.Emit(models.Event{Type: models.EventMessage}) // must not panic
}
