package streaming

import (
	"testing"
	"time"

	"github.com/nexuscore/orcruntime/pkg/models"
)

func TestEmitAssignsMonotonicSequence(t *testing.T) {
	s := NewSession("sess-1", "agent-1", nil)
	e1 := s.Reasoning("step one", 0.9, nil)
	e2 := s.Reasoning("step two", 0.9, nil)

	if e1.Sequence == 0 || e2.Sequence <= e1.Sequence {
		t.Fatalf("expected increasing sequence numbers, got %d then %d", e1.Sequence, e2.Sequence)
	}
	if e1.SessionID != "sess-1" || e1.AgentID != "agent-1" {
		t.Fatalf("expected identity stamped on event, got %+v", e1)
	}
}

func TestHistoryPreservesEmissionOrder(t *testing.T) {
	s := NewSession("sess-1", "agent-1", nil)
	s.AgentStatus("initializing")
	s.ToolStarted("get_weather", nil)
	s.ToolCompleted("get_weather", "sunny", 10*time.Millisecond)

	hist := s.History()
	if len(hist) != 3 {
		t.Fatalf("expected 3 events, got %d", len(hist))
	}
	if hist[0].Type != models.EventAgentStatus || hist[2].ToolExecution.Status != models.ToolExecCompleted {
		t.Fatalf("unexpected event order: %+v", hist)
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].Sequence <= hist[i-1].Sequence {
			t.Fatalf("history out of sequence order at index %d", i)
		}
	}
}

func TestClearHistoryDiscardsBuffer(t *testing.T) {
	s := NewSession("sess-1", "agent-1", nil)
	s.Message("done", models.TimingPayload{}, nil)
	s.ClearHistory()
	if len(s.History()) != 0 {
		t.Fatal("expected empty history after ClearHistory")
	}
}

func TestEventBusFansOutToAllSubscribers(t *testing.T) {
	bus := NewEventBus()
	ch1, unsub1 := bus.Subscribe("sess-1")
	ch2, unsub2 := bus.Subscribe("sess-1")
	defer unsub1()
	defer unsub2()

	s := NewSession("sess-1", "agent-1", bus)
	s.AgentStatus("executing")

	for _, ch := range []<-chan models.Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.AgentStatus == nil || e.AgentStatus.Status != "executing" {
				t.Fatalf("unexpected event: %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out delivery")
		}
	}
}

func TestEventBusDoesNotCrossSessionBoundaries(t *testing.T) {
	bus := NewEventBus()
	chOther, unsub := bus.Subscribe("sess-other")
	defer unsub()

	s := NewSession("sess-1", "agent-1", bus)
	s.AgentStatus("executing")

	select {
	case e := <-chOther:
		t.Fatalf("expected no cross-session delivery, got %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEventBusDropsSlowSubscriberWithoutBlocking(t *testing.T) {
	bus := NewEventBus()
	ch, _ := bus.Subscribe("sess-1")
	s := NewSession("sess-1", "agent-1", bus)

	// Fill the subscriber's buffer without draining it.
	for i := 0; i < subscriberBuffer+10; i++ {
		s.AgentStatus("executing")
	}

	if bus.SubscriberCount("sess-1") != 0 {
		t.Fatalf("expected the overwhelmed subscriber to be dropped, got count %d", bus.SubscriberCount("sess-1"))
	}
	// The channel must have been closed by the bus, not left dangling.
	drained := 0
	for range ch {
		drained++
	}
	if drained == 0 {
		t.Fatal("expected buffered events to remain readable after the channel closed")
	}
}

func TestUnsubscribeRemovesSubscriber(t *testing.T) {
	bus := NewEventBus()
	_, unsub := bus.Subscribe("sess-1")
	if bus.SubscriberCount("sess-1") != 1 {
		t.Fatal("expected one subscriber")
	}
	unsub()
	if bus.SubscriberCount("sess-1") != 0 {
		t.Fatal("expected subscriber removed after unsubscribe")
	}
}

func TestSessionCloseUnsubscribesAll(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe("sess-1")
	bus.Subscribe("sess-1")
	s := NewSession("sess-1", "agent-1", bus)
	s.Close()
	if bus.SubscriberCount("sess-1") != 0 {
		t.Fatal("expected Close to unsubscribe every live subscriber")
	}
}
