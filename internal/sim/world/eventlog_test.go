package world

import (
	"testing"

	"lastoasis.ai/internal/protocol"
)

func TestEventLog_TrimsAfterFanOut(t *testing.T) {
	clock := newManualClock()
	cfg := smallConfig(clock)
	cfg.MaxEvents = 3
	w := newWorld(t, cfg)

	var hooked []string
	w.AddEventHook(func(ev protocol.Event) { hooked = append(hooked, ev.Type) })
	sub, _, err := w.Subscribe(bg, 16)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	a := mustRegister(t, w, "chatty")
	for i := 0; i < 4; i++ {
		act(t, w, a, Wait{})
	}

	if got := w.events.Len(); got != 3 {
		t.Fatalf("retained=%d want 3", got)
	}
	for _, ev := range w.events.Events() {
		if ev.Type != protocol.EventAgentWaited {
			t.Fatalf("oldest entries not trimmed: %+v", ev)
		}
	}
	if len(hooked) != 5 || hooked[0] != protocol.EventAgentEntered {
		t.Fatalf("hook saw %v", hooked)
	}
	if len(sub.C) != 5 {
		t.Fatalf("subscriber buffered %d events want 5", len(sub.C))
	}
	first := <-sub.C
	if first.Type != protocol.EventAgentEntered || first.ID == "" || first.TS.IsZero() {
		t.Fatalf("first delivered event=%+v", first)
	}
}

func TestEventLog_SlowSubscriberIsDropped(t *testing.T) {
	w := newWorld(t, smallConfig(newManualClock()))
	slow, _, err := w.Subscribe(bg, 1)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	fast, _, err := w.Subscribe(bg, 64)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	a := mustRegister(t, w, "noisy")
	act(t, w, a, Wait{})
	act(t, w, a, Wait{})

	if _, ok := <-slow.C; !ok {
		t.Fatalf("slow subscriber lost its buffered event")
	}
	if _, ok := <-slow.C; ok {
		t.Fatalf("slow subscriber channel should be closed")
	}
	if len(fast.C) != 3 {
		t.Fatalf("fast subscriber got %d events want 3", len(fast.C))
	}
	if w.events.lagged != 1 || w.events.Subscribers() != 1 {
		t.Fatalf("lagged=%d subscribers=%d", w.events.lagged, w.events.Subscribers())
	}

	w.Unsubscribe(fast)
	if _, ok := <-drainAll(fast.C); ok {
		t.Fatalf("unsubscribed channel still open")
	}
	w.Unsubscribe(fast)
}

func drainAll(ch <-chan protocol.Event) <-chan protocol.Event {
	for range ch {
	}
	return ch
}

func TestEventLog_PanickingHookIsContained(t *testing.T) {
	w := newWorld(t, smallConfig(newManualClock()))
	calls := 0
	w.AddEventHook(func(protocol.Event) { panic("sink exploded") })
	w.AddEventHook(func(protocol.Event) { calls++ })

	a := mustRegister(t, w, "resilient")
	act(t, w, a, Wait{})
	if calls != 2 {
		t.Fatalf("later hook called %d times want 2", calls)
	}
	if ev := lastEvent(t, w); ev.Type != protocol.EventAgentWaited {
		t.Fatalf("last event=%+v", ev)
	}
}

type panicNotifier struct{ left int }

func (n *panicNotifier) Notify() {
	if n.left > 0 {
		n.left--
		panic("disk on fire")
	}
}

func TestApply_PanicBecomesInternalError(t *testing.T) {
	w := newWorld(t, smallConfig(newManualClock()))
	a := mustRegister(t, w, "unlucky")
	w.SetNotifier(&panicNotifier{left: 1})

	act(t, w, a, Wait{})
	requireRejected(t, w, a, protocol.ReasonInternalError)

	act(t, w, a, Wait{})
	if ev := lastEvent(t, w); ev.Type != protocol.EventAgentWaited {
		t.Fatalf("loop did not recover, last event=%+v", ev)
	}
	if m := w.Metrics(); m.Panics != 1 {
		t.Fatalf("panics=%d", m.Panics)
	}
}
