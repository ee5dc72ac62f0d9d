package world

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lastoasis.ai/internal/protocol"
	"lastoasis.ai/internal/sim/tuning"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func seqIDs() func() string {
	var n atomic.Uint64
	return func() string { return fmt.Sprintf("id%04d", n.Add(1)) }
}

const testInterval = 2 * time.Minute

var bg = context.Background()

func referenceConfig(clock Clock) WorldConfig {
	cfg := ConfigFromTuning(tuning.Defaults())
	cfg.DecayInterval = testInterval
	cfg.Clock = clock
	cfg.NewID = seqIDs()
	return cfg
}

// smallConfig is a three zone line: a sparse start, a stocked middle and the
// terminal zone.
func smallConfig(clock Clock) WorldConfig {
	return WorldConfig{
		DecayInterval:  testInterval,
		MaxEvents:      500,
		InboxSize:      64,
		TerminalZoneID: 3,
		GateResources:  []string{tuning.Crystals, tuning.FoodWater},
		ResourceKinds:  []string{tuning.BasicSupplies, tuning.Crystals, tuning.FoodWater},
		Zones: []ZoneConfig{
			{ID: 1, Name: "Start", Resources: map[string]int{tuning.BasicSupplies: 1}},
			{ID: 2, Name: "Middle", Resources: map[string]int{tuning.Crystals: 3, tuning.FoodWater: 3}},
			{ID: 3, Name: "Haven", Resources: map[string]int{}},
		},
		Clock: clock,
		NewID: seqIDs(),
	}
}

func newWorld(t *testing.T, cfg WorldConfig) *World {
	t.Helper()
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

func mustRegister(t *testing.T, w *World, name string) string {
	t.Helper()
	res, err := w.Register(bg, name)
	if err != nil {
		t.Fatalf("register %q: %v", name, err)
	}
	return res.AgentID
}

// act submits and applies a single agent action.
func act(t *testing.T, w *World, agentID string, a Action) {
	t.Helper()
	if err := w.Submit(agentID, a); err != nil {
		t.Fatalf("submit %s: %v", kindOf(a), err)
	}
	w.Drain()
}

func tick(t *testing.T, w *World) {
	t.Helper()
	if err := w.SubmitSystem(DecayTick{}); err != nil {
		t.Fatalf("submit decay tick: %v", err)
	}
	w.Drain()
}

func lastEvent(t *testing.T, w *World) protocol.Event {
	t.Helper()
	evs := w.events.Events()
	if len(evs) == 0 {
		t.Fatalf("no events")
	}
	return evs[len(evs)-1]
}

func eventsOfType(w *World, typ string) []protocol.Event {
	var out []protocol.Event
	for _, ev := range w.events.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func requireRejected(t *testing.T, w *World, agentID, reason string) protocol.Event {
	t.Helper()
	ev := lastEvent(t, w)
	if ev.Type != protocol.EventActionRejected || ev.AgentID != agentID || ev.Reason != reason {
		t.Fatalf("expected rejection %q for %s, got %+v", reason, agentID, ev)
	}
	return ev
}

// checkInvariants asserts the state-wide properties that must hold after
// every applied action.
func checkInvariants(t *testing.T, w *World) {
	t.Helper()
	if msg := invariantViolation(w); msg != "" {
		t.Fatal(msg)
	}
}

func invariantViolation(w *World) string {
	s := w.store
	for _, z := range s.zones {
		for k, v := range z.Resources {
			if v < 0 {
				return fmt.Sprintf("zone %d negative %s=%d", z.ID, k, v)
			}
		}
		if z.ID == s.terminalZoneID && !z.Alive {
			return "terminal zone decayed"
		}
	}
	for _, a := range s.agents {
		for k, v := range a.Inventory {
			if v < 0 {
				return fmt.Sprintf("agent %s negative %s=%d", a.ID, k, v)
			}
		}
		if a.ZoneID < 1 || a.ZoneID > len(s.zones) {
			return fmt.Sprintf("agent %s in unknown zone %d", a.ID, a.ZoneID)
		}
		if a.Alive && !s.Zone(a.ZoneID).Alive {
			return fmt.Sprintf("agent %s alive in decayed zone %d", a.ID, a.ZoneID)
		}
	}
	if s.status == StatusFinished && s.AliveNonTerminalZones() != 0 {
		return fmt.Sprintf("finished with %d eligible zones", s.AliveNonTerminalZones())
	}
	return ""
}
