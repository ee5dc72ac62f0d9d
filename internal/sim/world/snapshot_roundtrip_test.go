package world

import (
	"path/filepath"
	"reflect"
	"testing"

	"lastoasis.ai/internal/persistence/snapshot"
	"lastoasis.ai/internal/sim/tuning"
)

func busyWorld(t *testing.T) (*World, *manualClock) {
	t.Helper()
	clock := newManualClock()
	w := newWorld(t, smallConfig(clock))
	a := mustRegister(t, w, "a")
	b := mustRegister(t, w, "b")
	c := mustRegister(t, w, "c")
	act(t, w, a, Collect{Resource: tuning.BasicSupplies})
	act(t, w, a, Move{TargetZone: 2})
	act(t, w, b, Move{TargetZone: 2})
	act(t, w, a, Collect{Resource: tuning.Crystals})
	act(t, w, a, OfferTrade{TargetAgent: b, Item: tuning.Crystals, Quantity: 1})
	act(t, w, b, AcceptTrade{TradeID: lastEvent(t, w).TradeID})
	act(t, w, a, OfferTrade{TargetAgent: b, Item: tuning.BasicSupplies, Quantity: 5})
	act(t, w, c, Wait{})
	clock.Advance(testInterval)
	tick(t, w)
	return w, clock
}

func TestSnapshot_RoundTripThroughDisk(t *testing.T) {
	w, clock := busyWorld(t)
	want := w.ExportSnapshot()
	if want.Status != "ACTIVE" || want.Zones[0].Alive || len(want.Trades) != 2 {
		t.Fatalf("unexpected fixture: %+v", want)
	}

	path := filepath.Join(t.TempDir(), "world.json")
	if err := snapshot.WriteSnapshot(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	read, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	w2 := newWorld(t, smallConfig(clock))
	if err := w2.ImportSnapshot(read); err != nil {
		t.Fatalf("import: %v", err)
	}
	got := w2.ExportSnapshot()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got=%+v\nwant=%+v", got, want)
	}

	// The restored world keeps working from the restored state.
	for id, a := range read.Agents {
		if !a.Alive {
			continue
		}
		act(t, w2, id, Wait{})
		if ev := lastEvent(t, w2); ev.AgentID != id {
			t.Fatalf("restored agent %s could not act", id)
		}
	}
	if got, ok, _ := w2.AgentByToken(bg, read.Agents[lastAgentID(read)].Token); !ok || got.ID == "" {
		t.Fatalf("credentials not restored")
	}
}

func lastAgentID(s snapshot.WorldV1) string {
	var out string
	for id := range s.Agents {
		if id > out {
			out = id
		}
	}
	return out
}

func TestImportSnapshot_RejectsBrokenDocuments(t *testing.T) {
	w, _ := busyWorld(t)
	good := w.ExportSnapshot()

	cases := []struct {
		name   string
		mutate func(*snapshot.WorldV1)
	}{
		{"version", func(s *snapshot.WorldV1) { s.Version = 99 }},
		{"status", func(s *snapshot.WorldV1) { s.Status = "PAUSED" }},
		{"no zones", func(s *snapshot.WorldV1) { s.Zones = nil }},
		{"gapped zones", func(s *snapshot.WorldV1) { s.Zones = s.Zones[1:] }},
		{"interval", func(s *snapshot.WorldV1) { s.Config.DecayIntervalMs = 0 }},
		{"negative stock", func(s *snapshot.WorldV1) { s.Zones[1].Resources = map[string]int{"CRYSTALS": -1} }},
		{"no gate", func(s *snapshot.WorldV1) { s.Config.GateResources = nil }},
		{"one gate resource", func(s *snapshot.WorldV1) { s.Config.GateResources = []string{"CRYSTALS"} }},
		{"gate not a kind", func(s *snapshot.WorldV1) { s.Config.GateResources = []string{"CRYSTALS", "GOLD"} }},
	}
	for _, tc := range cases {
		doc := w.ExportSnapshot()
		tc.mutate(&doc)
		fresh := newWorld(t, smallConfig(newManualClock()))
		if err := fresh.ImportSnapshot(doc); err == nil {
			t.Fatalf("%s: expected import error", tc.name)
		}
	}
	if err := newWorld(t, smallConfig(newManualClock())).ImportSnapshot(good); err != nil {
		t.Fatalf("good document rejected: %v", err)
	}
}

func TestImportSnapshot_GatelessDocumentCannotOpenTheTerminalZone(t *testing.T) {
	w, _ := busyWorld(t)
	doc := w.ExportSnapshot()
	doc.Config.GateResources = nil

	fresh := newWorld(t, smallConfig(newManualClock()))
	if err := fresh.ImportSnapshot(doc); err == nil {
		t.Fatalf("gateless document imported")
	}
	if len(fresh.store.gate) != 2 {
		t.Fatalf("failed import replaced the gate: %v", fresh.store.gate)
	}
}

func TestImportSnapshot_KeepsPersistedEventCap(t *testing.T) {
	w, clock := busyWorld(t)
	want := w.ExportSnapshot()
	if len(want.Events) <= 3 {
		t.Fatalf("fixture has only %d events", len(want.Events))
	}

	cfg := smallConfig(clock)
	cfg.MaxEvents = 3
	w2 := newWorld(t, cfg)
	if err := w2.ImportSnapshot(want); err != nil {
		t.Fatalf("import: %v", err)
	}
	got := w2.ExportSnapshot()
	if got.Config.MaxEvents != want.Config.MaxEvents {
		t.Fatalf("max events=%d want %d", got.Config.MaxEvents, want.Config.MaxEvents)
	}
	if !reflect.DeepEqual(got.Events, want.Events) {
		t.Fatalf("events trimmed on import: got %d want %d", len(got.Events), len(want.Events))
	}
}

func TestLoadOrInit_UsesWorldDefaults(t *testing.T) {
	clock := newManualClock()
	w := newWorld(t, referenceConfig(clock))
	path := filepath.Join(t.TempDir(), "world.json")

	snap, created, err := snapshot.LoadOrInit(path, w.ExportSnapshot)
	if err != nil || !created {
		t.Fatalf("created=%v err=%v", created, err)
	}
	if snap.Status != "ACTIVE" || len(snap.Agents) != 0 || len(snap.Zones) != 7 {
		t.Fatalf("default doc=%+v", snap)
	}
	if !snap.NextDecayAt.Equal(clock.Now().Add(testInterval)) {
		t.Fatalf("next decay=%v", snap.NextDecayAt)
	}
}
