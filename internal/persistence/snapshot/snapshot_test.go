package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"lastoasis.ai/internal/protocol"
)

func sampleWorld() WorldV1 {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	decayed := t0.Add(2 * time.Minute)
	return WorldV1{
		Version:   Version,
		CreatedAt: t0,
		UpdatedAt: decayed,
		Status:    "ACTIVE",
		Config: ConfigV1{
			DecayIntervalMs: 120000,
			MaxEvents:       500,
			TerminalZoneID:  3,
			GateResources:   []string{"CRYSTALS", "FOOD_WATER"},
			ResourceKinds:   []string{"CRYSTALS", "FOOD_WATER"},
		},
		Zones: []ZoneV1{
			{ID: 1, Name: "Wasteland", DecayOrder: 1, Alive: false, DecayedAt: &decayed, Resources: map[string]int{}},
			{ID: 2, Name: "Caves", DecayOrder: 2, Alive: true, Resources: map[string]int{"CRYSTALS": 4}},
			{ID: 3, Name: "Oasis", DecayOrder: 3, Alive: true, Resources: map[string]int{"CRYSTALS": 1, "FOOD_WATER": 1}},
		},
		Agents: map[string]AgentV1{
			"a1": {ID: "a1", Name: "scout", Token: "tok", ZoneID: 2, Alive: true, Inventory: map[string]int{"CRYSTALS": 2}, CreatedAt: t0, UpdatedAt: t0},
			"a2": {ID: "a2", Name: "late", Token: "tok2", ZoneID: 1, Alive: false, EliminatedAt: &decayed, Inventory: map[string]int{}, CreatedAt: t0, UpdatedAt: decayed},
		},
		Trades: map[string]TradeV1{
			"t1": {ID: "t1", FromAgentID: "a1", ToAgentID: "a2", Item: "CRYSTALS", Quantity: 1, Status: "CANCELLED", Reason: "source_unavailable", CreatedAt: t0, UpdatedAt: decayed},
		},
		Events: []protocol.Event{
			{ID: "e1", TS: t0, Type: protocol.EventAgentEntered, AgentID: "a1", Name: "scout", ZoneID: 1},
			{ID: "e2", TS: decayed, Type: protocol.EventZoneDecayed, ZoneID: 1, Name: "Wasteland"},
		},
		NextDecayAt: decayed.Add(2 * time.Minute),
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "world.json")
	want := sampleWorld()
	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got=%+v\nwant=%+v", got, want)
	}
	if got.AliveAgents() != 1 || got.AliveZones() != 2 {
		t.Fatalf("alive counts: agents=%d zones=%d", got.AliveAgents(), got.AliveZones())
	}
}

func TestReadSnapshot_RejectsForeignDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	if err := os.WriteFile(path, []byte(`{"hello":"world"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected error for non-world document")
	}
}

func TestLoadOrInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	calls := 0
	makeDefault := func() WorldV1 {
		calls++
		return sampleWorld()
	}

	snap, created, err := LoadOrInit(path, makeDefault)
	if err != nil || !created {
		t.Fatalf("first load: created=%v err=%v", created, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default not persisted: %v", err)
	}

	again, created, err := LoadOrInit(path, makeDefault)
	if err != nil || created {
		t.Fatalf("second load: created=%v err=%v", created, err)
	}
	if calls != 1 {
		t.Fatalf("default built %d times", calls)
	}
	if !reflect.DeepEqual(snap, again) {
		t.Fatalf("reloaded document differs")
	}
}

func TestLoadOrInit_PropagatesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, created, err := LoadOrInit(path, sampleWorld)
	if err == nil || created {
		t.Fatalf("expected decode error, created=%v err=%v", created, err)
	}
}

func TestWriter_CoalescesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	var pulls atomic.Int32
	src := func(context.Context) (WorldV1, error) {
		pulls.Add(1)
		return sampleWorld(), nil
	}
	w := NewWriter(path, 50*time.Millisecond, src, nil)
	written := make(chan string, 4)
	w.OnWritten(func(p string, _ WorldV1) { written <- p })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	for i := 0; i < 20; i++ {
		w.Notify()
	}

	select {
	case p := <-written:
		if p != path {
			t.Fatalf("hook path=%q", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot written")
	}
	w.Close()

	if n := pulls.Load(); n < 1 || n > 2 {
		t.Fatalf("expected bursts to coalesce, source pulled %d times", n)
	}
	st := w.Stats()
	if st.Notified != 20 || st.Written == 0 || st.Failed != 0 {
		t.Fatalf("stats=%+v", st)
	}
	if _, err := ReadSnapshot(path); err != nil {
		t.Fatalf("read back: %v", err)
	}
}

func TestWriter_SourceFailureIsCounted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	w := NewWriter(path, 0, func(context.Context) (WorldV1, error) {
		return WorldV1{}, errors.New("loop stopped")
	}, nil)
	if w.WriteNow(context.Background()) {
		t.Fatalf("expected failed write")
	}
	if st := w.Stats(); st.Failed != 1 || st.Written != 0 {
		t.Fatalf("stats=%+v", st)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("nothing should have been written: %v", err)
	}
}

func TestWriter_FlushesPendingOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	w := NewWriter(path, time.Hour, func(context.Context) (WorldV1, error) {
		return sampleWorld(), nil
	}, nil)
	w.Start(context.Background())
	w.Notify()
	w.Close()
	if _, err := ReadSnapshot(path); err != nil {
		t.Fatalf("pending write not flushed: %v", err)
	}
}
