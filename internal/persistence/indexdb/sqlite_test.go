package indexdb

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"lastoasis.ai/internal/persistence/snapshot"
	"lastoasis.ai/internal/protocol"
	"lastoasis.ai/internal/sim/tuning"
)

func finishedWorld() snapshot.WorldV1 {
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	return snapshot.WorldV1{
		Version:   snapshot.Version,
		CreatedAt: t0,
		UpdatedAt: t0,
		Status:    "FINISHED",
		Zones: []snapshot.ZoneV1{
			{ID: 1, Name: "Start", Alive: false},
			{ID: 2, Name: "Haven", Alive: true},
		},
		Agents: map[string]snapshot.AgentV1{
			"b": {ID: "b", Name: "bob", ZoneID: 1, Alive: false, Inventory: map[string]int{}},
			"a": {ID: "a", Name: "alice", ZoneID: 2, Alive: true, Inventory: map[string]int{"CRYSTALS": 1}},
		},
		NextDecayAt: t0,
	}
}

func TestSQLiteIndex_RecordsDecayEffectsAndResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("UpsertTuning: %v", err)
	}

	ts := time.Date(2026, 5, 1, 0, 2, 0, 0, time.UTC)
	idx.RecordEvent(protocol.Event{Type: protocol.EventZoneDecayed, TS: ts, ZoneID: 1, Name: "Start"})
	idx.RecordEvent(protocol.Event{Type: protocol.EventAgentEliminated, TS: ts, AgentID: "b", ZoneID: 1})
	idx.RecordEvent(protocol.Event{Type: protocol.EventAgentMoved, TS: ts, AgentID: "a"})
	idx.RecordSnapshot("/data/world.json", finishedWorld())
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	idx.RecordEvent(protocol.Event{Type: protocol.EventZoneDecayed, ZoneID: 2})

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		name      string
		decayedAt string
	)
	if err := db.QueryRow(`SELECT name,decayed_at FROM zone_decays WHERE zone_id=1`).Scan(&name, &decayedAt); err != nil {
		t.Fatalf("zone_decays: %v", err)
	}
	if name != "Start" || decayedAt != ts.Format(time.RFC3339Nano) {
		t.Fatalf("decay row name=%q at=%q", name, decayedAt)
	}

	var zone int
	if err := db.QueryRow(`SELECT zone_id FROM eliminations WHERE agent_id='b'`).Scan(&zone); err != nil || zone != 1 {
		t.Fatalf("eliminations zone=%d err=%v", zone, err)
	}

	var status string
	var alive int
	if err := db.QueryRow(`SELECT status,alive_agents FROM snapshots ORDER BY seq DESC LIMIT 1`).Scan(&status, &alive); err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if status != "FINISHED" || alive != 1 {
		t.Fatalf("snapshot row status=%q alive=%d", status, alive)
	}

	rows, err := db.Query(`SELECT agent_id,survived FROM results ORDER BY agent_id`)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	defer rows.Close()
	var got []string
	for rows.Next() {
		var id string
		var survived int
		if err := rows.Scan(&id, &survived); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, fmt.Sprintf("%s:%d", id, survived))
	}
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:0" {
		t.Fatalf("results=%v", got)
	}

	var digest string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='tuning_digest'`).Scan(&digest); err != nil || len(digest) != 64 {
		t.Fatalf("tuning digest=%q err=%v", digest, err)
	}
}

func TestSQLiteIndex_DropsWhenQueueFull(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.RecordEvent(protocol.Event{Type: protocol.EventZoneDecayed, ZoneID: 1})
	s.RecordEvent(protocol.Event{Type: protocol.EventAgentEliminated, AgentID: "x"})
	s.RecordEvent(protocol.Event{Type: protocol.EventAgentWaited, AgentID: "x"})

	st := s.Stats()
	if st.Dropped != 1 || st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("stats=%+v", st)
	}

	var nilIndex *SQLiteIndex
	nilIndex.RecordEvent(protocol.Event{Type: protocol.EventZoneDecayed})
	if nilIndex.Stats() != (Stats{}) {
		t.Fatalf("nil index stats")
	}
}

func TestSQLiteIndex_CloseWhileRecording(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "world.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 500; j++ {
				s.RecordEvent(protocol.Event{Type: protocol.EventZoneDecayed, ZoneID: j%6 + 1, Name: "z", TS: time.Now()})
			}
		}()
	}
	close(start)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()

	// Late hooks after shutdown are ignored.
	s.RecordEvent(protocol.Event{Type: protocol.EventAgentEliminated, AgentID: "late", ZoneID: 1, TS: time.Now()})
	s.RecordSnapshot("world.json", finishedWorld())
}
