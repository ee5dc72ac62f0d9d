package archive

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"lastoasis.ai/internal/persistence/snapshot"
)

func finished() snapshot.WorldV1 {
	t0 := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	return snapshot.WorldV1{
		Version:   snapshot.Version,
		CreatedAt: t0,
		UpdatedAt: t0.Add(14 * time.Minute),
		Status:    "FINISHED",
		Config:    snapshot.ConfigV1{DecayIntervalMs: 120000, GateResources: []string{}, ResourceKinds: []string{}},
		Zones: []snapshot.ZoneV1{
			{ID: 1, Name: "Start", DecayOrder: 1, Resources: map[string]int{}},
			{ID: 2, Name: "Haven", DecayOrder: 2, Alive: true, Resources: map[string]int{"FOOD_WATER": 3}},
		},
		Agents: map[string]snapshot.AgentV1{
			"a": {ID: "a", Name: "alice", ZoneID: 2, Alive: true, Inventory: map[string]int{"CRYSTALS": 1}, CreatedAt: t0, UpdatedAt: t0},
		},
		Trades:      map[string]snapshot.TradeV1{},
		NextDecayAt: t0.Add(16 * time.Minute),
	}
}

func TestArchiveFinalSnapshot_CompressesOnce(t *testing.T) {
	dir := t.TempDir()
	want := finished()

	path, archived, err := ArchiveFinalSnapshot(dir, want)
	if err != nil || !archived {
		t.Fatalf("archive archived=%v err=%v", archived, err)
	}
	if filepath.Base(filepath.Dir(path)) != "final_20260601T101400Z" {
		t.Fatalf("archive dir=%s", path)
	}

	got, err := ReadFinalSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("archived snapshot differs:\n got=%+v\nwant=%+v", got, want)
	}

	meta, err := ReadMeta(path)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Survivors != 1 || meta.Agents != 1 || meta.Zones != 2 || len(meta.SHA256) != 64 {
		t.Fatalf("meta=%+v", meta)
	}

	again, archived, err := ArchiveFinalSnapshot(dir, want)
	if err != nil || archived || again != path {
		t.Fatalf("second archive path=%s archived=%v err=%v", again, archived, err)
	}
}

func TestArchiveFinalSnapshot_SkipsActiveWorld(t *testing.T) {
	snap := finished()
	snap.Status = "ACTIVE"
	path, archived, err := ArchiveFinalSnapshot(t.TempDir(), snap)
	if err != nil || archived || path != "" {
		t.Fatalf("path=%q archived=%v err=%v", path, archived, err)
	}
}
