package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"lastoasis.ai/internal/protocol"
)

const Version = 1

// WorldV1 is the persisted world document. It mirrors the in-memory world
// exactly so that Read(Write(w)) == w.
type WorldV1 struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Status string   `json:"status"`
	Config ConfigV1 `json:"config"`

	Zones  []ZoneV1           `json:"zones"`
	Agents map[string]AgentV1 `json:"agents"`
	Trades map[string]TradeV1 `json:"trades"`
	Events []protocol.Event   `json:"events"`

	NextDecayAt time.Time `json:"next_decay_at"`
}

type ConfigV1 struct {
	DecayIntervalMs int64    `json:"decay_interval_ms"`
	MaxEvents       int      `json:"max_events"`
	TerminalZoneID  int      `json:"terminal_zone_id"`
	GateResources   []string `json:"gate_resources"`
	ResourceKinds   []string `json:"resource_kinds"`
}

type ZoneV1 struct {
	ID         int            `json:"id"`
	Name       string         `json:"name"`
	DecayOrder int            `json:"decay_order"`
	Alive      bool           `json:"alive"`
	DecayedAt  *time.Time     `json:"decayed_at"`
	Resources  map[string]int `json:"resources"`
}

type AgentV1 struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Token        string         `json:"token"`
	ZoneID       int            `json:"zone_id"`
	Alive        bool           `json:"alive"`
	EliminatedAt *time.Time     `json:"eliminated_at"`
	Inventory    map[string]int `json:"inventory"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type TradeV1 struct {
	ID          string    `json:"id"`
	FromAgentID string    `json:"from_agent_id"`
	ToAgentID   string    `json:"to_agent_id"`
	Item        string    `json:"item"`
	Quantity    int       `json:"quantity"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AliveAgents counts agents still in play.
func (w WorldV1) AliveAgents() int {
	n := 0
	for _, a := range w.Agents {
		if a.Alive {
			n++
		}
	}
	return n
}

// AliveZones counts zones that have not decayed, the terminal zone included.
func (w WorldV1) AliveZones() int {
	n := 0
	for _, z := range w.Zones {
		if z.Alive {
			n++
		}
	}
	return n
}

// WriteSnapshot serializes snap next to path and renames it into place, so a
// reader never observes a partially written document.
func WriteSnapshot(path string, snap WorldV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (WorldV1, error) {
	var snap WorldV1
	b, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version == 0 || snap.Status == "" {
		return snap, fmt.Errorf("decode snapshot: %s is not a world document", path)
	}
	return snap, nil
}

// LoadOrInit reads the snapshot at path. When no file exists it persists the
// document produced by makeDefault and returns it with created=true. Any
// other read error is returned as is.
func LoadOrInit(path string, makeDefault func() WorldV1) (snap WorldV1, created bool, err error) {
	snap, err = ReadSnapshot(path)
	if err == nil {
		return snap, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return snap, false, err
	}
	snap = makeDefault()
	if err := WriteSnapshot(path, snap); err != nil {
		return snap, true, err
	}
	return snap, true, nil
}
