package tuning

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Resource kinds of the reference configuration.
const (
	BasicSupplies    = "BASIC_SUPPLIES"
	ShelterMaterials = "SHELTER_MATERIALS"
	FoodWater        = "FOOD_WATER"
	Crystals         = "CRYSTALS"
	RareResources    = "RARE_RESOURCES"
)

type Tuning struct {
	DecayIntervalMs    int `yaml:"decay_interval_ms"`
	DecayPollMs        int `yaml:"decay_poll_ms"`
	MaxEvents          int `yaml:"max_events"`
	InboxSize          int `yaml:"inbox_size"`
	SnapshotDebounceMs int `yaml:"snapshot_debounce_ms"`

	TerminalZoneID int      `yaml:"terminal_zone_id"`
	GateResources  []string `yaml:"gate_resources"`
	ResourceKinds  []string `yaml:"resource_kinds"`

	Zones []ZoneSpec `yaml:"zones"`

	EntryFee EntryFee `yaml:"entry_fee"`
}

// ZoneSpec describes one node of the linear topology. Decay order follows
// list position.
type ZoneSpec struct {
	ID        int            `yaml:"id"`
	Name      string         `yaml:"name"`
	Resources map[string]int `yaml:"resources"`
}

type EntryFee struct {
	Asset  string `yaml:"asset"`
	Amount string `yaml:"amount"`
}

func Defaults() Tuning {
	return Tuning{
		DecayIntervalMs:    2 * 60_000,
		DecayPollMs:        1000,
		MaxEvents:          500,
		InboxSize:          1024,
		SnapshotDebounceMs: 250,
		TerminalZoneID:     7,
		GateResources:      []string{Crystals, FoodWater},
		ResourceKinds:      []string{BasicSupplies, ShelterMaterials, FoodWater, Crystals, RareResources},
		Zones: []ZoneSpec{
			{ID: 1, Name: "The Wasteland", Resources: map[string]int{}},
			{ID: 2, Name: "The Dustfields", Resources: map[string]int{BasicSupplies: 120}},
			{ID: 3, Name: "The Ruins", Resources: map[string]int{ShelterMaterials: 80}},
			{ID: 4, Name: "The Marshlands", Resources: map[string]int{FoodWater: 120}},
			{ID: 5, Name: "The Crystal Caves", Resources: map[string]int{Crystals: 70}},
			{ID: 6, Name: "The Greenwood", Resources: map[string]int{RareResources: 30}},
			{ID: 7, Name: "The Oasis", Resources: map[string]int{
				BasicSupplies:    200,
				ShelterMaterials: 120,
				FoodWater:        220,
				Crystals:         120,
				RareResources:    60,
			}},
		},
		EntryFee: EntryFee{Asset: "USDC", Amount: "1.0"},
	}
}

// Load reads a tuning file on top of Defaults. Keys absent from the file
// keep their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	var file Tuning
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.merge(file)
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) merge(f Tuning) {
	if f.DecayIntervalMs != 0 {
		t.DecayIntervalMs = f.DecayIntervalMs
	}
	if f.DecayPollMs != 0 {
		t.DecayPollMs = f.DecayPollMs
	}
	if f.MaxEvents != 0 {
		t.MaxEvents = f.MaxEvents
	}
	if f.InboxSize != 0 {
		t.InboxSize = f.InboxSize
	}
	if f.SnapshotDebounceMs != 0 {
		t.SnapshotDebounceMs = f.SnapshotDebounceMs
	}
	if f.TerminalZoneID != 0 {
		t.TerminalZoneID = f.TerminalZoneID
	}
	if len(f.GateResources) > 0 {
		t.GateResources = f.GateResources
	}
	if len(f.ResourceKinds) > 0 {
		t.ResourceKinds = f.ResourceKinds
	}
	if len(f.Zones) > 0 {
		t.Zones = f.Zones
		if f.TerminalZoneID == 0 {
			t.TerminalZoneID = len(f.Zones)
		}
	}
	if f.EntryFee.Asset != "" {
		t.EntryFee.Asset = f.EntryFee.Asset
	}
	if f.EntryFee.Amount != "" {
		t.EntryFee.Amount = f.EntryFee.Amount
	}
}

// Normalize upper-cases resource names so the file may use any casing.
func (t *Tuning) Normalize() {
	for i, r := range t.GateResources {
		t.GateResources[i] = strings.ToUpper(strings.TrimSpace(r))
	}
	for i, r := range t.ResourceKinds {
		t.ResourceKinds[i] = strings.ToUpper(strings.TrimSpace(r))
	}
	for i := range t.Zones {
		res := make(map[string]int, len(t.Zones[i].Resources))
		for k, v := range t.Zones[i].Resources {
			res[strings.ToUpper(strings.TrimSpace(k))] += v
		}
		t.Zones[i].Resources = res
	}
	sort.SliceStable(t.Zones, func(i, j int) bool { return t.Zones[i].ID < t.Zones[j].ID })
}

func (t Tuning) Validate() error {
	if t.DecayIntervalMs <= 0 {
		return errors.New("decay_interval_ms must be > 0")
	}
	if t.DecayPollMs <= 0 {
		return errors.New("decay_poll_ms must be > 0")
	}
	if t.MaxEvents <= 0 {
		return errors.New("max_events must be > 0")
	}
	if t.InboxSize <= 0 {
		return errors.New("inbox_size must be > 0")
	}
	if len(t.Zones) < 2 {
		return errors.New("need at least two zones")
	}
	for i, z := range t.Zones {
		if z.ID != i+1 {
			return fmt.Errorf("zone ids must be contiguous from 1: got %d at position %d", z.ID, i)
		}
		for k, v := range z.Resources {
			if v < 0 {
				return fmt.Errorf("zone %d: negative quantity for %s", z.ID, k)
			}
		}
	}
	if t.TerminalZoneID != len(t.Zones) {
		return fmt.Errorf("terminal_zone_id must be the last zone (%d), got %d", len(t.Zones), t.TerminalZoneID)
	}
	if len(t.GateResources) != 2 {
		return fmt.Errorf("gate_resources must name two resource kinds, got %d", len(t.GateResources))
	}
	kinds := map[string]bool{}
	for _, k := range t.ResourceKinds {
		kinds[k] = true
	}
	for _, g := range t.GateResources {
		if !kinds[g] {
			return fmt.Errorf("gate resource %s is not a resource kind", g)
		}
	}
	return nil
}

func (t Tuning) DecayInterval() time.Duration {
	return time.Duration(t.DecayIntervalMs) * time.Millisecond
}

func (t Tuning) DecayPoll() time.Duration {
	return time.Duration(t.DecayPollMs) * time.Millisecond
}

func (t Tuning) SnapshotDebounce() time.Duration {
	return time.Duration(t.SnapshotDebounceMs) * time.Millisecond
}
