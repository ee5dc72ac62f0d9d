package world

import (
	"errors"
	"fmt"
	"time"

	"lastoasis.ai/internal/persistence/snapshot"
)

// ImportSnapshot replaces the in-memory state with snap. It must be called
// before Run; the persisted decay interval, event cap and topology win over
// the configured ones.
func (w *World) ImportSnapshot(snap snapshot.WorldV1) error {
	if !w.loopMu.TryLock() {
		return errors.New("world: import while running")
	}
	defer w.loopMu.Unlock()

	s, err := storeFromSnapshot(snap)
	if err != nil {
		return err
	}
	w.store = s
	if snap.Config.MaxEvents > 0 {
		w.events.max = snap.Config.MaxEvents
	}
	w.events.restore(snap.Events)
	w.publishMetrics()
	return nil
}

func storeFromSnapshot(snap snapshot.WorldV1) (*Store, error) {
	if snap.Version < 1 || snap.Version > snapshot.Version {
		return nil, fmt.Errorf("world: unsupported snapshot version %d", snap.Version)
	}
	status := Status(snap.Status)
	if status != StatusActive && status != StatusFinished {
		return nil, fmt.Errorf("world: unknown status %q", snap.Status)
	}
	if len(snap.Zones) == 0 {
		return nil, errors.New("world: snapshot has no zones")
	}
	terminal := snap.Config.TerminalZoneID
	if terminal == 0 {
		terminal = len(snap.Zones)
	}
	if terminal != len(snap.Zones) {
		return nil, fmt.Errorf("world: terminal zone %d is not the last of %d", terminal, len(snap.Zones))
	}
	if err := checkGate(snap.Config.GateResources, snap.Config.ResourceKinds); err != nil {
		return nil, err
	}
	interval := time.Duration(snap.Config.DecayIntervalMs) * time.Millisecond
	if interval <= 0 {
		return nil, fmt.Errorf("world: invalid decay interval %dms", snap.Config.DecayIntervalMs)
	}

	s := &Store{
		createdAt:      snap.CreatedAt,
		updatedAt:      snap.UpdatedAt,
		status:         status,
		agents:         make(map[string]*Agent, len(snap.Agents)),
		byToken:        make(map[string]*Agent, len(snap.Agents)),
		trades:         make(map[string]*Trade, len(snap.Trades)),
		nextDecayAt:    snap.NextDecayAt,
		decayInterval:  interval,
		terminalZoneID: terminal,
		gate:           append([]string{}, snap.Config.GateResources...),
		kinds:          append([]string{}, snap.Config.ResourceKinds...),
	}

	for i, zv := range snap.Zones {
		if zv.ID != i+1 {
			return nil, fmt.Errorf("world: zone ids must be contiguous, got %d at position %d", zv.ID, i)
		}
		if err := checkCounts(fmt.Sprintf("zone %d", zv.ID), zv.Resources); err != nil {
			return nil, err
		}
		s.zones = append(s.zones, &Zone{
			ID:         zv.ID,
			Name:       zv.Name,
			DecayOrder: zv.DecayOrder,
			Alive:      zv.Alive,
			DecayedAt:  cloneTime(zv.DecayedAt),
			Resources:  cloneCounts(zv.Resources),
		})
	}

	for id, av := range snap.Agents {
		if id != av.ID {
			return nil, fmt.Errorf("world: agent key %q does not match id %q", id, av.ID)
		}
		if av.ZoneID < 1 || av.ZoneID > len(s.zones) {
			return nil, fmt.Errorf("world: agent %s in unknown zone %d", id, av.ZoneID)
		}
		if err := checkCounts("agent "+id, av.Inventory); err != nil {
			return nil, err
		}
		a := &Agent{
			ID:           av.ID,
			Name:         av.Name,
			Token:        av.Token,
			ZoneID:       av.ZoneID,
			Alive:        av.Alive,
			EliminatedAt: cloneTime(av.EliminatedAt),
			Inventory:    cloneCounts(av.Inventory),
			CreatedAt:    av.CreatedAt,
			UpdatedAt:    av.UpdatedAt,
		}
		s.agents[id] = a
		if a.Token != "" {
			s.byToken[a.Token] = a
		}
	}

	for id, tv := range snap.Trades {
		st := TradeStatus(tv.Status)
		if st != TradePending && st != TradeAccepted && st != TradeCancelled {
			return nil, fmt.Errorf("world: trade %s has unknown status %q", id, tv.Status)
		}
		s.trades[id] = &Trade{
			ID:          tv.ID,
			FromAgentID: tv.FromAgentID,
			ToAgentID:   tv.ToAgentID,
			Item:        tv.Item,
			Quantity:    tv.Quantity,
			Status:      st,
			Reason:      tv.Reason,
			CreatedAt:   tv.CreatedAt,
			UpdatedAt:   tv.UpdatedAt,
		}
	}
	return s, nil
}

// checkGate requires the terminal zone gate to name two distinct resource
// kinds; an empty gate would let anyone into the terminal zone.
func checkGate(gate, kinds []string) error {
	if len(gate) != 2 || gate[0] == gate[1] {
		return fmt.Errorf("world: gate must name two resource kinds, got %v", gate)
	}
	known := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		known[k] = true
	}
	for _, g := range gate {
		if !known[g] {
			return fmt.Errorf("world: gate resource %s is not a resource kind", g)
		}
	}
	return nil
}

func checkCounts(owner string, m map[string]int) error {
	for k, v := range m {
		if v < 0 {
			return fmt.Errorf("world: %s holds negative %s", owner, k)
		}
	}
	return nil
}
