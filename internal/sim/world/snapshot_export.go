package world

import (
	"context"

	"lastoasis.ai/internal/persistence/snapshot"
)

// Snapshot exports the full persisted document, credentials included.
func (w *World) Snapshot(ctx context.Context) (snapshot.WorldV1, error) {
	var snap snapshot.WorldV1
	err := w.do(ctx, func() { snap = w.exportSnapshot() })
	return snap, err
}

// ExportSnapshot is Snapshot without cancellation, for startup and shutdown.
func (w *World) ExportSnapshot() snapshot.WorldV1 {
	snap, _ := w.Snapshot(context.Background())
	return snap
}

func (w *World) exportSnapshot() snapshot.WorldV1 {
	s := w.store
	out := snapshot.WorldV1{
		Version:   snapshot.Version,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
		Status:    string(s.status),
		Config: snapshot.ConfigV1{
			DecayIntervalMs: s.decayInterval.Milliseconds(),
			MaxEvents:       w.events.max,
			TerminalZoneID:  s.terminalZoneID,
			GateResources:   append([]string{}, s.gate...),
			ResourceKinds:   append([]string{}, s.kinds...),
		},
		Zones:       make([]snapshot.ZoneV1, 0, len(s.zones)),
		Agents:      make(map[string]snapshot.AgentV1, len(s.agents)),
		Trades:      make(map[string]snapshot.TradeV1, len(s.trades)),
		Events:      w.events.Events(),
		NextDecayAt: s.nextDecayAt,
	}
	for _, z := range s.zones {
		c := z.clone()
		out.Zones = append(out.Zones, snapshot.ZoneV1{
			ID:         c.ID,
			Name:       c.Name,
			DecayOrder: c.DecayOrder,
			Alive:      c.Alive,
			DecayedAt:  c.DecayedAt,
			Resources:  c.Resources,
		})
	}
	for id, a := range s.agents {
		c := a.clone()
		out.Agents[id] = snapshot.AgentV1{
			ID:           c.ID,
			Name:         c.Name,
			Token:        c.Token,
			ZoneID:       c.ZoneID,
			Alive:        c.Alive,
			EliminatedAt: c.EliminatedAt,
			Inventory:    c.Inventory,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
	}
	for id, t := range s.trades {
		out.Trades[id] = snapshot.TradeV1{
			ID:          t.ID,
			FromAgentID: t.FromAgentID,
			ToAgentID:   t.ToAgentID,
			Item:        t.Item,
			Quantity:    t.Quantity,
			Status:      string(t.Status),
			Reason:      t.Reason,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		}
	}
	return out
}
