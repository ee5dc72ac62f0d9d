package world

import (
	"time"

	"lastoasis.ai/internal/protocol"
)

func (w *World) handleMove(a *Agent, act Move, now time.Time) {
	target := w.store.Zone(act.TargetZone)
	if target == nil {
		w.reject(a.ID, protocol.ReasonInvalidTargetZone)
		return
	}
	if d := target.ID - a.ZoneID; d != 1 && d != -1 {
		w.reject(a.ID, protocol.ReasonNonAdjacentMove)
		return
	}
	if !target.Alive {
		w.reject(a.ID, protocol.ReasonZoneUnavailable)
		return
	}
	if target.ID == w.store.terminalZoneID && !w.meetsGate(a) {
		ev := protocol.Rejected(a.ID, protocol.ReasonOasisRequirementNotMet)
		ev.Required = gateRequirements(w.store.gate)
		w.rejectEvent(ev)
		return
	}

	from := a.ZoneID
	w.store.moveAgent(a, target.ID, now)
	w.emit(protocol.Event{
		Type:       protocol.EventAgentMoved,
		AgentID:    a.ID,
		FromZoneID: from,
		ToZoneID:   target.ID,
	})
	w.persistSoon()
}

func (w *World) meetsGate(a *Agent) bool {
	for _, r := range w.store.gate {
		if a.holds(r) < 1 {
			return false
		}
	}
	return true
}

func (w *World) handleCollect(a *Agent, act Collect, now time.Time) {
	z := w.store.Zone(a.ZoneID)
	if z == nil || !z.Alive {
		w.reject(a.ID, protocol.ReasonZoneUnavailable)
		return
	}
	if act.Resource == "" || !w.store.collectOne(a, z, act.Resource, now) {
		ev := protocol.Rejected(a.ID, protocol.ReasonResourceUnavailable)
		ev.Resource = act.Resource
		w.rejectEvent(ev)
		return
	}
	w.emit(protocol.Event{
		Type:     protocol.EventResourceCollected,
		AgentID:  a.ID,
		ZoneID:   z.ID,
		Resource: act.Resource,
		Quantity: 1,
	})
	w.persistSoon()
}

func (w *World) handleWait(a *Agent, now time.Time) {
	w.store.touchAgent(a, now)
	w.emit(protocol.Event{
		Type:    protocol.EventAgentWaited,
		AgentID: a.ID,
		ZoneID:  a.ZoneID,
	})
	w.persistSoon()
}
