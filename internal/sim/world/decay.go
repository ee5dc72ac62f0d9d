package world

import (
	"time"

	"lastoasis.ai/internal/protocol"
)

// decayTick is a no-op until the stored deadline passes. When due it decays
// the next eligible zone, or finishes the world when none is left.
func (w *World) decayTick(now time.Time) {
	s := w.store
	if s.status == StatusFinished || now.Before(s.nextDecayAt) {
		return
	}

	z := s.nextDecayCandidate()
	if z == nil {
		s.finish(now)
		w.emit(protocol.Event{Type: protocol.EventWorldFinished})
		w.logger.Printf("world finished with %d survivors", s.AliveAgents())
		w.persistSoon()
		return
	}

	eliminated := s.decayZone(z, now)
	w.emit(protocol.Event{
		Type:   protocol.EventZoneDecayed,
		ZoneID: z.ID,
		Name:   z.Name,
	})
	for _, a := range eliminated {
		w.emit(protocol.Event{
			Type:    protocol.EventAgentEliminated,
			AgentID: a.ID,
			ZoneID:  z.ID,
		})
	}
	w.logger.Printf("zone %d (%s) decayed, %d eliminated, next at %s",
		z.ID, z.Name, len(eliminated), s.nextDecayAt.Format(time.RFC3339))
	w.persistSoon()
}
