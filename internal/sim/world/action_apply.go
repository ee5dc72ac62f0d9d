package world

import (
	"fmt"

	"lastoasis.ai/internal/protocol"
)

// apply runs one queued action to completion. A panicking handler is
// contained here and surfaces as an internal_error rejection.
func (w *World) apply(env ActionEnvelope) {
	defer func() {
		if r := recover(); r != nil {
			w.panics.Add(1)
			w.logger.Printf("action %s for %q panicked: %v", kindOf(env.Act), env.AgentID, r)
			if !env.System && env.AgentID != "" {
				w.reject(env.AgentID, protocol.ReasonInternalError)
			}
		}
	}()

	now := w.clock.Now()
	if env.System {
		switch env.Act.(type) {
		case DecayTick:
			w.processed.Add(1)
			w.decayTick(now)
		default:
			w.dropped.Add(1)
		}
		return
	}

	if w.store.status != StatusActive {
		w.dropped.Add(1)
		return
	}
	a := w.store.Agent(env.AgentID)
	if a == nil || !a.Alive {
		w.dropped.Add(1)
		return
	}
	w.processed.Add(1)

	switch act := env.Act.(type) {
	case Move:
		w.handleMove(a, act, now)
	case Collect:
		w.handleCollect(a, act, now)
	case OfferTrade:
		w.handleOfferTrade(a, act, now)
	case AcceptTrade:
		w.handleAcceptTrade(a, act, now)
	case Wait:
		w.handleWait(a, now)
	default:
		w.reject(a.ID, protocol.ReasonUnknownAction)
	}
}

func (w *World) emit(ev protocol.Event) protocol.Event {
	return w.events.Append(ev)
}

func (w *World) reject(agentID, reason string) {
	w.rejectEvent(protocol.Rejected(agentID, reason))
}

func (w *World) rejectEvent(ev protocol.Event) {
	w.rejected.Add(1)
	w.emit(ev)
}

func kindOf(a Action) string {
	if a == nil {
		return "<nil>"
	}
	return a.Kind()
}

func gateRequirements(gate []string) []string {
	out := make([]string, 0, len(gate))
	for _, r := range gate {
		out = append(out, fmt.Sprintf("%s>=1", r))
	}
	return out
}
