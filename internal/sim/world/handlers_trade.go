package world

import (
	"time"

	"lastoasis.ai/internal/protocol"
)

// handleOfferTrade records a PENDING trade. The holdings check here is
// advisory: an under-funded offer is still recorded, flagged with a warning,
// and settled against real holdings at acceptance.
func (w *World) handleOfferTrade(a *Agent, act OfferTrade, now time.Time) {
	target := w.store.Agent(act.TargetAgent)
	if target == nil || target.ID == a.ID || !target.Alive {
		w.reject(a.ID, protocol.ReasonInvalidTargetAgent)
		return
	}
	if act.Quantity <= 0 {
		w.reject(a.ID, protocol.ReasonInvalidQuantity)
		return
	}
	if !w.knownResource(act.Item) {
		w.reject(a.ID, protocol.ReasonInsufficientInventory)
		return
	}

	var warning string
	if a.holds(act.Item) < act.Quantity {
		warning = protocol.ReasonInsufficientInventory
	}
	t := w.store.addTrade(w.cfg.NewID(), a, target.ID, act.Item, act.Quantity, now)
	w.emit(protocol.Event{
		Type:        protocol.EventTradeOffered,
		TradeID:     t.ID,
		FromAgentID: t.FromAgentID,
		ToAgentID:   t.ToAgentID,
		Item:        t.Item,
		Quantity:    t.Quantity,
		Warning:     warning,
	})
	w.persistSoon()
}

func (w *World) knownResource(item string) bool {
	if item == "" {
		return false
	}
	if len(w.store.kinds) == 0 {
		return true
	}
	for _, k := range w.store.kinds {
		if k == item {
			return true
		}
	}
	return false
}

func (w *World) handleAcceptTrade(a *Agent, act AcceptTrade, now time.Time) {
	t := w.store.Trade(act.TradeID)
	if t == nil || t.Status != TradePending {
		w.reject(a.ID, protocol.ReasonInvalidTrade)
		return
	}
	if t.ToAgentID != a.ID {
		w.reject(a.ID, protocol.ReasonNotTradeTarget)
		return
	}

	from := w.store.Agent(t.FromAgentID)
	switch {
	case from == nil || !from.Alive:
		w.cancelTrade(t, protocol.CancelSourceUnavailable, now)
		return
	case from.holds(t.Item) < t.Quantity:
		w.cancelTrade(t, protocol.CancelInsufficientSourceInventory, now)
		return
	}

	if !w.store.transfer(from, a, t.Item, t.Quantity, now) {
		w.cancelTrade(t, protocol.CancelInsufficientSourceInventory, now)
		return
	}
	w.store.settle(t, TradeAccepted, "", now)
	w.emit(protocol.Event{
		Type:        protocol.EventTradeAccepted,
		TradeID:     t.ID,
		FromAgentID: from.ID,
		ToAgentID:   a.ID,
		Item:        t.Item,
		Quantity:    t.Quantity,
	})
	w.persistSoon()
}

func (w *World) cancelTrade(t *Trade, reason string, now time.Time) {
	if !w.store.settle(t, TradeCancelled, reason, now) {
		return
	}
	w.emit(protocol.Event{
		Type:        protocol.EventTradeCancelled,
		TradeID:     t.ID,
		FromAgentID: t.FromAgentID,
		ToAgentID:   t.ToAgentID,
		Reason:      reason,
	})
	w.persistSoon()
}
