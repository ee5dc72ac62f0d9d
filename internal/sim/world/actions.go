package world

import (
	"strings"

	"lastoasis.ai/internal/protocol"
)

// Action is the closed set of intents the world loop applies. Each variant
// carries only the fields its handler validates.
type Action interface {
	Kind() string
	action()
}

type Move struct {
	TargetZone int
}

type Collect struct {
	Resource string
}

type OfferTrade struct {
	TargetAgent string
	Item        string
	Quantity    int
}

type AcceptTrade struct {
	TradeID string
}

type Wait struct{}

// Unknown keeps the unrecognised tag so the rejection can be attributed.
type Unknown struct {
	Type string
}

// DecayTick is submitted by the scheduler and is processed even after the
// world has finished.
type DecayTick struct{}

func (Move) Kind() string        { return protocol.ActionMove }
func (Collect) Kind() string     { return protocol.ActionCollect }
func (OfferTrade) Kind() string  { return protocol.ActionTrade }
func (AcceptTrade) Kind() string { return protocol.ActionAcceptTrade }
func (Wait) Kind() string        { return protocol.ActionWait }
func (u Unknown) Kind() string   { return u.Type }
func (DecayTick) Kind() string   { return "decay_tick" }

func (Move) action()        {}
func (Collect) action()     {}
func (OfferTrade) action()  {}
func (AcceptTrade) action() {}
func (Wait) action()        {}
func (Unknown) action()     {}
func (DecayTick) action()   {}

// ActionFromRequest decodes a wire request into its variant. Resource names
// are normalised to upper case.
func ActionFromRequest(req protocol.ActionRequest) Action {
	switch req.Type {
	case protocol.ActionMove:
		return Move{TargetZone: req.TargetZone}
	case protocol.ActionCollect:
		return Collect{Resource: normalizeResource(req.ResourceType)}
	case protocol.ActionTrade:
		return OfferTrade{
			TargetAgent: strings.TrimSpace(req.TargetAgent),
			Item:        normalizeResource(req.Item),
			Quantity:    req.Quantity,
		}
	case protocol.ActionAcceptTrade:
		return AcceptTrade{TradeID: strings.TrimSpace(req.TradeID)}
	case protocol.ActionWait:
		return Wait{}
	default:
		return Unknown{Type: req.Type}
	}
}

func normalizeResource(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ActionEnvelope is one queued unit of work.
type ActionEnvelope struct {
	AgentID string
	Act     Action
	System  bool
}
