package protocol

import "time"

// Event types appended to the world event log.
const (
	EventAgentEntered      = "AGENT_ENTERED"
	EventAgentMoved        = "AGENT_MOVED"
	EventResourceCollected = "RESOURCE_COLLECTED"
	EventTradeOffered      = "TRADE_OFFERED"
	EventTradeAccepted     = "TRADE_ACCEPTED"
	EventTradeCancelled    = "TRADE_CANCELLED"
	EventAgentWaited       = "AGENT_WAITED"
	EventActionRejected    = "ACTION_REJECTED"
	EventZoneDecayed       = "ZONE_DECAYED"
	EventAgentEliminated   = "AGENT_ELIMINATED"
	EventWorldFinished     = "WORLD_FINISHED"
)

// Event is one entry of the world event log. Only the fields relevant to
// Type are populated; the rest stay zero and are omitted on the wire.
type Event struct {
	ID   string    `json:"id"`
	TS   time.Time `json:"ts"`
	Type string    `json:"type"`

	AgentID string `json:"agent_id,omitempty"`
	Name    string `json:"name,omitempty"`
	ZoneID  int    `json:"zone_id,omitempty"`

	FromZoneID int `json:"from_zone_id,omitempty"`
	ToZoneID   int `json:"to_zone_id,omitempty"`

	Resource string `json:"resource,omitempty"`
	Quantity int    `json:"quantity,omitempty"`

	TradeID     string `json:"trade_id,omitempty"`
	FromAgentID string `json:"from_agent_id,omitempty"`
	ToAgentID   string `json:"to_agent_id,omitempty"`
	Item        string `json:"item,omitempty"`

	Reason   string   `json:"reason,omitempty"`
	Warning  string   `json:"warning,omitempty"`
	Required []string `json:"required,omitempty"`
}

// Rejected builds an ACTION_REJECTED event. Unknown reasons collapse to
// internal_error so subscribers only ever see the documented vocabulary.
func Rejected(agentID, reason string) Event {
	if !IsKnownReason(reason) {
		reason = ReasonInternalError
	}
	return Event{Type: EventActionRejected, AgentID: agentID, Reason: reason}
}
