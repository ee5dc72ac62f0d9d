package protocol

import "time"

// ActionRequest is the body of POST /api/world/action. Fields beyond Type
// are interpreted according to Type.
type ActionRequest struct {
	Type string `json:"type"`

	TargetZone   int    `json:"target_zone,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`

	TargetAgent string `json:"target_agent,omitempty"`
	Item        string `json:"item,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`

	TradeID string `json:"trade_id,omitempty"`
}

// Action type tags accepted on the wire.
const (
	ActionMove        = "move"
	ActionCollect     = "collect"
	ActionTrade       = "trade"
	ActionAcceptTrade = "accept_trade"
	ActionWait        = "wait"
)

// TradeRequest is the body of POST /api/world/trade.
type TradeRequest struct {
	TargetAgentID string `json:"target_agent_id"`
	Item          string `json:"item"`
	Quantity      int    `json:"quantity"`
}

func (r TradeRequest) Action() ActionRequest {
	return ActionRequest{
		Type:        ActionTrade,
		TargetAgent: r.TargetAgentID,
		Item:        r.Item,
		Quantity:    r.Quantity,
	}
}

type EnterRequest struct {
	Name string `json:"name,omitempty"`
}

type EnterResponse struct {
	AgentID string `json:"agent_id"`
	Token   string `json:"token"`
}

type EntryFee struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type PaymentRequiredResponse struct {
	Error     string   `json:"error"`
	Protocol  string   `json:"protocol"`
	EntryFee  EntryFee `json:"entry_fee"`
	HowToDemo string   `json:"how_to_demo"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type AckResponse struct {
	OK bool `json:"ok"`
}

// ClaimResponse reports an equal split among survivors. Settlement happens
// outside the world.
type ClaimResponse struct {
	OK        bool    `json:"ok"`
	AgentID   string  `json:"agent_id"`
	Survivors int     `json:"survivors"`
	Share     float64 `json:"share"`
}

type HealthResponse struct {
	OK        bool      `json:"ok"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StreamMsg is one frame of the push stream: a full snapshot on connect,
// then one frame per appended event.
type StreamMsg struct {
	Kind  string `json:"kind"`
	State any    `json:"state,omitempty"`
	Event *Event `json:"event,omitempty"`
}
