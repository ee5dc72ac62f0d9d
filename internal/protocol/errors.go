package protocol

// Boundary error codes. These are returned synchronously by the request
// surface and never enter the action queue.
const (
	ErrMissingBearerToken = "missing_bearer_token"
	ErrInvalidToken       = "invalid_token"
	ErrAgentEliminated    = "agent_eliminated"
	ErrForbidden          = "forbidden"
	ErrInvalidAction      = "invalid_action"
	ErrPaymentRequired    = "payment_required"
	ErrWorldBusy          = "world_busy"
	ErrWorldFinished      = "world_finished"
	ErrWorldNotFinished   = "world_not_finished"
	ErrNotASurvivor       = "not_a_survivor"
	ErrNotFound           = "not_found"
	ErrInternal           = "internal_error"
)

var knownCodes = map[string]struct{}{
	ErrMissingBearerToken: {},
	ErrInvalidToken:       {},
	ErrAgentEliminated:    {},
	ErrForbidden:          {},
	ErrInvalidAction:      {},
	ErrPaymentRequired:    {},
	ErrWorldBusy:          {},
	ErrWorldFinished:      {},
	ErrWorldNotFinished:   {},
	ErrNotASurvivor:       {},
	ErrNotFound:           {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Rejection reasons carried by ACTION_REJECTED events.
const (
	ReasonUnknownAction          = "unknown_action"
	ReasonInvalidTargetZone      = "invalid_target_zone"
	ReasonNonAdjacentMove        = "non_adjacent_move"
	ReasonZoneUnavailable        = "zone_unavailable"
	ReasonOasisRequirementNotMet = "oasis_requirement_not_met"
	ReasonResourceUnavailable    = "resource_unavailable"
	ReasonInvalidTargetAgent     = "invalid_target_agent"
	ReasonInvalidQuantity        = "invalid_quantity"
	ReasonInsufficientInventory  = "insufficient_inventory"
	ReasonInvalidTrade           = "invalid_trade"
	ReasonNotTradeTarget         = "not_trade_target"
	ReasonInternalError          = "internal_error"
)

// Cancellation reasons carried by TRADE_CANCELLED events.
const (
	CancelSourceUnavailable           = "source_unavailable"
	CancelInsufficientSourceInventory = "insufficient_source_inventory"
)

var knownReasons = map[string]struct{}{
	ReasonUnknownAction:               {},
	ReasonInvalidTargetZone:           {},
	ReasonNonAdjacentMove:             {},
	ReasonZoneUnavailable:             {},
	ReasonOasisRequirementNotMet:      {},
	ReasonResourceUnavailable:         {},
	ReasonInvalidTargetAgent:          {},
	ReasonInvalidQuantity:             {},
	ReasonInsufficientInventory:       {},
	ReasonInvalidTrade:                {},
	ReasonNotTradeTarget:              {},
	ReasonInternalError:               {},
	CancelSourceUnavailable:           {},
	CancelInsufficientSourceInventory: {},
}

func IsKnownReason(reason string) bool {
	_, ok := knownReasons[reason]
	return ok
}
