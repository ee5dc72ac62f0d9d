package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrMissingBearerToken,
		ErrInvalidToken,
		ErrAgentEliminated,
		ErrForbidden,
		ErrInvalidAction,
		ErrPaymentRequired,
		ErrWorldBusy,
		ErrWorldFinished,
		ErrWorldNotFinished,
		ErrNotASurvivor,
		ErrNotFound,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestIsKnownReason(t *testing.T) {
	for _, r := range []string{
		ReasonUnknownAction,
		ReasonNonAdjacentMove,
		ReasonOasisRequirementNotMet,
		ReasonResourceUnavailable,
		CancelInsufficientSourceInventory,
	} {
		if !IsKnownReason(r) {
			t.Fatalf("expected known reason: %q", r)
		}
	}
	if IsKnownReason("") || IsKnownReason("nope") {
		t.Fatalf("expected unknown reasons rejected")
	}
}
