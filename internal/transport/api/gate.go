package api

import (
	"net/http"
	"strings"

	"lastoasis.ai/internal/protocol"
)

// EntryGate decides whether a registration request has paid its way in.
type EntryGate interface {
	Approve(r *http.Request) bool
	Challenge() protocol.PaymentRequiredResponse
}

// MockGate approves requests that claim to be paid. It stands in for a real
// x402 facilitator.
type MockGate struct {
	Fee protocol.EntryFee
}

const (
	paymentProtocol = "x402"
	mockPaidHeader  = "X-Mock-Paid"
)

func (g MockGate) Approve(r *http.Request) bool {
	if strings.EqualFold(strings.TrimSpace(r.Header.Get(mockPaidHeader)), "true") {
		return true
	}
	return r.URL.Query().Get("paid") == "1"
}

func (g MockGate) Challenge() protocol.PaymentRequiredResponse {
	return protocol.PaymentRequiredResponse{
		Error:     protocol.ErrPaymentRequired,
		Protocol:  paymentProtocol,
		EntryFee:  g.Fee,
		HowToDemo: "Retry the same request with header 'X-Mock-Paid: true' or query '?paid=1'.",
	}
}
