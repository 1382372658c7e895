package models

import (
	"encoding/json"
	"strings"
)

// QuoteRequest is the JSON body accepted by POST /api/quote
type QuoteRequest struct {
	ChainIdNumb  uint64       `json:"chainIdNumb"`
	TokenInStr   string       `json:"tokenInStr"`
	TokenOutStr  string       `json:"tokenOutStr"`
	AmountStr    string       `json:"amountStr"`
	ExactIn      bool         `json:"exactIn"`
	ExactOut     bool         `json:"exactOut"`
	ProtocolsStr *string      `json:"protocolsStr,omitempty"`
	SwapOptions  *SwapOptions `json:"swapOptions,omitempty"`
}

// SwapOptions asks the routing engine to build calldata for the route and optionally simulate it.
// Absent options mean a pure quote.
type SwapOptions struct {
	Recipient            string  `json:"recipient"`
	SlippageToleranceBps uint32  `json:"slippageToleranceBps"`
	DeadlineSeconds      uint64  `json:"deadlineSeconds,omitempty"`
	SimulateFromAddress  *string `json:"simulateFromAddress,omitempty"`
}

// TradeType is the direction of the quote
type TradeType int

const (
	ExactInput TradeType = iota
	ExactOutput
)

func (t TradeType) String() string {
	if t == ExactOutput {
		return "EXACT_OUTPUT"
	}
	return "EXACT_INPUT"
}

func (t TradeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Protocol is a liquidity source family the route search may use
type Protocol string

const (
	ProtocolV2    Protocol = "V2"
	ProtocolV3    Protocol = "V3"
	ProtocolMixed Protocol = "MIXED"
)

// AllProtocols lists the accepted protocol values in the order they are reported to callers
var AllProtocols = []Protocol{ProtocolV2, ProtocolV3, ProtocolMixed}

// ParseProtocol maps a single case-insensitive token to a Protocol
func ParseProtocol(s string) (Protocol, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v2":
		return ProtocolV2, true
	case "v3":
		return ProtocolV3, true
	case "mixed":
		return ProtocolMixed, true
	}
	return "", false
}

// SwapRoute is the routing engine's result, carried through untouched.
// A nil SwapRoute means no route was found.
type SwapRoute = json.RawMessage
