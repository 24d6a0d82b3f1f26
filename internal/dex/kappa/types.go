// =============================
// File: internal/dex/kappa/types.go
// =============================
package kappa

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction of a trade against the bonding curve.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// CurveState is the canonical virtual reserve pair of one bonding curve.
// Both reserves are u128 on chain and are held exactly.
type CurveState struct {
	VirtualInputReserve  decimal.Decimal // SUI side, MIST
	VirtualOutputReserve decimal.Decimal // token side, smallest unit
}

// NewCurveState builds a CurveState from u64 reserves.
func NewCurveState(inputReserve, outputReserve uint64) CurveState {
	return CurveState{
		VirtualInputReserve:  decimal.NewFromUint64(inputReserve),
		VirtualOutputReserve: decimal.NewFromUint64(outputReserve),
	}
}

// Valid reports whether both reserves are strictly positive integers.
func (c CurveState) Valid() bool {
	return c.VirtualInputReserve.Sign() > 0 && c.VirtualOutputReserve.Sign() > 0 &&
		c.VirtualInputReserve.IsInteger() && c.VirtualOutputReserve.IsInteger()
}

func (c CurveState) String() string {
	return fmt.Sprintf("CurveState{in=%s out=%s}", c.VirtualInputReserve.String(), c.VirtualOutputReserve.String())
}

// TradeIntent holds user-specified trade parameters before building.
type TradeIntent struct {
	Direction   Direction
	TokenType   string // fully-qualified, pkg::module::SYMBOL
	InputAmount uint64 // MIST for buy, token units for sell
	SlippageBps uint32
	MinOutput   uint64 // caller-supplied minimum output; 0 means derive from quote
}

// Validate checks the intent invariants before any I/O happens.
func (t TradeIntent) Validate() error {
	if t.Direction != DirectionBuy && t.Direction != DirectionSell {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidIntent, t.Direction)
	}
	if t.InputAmount == 0 {
		return fmt.Errorf("%w: input amount must be greater than zero", ErrInvalidIntent)
	}
	if t.SlippageBps > BpsDenominator {
		return fmt.Errorf("%w: slippage %d bps out of range [0, %d]", ErrInvalidIntent, t.SlippageBps, BpsDenominator)
	}
	return nil
}

// TradeQuote is the PricingEngine output for one trade.
type TradeQuote struct {
	ExpectedOutput uint64
	FeeAmount      uint64
	EffectivePrice float64 // output units per input unit
	PriceImpactPct float64
}

// PriceImpact describes how far a trade moves the price away from spot.
// A zero value means no estimate is available.
type PriceImpact struct {
	CurrentPrice   float64
	EffectivePrice float64
	ImpactPct      float64
}

// TradeResult is the uniform outcome of a buy or sell. Callers branch on
// Success; Error carries a human-readable message when it is false.
type TradeResult struct {
	Success   bool
	Error     string
	Digest    string
	Operation *Operation
	Quote     *TradeQuote

	// FactorySource is where the deployment the trade ran against came
	// from. Set by the SDK.
	FactorySource string
}

func failure(err error) *TradeResult {
	return &TradeResult{Success: false, Error: err.Error()}
}
