package kappa

import (
	curve "github.com/rovshanmuradov/kappa-sdk/internal/dex/kappa"
)

type (
	CurveState   = curve.CurveState
	Direction    = curve.Direction
	TradeQuote   = curve.TradeQuote
	TradeResult  = curve.TradeResult
	PriceImpact  = curve.PriceImpact
	Operation    = curve.Operation
	ArgumentDesc = curve.ArgumentDesc
)

const (
	DirectionBuy  = curve.DirectionBuy
	DirectionSell = curve.DirectionSell
)

// NewCurveState builds reserves from u64 values.
func NewCurveState(inputReserve, outputReserve uint64) CurveState {
	return curve.NewCurveState(inputReserve, outputReserve)
}

// ParseCurveState reads reserves from any known object response shape.
func ParseCurveState(raw []byte) (CurveState, error) {
	return curve.ParseCurveState(raw)
}

func QuoteBuy(reserves CurveState, input, feeBps uint64) uint64 {
	return curve.QuoteBuy(reserves, input, feeBps)
}

func QuoteSell(reserves CurveState, tokens, feeBps uint64) uint64 {
	return curve.QuoteSell(reserves, tokens, feeBps)
}

func QuoteFirstBuy(input, feeBps, initialInputReserve, initialOutputReserve uint64) uint64 {
	return curve.QuoteFirstBuy(input, feeBps, initialInputReserve, initialOutputReserve)
}

// FirstBuyMath accepts loosely typed input; anything malformed yields 0.
func FirstBuyMath(input any, feeBps, initialInputReserve, initialOutputReserve uint64) uint64 {
	return curve.FirstBuyMath(input, feeBps, initialInputReserve, initialOutputReserve)
}

func InverseBuy(reserves CurveState, desired, feeBps uint64) uint64 {
	return curve.InverseBuy(reserves, desired, feeBps)
}

func InverseFirstBuy(desired, feeBps, initialInputReserve, initialOutputReserve uint64) uint64 {
	return curve.InverseFirstBuy(desired, feeBps, initialInputReserve, initialOutputReserve)
}

func SimulatePostFirstBuy(devBuyInput, feeBps, initialInputReserve, initialOutputReserve uint64) CurveState {
	return curve.SimulatePostFirstBuy(devBuyInput, feeBps, initialInputReserve, initialOutputReserve)
}

func CalculatePriceImpact(reserves CurveState, input, feeBps uint64) PriceImpact {
	return curve.CalculatePriceImpact(reserves, input, feeBps)
}
