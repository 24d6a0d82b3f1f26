// =============================
// File: internal/dex/kappa/math.go
// =============================
package kappa

import (
	"math"

	"github.com/shopspring/decimal"
)

// BpsDenominator is the fee and slippage denominator (100% = 10_000 bps).
const BpsDenominator = 10_000

var (
	bpsDenom   = decimal.NewFromInt(BpsDenominator)
	decimalOne = decimal.NewFromInt(1)
)

// floorDiv divides two non-negative integers and truncates toward zero,
// matching the chain's u128 integer division.
func floorDiv(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, 0)
	return q
}

// ceilDiv divides two non-negative integers rounding up.
func ceilDiv(a, b decimal.Decimal) decimal.Decimal {
	q, r := a.QuoRem(b, 0)
	if r.Sign() > 0 {
		q = q.Add(decimalOne)
	}
	return q
}

// toUint64 converts a non-negative integer decimal to uint64, returning 0
// for anything that does not fit.
func toUint64(d decimal.Decimal) uint64 {
	if d.Sign() <= 0 {
		return 0
	}
	b := d.BigInt()
	if !b.IsUint64() {
		return 0
	}
	return b.Uint64()
}

func validFee(feeBps uint64) bool {
	return feeBps < BpsDenominator
}

// buySwap is the shared forward path of a buy: fee comes off the input
// before the swap.
func buySwap(reserves CurveState, input, feeBps uint64) (net, fee, out decimal.Decimal, ok bool) {
	if input == 0 || !validFee(feeBps) || !reserves.Valid() {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	in := decimal.NewFromUint64(input)
	fee = floorDiv(in.Mul(decimal.NewFromUint64(feeBps)), bpsDenom)
	net = in.Sub(fee)
	out = floorDiv(net.Mul(reserves.VirtualOutputReserve), reserves.VirtualInputReserve.Add(net))
	return net, fee, out, true
}

// sellSwap is the mirror direction: swap first, fee comes off the output.
func sellSwap(reserves CurveState, tokens, feeBps uint64) (gross, fee, out decimal.Decimal, ok bool) {
	if tokens == 0 || !validFee(feeBps) || !reserves.Valid() {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	amt := decimal.NewFromUint64(tokens)
	gross = floorDiv(amt.Mul(reserves.VirtualInputReserve), reserves.VirtualOutputReserve.Add(amt))
	fee = floorDiv(gross.Mul(decimal.NewFromUint64(feeBps)), bpsDenom)
	return gross, fee, gross.Sub(fee), true
}

// QuoteBuy returns the tokens received for input MIST. Zero means no quote
// is available; it never signals a free trade.
func QuoteBuy(reserves CurveState, input, feeBps uint64) uint64 {
	_, _, out, ok := buySwap(reserves, input, feeBps)
	if !ok {
		return 0
	}
	return toUint64(out)
}

// QuoteSell returns the MIST received for selling tokens.
func QuoteSell(reserves CurveState, tokens, feeBps uint64) uint64 {
	_, _, out, ok := sellSwap(reserves, tokens, feeBps)
	if !ok {
		return 0
	}
	return toUint64(out)
}

// QuoteFirstBuy quotes a buy against genesis reserves, before the curve
// exists on chain.
func QuoteFirstBuy(input, feeBps, initialInputReserve, initialOutputReserve uint64) uint64 {
	return QuoteBuy(NewCurveState(initialInputReserve, initialOutputReserve), input, feeBps)
}

// FirstBuyMath is the lenient entry point for UI-style callers: input may be
// any loosely typed value and anything malformed yields 0.
func FirstBuyMath(input any, feeBps, initialInputReserve, initialOutputReserve uint64) uint64 {
	return QuoteFirstBuy(AmountFrom(input), feeBps, initialInputReserve, initialOutputReserve)
}

// InverseBuy returns the MIST needed to receive desired tokens. Both steps
// round up so that QuoteBuy(InverseBuy(x)) >= x. Returns 0 when the request
// would drain the pool.
func InverseBuy(reserves CurveState, desired, feeBps uint64) uint64 {
	if desired == 0 || !validFee(feeBps) || !reserves.Valid() {
		return 0
	}
	want := decimal.NewFromUint64(desired)
	if want.GreaterThanOrEqual(reserves.VirtualOutputReserve) {
		return 0
	}
	beforeFee := ceilDiv(want.Mul(reserves.VirtualInputReserve), reserves.VirtualOutputReserve.Sub(want))
	required := ceilDiv(beforeFee.Mul(bpsDenom), bpsDenom.Sub(decimal.NewFromUint64(feeBps)))
	return toUint64(required)
}

// InverseFirstBuy is InverseBuy against genesis reserves.
func InverseFirstBuy(desired, feeBps, initialInputReserve, initialOutputReserve uint64) uint64 {
	return InverseBuy(NewCurveState(initialInputReserve, initialOutputReserve), desired, feeBps)
}

// SimulatePostFirstBuy derives the curve state right after a first buy of
// devBuyInput, so a follow-up trade can be priced before either is sent.
// Invalid input returns the genesis state unchanged.
func SimulatePostFirstBuy(devBuyInput, feeBps, initialInputReserve, initialOutputReserve uint64) CurveState {
	genesis := NewCurveState(initialInputReserve, initialOutputReserve)
	return SimulateBuy(genesis, devBuyInput, feeBps)
}

// SimulateBuy returns a copy of reserves after a buy of input MIST.
func SimulateBuy(reserves CurveState, input, feeBps uint64) CurveState {
	net, _, out, ok := buySwap(reserves, input, feeBps)
	if !ok {
		return reserves
	}
	return CurveState{
		VirtualInputReserve:  reserves.VirtualInputReserve.Add(net),
		VirtualOutputReserve: reserves.VirtualOutputReserve.Sub(out),
	}
}

// CalculatePriceImpact estimates the impact of buying with input MIST.
// currentPrice and effectivePrice are tokens per MIST.
func CalculatePriceImpact(reserves CurveState, input, feeBps uint64) PriceImpact {
	if input == 0 || !reserves.Valid() {
		return PriceImpact{}
	}
	current := reserves.VirtualOutputReserve.Div(reserves.VirtualInputReserve).InexactFloat64()
	effective := float64(QuoteBuy(reserves, input, feeBps)) / float64(input)
	return impact(current, effective)
}

func impact(current, effective float64) PriceImpact {
	if current == 0 || !finite(current) || !finite(effective) {
		return PriceImpact{}
	}
	pct := (current - effective) / current * 100
	if !finite(pct) {
		return PriceImpact{}
	}
	return PriceImpact{CurrentPrice: current, EffectivePrice: effective, ImpactPct: pct}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// QuoteBuyDetailed returns the full quote for a buy.
func QuoteBuyDetailed(reserves CurveState, input, feeBps uint64) TradeQuote {
	_, fee, out, ok := buySwap(reserves, input, feeBps)
	if !ok {
		return TradeQuote{}
	}
	pi := CalculatePriceImpact(reserves, input, feeBps)
	return TradeQuote{
		ExpectedOutput: toUint64(out),
		FeeAmount:      toUint64(fee),
		EffectivePrice: pi.EffectivePrice,
		PriceImpactPct: pi.ImpactPct,
	}
}

// QuoteSellDetailed returns the full quote for a sell. Prices are MIST per
// token unit.
func QuoteSellDetailed(reserves CurveState, tokens, feeBps uint64) TradeQuote {
	_, fee, out, ok := sellSwap(reserves, tokens, feeBps)
	if !ok {
		return TradeQuote{}
	}
	current := reserves.VirtualInputReserve.Div(reserves.VirtualOutputReserve).InexactFloat64()
	received := toUint64(out)
	pi := impact(current, float64(received)/float64(tokens))
	return TradeQuote{
		ExpectedOutput: received,
		FeeAmount:      toUint64(fee),
		EffectivePrice: pi.EffectivePrice,
		PriceImpactPct: pi.ImpactPct,
	}
}

// SpotPrice returns the price of one whole token in whole SUI.
func SpotPrice(reserves CurveState, inputDecimals, outputDecimals int32) decimal.Decimal {
	if !reserves.Valid() {
		return decimal.Zero
	}
	in := reserves.VirtualInputReserve.Shift(-inputDecimals)
	out := reserves.VirtualOutputReserve.Shift(-outputDecimals)
	return in.DivRound(out, 18)
}
