// internal/types/slippage.go
package types

import "github.com/shopspring/decimal"

// SlippageType определяет тип политики проскальзывания
type SlippageType string

const (
	// SlippageFixed uses Value as the exact minimum output.
	SlippageFixed SlippageType = "fixed"
	// SlippageBps discounts the expected output by Value basis points.
	SlippageBps SlippageType = "bps"
	// SlippageNone disables the bound.
	SlippageNone SlippageType = "none"
)

const bpsDenominator = 10_000

// SlippageConfig конфигурирует политику проскальзывания
type SlippageConfig struct {
	Type SlippageType `json:"type" mapstructure:"type"`
	// Value:
	//   - SlippageFixed: minimum output in smallest units
	//   - SlippageBps: tolerated slippage, 50 = 0.5%
	//   - SlippageNone: ignored
	Value uint64 `json:"value" mapstructure:"value"`
}

// CalculateMinAmountOut returns the minimum acceptable output for the
// expected amount. Integer truncation matches what the chain enforces.
func CalculateMinAmountOut(expected uint64, cfg SlippageConfig) uint64 {
	switch cfg.Type {
	case SlippageFixed:
		return cfg.Value
	case SlippageBps:
		if cfg.Value >= bpsDenominator {
			return 0
		}
		keep := decimal.NewFromUint64(bpsDenominator - cfg.Value)
		min, _ := decimal.NewFromUint64(expected).Mul(keep).QuoRem(decimal.NewFromInt(bpsDenominator), 0)
		return min.BigInt().Uint64()
	default:
		return 0
	}
}

// ApplyMargin scales a bound by margin in [0, 1], rounding down.
func ApplyMargin(bound uint64, margin float64) uint64 {
	if margin <= 0 {
		return 0
	}
	if margin >= 1 {
		return bound
	}
	return decimal.NewFromUint64(bound).Mul(decimal.NewFromFloat(margin)).Floor().BigInt().Uint64()
}
