// =============================
// File: internal/dex/kappa/amount.go
// =============================
package kappa

import (
	"encoding/json"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountFrom converts a loosely typed amount into smallest units. Anything
// that is not a non-negative integer representable as u64 yields 0.
func AmountFrom(v any) uint64 {
	switch x := v.(type) {
	case nil:
		return 0
	case uint64:
		return x
	case uint:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint8:
		return uint64(x)
	case int:
		return nonNegative(int64(x))
	case int64:
		return nonNegative(x)
	case int32:
		return nonNegative(int64(x))
	case int16:
		return nonNegative(int64(x))
	case int8:
		return nonNegative(int64(x))
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case string:
		return fromString(x)
	case json.Number:
		return fromString(x.String())
	case decimal.Decimal:
		if !x.IsInteger() {
			return 0
		}
		return toUint64(x)
	case *big.Int:
		if x == nil || x.Sign() < 0 || !x.IsUint64() {
			return 0
		}
		return x.Uint64()
	default:
		return 0
	}
}

func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func fromFloat(f float64) uint64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxUint64 {
		return 0
	}
	return uint64(f)
}

// fromString accepts decimal integer strings only; fractional values are
// rejected rather than rounded since they usually mean whole-unit input.
func fromString(s string) uint64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return 0
	}
	return toUint64(d)
}

// ParseUnits converts a human amount such as "1.5" into smallest units for
// a coin with the given decimals. Digits beyond the precision are truncated.
func ParseUnits(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	units := d.Shift(decimals).Truncate(0)
	out := toUint64(units)
	if out == 0 {
		return 0, ErrInvalidAmount
	}
	return out, nil
}

// FormatUnits renders smallest units as a human amount.
func FormatUnits(amount uint64, decimals int32) string {
	return decimal.NewFromUint64(amount).Shift(-decimals).String()
}
