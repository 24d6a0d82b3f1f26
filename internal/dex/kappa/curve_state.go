// =============================
// File: internal/dex/kappa/curve_state.go
// =============================
package kappa

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	fieldInputReserve  = "virtual_sui_reserve"
	fieldOutputReserve = "virtual_coin_reserve"

	// MaxSearchNodes bounds the fallback traversal.
	MaxSearchNodes = 2000
)

// curveParser extracts reserves from one known response shape. found is
// false when the shape does not match at all.
type curveParser struct {
	name  string
	parse func(root gjson.Result) (in, out gjson.Result, found bool)
}

// pathParser matches an object that carries both reserve fields under prefix.
func pathParser(name, prefix string) curveParser {
	return curveParser{
		name: name,
		parse: func(root gjson.Result) (gjson.Result, gjson.Result, bool) {
			obj := root
			if prefix != "" {
				obj = root.Get(prefix)
			}
			return reservePair(obj)
		},
	}
}

// Known shapes in priority order: a full sui_getObject response, the bare
// object data of multiGetObjects, and already-flattened fields.
var curveParsers = []curveParser{
	pathParser("get_object_response", "data.content.fields"),
	pathParser("object_data", "content.fields"),
	pathParser("flat", ""),
}

func reservePair(obj gjson.Result) (gjson.Result, gjson.Result, bool) {
	if !obj.IsObject() {
		return gjson.Result{}, gjson.Result{}, false
	}
	in := obj.Get(fieldInputReserve)
	out := obj.Get(fieldOutputReserve)
	if !in.Exists() || !out.Exists() {
		return gjson.Result{}, gjson.Result{}, false
	}
	return in, out, true
}

// ParseCurveState normalizes any known on-chain representation of a
// bonding curve object into a CurveState. It returns ErrCurveStateNotFound
// when no object in raw exposes both reserve fields and ErrInvalidReserves
// when the fields exist but do not hold positive integers.
func ParseCurveState(raw []byte) (CurveState, error) {
	if !gjson.ValidBytes(raw) {
		return CurveState{}, fmt.Errorf("%w: malformed json", ErrCurveStateNotFound)
	}
	root := gjson.ParseBytes(raw)

	for _, p := range curveParsers {
		if in, out, ok := p.parse(root); ok {
			return buildCurveState(in, out)
		}
	}

	if in, out, ok := searchReserves(root, MaxSearchNodes); ok {
		return buildCurveState(in, out)
	}
	return CurveState{}, ErrCurveStateNotFound
}

// searchReserves walks objects and arrays breadth-first, visiting at most
// budget nodes.
func searchReserves(root gjson.Result, budget int) (gjson.Result, gjson.Result, bool) {
	queue := []gjson.Result{root}
	visited := 0
	for len(queue) > 0 && visited < budget {
		node := queue[0]
		queue = queue[1:]
		visited++

		if in, out, ok := reservePair(node); ok {
			return in, out, true
		}
		if node.IsObject() || node.IsArray() {
			node.ForEach(func(_, value gjson.Result) bool {
				if value.IsObject() || value.IsArray() {
					queue = append(queue, value)
				}
				return true
			})
		}
	}
	return gjson.Result{}, gjson.Result{}, false
}

func buildCurveState(in, out gjson.Result) (CurveState, error) {
	inR, err := reserveValue(in)
	if err != nil {
		return CurveState{}, fmt.Errorf("%w: %s: %v", ErrInvalidReserves, fieldInputReserve, err)
	}
	outR, err := reserveValue(out)
	if err != nil {
		return CurveState{}, fmt.Errorf("%w: %s: %v", ErrInvalidReserves, fieldOutputReserve, err)
	}
	state := CurveState{VirtualInputReserve: inR, VirtualOutputReserve: outR}
	if !state.Valid() {
		return CurveState{}, fmt.Errorf("%w: %s", ErrInvalidReserves, state)
	}
	return state, nil
}

// reserveValue reads a u128 that clients render either as a JSON string or
// as a number. Raw text is used so large numbers keep full precision.
func reserveValue(v gjson.Result) (decimal.Decimal, error) {
	var text string
	switch v.Type {
	case gjson.String:
		text = v.Str
	case gjson.Number:
		text = v.Raw
	default:
		return decimal.Zero, fmt.Errorf("unexpected json type %s", v.Type)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsInteger() {
		return decimal.Zero, fmt.Errorf("non-integer reserve %s", text)
	}
	return d, nil
}
