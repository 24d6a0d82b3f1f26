package kappa

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurveStateShapes(t *testing.T) {
	shapes := map[string]string{
		"get_object": `{"data":{"objectId":"0xc","content":{"dataType":"moveObject","fields":{"virtual_sui_reserve":"1900000000000","virtual_coin_reserve":"876800000000000000"}}}}`,
		"object":     `{"objectId":"0xc","content":{"fields":{"virtual_sui_reserve":"1900000000000","virtual_coin_reserve":"876800000000000000"}}}`,
		"flat":       `{"virtual_sui_reserve":1900000000000,"virtual_coin_reserve":876800000000000000}`,
		"nested":     `{"result":[{"other":1},{"wrapper":{"inner":{"virtual_sui_reserve":"1900000000000","virtual_coin_reserve":"876800000000000000"}}}]}`,
	}
	for name, raw := range shapes {
		t.Run(name, func(t *testing.T) {
			state, err := ParseCurveState([]byte(raw))
			require.NoError(t, err)
			assert.Equal(t, "1900000000000", state.VirtualInputReserve.String())
			assert.Equal(t, "876800000000000000", state.VirtualOutputReserve.String())
		})
	}
}

func TestParseCurveStatePriority(t *testing.T) {
	raw := `{"virtual_sui_reserve":"1","virtual_coin_reserve":"1","data":{"content":{"fields":{"virtual_sui_reserve":"5","virtual_coin_reserve":"6"}}}}`
	state, err := ParseCurveState([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "5", state.VirtualInputReserve.String())
}

func TestParseCurveStateU128(t *testing.T) {
	raw := `{"virtual_sui_reserve":340282366920938463463374607431768211455,"virtual_coin_reserve":"340282366920938463463374607431768211455"}`
	state, err := ParseCurveState([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211455", state.VirtualInputReserve.String())
	assert.Equal(t, state.VirtualInputReserve.String(), state.VirtualOutputReserve.String())
}

func TestParseCurveStateNotFound(t *testing.T) {
	for _, raw := range []string{`{}`, `[]`, `{"data":{"content":{"fields":{"virtual_sui_reserve":"1"}}}}`, `not json`, ``} {
		_, err := ParseCurveState([]byte(raw))
		assert.ErrorIs(t, err, ErrCurveStateNotFound, raw)
	}
}

func TestParseCurveStateInvalid(t *testing.T) {
	for _, raw := range []string{
		`{"virtual_sui_reserve":"0","virtual_coin_reserve":"5"}`,
		`{"virtual_sui_reserve":"-3","virtual_coin_reserve":"5"}`,
		`{"virtual_sui_reserve":"1.5","virtual_coin_reserve":"5"}`,
		`{"virtual_sui_reserve":"abc","virtual_coin_reserve":"5"}`,
		`{"virtual_sui_reserve":true,"virtual_coin_reserve":"5"}`,
	} {
		_, err := ParseCurveState([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidReserves, raw)
		assert.NotErrorIs(t, err, ErrCurveStateNotFound, raw)
	}
}

func TestParseCurveStateSearchIsBounded(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"items":[`)
	for i := 0; i < MaxSearchNodes+10; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"n":%d}`, i)
	}
	b.WriteString(`,{"virtual_sui_reserve":"1","virtual_coin_reserve":"1"}]}`)

	_, err := ParseCurveState([]byte(b.String()))
	assert.ErrorIs(t, err, ErrCurveStateNotFound)
}
