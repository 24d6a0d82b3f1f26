package kappa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRefResolve(t *testing.T) {
	tests := []struct {
		name string
		ref  TokenRef
		want string
	}{
		{"explicit type", TokenRef{CoinType: "0xabc::kcat::KCAT"}, "0xabc::kcat::KCAT"},
		{"module fields", TokenRef{PackageID: "0xabc", ModuleName: "kappa_cat", TypeName: "KAPPA_CAT", Name: "ignored"}, "0xabc::kappa_cat::KAPPA_CAT"},
		{"human name", TokenRef{PackageID: "0xabc", Name: "Kappa  Cat", Symbol: "kcat"}, "0xabc::kappa_cat::KCAT"},
		{"symbol only", TokenRef{PackageID: "0xabc", Symbol: "Moon Dog"}, "0xabc::moon_dog::MOON_DOG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ref.Resolve()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenRefResolveErrors(t *testing.T) {
	for _, ref := range []TokenRef{
		{},
		{CoinType: "0xabc::kcat"},
		{CoinType: "abc::kcat::KCAT"},
		{PackageID: "0xzz", Symbol: "KCAT"},
		{PackageID: "0xabc"},
		{PackageID: "0xabc", Symbol: "9lives"},
	} {
		_, err := ref.Resolve()
		assert.ErrorIs(t, err, ErrInvalidCoinType, "%+v", ref)
	}
}

func TestSplitCoinType(t *testing.T) {
	pkg, mod, name, err := SplitCoinType(SuiCoinType)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x2", "sui", "SUI"}, []string{pkg, mod, name})
}
