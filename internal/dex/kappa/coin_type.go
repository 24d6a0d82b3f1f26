// =============================
// File: internal/dex/kappa/coin_type.go
// =============================
package kappa

import (
	"fmt"
	"regexp"
	"strings"
)

// SuiCoinType is the quote asset of every Kappa curve.
const SuiCoinType = "0x2::sui::SUI"

var (
	addressPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	whitespace        = regexp.MustCompile(`\s+`)
)

// TokenRef identifies the coin being traded. CoinType wins when set; then
// the explicit ModuleName/TypeName pair; Name and Symbol are a last resort
// for tokens listed before the API exposed module names.
type TokenRef struct {
	CoinType   string
	PackageID  string
	ModuleName string
	TypeName   string
	Name       string
	Symbol     string
}

// Resolve returns the fully-qualified Move type of the token.
func (r TokenRef) Resolve() (string, error) {
	if r.CoinType != "" {
		if err := ValidateCoinType(r.CoinType); err != nil {
			return "", err
		}
		return r.CoinType, nil
	}
	if !addressPattern.MatchString(r.PackageID) {
		return "", fmt.Errorf("%w: bad package id %q", ErrInvalidCoinType, r.PackageID)
	}

	module, typeName := r.ModuleName, r.TypeName
	if module == "" || typeName == "" {
		human := r.Name
		if human == "" {
			human = r.Symbol
		}
		if module == "" {
			module = strings.ToLower(normalizeName(human))
		}
		if typeName == "" {
			sym := r.Symbol
			if sym == "" {
				sym = r.Name
			}
			typeName = strings.ToUpper(normalizeName(sym))
		}
	}

	coinType := fmt.Sprintf("%s::%s::%s", r.PackageID, module, typeName)
	if err := ValidateCoinType(coinType); err != nil {
		return "", err
	}
	return coinType, nil
}

func normalizeName(s string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(s), "_")
}

// ValidateCoinType checks the pkg::module::NAME shape.
func ValidateCoinType(coinType string) error {
	parts := strings.Split(coinType, "::")
	if len(parts) != 3 {
		return fmt.Errorf("%w: %q is not pkg::module::NAME", ErrInvalidCoinType, coinType)
	}
	if !addressPattern.MatchString(parts[0]) {
		return fmt.Errorf("%w: bad address in %q", ErrInvalidCoinType, coinType)
	}
	if !identifierPattern.MatchString(parts[1]) || !identifierPattern.MatchString(parts[2]) {
		return fmt.Errorf("%w: bad identifier in %q", ErrInvalidCoinType, coinType)
	}
	return nil
}

// SplitCoinType returns the package, module and name of a validated type.
func SplitCoinType(coinType string) (pkg, module, name string, err error) {
	if err = ValidateCoinType(coinType); err != nil {
		return "", "", "", err
	}
	parts := strings.Split(coinType, "::")
	return parts[0], parts[1], parts[2], nil
}
