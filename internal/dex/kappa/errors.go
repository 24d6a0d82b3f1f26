// =============================
// File: internal/dex/kappa/errors.go
// =============================
package kappa

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidIntent      = errors.New("invalid trade intent")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMissingCredential  = errors.New("missing credential")
	ErrInvalidCoinType    = errors.New("invalid coin type")
	ErrMetadataNotFound   = errors.New("coin metadata not found")
	ErrNoSpendableInput   = errors.New("no spendable coins found")
	ErrInsufficientInput  = errors.New("insufficient token balance")
	ErrCurveStateNotFound = errors.New("curve state not found")
	ErrInvalidReserves    = errors.New("invalid curve reserves")
	ErrNoQuote            = errors.New("no quote available")
)

// Abort identifiers taken to mean a violated bound. They are not confirmed
// against the deployed contract; WithSlippageAbortCodes adds numeric codes.
const (
	abortSlippage = "EInsufficientOutput"
	abortMaxInput = "EExceedsMaxInput"
)

var moveAbortCode = regexp.MustCompile(`MoveAbort\(.*,\s*(\d+)\)`)

// MoveAbortCode extracts the numeric code from a MoveAbort message.
func MoveAbortCode(err error) (uint64, bool) {
	if err == nil {
		return 0, false
	}
	m := moveAbortCode.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	code, perr := strconv.ParseUint(m[1], 10, 64)
	return code, perr == nil
}

// SlippageExceededError is returned when the chain rejects a trade because
// the executed amount fell outside the supplied bound.
type SlippageExceededError struct {
	Direction     Direction
	Bound         uint64
	OriginalError error
}

// IsSlippageExceededError reports whether an execution error is a bound
// violation.
func IsSlippageExceededError(err error) bool {
	if err == nil {
		return false
	}
	var se *SlippageExceededError
	if errors.As(err, &se) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, abortSlippage) || strings.Contains(msg, abortMaxInput)
}

func (e *SlippageExceededError) Error() string {
	return fmt.Sprintf("slippage exceeded on %s (bound %d): %v", e.Direction, e.Bound, e.OriginalError)
}

func (e *SlippageExceededError) Unwrap() error {
	return e.OriginalError
}
