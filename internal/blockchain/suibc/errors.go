// internal/blockchain/suibc/errors.go
package suibc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoRPCNodes      = errors.New("no RPC nodes configured")
	ErrInvalidResponse = errors.New("invalid RPC response")
	ErrObjectNotFound  = errors.New("object not found")
	ErrNoGasCoins      = errors.New("no SUI coins available for gas")
)

// Error представляет ошибку RPC с дополнительным контекстом
type Error struct {
	Err    error
	URL    string
	Method string
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error [%s] at %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ResponseError is a JSON-RPC error object returned by the node.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// IsObjectNotFound reports whether err means the object does not exist.
func IsObjectNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrObjectNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "notexists") || strings.Contains(msg, "not found")
}
