// internal/blockchain/types.go
package blockchain

import (
	"encoding/json"
	"fmt"
)

// CoinMetadata описывает метаданные монеты.
type CoinMetadata struct {
	ID          string `json:"id"`
	Decimals    uint8  `json:"decimals"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	IconURL     string `json:"iconUrl"`
}

// Coin is one owned coin object.
type Coin struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Version      uint64 `json:"version,string"`
	Digest       string `json:"digest"`
	Balance      uint64 `json:"balance,string"`
}

// CoinPage is one page of a coin enumeration.
type CoinPage struct {
	Data        []Coin `json:"data"`
	NextCursor  string `json:"nextCursor"`
	HasNextPage bool   `json:"hasNextPage"`
}

// Owner is the ownership of an object. Exactly one field is set.
type Owner struct {
	AddressOwner string
	ObjectOwner  string
	Shared       *SharedOwner
	Immutable    bool
}

// SharedOwner carries the version a shared object was first shared at.
type SharedOwner struct {
	InitialSharedVersion uint64 `json:"initial_shared_version"`
}

// UnmarshalJSON accepts the RPC's mixed string/object representation.
func (o *Owner) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "Immutable" {
			return fmt.Errorf("unknown owner kind %q", s)
		}
		o.Immutable = true
		return nil
	}
	var raw struct {
		AddressOwner string       `json:"AddressOwner"`
		ObjectOwner  string       `json:"ObjectOwner"`
		Shared       *SharedOwner `json:"Shared"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.AddressOwner, o.ObjectOwner, o.Shared = raw.AddressOwner, raw.ObjectOwner, raw.Shared
	return nil
}

// Object is a fetched object with its reference and raw response.
type Object struct {
	ObjectID string
	Version  uint64
	Digest   string
	Type     string
	Owner    Owner
	// Raw is the full response the object was decoded from, used by
	// shape-tolerant parsers.
	Raw json.RawMessage
}

// Balance is an owner's total balance of one coin type.
type Balance struct {
	CoinType        string `json:"coinType"`
	CoinObjectCount int    `json:"coinObjectCount"`
	TotalBalance    uint64 `json:"totalBalance,string"`
}

// ExecutionResult is the outcome of a submitted transaction.
type ExecutionResult struct {
	Digest string
	Status string // "success" or "failure"
	Error  string
	Raw    json.RawMessage
}

// Succeeded reports whether effects report success.
func (r *ExecutionResult) Succeeded() bool {
	return r != nil && r.Status == "success"
}
