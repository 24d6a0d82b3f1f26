// internal/blockchain/blockchain.go
package blockchain

import (
	"context"

	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain/ptb"
)

// Signer produces Sui signatures for serialized transaction data.
type Signer interface {
	// Address returns the 0x-prefixed Sui address of the key.
	Address() string
	// SignTransaction signs BCS TransactionData and returns the
	// base64 serialized signature.
	SignTransaction(txBytes []byte) (string, error)
}

// Client is the chain collaborator consumed by the trade builder.
type Client interface {
	// GetCoinMetadata returns nil, nil when the chain knows no metadata
	// for coinType.
	GetCoinMetadata(ctx context.Context, coinType string) (*CoinMetadata, error)
	// GetCoins returns one page of coins of coinType owned by owner.
	GetCoins(ctx context.Context, owner, coinType, cursor string) (*CoinPage, error)
	// GetObject returns an object with its content.
	GetObject(ctx context.Context, objectID string) (*Object, error)
	// GetBalance returns the total balance of coinType owned by owner.
	GetBalance(ctx context.Context, owner, coinType string) (*Balance, error)
	// SignAndExecute resolves object inputs and gas, signs the
	// transaction with signer and submits it.
	SignAndExecute(ctx context.Context, signer Signer, tx *ptb.Transaction) (*ExecutionResult, error)
}
