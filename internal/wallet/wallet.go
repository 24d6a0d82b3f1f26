// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain"
	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain/ptb"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

// Signature scheme flags.
const (
	flagED25519 byte = 0x00
)

var (
	ErrInvalidKey       = errors.New("invalid private key")
	ErrUnsupportedKey   = errors.New("unsupported key scheme")
	ErrMissingSignerKey = errors.New("external signer handle is nil")
)

// transactionIntent prefixes TransactionData before hashing: scope
// TransactionData, version V0, app Sui.
var transactionIntent = []byte{0, 0, 0}

// Credential is either a RawKey or an ExternalSigner.
type Credential interface {
	Address() string
	credential()
}

// RawKey holds an ed25519 key owned by this process.
type RawKey struct {
	private ed25519.PrivateKey
	address string
}

// NewRawKey parses a secret key. Accepted forms: the base64 keystore
// encoding (flag || 32-byte seed), a 0x-prefixed hex seed and a bare
// base64 seed.
func NewRawKey(secret string) (*RawKey, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(secret, "suiprivkey") {
		return nil, fmt.Errorf("%w: bech32 keys must be exported as base64 or hex", ErrUnsupportedKey)
	}
	if strings.HasPrefix(secret, "0x") {
		seed, err := hex.DecodeString(secret[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return NewRawKeyFromBytes(seed)
	}
	b, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	switch len(b) {
	case ed25519.SeedSize + 1:
		if b[0] != flagED25519 {
			return nil, fmt.Errorf("%w: flag 0x%02x", ErrUnsupportedKey, b[0])
		}
		return NewRawKeyFromBytes(b[1:])
	default:
		return NewRawKeyFromBytes(b)
	}
}

// NewRawKeyFromBytes accepts a 32-byte seed or a 64-byte ed25519 key.
func NewRawKeyFromBytes(b []byte) (*RawKey, error) {
	var priv ed25519.PrivateKey
	switch len(b) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(b)
	case ed25519.PrivateKeySize:
		priv = ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	default:
		return nil, fmt.Errorf("%w: expected %d or %d bytes, got %d", ErrInvalidKey, ed25519.SeedSize, ed25519.PrivateKeySize, len(b))
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &RawKey{private: priv, address: DeriveAddress(pub)}, nil
}

// DeriveAddress returns blake2b-256(flag || pubkey) as a Sui address.
func DeriveAddress(pub ed25519.PublicKey) string {
	h := blake2b.Sum256(append([]byte{flagED25519}, pub...))
	return "0x" + hex.EncodeToString(h[:])
}

func (k *RawKey) Address() string { return k.address }

func (k *RawKey) credential() {}

// PublicKey returns the ed25519 public key.
func (k *RawKey) PublicKey() ed25519.PublicKey {
	return k.private.Public().(ed25519.PublicKey)
}

// SignTransaction signs BCS TransactionData under the transaction intent
// and returns the base64 serialized signature (flag || sig || pubkey).
func (k *RawKey) SignTransaction(txBytes []byte) (string, error) {
	msg := make([]byte, 0, len(transactionIntent)+len(txBytes))
	msg = append(msg, transactionIntent...)
	msg = append(msg, txBytes...)
	digest := blake2b.Sum256(msg)

	sig := ed25519.Sign(k.private, digest[:])
	out := make([]byte, 0, 1+len(sig)+ed25519.PublicKeySize)
	out = append(out, flagED25519)
	out = append(out, sig...)
	out = append(out, k.PublicKey()...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// String возвращает адрес кошелька.
func (k *RawKey) String() string {
	return k.address
}

var _ blockchain.Signer = (*RawKey)(nil)

// SignerHandle is a pre-authenticated wallet that signs and submits on its
// own, such as a browser wallet bridge or a remote custody service.
type SignerHandle interface {
	Address() string
	SignAndExecuteTransaction(ctx context.Context, tx *ptb.Transaction) (*blockchain.ExecutionResult, error)
}

// ExternalSigner wraps a SignerHandle as a Credential.
type ExternalSigner struct {
	Handle SignerHandle
}

// NewExternalSigner wraps handle.
func NewExternalSigner(handle SignerHandle) (*ExternalSigner, error) {
	if handle == nil {
		return nil, ErrMissingSignerKey
	}
	return &ExternalSigner{Handle: handle}, nil
}

func (e *ExternalSigner) Address() string { return e.Handle.Address() }

func (e *ExternalSigner) credential() {}

// WalletConfig represents the structure of wallets YAML file
type WalletConfig struct {
	Wallets []struct {
		Name       string `yaml:"name"`
		PrivateKey string `yaml:"private_key"`
	} `yaml:"wallets"`
}

// LoadWallets загружает кошельки из YAML-файла. Entries with unparsable
// keys are reported together.
func LoadWallets(path string) (map[string]*RawKey, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read wallets file: %w", err)
	}

	var cfg WalletConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse wallets YAML: %w", err)
	}
	if len(cfg.Wallets) == 0 {
		return nil, fmt.Errorf("no wallets found in %s", path)
	}

	wallets := make(map[string]*RawKey, len(cfg.Wallets))
	var errs []error
	for _, w := range cfg.Wallets {
		key, err := NewRawKey(w.PrivateKey)
		if err != nil {
			errs = append(errs, fmt.Errorf("wallet %q: %w", w.Name, err))
			continue
		}
		wallets[w.Name] = key
	}
	return wallets, errors.Join(errs...)
}
