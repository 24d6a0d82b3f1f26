package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain"
	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain/ptb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

const (
	testSeedHex     = "0x000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testKeystore    = "AAABAgMEBQYHCAkKCwwNDg8QERITFBUWFxgZGhscHR4f"
	testBareSeedB64 = "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8="
	testPublicKey   = "03a107bff3ce10be1d70dd18e74bc09967e4d6309ba50d5f1ddc8664125531b8"
	testAddress     = "0x160179a1565ea7cff27ead23f54cc7f50893bf58155cd7285156e57afa31c3ac"
)

func TestNewRawKeyFormats(t *testing.T) {
	for _, secret := range []string{testSeedHex, testKeystore, testBareSeedB64, "  " + testKeystore + "\n"} {
		key, err := NewRawKey(secret)
		require.NoError(t, err, secret)
		assert.Equal(t, testAddress, key.Address())
		assert.Equal(t, testPublicKey, hex.EncodeToString(key.PublicKey()))
	}
}

func TestNewRawKeyRejects(t *testing.T) {
	tests := map[string]error{
		"":                     ErrInvalidKey,
		"0xzz":                 ErrInvalidKey,
		"not base64!":          ErrInvalidKey,
		"AQID":                 ErrInvalidKey,
		"suiprivkey1qqqqqqqqq": ErrUnsupportedKey,
		// secp256k1 flag
		base64.StdEncoding.EncodeToString(append([]byte{0x01}, make([]byte, 32)...)): ErrUnsupportedKey,
	}
	for secret, want := range tests {
		_, err := NewRawKey(secret)
		assert.ErrorIs(t, err, want, secret)
	}
}

func TestSignTransactionVerifies(t *testing.T) {
	key, err := NewRawKey(testKeystore)
	require.NoError(t, err)

	txBytes := []byte{0, 0, 1, 2, 3}
	sigB64, err := key.SignTransaction(txBytes)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sigB64)
	require.NoError(t, err)
	require.Len(t, raw, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	assert.Equal(t, flagED25519, raw[0])
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])
	assert.Equal(t, key.PublicKey(), pub)

	digest := blake2b.Sum256(append([]byte{0, 0, 0}, txBytes...))
	assert.True(t, ed25519.Verify(pub, digest[:], raw[1:1+ed25519.SignatureSize]))
}

type handle struct{}

func (handle) Address() string { return "0xfeed" }

func (handle) SignAndExecuteTransaction(context.Context, *ptb.Transaction) (*blockchain.ExecutionResult, error) {
	return &blockchain.ExecutionResult{Digest: "d", Status: "success"}, nil
}

func TestExternalSigner(t *testing.T) {
	_, err := NewExternalSigner(nil)
	assert.ErrorIs(t, err, ErrMissingSignerKey)

	ext, err := NewExternalSigner(handle{})
	require.NoError(t, err)
	var cred Credential = ext
	assert.Equal(t, "0xfeed", cred.Address())
}

func TestLoadWallets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.yaml")
	content := "wallets:\n" +
		"  - name: main\n    private_key: " + testKeystore + "\n" +
		"  - name: broken\n    private_key: nope\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	wallets, err := LoadWallets(path)
	assert.ErrorContains(t, err, `wallet "broken"`)
	require.Contains(t, wallets, "main")
	assert.Equal(t, testAddress, wallets["main"].Address())
}
