// internal/blockchain/suibc/client.go
package suibc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain"
	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain/ptb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultGasBudget in MIST.
	DefaultGasBudget uint64 = 50_000_000

	suiCoinType      = "0x2::sui::SUI"
	multiGetChunk    = 50
	maxGasCoins      = 256
	maxGasCoinPages  = 5
	waitForExecution = "WaitForLocalExecution"
)

// Client – тонкий адаптер для взаимодействия с Sui через JSON-RPC.
type Client struct {
	rpc       *rpcClient
	gasBudget uint64
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.rpc.http = h }
}

// WithGasBudget sets the budget applied to transactions without one.
func WithGasBudget(budget uint64) Option {
	return func(c *Client) { c.gasBudget = budget }
}

// WithLatencyRecorder reports per-call latency, typically to metrics.
func WithLatencyRecorder(r LatencyRecorder) Option {
	return func(c *Client) { c.rpc.latency = r }
}

// NewClient создаёт новый клиент. Requests rotate across urls.
func NewClient(urls []string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("suibc-client")
	rpc, err := newRPCClient(urls, nil, logger)
	if err != nil {
		return nil, err
	}
	c := &Client{rpc: rpc, gasBudget: DefaultGasBudget, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ blockchain.Client = (*Client)(nil)

// GetCoinMetadata returns nil, nil when the node has no metadata.
func (c *Client) GetCoinMetadata(ctx context.Context, coinType string) (*blockchain.CoinMetadata, error) {
	var meta *blockchain.CoinMetadata
	if err := c.rpc.call(ctx, "suix_getCoinMetadata", &meta, coinType); err != nil {
		c.logger.Debug("GetCoinMetadata error", zap.String("coin_type", coinType), zap.Error(err))
		return nil, err
	}
	return meta, nil
}

func (c *Client) GetCoins(ctx context.Context, owner, coinType, cursor string) (*blockchain.CoinPage, error) {
	var cur interface{}
	if cursor != "" {
		cur = cursor
	}
	var page blockchain.CoinPage
	if err := c.rpc.call(ctx, "suix_getCoins", &page, owner, coinType, cur, nil); err != nil {
		c.logger.Debug("GetCoins error", zap.String("owner", owner), zap.String("coin_type", coinType), zap.Error(err))
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetBalance(ctx context.Context, owner, coinType string) (*blockchain.Balance, error) {
	var bal blockchain.Balance
	if err := c.rpc.call(ctx, "suix_getBalance", &bal, owner, coinType); err != nil {
		c.logger.Debug("GetBalance error", zap.String("owner", owner), zap.Error(err))
		return nil, err
	}
	return &bal, nil
}

// GetReferenceGasPrice returns the current epoch's gas price in MIST.
func (c *Client) GetReferenceGasPrice(ctx context.Context) (uint64, error) {
	var price string
	if err := c.rpc.call(ctx, "suix_getReferenceGasPrice", &price); err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(price, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: gas price %q", ErrInvalidResponse, price)
	}
	return v, nil
}

type objectResponse struct {
	Data *struct {
		ObjectID string           `json:"objectId"`
		Version  uint64           `json:"version,string"`
		Digest   string           `json:"digest"`
		Type     string           `json:"type"`
		Owner    blockchain.Owner `json:"owner"`
	} `json:"data"`
	Error *struct {
		Code     string `json:"code"`
		ObjectID string `json:"object_id"`
	} `json:"error"`
}

var objectOptions = map[string]bool{"showContent": true, "showOwner": true, "showType": true}

func decodeObject(raw json.RawMessage) (*blockchain.Object, error) {
	var r objectResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if r.Data == nil {
		code := "missing data"
		if r.Error != nil {
			code = r.Error.Code
		}
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, code)
	}
	return &blockchain.Object{
		ObjectID: r.Data.ObjectID,
		Version:  r.Data.Version,
		Digest:   r.Data.Digest,
		Type:     r.Data.Type,
		Owner:    r.Data.Owner,
		Raw:      raw,
	}, nil
}

func (c *Client) GetObject(ctx context.Context, objectID string) (*blockchain.Object, error) {
	var raw json.RawMessage
	if err := c.rpc.call(ctx, "sui_getObject", &raw, objectID, objectOptions); err != nil {
		c.logger.Debug("GetObject error", zap.String("object_id", objectID), zap.Error(err))
		return nil, err
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", objectID, err)
	}
	return obj, nil
}

// MultiGetObjects fetches objects in chunks, concurrently. The result is
// in the order of ids.
func (c *Client) MultiGetObjects(ctx context.Context, ids []string) ([]*blockchain.Object, error) {
	out := make([]*blockchain.Object, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(ids); start += multiGetChunk {
		start := start
		end := min(start+multiGetChunk, len(ids))
		g.Go(func() error {
			var raws []json.RawMessage
			if err := c.rpc.call(gctx, "sui_multiGetObjects", &raws, ids[start:end], objectOptions); err != nil {
				return err
			}
			if len(raws) != end-start {
				return fmt.Errorf("%w: asked for %d objects, got %d", ErrInvalidResponse, end-start, len(raws))
			}
			for i, raw := range raws {
				obj, err := decodeObject(raw)
				if err != nil {
					return fmt.Errorf("object %s: %w", ids[start+i], err)
				}
				out[start+i] = obj
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Debug("MultiGetObjects error", zap.Int("count", len(ids)), zap.Error(err))
		return nil, err
	}
	return out, nil
}

// ResolveInputs fills in references of unresolved object inputs.
func (c *Client) ResolveInputs(ctx context.Context, tx *ptb.Transaction) error {
	var ids []string
	var idx []int
	for i, in := range tx.Inputs {
		if !in.Resolved() {
			ids = append(ids, in.ObjectID)
			idx = append(idx, i)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	objects, err := c.MultiGetObjects(ctx, ids)
	if err != nil {
		return fmt.Errorf("resolve inputs: %w", err)
	}
	for n, obj := range objects {
		in := &tx.Inputs[idx[n]]
		if obj.Owner.Shared != nil {
			v := obj.Owner.Shared.InitialSharedVersion
			in.InitialSharedVersion = &v
			continue
		}
		in.Ref = &ptb.ObjectRef{ObjectID: obj.ObjectID, Version: obj.Version, Digest: obj.Digest}
	}
	return nil
}

// selectGas picks SUI coins owned by owner, skipping coins already used as
// inputs, until budget is covered.
func (c *Client) selectGas(ctx context.Context, tx *ptb.Transaction, owner string, budget uint64) ([]ptb.ObjectRef, error) {
	used := make(map[string]bool)
	for _, in := range tx.Inputs {
		if in.Kind == ptb.InputObject {
			used[ptb.NormalizeAddress(in.ObjectID)] = true
		}
	}

	var refs []ptb.ObjectRef
	var total uint64
	cursor := ""
	for page := 0; page < maxGasCoinPages; page++ {
		coins, err := c.GetCoins(ctx, owner, suiCoinType, cursor)
		if err != nil {
			return nil, fmt.Errorf("select gas: %w", err)
		}
		for _, coin := range coins.Data {
			if coin.Balance == 0 || used[ptb.NormalizeAddress(coin.CoinObjectID)] {
				continue
			}
			refs = append(refs, ptb.ObjectRef{ObjectID: coin.CoinObjectID, Version: coin.Version, Digest: coin.Digest})
			total += coin.Balance
			if total >= budget || len(refs) == maxGasCoins {
				return refs, nil
			}
		}
		if !coins.HasNextPage || coins.NextCursor == "" {
			break
		}
		cursor = coins.NextCursor
	}
	if len(refs) == 0 {
		return nil, ErrNoGasCoins
	}
	return refs, nil
}

// Build resolves the transaction for sender and returns its BCS bytes.
func (c *Client) Build(ctx context.Context, sender string, tx *ptb.Transaction) ([]byte, error) {
	tx.Sender = sender
	if tx.GasBudget == 0 {
		tx.GasBudget = c.gasBudget
	}
	if err := c.ResolveInputs(ctx, tx); err != nil {
		return nil, err
	}
	if tx.GasPrice == 0 {
		price, err := c.GetReferenceGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("gas price: %w", err)
		}
		tx.GasPrice = price
	}
	if len(tx.GasPayment) == 0 {
		refs, err := c.selectGas(ctx, tx, sender, tx.GasBudget)
		if err != nil {
			return nil, err
		}
		tx.GasPayment = refs
	}
	return EncodeTransactionData(tx)
}

type executeResponse struct {
	Digest  string `json:"digest"`
	Effects struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
	} `json:"effects"`
}

// SignAndExecute builds, signs and submits tx, waiting for local execution.
func (c *Client) SignAndExecute(ctx context.Context, signer blockchain.Signer, tx *ptb.Transaction) (*blockchain.ExecutionResult, error) {
	txBytes, err := c.Build(ctx, signer.Address(), tx)
	if err != nil {
		return nil, err
	}
	sig, err := signer.SignTransaction(txBytes)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return c.ExecuteTransaction(ctx, base64.StdEncoding.EncodeToString(txBytes), sig)
}

// ExecuteTransaction submits base64 transaction bytes with signatures.
func (c *Client) ExecuteTransaction(ctx context.Context, txB64 string, signatures ...string) (*blockchain.ExecutionResult, error) {
	var raw json.RawMessage
	opts := map[string]bool{"showEffects": true, "showObjectChanges": true}
	if err := c.rpc.call(ctx, "sui_executeTransactionBlock", &raw, txB64, signatures, opts, waitForExecution); err != nil {
		c.logger.Error("ExecuteTransaction error", zap.Error(err))
		return nil, err
	}
	var r executeResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &Error{Err: fmt.Errorf("%w: %v", ErrInvalidResponse, err), Method: "sui_executeTransactionBlock"}
	}
	res := &blockchain.ExecutionResult{
		Digest: r.Digest,
		Status: r.Effects.Status.Status,
		Error:  r.Effects.Status.Error,
		Raw:    raw,
	}
	c.logger.Debug("Transaction executed", zap.String("digest", res.Digest), zap.String("status", res.Status))
	return res, nil
}
