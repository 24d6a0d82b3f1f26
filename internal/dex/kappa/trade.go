// =============================
// File: internal/dex/kappa/trade.go
// =============================
package kappa

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain"
	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain/ptb"
	"github.com/rovshanmuradov/kappa-sdk/internal/factory"
	"github.com/rovshanmuradov/kappa-sdk/internal/types"
	"github.com/rovshanmuradov/kappa-sdk/internal/utils/logger"
	"github.com/rovshanmuradov/kappa-sdk/internal/wallet"
)

const (
	// DefaultBuySafetyMargin is applied to the caller's minimum output on
	// buys, on top of any slippage already folded into it.
	DefaultBuySafetyMargin = 0.9

	// MaxCoinPages bounds coin enumeration on sell.
	MaxCoinPages = 30
	// MaxMergeCoins bounds how many coins are merged into the primary one.
	MaxMergeCoins = 300

	buyFunction  = "buy"
	sellFunction = "sell_"
)

// Argument kinds reported in an Operation.
const (
	ArgKindObject = "object"
	ArgKindPure   = "pure"
	ArgKindCoin   = "coin"
)

// ArgumentDesc describes one positional argument of the entry call.
type ArgumentDesc struct {
	Kind  string
	Value string
}

// Operation is a built entry call and the transaction carrying it.
type Operation struct {
	Target        string
	TypeArguments []string
	Arguments     []ArgumentDesc
	Transaction   *ptb.Transaction

	bound uint64
}

// Bound returns the output bound encoded in the call.
func (o *Operation) Bound() uint64 { return o.bound }

// Recorder receives trade observations.
type Recorder interface {
	RecordTrade(ctx context.Context, direction string, duration time.Duration, success bool)
	RecordCoinPages(pages int)
}

// TradeRequest is what a caller supplies for one buy or sell.
type TradeRequest struct {
	Credential wallet.Credential
	Token      TokenRef
	// Amount is MIST for buys and token units for sells.
	Amount    uint64
	MinOutput uint64
	// SlippageBps derives MinOutput from a live quote when MinOutput is 0
	// and CurveID is set.
	SlippageBps uint32
	CurveID     string
}

// Trader builds and submits trades against one factory deployment.
type Trader struct {
	client   blockchain.Client
	factory  factory.Config
	logger   *zap.Logger
	margin   float64
	recorder Recorder

	abortCodes map[uint64]struct{}
}

type TraderOption func(*Trader)

// WithBuySafetyMargin overrides DefaultBuySafetyMargin. 1 disables it.
func WithBuySafetyMargin(margin float64) TraderOption {
	return func(t *Trader) { t.margin = margin }
}

func WithTradeRecorder(r Recorder) TraderOption {
	return func(t *Trader) { t.recorder = r }
}

// WithSlippageAbortCodes treats MoveAbort with any of codes as a violated
// bound.
func WithSlippageAbortCodes(codes ...uint64) TraderOption {
	return func(t *Trader) {
		if t.abortCodes == nil {
			t.abortCodes = make(map[uint64]struct{}, len(codes))
		}
		for _, c := range codes {
			t.abortCodes[c] = struct{}{}
		}
	}
}

// NewTrader creates a trader for cfg. Missing genesis values are defaulted;
// the fee is used as given.
func NewTrader(client blockchain.Client, cfg factory.Config, logger *zap.Logger, opts ...TraderOption) *Trader {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Trader{
		client:  client,
		factory: cfg.WithDefaults(),
		logger:  logger.Named("kappa-trader"),
		margin:  DefaultBuySafetyMargin,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Factory returns the deployment the trader builds against.
func (t *Trader) Factory() factory.Config { return t.factory }

// Buy spends req.Amount MIST on the token. Failures are reported in the
// result, never returned or panicked.
func (t *Trader) Buy(ctx context.Context, req TradeRequest) *TradeResult {
	return t.run(ctx, DirectionBuy, req, t.BuildBuy)
}

// Sell sells req.Amount token units and transfers the proceeds to the
// sender.
func (t *Trader) Sell(ctx context.Context, req TradeRequest) *TradeResult {
	return t.run(ctx, DirectionSell, req, t.BuildSell)
}

type buildFunc func(ctx context.Context, req TradeRequest) (*Operation, *TradeQuote, error)

func (t *Trader) run(ctx context.Context, dir Direction, req TradeRequest, build buildFunc) (res *TradeResult) {
	start := time.Now()
	coinType, _ := req.Token.Resolve()
	log := logger.Wrap(logger.Wrap(t.logger).WithTrade(string(dir), coinType, req.Amount))

	defer func() {
		if p := recover(); p != nil {
			log.Error("Trade panicked", zap.Any("panic", p), zap.Stack("stack"))
			res = failure(fmt.Errorf("internal error: %v", p))
		}
		if t.recorder != nil {
			t.recorder.RecordTrade(ctx, string(dir), time.Since(start), res.Success)
		}
	}()

	op, quote, err := build(ctx, req)
	if err != nil {
		log.Warn("Failed to build trade", zap.Error(err))
		return failure(err)
	}

	exec, err := t.execute(ctx, req.Credential, op.Transaction)
	if err == nil && !exec.Succeeded() {
		err = executionError(exec)
	}
	if err != nil {
		if IsSlippageExceededError(err) || t.isBoundAbort(err) {
			err = &SlippageExceededError{Direction: dir, Bound: op.bound, OriginalError: err}
		}
		log.LogError("Trade execution failed", err,
			zap.String("target", op.Target),
			zap.String("status", logger.TradeFailed))
		res = failure(err)
		res.Operation, res.Quote = op, quote
		if exec != nil {
			res.Digest = exec.Digest
		}
		return res
	}

	log.WithTransaction(exec.Digest).Info("Trade executed",
		zap.String("target", op.Target),
		zap.String("status", logger.TradeCompleted),
		zap.Uint64("bound", op.bound),
		zap.Duration("elapsed", time.Since(start)))

	return &TradeResult{Success: true, Digest: exec.Digest, Operation: op, Quote: quote}
}

func (t *Trader) isBoundAbort(err error) bool {
	code, ok := MoveAbortCode(err)
	if !ok {
		return false
	}
	_, hit := t.abortCodes[code]
	return hit
}

func executionError(exec *blockchain.ExecutionResult) error {
	if exec == nil {
		return fmt.Errorf("transaction failed: no execution result")
	}
	return fmt.Errorf("transaction %s failed: %s", exec.Digest, exec.Error)
}

func (t *Trader) execute(ctx context.Context, cred wallet.Credential, tx *ptb.Transaction) (*blockchain.ExecutionResult, error) {
	switch c := cred.(type) {
	case *wallet.RawKey:
		return t.client.SignAndExecute(ctx, c, tx)
	case *wallet.ExternalSigner:
		return c.Handle.SignAndExecuteTransaction(ctx, tx)
	default:
		return nil, fmt.Errorf("%w: unsupported credential %T", ErrMissingCredential, cred)
	}
}

func senderOf(cred wallet.Credential) (string, error) {
	switch c := cred.(type) {
	case *wallet.RawKey:
		if c != nil {
			return c.Address(), nil
		}
	case *wallet.ExternalSigner:
		if c != nil && c.Handle != nil {
			return c.Handle.Address(), nil
		}
	}
	return "", ErrMissingCredential
}

// prepare runs the checks shared by both directions.
func (t *Trader) prepare(dir Direction, req TradeRequest) (sender string, intent TradeIntent, err error) {
	if sender, err = senderOf(req.Credential); err != nil {
		return "", TradeIntent{}, err
	}
	coinType, err := req.Token.Resolve()
	if err != nil {
		return "", TradeIntent{}, err
	}
	intent = TradeIntent{
		Direction:   dir,
		TokenType:   coinType,
		InputAmount: req.Amount,
		SlippageBps: req.SlippageBps,
		MinOutput:   req.MinOutput,
	}
	if err = intent.Validate(); err != nil {
		return "", TradeIntent{}, err
	}
	if err = t.factory.Validate(); err != nil {
		return "", TradeIntent{}, err
	}
	return sender, intent, nil
}

// BuildBuy builds the buy transaction without signing it.
func (t *Trader) BuildBuy(ctx context.Context, req TradeRequest) (*Operation, *TradeQuote, error) {
	sender, intent, err := t.prepare(DirectionBuy, req)
	if err != nil {
		return nil, nil, err
	}

	quote, minOut := t.minOutput(ctx, intent, req.CurveID)
	bound := types.ApplyMargin(minOut, t.margin)

	suiMeta, tokenMeta, err := t.metadata(ctx, intent.TokenType)
	if err != nil {
		return nil, nil, err
	}

	tx := ptb.New()
	tx.Sender = sender
	payment := tx.SplitCoins(ptb.GasCoin, tx.PureU64(intent.InputAmount))[0]

	call := newCall(tx)
	call.object(t.factory.GlobalPauseStatusAddress, true)
	call.object(t.factory.PoolsRegistryAddress, true)
	call.object(t.factory.LpBurnManagerAddress, true)
	call.object(suiMeta.ID, false)
	call.object(tokenMeta.ID, false)
	call.object(t.factory.ConfigObjectAddress, true)
	call.coin(payment, "split(gas)")
	call.pureBool(true)
	call.pureU64(bound)
	call.object(ptb.ClockObjectID, false)

	op := call.finish(t.factory, buyFunction, intent.TokenType)
	op.bound = bound

	t.logger.Debug("Built buy",
		zap.String("coin_type", intent.TokenType),
		zap.Uint64("min_output", minOut),
		zap.Uint64("bound", bound),
		zap.Float64("margin", t.margin))
	return op, quote, nil
}

// BuildSell builds the sell transaction without signing it.
func (t *Trader) BuildSell(ctx context.Context, req TradeRequest) (*Operation, *TradeQuote, error) {
	sender, intent, err := t.prepare(DirectionSell, req)
	if err != nil {
		return nil, nil, err
	}

	coins, err := t.spendableCoins(ctx, sender, intent.TokenType)
	if err != nil {
		return nil, nil, err
	}
	if len(coins) > MaxMergeCoins+1 {
		coins = coins[:MaxMergeCoins+1]
	}
	var total uint64
	for _, c := range coins {
		total += c.Balance
	}
	if total < intent.InputAmount {
		return nil, nil, fmt.Errorf("%w: have %d, want %d", ErrInsufficientInput, total, intent.InputAmount)
	}

	quote, minOut := t.minOutput(ctx, intent, req.CurveID)

	tx := ptb.New()
	tx.Sender = sender
	primary := tx.ObjectWithRef(coinRef(coins[0]))
	if len(coins) > 1 {
		sources := make([]ptb.Argument, 0, len(coins)-1)
		for _, c := range coins[1:] {
			sources = append(sources, tx.ObjectWithRef(coinRef(c)))
		}
		tx.MergeCoins(primary, sources...)
	}
	piece := tx.SplitCoins(primary, tx.PureU64(intent.InputAmount))[0]

	call := newCall(tx)
	call.object(t.factory.ConfigObjectAddress, true)
	call.coin(piece, "split("+coins[0].CoinObjectID+")")
	call.pureBool(true)
	call.pureU64(minOut)
	call.object(ptb.ClockObjectID, false)

	op := call.finish(t.factory, sellFunction, intent.TokenType)
	op.bound = minOut

	recipient, err := tx.PureAddress(sender)
	if err != nil {
		return nil, nil, err
	}
	tx.TransferObjects([]ptb.Argument{call.result}, recipient)

	t.logger.Debug("Built sell",
		zap.String("coin_type", intent.TokenType),
		zap.Int("coins", len(coins)),
		zap.Uint64("min_output", minOut))
	return op, quote, nil
}

// minOutput returns the quote, when one is available, and the bound to
// encode before any safety margin.
func (t *Trader) minOutput(ctx context.Context, intent TradeIntent, curveID string) (*TradeQuote, uint64) {
	if curveID == "" {
		if intent.MinOutput == 0 {
			t.logger.Warn("No minimum output and no curve to quote; trade is unbounded",
				zap.String("coin_type", intent.TokenType))
		}
		return nil, intent.MinOutput
	}

	quote, err := t.Quote(ctx, curveID, intent.Direction, intent.InputAmount)
	if err != nil {
		t.logger.Warn("Quote unavailable", zap.String("curve", curveID), zap.Error(err))
		return nil, intent.MinOutput
	}
	if intent.MinOutput > 0 {
		return quote, intent.MinOutput
	}
	slippage := types.SlippageConfig{Type: types.SlippageBps, Value: uint64(intent.SlippageBps)}
	return quote, types.CalculateMinAmountOut(quote.ExpectedOutput, slippage)
}

// CurveState fetches and parses the curve object.
func (t *Trader) CurveState(ctx context.Context, curveID string) (CurveState, error) {
	obj, err := t.client.GetObject(ctx, curveID)
	if err != nil {
		return CurveState{}, fmt.Errorf("fetch curve %s: %w", curveID, err)
	}
	return ParseCurveState(obj.Raw)
}

// Quote prices amount against the live curve.
func (t *Trader) Quote(ctx context.Context, curveID string, dir Direction, amount uint64) (*TradeQuote, error) {
	if dir != DirectionBuy && dir != DirectionSell {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidIntent, dir)
	}
	state, err := t.CurveState(ctx, curveID)
	if err != nil {
		return nil, err
	}
	var q TradeQuote
	if dir == DirectionBuy {
		q = QuoteBuyDetailed(state, amount, t.factory.FeeBps)
	} else {
		q = QuoteSellDetailed(state, amount, t.factory.FeeBps)
	}
	if q.ExpectedOutput == 0 {
		return nil, ErrNoQuote
	}
	return &q, nil
}

func (t *Trader) metadata(ctx context.Context, coinType string) (sui, token *blockchain.CoinMetadata, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(guarded(func() error {
		m, err := t.fetchMetadata(gctx, SuiCoinType)
		sui = m
		return err
	}))
	g.Go(guarded(func() error {
		m, err := t.fetchMetadata(gctx, coinType)
		token = m
		return err
	}))
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sui, token, nil
}

// guarded turns a panic in a worker goroutine into an error, since the
// recover in run only covers the calling goroutine.
func guarded(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("internal error: %v", p)
			}
		}()
		return fn()
	}
}

func (t *Trader) fetchMetadata(ctx context.Context, coinType string) (*blockchain.CoinMetadata, error) {
	m, err := t.client.GetCoinMetadata(ctx, coinType)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for %s: %w", coinType, err)
	}
	if m == nil || m.ID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMetadataNotFound, coinType)
	}
	return m, nil
}

// spendableCoins lists owner's coins with a positive balance, reading at
// most MaxCoinPages pages.
func (t *Trader) spendableCoins(ctx context.Context, owner, coinType string) ([]blockchain.Coin, error) {
	var (
		coins  []blockchain.Coin
		cursor string
		pages  int
		more   bool
	)
	for pages < MaxCoinPages {
		page, err := t.client.GetCoins(ctx, owner, coinType, cursor)
		pages++
		if err != nil {
			return nil, fmt.Errorf("list coins page %d: %w", pages, err)
		}
		if page == nil {
			break
		}
		for _, c := range page.Data {
			if c.Balance > 0 {
				coins = append(coins, c)
			}
		}
		more = page.HasNextPage && page.NextCursor != ""
		if !more {
			break
		}
		cursor = page.NextCursor
	}
	if t.recorder != nil {
		t.recorder.RecordCoinPages(pages)
	}
	if more {
		t.logger.Warn("Coin enumeration truncated",
			zap.String("coin_type", coinType),
			zap.Int("pages", pages),
			zap.Int("coins", len(coins)))
	}
	if len(coins) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSpendableInput, coinType)
	}
	return coins, nil
}

func coinRef(c blockchain.Coin) ptb.ObjectRef {
	return ptb.ObjectRef{ObjectID: c.CoinObjectID, Version: c.Version, Digest: c.Digest}
}

// call accumulates entry-call arguments together with their description.
type call struct {
	tx     *ptb.Transaction
	args   []ptb.Argument
	desc   []ArgumentDesc
	result ptb.Argument
}

func newCall(tx *ptb.Transaction) *call {
	return &call{tx: tx}
}

func (c *call) object(id string, mutable bool) {
	if mutable {
		c.args = append(c.args, c.tx.Object(id))
	} else {
		c.args = append(c.args, c.tx.ReadOnlyObject(id))
	}
	c.desc = append(c.desc, ArgumentDesc{Kind: ArgKindObject, Value: id})
}

func (c *call) coin(arg ptb.Argument, label string) {
	c.args = append(c.args, arg)
	c.desc = append(c.desc, ArgumentDesc{Kind: ArgKindCoin, Value: label})
}

func (c *call) pureBool(v bool) {
	c.args = append(c.args, c.tx.PureBool(v))
	c.desc = append(c.desc, ArgumentDesc{Kind: ArgKindPure, Value: strconv.FormatBool(v)})
}

func (c *call) pureU64(v uint64) {
	c.args = append(c.args, c.tx.PureU64(v))
	c.desc = append(c.desc, ArgumentDesc{Kind: ArgKindPure, Value: strconv.FormatUint(v, 10)})
}

func (c *call) finish(cfg factory.Config, function, coinType string) *Operation {
	typeArgs := []string{coinType}
	c.result = c.tx.MoveCall(cfg.BondingContractAddress, cfg.ModuleName, function, typeArgs, c.args...)
	return &Operation{
		Target:        ptb.MoveCall{Package: cfg.BondingContractAddress, Module: cfg.ModuleName, Function: function}.Target(),
		TypeArguments: typeArgs,
		Arguments:     c.desc,
		Transaction:   c.tx,
	}
}
