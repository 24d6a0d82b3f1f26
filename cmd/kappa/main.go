// =============================
// File: cmd/kappa/main.go
// =============================
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/kappa-sdk/internal/api"
	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain/suibc"
	"github.com/rovshanmuradov/kappa-sdk/internal/config"
	"github.com/rovshanmuradov/kappa-sdk/internal/types"
	"github.com/rovshanmuradov/kappa-sdk/internal/utils/logger"
	"github.com/rovshanmuradov/kappa-sdk/internal/utils/metrics"
	"github.com/rovshanmuradov/kappa-sdk/internal/wallet"
	"github.com/rovshanmuradov/kappa-sdk/pkg/kappa"
)

const usage = `usage: kappa [-config file] [-metrics addr] <command> [flags]

commands:
  quote      price a trade against a live curve
  first-buy  price the first buy on a new curve
  buy        buy tokens with SUI
  sell       sell tokens for SUI
  pnl        value a position against a live curve
  coins      list or search coins
  trending   list trending coins
  factory    resolve a factory address
`

var errUsage = errors.New("bad usage")

type app struct {
	cfg *config.Config
	log *logger.Logger
	sdk *kappa.SDK
	out *json.Encoder
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	global := flag.NewFlagSet("kappa", flag.ContinueOnError)
	configPath := global.String("config", "", "config file (yaml, json or toml)")
	metricsAddr := global.String("metrics", "", "serve prometheus metrics on this address")
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		return errUsage
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	collector := metrics.NewCollector()
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, collector, log.Logger)
	}

	a, err := newApp(cfg, log, collector)
	if err != nil {
		return err
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	done := log.TrackPerformance(cmd)
	defer done()

	switch cmd {
	case "quote":
		return a.quote(ctx, rest)
	case "first-buy":
		return a.firstBuy(rest)
	case "buy":
		return a.buy(ctx, rest)
	case "sell":
		return a.sell(ctx, rest)
	case "pnl":
		return a.pnl(ctx, rest)
	case "coins":
		return a.coins(ctx, rest)
	case "trending":
		return a.trending(ctx, rest)
	case "factory":
		return a.factory(ctx, rest)
	default:
		return errUsage
	}
}

func newApp(cfg *config.Config, log *logger.Logger, collector *metrics.Collector) (*app, error) {
	client, err := suibc.NewClient(cfg.RPCList, log.Logger,
		suibc.WithGasBudget(cfg.GasBudget),
		suibc.WithLatencyRecorder(collector))
	if err != nil {
		return nil, fmt.Errorf("sui client: %w", err)
	}

	settings := kappa.Settings{
		Client:  client,
		APIBase: cfg.APIBase,
		Logger:  log.WithComponent("sdk"),
	}
	if cfg.Factory.Validate() == nil {
		settings.Network = cfg.Factory
	}
	sdk := kappa.New(settings,
		kappa.WithMetrics(collector),
		kappa.WithBuySafetyMargin(cfg.BuySafetyMargin),
		kappa.WithAPIOptions(
			api.WithTimeout(cfg.RequestTimeout),
			api.WithRateLimit(cfg.APIRateLimit, int(cfg.APIRateLimit)),
		),
		kappa.WithRegistryOptions(cfg.RegistryOptions()...),
	)

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	return &app{cfg: cfg, log: log, sdk: sdk, out: out}, nil
}

func serveMetrics(addr string, c *metrics.Collector, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Metrics server stopped", zap.Error(err))
	}
}

func (a *app) print(v interface{}) error {
	return a.out.Encode(v)
}

func (a *app) quote(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	curveID := fs.String("curve", "", "bonding curve object id")
	dir := fs.String("dir", "buy", "buy or sell")
	amount := fs.Uint64("amount", 0, "input amount in smallest units")
	if err := fs.Parse(args); err != nil || *curveID == "" || *amount == 0 {
		return errUsage
	}
	q, err := a.sdk.QuoteCurve(ctx, *curveID, kappa.Direction(*dir), *amount)
	if err != nil {
		return err
	}
	return a.print(q)
}

func (a *app) firstBuy(args []string) error {
	fs := flag.NewFlagSet("first-buy", flag.ContinueOnError)
	amount := fs.Uint64("amount", 0, "SUI to spend in MIST")
	if err := fs.Parse(args); err != nil || *amount == 0 {
		return errUsage
	}
	n := a.sdk.Settings().Network
	return a.print(map[string]interface{}{
		"tokens_out": a.sdk.QuoteFirstBuy(*amount),
		"after":      kappa.SimulatePostFirstBuy(*amount, n.FeeBps, n.InitialInputReserve, n.InitialOutputReserve),
	})
}

// tradeFlags are shared by buy and sell.
type tradeFlags struct {
	fs      *flag.FlagSet
	wallet  *string
	token   *string
	pkg     *string
	amount  *uint64
	minOut  *uint64
	curveID *string
}

func newTradeFlags(name string) *tradeFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &tradeFlags{
		fs:      fs,
		wallet:  fs.String("wallet", "", "wallet name in the wallets file"),
		token:   fs.String("token", "", "coin type, or a name combined with -package"),
		pkg:     fs.String("package", "", "package id of the coin"),
		amount:  fs.Uint64("amount", 0, "amount in smallest units"),
		minOut:  fs.Uint64("min", 0, "minimum output; derived from the curve when 0"),
		curveID: fs.String("curve", "", "bonding curve object id used to derive -min"),
	}
}

func (a *app) params(f *tradeFlags) (kappa.TradeParams, error) {
	if *f.wallet == "" || *f.token == "" {
		return kappa.TradeParams{}, errUsage
	}
	wallets, err := wallet.LoadWallets(a.cfg.WalletsFile)
	if err != nil && len(wallets) == 0 {
		return kappa.TradeParams{}, err
	}
	if err != nil {
		a.log.Warn("Some wallets could not be loaded", zap.Error(err))
	}
	key, ok := wallets[*f.wallet]
	if !ok {
		return kappa.TradeParams{}, fmt.Errorf("wallet %q not found in %s", *f.wallet, a.cfg.WalletsFile)
	}

	p := kappa.TradeParams{
		Key:            key,
		Token:          *f.token,
		PackageID:      *f.pkg,
		Amount:         *f.amount,
		MinOutput:      *f.minOut,
		CurveID:        *f.curveID,
		FactoryAddress: a.cfg.FactoryAddress,
	}
	switch a.cfg.Slippage.Type {
	case types.SlippageBps:
		p.SlippageBps = uint32(a.cfg.Slippage.Value)
	case types.SlippageFixed:
		if p.MinOutput == 0 {
			p.MinOutput = a.cfg.Slippage.Value
		}
	}
	return p, nil
}

func (a *app) report(res *kappa.TradeResult) error {
	if err := a.print(res); err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}

func (a *app) buy(ctx context.Context, args []string) error {
	f := newTradeFlags("buy")
	sui := f.fs.String("sui", "", "SUI to spend in whole units, e.g. 1.5; overrides -amount")
	if err := f.fs.Parse(args); err != nil {
		return errUsage
	}
	if *sui != "" {
		mist, err := parseSui(*sui)
		if err != nil {
			return err
		}
		*f.amount = mist
	}
	if *f.amount == 0 {
		return errUsage
	}
	p, err := a.params(f)
	if err != nil {
		return err
	}
	return a.report(a.sdk.BuyTokens(ctx, p))
}

// parseSui converts whole SUI to MIST, rejecting sub-MIST precision.
func parseSui(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad SUI amount %q: %w", s, err)
	}
	mist := d.Shift(9)
	if mist.Sign() <= 0 || !mist.IsInteger() || !mist.BigInt().IsUint64() {
		return 0, fmt.Errorf("bad SUI amount %q", s)
	}
	return mist.BigInt().Uint64(), nil
}

func (a *app) sell(ctx context.Context, args []string) error {
	f := newTradeFlags("sell")
	percent := f.fs.Float64("percent", 0, "sell this percent of the balance instead of -amount")
	if err := f.fs.Parse(args); err != nil || (*f.amount == 0 && *percent == 0) {
		return errUsage
	}
	p, err := a.params(f)
	if err != nil {
		return err
	}
	if *percent > 0 {
		return a.report(a.sdk.SellPercent(ctx, p, *percent))
	}
	return a.report(a.sdk.SellTokens(ctx, p))
}

func (a *app) pnl(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pnl", flag.ContinueOnError)
	curveID := fs.String("curve", "", "bonding curve object id")
	tokens := fs.Uint64("tokens", 0, "token amount held")
	invested := fs.Uint64("invested", 0, "SUI spent in MIST")
	if err := fs.Parse(args); err != nil || *curveID == "" || *tokens == 0 {
		return errUsage
	}
	t, err := a.sdk.Trader(ctx, a.cfg.FactoryAddress)
	if err != nil {
		return err
	}
	res, err := t.CalculatePnL(ctx, *curveID, *tokens, *invested)
	if err != nil {
		return err
	}
	return a.print(res)
}

func (a *app) coins(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("coins", flag.ContinueOnError)
	search := fs.String("search", "", "name or symbol")
	address := fs.String("address", "", "coin address")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	switch {
	case *address != "":
		c, err := a.sdk.GetCoin(ctx, *address)
		if err != nil {
			return err
		}
		return a.print(c)
	case strings.TrimSpace(*search) != "":
		cs, err := a.sdk.SearchCoins(ctx, *search)
		if err != nil {
			return err
		}
		return a.print(cs)
	default:
		cs, err := a.sdk.ListCoins(ctx)
		if err != nil {
			return err
		}
		return a.print(cs)
	}
}

func (a *app) trending(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trending", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", 20, "page size")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	cs, err := a.sdk.Trending(ctx, *page, *size)
	if err != nil {
		return err
	}
	return a.print(cs)
}

func (a *app) factory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("factory", flag.ContinueOnError)
	address := fs.String("address", a.cfg.FactoryAddress, "factory package id or alias")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	res := a.sdk.Registry().GetDefaultFactory(ctx, *address)
	out := map[string]interface{}{
		"source": res.Source,
		"config": res.Config,
	}
	if res.Err != nil {
		out["error"] = res.Err.Error()
	}
	return a.print(out)
}
