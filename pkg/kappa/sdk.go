// Package kappa is the public entry point of the Kappa SDK: trading,
// quoting and coin discovery on Kappa bonding curves.
//
// An SDK holds its settings behind a lock. Set* methods change them in
// place; With* methods return a derived SDK with its own copy, which is the
// way to run trades against different networks side by side.
package kappa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/kappa-sdk/internal/api"
	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain"
	curve "github.com/rovshanmuradov/kappa-sdk/internal/dex/kappa"
	"github.com/rovshanmuradov/kappa-sdk/internal/factory"
	"github.com/rovshanmuradov/kappa-sdk/internal/utils/logger"
	"github.com/rovshanmuradov/kappa-sdk/internal/utils/metrics"
	"github.com/rovshanmuradov/kappa-sdk/internal/wallet"
)

var (
	ErrNoClient = errors.New("kappa: no sui client configured")

	// ErrFactoryFallback is returned when a named factory could not be
	// resolved and trading against the default deployment is not allowed.
	ErrFactoryFallback = errors.New("kappa: factory could not be resolved")
)

// SourceSettings tags trades that ran against Settings.Network.
const SourceSettings factory.Source = "settings"

// Settings is the state a trade runs with.
type Settings struct {
	Client  blockchain.Client
	Network factory.Config
	APIBase string
	Logger  *zap.Logger
}

// NetworkUpdate changes only the fields that are set.
type NetworkUpdate struct {
	BondingContractAddress   string
	ConfigObjectAddress      string
	GlobalPauseStatusAddress string
	PoolsRegistryAddress     string
	LpBurnManagerAddress     string
	ModuleName               string
	Alias                    string
	DisplayName              string
	FeeBps                   *uint64
	InitialInputReserve      uint64
	InitialOutputReserve     uint64
}

func (u NetworkUpdate) apply(c factory.Config) factory.Config {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.BondingContractAddress, u.BondingContractAddress)
	set(&c.ConfigObjectAddress, u.ConfigObjectAddress)
	set(&c.GlobalPauseStatusAddress, u.GlobalPauseStatusAddress)
	set(&c.PoolsRegistryAddress, u.PoolsRegistryAddress)
	set(&c.LpBurnManagerAddress, u.LpBurnManagerAddress)
	set(&c.ModuleName, u.ModuleName)
	set(&c.Alias, u.Alias)
	set(&c.DisplayName, u.DisplayName)
	if u.FeeBps != nil {
		c.FeeBps = *u.FeeBps
	}
	if u.InitialInputReserve != 0 {
		c.InitialInputReserve = u.InitialInputReserve
	}
	if u.InitialOutputReserve != 0 {
		c.InitialOutputReserve = u.InitialOutputReserve
	}
	return c
}

// SDK is safe for concurrent use.
type SDK struct {
	mu       sync.RWMutex
	settings Settings
	hook     logger.Hook
	margin   float64
	metrics  *metrics.Collector
	apiOpts  []api.Option
	regOpts  []factory.Option
	fallback bool

	// built from settings.APIBase on first use
	api      *api.Client
	registry *factory.Registry
	tokens   *tokenCache
}

type Option func(*SDK)

// WithMetrics records trades, quotes, API calls and factory resolutions.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *SDK) { s.metrics = c }
}

func WithLogHook(h logger.Hook) Option {
	return func(s *SDK) { s.hook = h }
}

// WithBuySafetyMargin overrides curve.DefaultBuySafetyMargin.
func WithBuySafetyMargin(margin float64) Option {
	return func(s *SDK) { s.margin = margin }
}

// WithAPIOptions passes options to the metadata API client.
func WithAPIOptions(opts ...api.Option) Option {
	return func(s *SDK) { s.apiOpts = append(s.apiOpts, opts...) }
}

// WithRegistryOptions passes options to the factory registry.
func WithRegistryOptions(opts ...factory.Option) Option {
	return func(s *SDK) { s.regOpts = append(s.regOpts, opts...) }
}

// WithFactoryFallback lets trades naming a factory run against the default
// deployment when the factory cannot be resolved. Off by default.
func WithFactoryFallback(allow bool) Option {
	return func(s *SDK) { s.fallback = allow }
}

// New creates an SDK. An empty Network is the default deployment; missing
// fee and genesis values are defaulted.
func New(settings Settings, opts ...Option) *SDK {
	if settings.Network == (factory.Config{}) {
		settings.Network = factory.DefaultConfig()
	}
	settings.Network = settings.Network.WithDefaults()
	if settings.APIBase == "" {
		settings.APIBase = api.DefaultBaseURL
	}
	s := &SDK{settings: settings, margin: curve.DefaultBuySafetyMargin}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns a snapshot of the current settings.
func (s *SDK) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *SDK) SetSuiClient(c blockchain.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Client = c
}

// SetNetworkConfig merges u over the current deployment.
func (s *SDK) SetNetworkConfig(u NetworkUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Network = u.apply(s.settings.Network)
}

func (s *SDK) SetLogger(l *zap.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Logger = l
	s.api, s.registry, s.tokens = nil, nil, nil
}

// SetLogHook installs a callback that receives every log entry. A hook
// that panics is ignored.
func (s *SDK) SetLogHook(h logger.Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
	s.api, s.registry, s.tokens = nil, nil, nil
}

func (s *SDK) SetAPIBase(base string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if base == "" {
		base = api.DefaultBaseURL
	}
	s.settings.APIBase = base
	s.api, s.registry, s.tokens = nil, nil, nil
}

// derive copies s and lets mutate change the copy's settings.
func (s *SDK) derive(mutate func(*Settings)) *SDK {
	s.mu.RLock()
	d := &SDK{
		settings: s.settings,
		hook:     s.hook,
		margin:   s.margin,
		metrics:  s.metrics,
		apiOpts:  s.apiOpts,
		regOpts:  s.regOpts,
		fallback: s.fallback,
	}
	base, l := s.settings.APIBase, s.settings.Logger
	s.mu.RUnlock()

	mutate(&d.settings)
	if d.settings.APIBase == base && d.settings.Logger == l {
		// share the factory and coin caches
		d.api, d.registry = s.clients()
		d.tokens = s.tokenCache()
	}
	return d
}

func (s *SDK) WithClient(c blockchain.Client) *SDK {
	return s.derive(func(st *Settings) { st.Client = c })
}

func (s *SDK) WithNetworkConfig(u NetworkUpdate) *SDK {
	return s.derive(func(st *Settings) { st.Network = u.apply(st.Network) })
}

func (s *SDK) WithLogger(l *zap.Logger) *SDK {
	return s.derive(func(st *Settings) { st.Logger = l })
}

func (s *SDK) WithAPIBase(base string) *SDK {
	return s.derive(func(st *Settings) {
		if base == "" {
			base = api.DefaultBaseURL
		}
		st.APIBase = base
	})
}

func (s *SDK) logger() *zap.Logger {
	s.mu.RLock()
	l, hook := s.settings.Logger, s.hook
	s.mu.RUnlock()
	if l == nil {
		l = zap.NewNop()
	}
	return logger.WithHook(l, hook)
}

// clients returns the API client and factory registry, building them on
// first use.
func (s *SDK) clients() (*api.Client, *factory.Registry) {
	s.mu.RLock()
	c, r := s.api, s.registry
	s.mu.RUnlock()
	if c != nil {
		return c, r
	}

	l := s.logger()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.api != nil {
		return s.api, s.registry
	}
	opts := append([]api.Option(nil), s.apiOpts...)
	regOpts := append([]factory.Option(nil), s.regOpts...)
	if s.metrics != nil {
		opts = append(opts, api.WithRecorder(s.metrics))
		regOpts = append(regOpts, factory.WithRecorder(s.metrics))
	}
	s.api = api.NewClient(s.settings.APIBase, l, opts...)
	s.registry = factory.NewRegistry(s.api, l, regOpts...)
	if s.tokens == nil {
		s.tokens = newTokenCache()
	}
	return s.api, s.registry
}

func (s *SDK) tokenCache() *tokenCache {
	s.clients()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// API returns the metadata API client for the current base URL.
func (s *SDK) API() *api.Client {
	c, _ := s.clients()
	return c
}

// Registry returns the factory registry backed by the current API.
func (s *SDK) Registry() *factory.Registry {
	_, r := s.clients()
	return r
}

// ResolveFactory resolves a factory address. It never fails: a lookup that
// cannot complete yields the default deployment tagged as a fallback.
func (s *SDK) ResolveFactory(ctx context.Context, address string) factory.Resolution {
	return s.Registry().Resolve(ctx, address)
}

func (s *SDK) ListCoins(ctx context.Context) ([]api.Coin, error) {
	return s.API().ListCoins(ctx)
}

func (s *SDK) Trending(ctx context.Context, page, size int) ([]api.Coin, error) {
	return s.API().Trending(ctx, page, size)
}

func (s *SDK) SearchCoins(ctx context.Context, nameOrSymbol string) ([]api.Coin, error) {
	return s.API().Search(ctx, nameOrSymbol)
}

func (s *SDK) GetCoin(ctx context.Context, address string) (*api.Coin, error) {
	return s.API().GetCoin(ctx, address)
}

// TradeParams is one buy or sell. One credential is used: Signer, then
// Key, then SecretKey.
type TradeParams struct {
	SecretKey string
	Key       *wallet.RawKey
	Signer    wallet.SignerHandle

	// Token is a fully-qualified coin type, or a name or symbol combined
	// with PackageID. ModuleName/TypeName take precedence over guessing.
	Token      string
	PackageID  string
	ModuleName string
	TypeName   string

	Amount      uint64
	MinOutput   uint64
	SlippageBps uint32
	CurveID     string

	// FactoryAddress trades against a deployment other than Network.
	FactoryAddress string
}

func (p TradeParams) credential() (wallet.Credential, error) {
	if p.Signer != nil {
		return wallet.NewExternalSigner(p.Signer)
	}
	if p.Key != nil {
		return p.Key, nil
	}
	if p.SecretKey == "" {
		return nil, curve.ErrMissingCredential
	}
	return wallet.NewRawKey(p.SecretKey)
}

func (p TradeParams) token() curve.TokenRef {
	if strings.Contains(p.Token, "::") {
		return curve.TokenRef{CoinType: p.Token}
	}
	return curve.TokenRef{
		PackageID:  p.PackageID,
		ModuleName: p.ModuleName,
		TypeName:   p.TypeName,
		Name:       p.Token,
		Symbol:     p.Token,
	}
}

// Trader returns a trader bound to a snapshot of the current settings.
// A factory that falls back to the default deployment is only logged.
func (s *SDK) Trader(ctx context.Context, factoryAddress string) (*curve.Trader, error) {
	t, _, err := s.trader(ctx, factoryAddress, true)
	return t, err
}

func (s *SDK) trader(ctx context.Context, factoryAddress string, allowFallback bool) (*curve.Trader, factory.Source, error) {
	st := s.Settings()
	if st.Client == nil {
		return nil, "", ErrNoClient
	}
	l := s.logger()
	network, src := st.Network, SourceSettings
	if factoryAddress != "" {
		res := s.ResolveFactory(ctx, factoryAddress)
		if res.IsFallback() {
			if !allowFallback {
				return nil, res.Source, fmt.Errorf("%w: %s: %v", ErrFactoryFallback, factoryAddress, res.Err)
			}
			l.Warn("Factory lookup fell back to default",
				zap.String("factory", factoryAddress), zap.Error(res.Err))
		}
		network, src = res.Config, res.Source
	}

	opts := []curve.TraderOption{curve.WithBuySafetyMargin(s.margin)}
	if s.metrics != nil {
		opts = append(opts, curve.WithTradeRecorder(s.metrics))
	}
	return curve.NewTrader(st.Client, network, l, opts...), src, nil
}

// request fills a missing factory or curve from the coin's API record and
// builds the trader. A factory named by the caller or the API must resolve
// unless WithFactoryFallback is set.
func (s *SDK) request(ctx context.Context, p TradeParams) (*curve.Trader, curve.TradeRequest, factory.Source, error) {
	cred, err := p.credential()
	if err != nil {
		return nil, curve.TradeRequest{}, "", err
	}
	if s.Settings().Client == nil {
		return nil, curve.TradeRequest{}, "", ErrNoClient
	}

	token := p.token()
	if p.FactoryAddress == "" || p.CurveID == "" {
		if coinType, err := token.Resolve(); err == nil {
			info := s.lookupToken(ctx, coinType)
			if p.FactoryAddress == "" {
				p.FactoryAddress = info.FactoryAddress
			}
			if p.CurveID == "" {
				p.CurveID = info.CurveID
			}
		}
	}

	t, src, err := s.trader(ctx, p.FactoryAddress, s.fallback)
	if err != nil {
		return nil, curve.TradeRequest{}, src, err
	}
	return t, curve.TradeRequest{
		Credential:  cred,
		Token:       token,
		Amount:      p.Amount,
		MinOutput:   p.MinOutput,
		SlippageBps: p.SlippageBps,
		CurveID:     p.CurveID,
	}, src, nil
}

func tagged(res *TradeResult, src factory.Source) *TradeResult {
	res.FactorySource = string(src)
	return res
}

// BuyTokens spends p.Amount MIST. Every failure is reported in the result.
func (s *SDK) BuyTokens(ctx context.Context, p TradeParams) *TradeResult {
	t, req, src, err := s.request(ctx, p)
	if err != nil {
		return tagged(&TradeResult{Error: err.Error()}, src)
	}
	return tagged(t.Buy(ctx, req), src)
}

// SellTokens sells p.Amount token units.
func (s *SDK) SellTokens(ctx context.Context, p TradeParams) *TradeResult {
	t, req, src, err := s.request(ctx, p)
	if err != nil {
		return tagged(&TradeResult{Error: err.Error()}, src)
	}
	return tagged(t.Sell(ctx, req), src)
}

// SellPercent sells percent of the signer's balance; p.Amount is ignored.
func (s *SDK) SellPercent(ctx context.Context, p TradeParams, percent float64) *TradeResult {
	t, req, src, err := s.request(ctx, p)
	if err != nil {
		return tagged(&TradeResult{Error: err.Error()}, src)
	}
	return tagged(t.SellPercent(ctx, req, percent), src)
}

// QuoteCurve prices amount against the live curve object curveID.
func (s *SDK) QuoteCurve(ctx context.Context, curveID string, dir Direction, amount uint64) (*TradeQuote, error) {
	t, err := s.Trader(ctx, "")
	if err != nil {
		return nil, err
	}
	q, err := t.Quote(ctx, curveID, dir, amount)
	if s.metrics != nil {
		s.metrics.RecordQuote(string(dir), err == nil)
	}
	return q, err
}

// QuoteFirstBuy previews the first buy on a new curve of the current
// deployment.
func (s *SDK) QuoteFirstBuy(input uint64) uint64 {
	n := s.Settings().Network
	out := curve.QuoteFirstBuy(input, n.FeeBps, n.InitialInputReserve, n.InitialOutputReserve)
	if s.metrics != nil {
		s.metrics.RecordQuote("first_buy", out > 0)
	}
	return out
}
