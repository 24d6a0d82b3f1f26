// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/rovshanmuradov/kappa-sdk/internal/factory"
	"github.com/rovshanmuradov/kappa-sdk/internal/types"
	"github.com/rovshanmuradov/kappa-sdk/internal/utils/logger"
)

const envPrefix = "KAPPA"

type Config struct {
	RPCList        []string      `mapstructure:"rpc_list"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	APIRateLimit   float64       `mapstructure:"api_rate_limit"`
	GasBudget      uint64        `mapstructure:"gas_budget"`

	// FactoryAddress selects a deployment through the registry. Factory,
	// when complete, is used as a static entry for it.
	FactoryAddress string         `mapstructure:"factory_address"`
	Factory        factory.Config `mapstructure:"factory"`
	FactoryTTL     time.Duration  `mapstructure:"factory_ttl"`

	Slippage        types.SlippageConfig `mapstructure:"slippage"`
	BuySafetyMargin float64              `mapstructure:"buy_safety_margin"`

	WalletsFile string        `mapstructure:"wallets_file"`
	Log         logger.Config `mapstructure:"log"`
}

const (
	DefaultRPCURL          = "https://fullnode.mainnet.sui.io:443"
	DefaultAPIBase         = "https://api.kappa.fun"
	DefaultRequestTimeout  = 10 * time.Second
	DefaultAPIRateLimit    = 10.0
	DefaultGasBudget       = 50_000_000
	DefaultSlippageBps     = 100
	DefaultBuySafetyMargin = 0.9
	DefaultWalletsFile     = "wallets.yaml"
)

// LoadConfig reads path (optional) on top of defaults, then applies
// KAPPA_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaultLog := logger.DefaultConfig()
	defaults := map[string]interface{}{
		"rpc_list":          []string{DefaultRPCURL},
		"api_base":          DefaultAPIBase,
		"request_timeout":   DefaultRequestTimeout,
		"api_rate_limit":    DefaultAPIRateLimit,
		"gas_budget":        DefaultGasBudget,
		"factory_ttl":       factory.DefaultTTL,
		"factory.fee_bps":   factory.DefaultFeeBps,
		"slippage.type":     string(types.SlippageBps),
		"slippage.value":    DefaultSlippageBps,
		"buy_safety_margin": DefaultBuySafetyMargin,
		"wallets_file":      DefaultWalletsFile,
		"log.file":          defaultLog.LogFile,
		"log.level":         defaultLog.Level,
		"log.max_size":      defaultLog.MaxSize,
		"log.max_age":       defaultLog.MaxAge,
		"log.max_backups":   defaultLog.MaxBackups,
		"log.compress":      defaultLog.Compress,
		"log.development":   defaultLog.Development,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if err := validateURLWithCache(cfg.APIBase, "http"); err != nil {
		return fmt.Errorf("invalid api_base %q: %w", cfg.APIBase, err)
	}
	if cfg.RequestTimeout <= 0 {
		return errors.New("invalid request_timeout")
	}
	if cfg.APIRateLimit < 0 {
		return errors.New("invalid api_rate_limit")
	}
	switch cfg.Slippage.Type {
	case types.SlippageBps:
		if cfg.Slippage.Value > 10_000 {
			return errors.New("slippage.value must be at most 10000 bps")
		}
	case types.SlippageFixed, types.SlippageNone:
	default:
		return fmt.Errorf("unknown slippage.type %q", cfg.Slippage.Type)
	}
	if cfg.BuySafetyMargin <= 0 || cfg.BuySafetyMargin > 1 {
		return errors.New("buy_safety_margin must be in (0, 1]")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

// loadEnvironmentVariables covers the list-valued keys AutomaticEnv cannot
// split.
func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	envRPCList := v.GetString("RPC_LIST")
	if envRPCList == "" || !strings.Contains(envRPCList, ",") {
		return
	}
	var cleanRPCs []string
	for _, rpc := range strings.Split(envRPCList, ",") {
		clean := strings.TrimSpace(rpc)
		if clean != "" {
			cleanRPCs = append(cleanRPCs, clean)
		}
	}
	if len(cleanRPCs) > 0 {
		cfg.RPCList = cleanRPCs
	}
}

// RegistryOptions returns the factory registry options implied by the
// config.
func (c *Config) RegistryOptions() []factory.Option {
	opts := []factory.Option{factory.WithTTL(c.FactoryTTL)}
	if c.Factory.Validate() == nil {
		opts = append(opts, factory.WithStatic(c.Factory.WithDefaults()))
	}
	return opts
}
