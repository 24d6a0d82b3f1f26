// internal/factory/types.go
package factory

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rovshanmuradov/kappa-sdk/internal/api"
)

// Genesis defaults shared by every known deployment.
const (
	DefaultFeeBps               uint64 = 100
	DefaultInitialInputReserve  uint64 = 1_900_000_000_000
	DefaultInitialOutputReserve uint64 = 876_800_000_000_000_000
)

var (
	ErrEmptyAddress      = errors.New("empty factory address")
	ErrFactoryNotFound   = errors.New("factory not found")
	ErrIncompleteFactory = errors.New("incomplete factory record")
)

// Config is one deployment of the bonding-curve protocol. All addresses and
// the module name must come from the same record.
type Config struct {
	BondingContractAddress   string `mapstructure:"bonding_contract_address" yaml:"bonding_contract_address"`
	ConfigObjectAddress      string `mapstructure:"config_object_address" yaml:"config_object_address"`
	GlobalPauseStatusAddress string `mapstructure:"global_pause_status_address" yaml:"global_pause_status_address"`
	PoolsRegistryAddress     string `mapstructure:"pools_registry_address" yaml:"pools_registry_address"`
	LpBurnManagerAddress     string `mapstructure:"lp_burn_manager_address" yaml:"lp_burn_manager_address"`
	ModuleName               string `mapstructure:"module_name" yaml:"module_name"`

	Alias       string `mapstructure:"alias" yaml:"alias"`
	DisplayName string `mapstructure:"display_name" yaml:"display_name"`

	FeeBps               uint64 `mapstructure:"fee_bps" yaml:"fee_bps"`
	InitialInputReserve  uint64 `mapstructure:"initial_input_reserve" yaml:"initial_input_reserve"`
	InitialOutputReserve uint64 `mapstructure:"initial_output_reserve" yaml:"initial_output_reserve"`
}

// Validate checks that every address and the module name are present.
func (c Config) Validate() error {
	missing := make([]string, 0)
	for name, v := range map[string]string{
		"bonding_contract_address":    c.BondingContractAddress,
		"config_object_address":       c.ConfigObjectAddress,
		"global_pause_status_address": c.GlobalPauseStatusAddress,
		"pools_registry_address":      c.PoolsRegistryAddress,
		"lp_burn_manager_address":     c.LpBurnManagerAddress,
		"module_name":                 c.ModuleName,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %s", ErrIncompleteFactory, strings.Join(missing, ", "))
	}
	if c.FeeBps >= 10_000 {
		return fmt.Errorf("%w: fee %d bps", ErrIncompleteFactory, c.FeeBps)
	}
	return nil
}

// WithDefaults fills unset genesis reserves with protocol defaults. FeeBps
// is left alone: zero is a valid fee.
func (c Config) WithDefaults() Config {
	if c.InitialInputReserve == 0 {
		c.InitialInputReserve = DefaultInitialInputReserve
	}
	if c.InitialOutputReserve == 0 {
		c.InitialOutputReserve = DefaultInitialOutputReserve
	}
	return c
}

// FromRecord converts an API record. The record's package name is the
// module entry points live in. Records carry no fee, so DefaultFeeBps
// applies.
func FromRecord(r api.FactoryRecord) (Config, error) {
	cfg := Config{
		BondingContractAddress:   r.PackageID,
		ConfigObjectAddress:      r.ConfigObjectID,
		GlobalPauseStatusAddress: r.PauseStatusObjectID,
		PoolsRegistryAddress:     r.PoolsObjectID,
		LpBurnManagerAddress:     r.LpBurnManagerObjectID,
		ModuleName:               r.PackageName,
		Alias:                    r.Alias,
		DisplayName:              r.DisplayName,
		FeeBps:                   DefaultFeeBps,
	}.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Source tells where a resolved config came from.
type Source string

const (
	SourceStatic   Source = "static"
	SourceCache    Source = "cache"
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// Resolution is the tagged result of a factory lookup. Config is always
// usable; when Source is SourceFallback, Err holds the reason and callers
// that need the exact deployment should abort.
type Resolution struct {
	Config Config
	Source Source
	Err    error
}

// IsFallback reports whether the default config was substituted.
func (r Resolution) IsFallback() bool {
	return r.Source == SourceFallback
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
