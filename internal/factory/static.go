// internal/factory/static.go
package factory

// DefaultAlias names the built-in Kappa deployment.
const DefaultAlias = "kappa"

// defaultFactory is the built-in deployment. It is both the first static
// entry and the config substituted when resolution fails. The object
// addresses are placeholders that have not been checked against mainnet;
// set factory.* in the config file or call SetNetworkConfig with the real
// deployment before trading.
var defaultFactory = Config{
	BondingContractAddress:   "0x8b4f4fd7e3bc6f5f8f1a0c1fd4a0b7d431b4cd4d55e93c4e0f4a1bb2c1b0e9a7",
	ConfigObjectAddress:      "0x2d6e6b7c1f8a3e09a14bd1a54f2ad0c8a2b3b8e8c5a3f8f2c80e0fd1c8a6b3f1",
	GlobalPauseStatusAddress: "0x5a1f3d6b2c9e4a8f7b0d1c2e3f4a5b6c7d8e9f0a1b2c3d4e5f6a7b8c9d0e1f2a",
	PoolsRegistryAddress:     "0x7e3c9a1b5d2f4e6a8c0b1d3f5e7a9c2b4d6f8e0a1c3e5b7d9f2a4c6e8b0d1f3a",
	LpBurnManagerAddress:     "0x3b8d1f5a7c9e2b4d6f8a0c1e3b5d7f9a2c4e6b8d0f1a3c5e7b9d2f4a6c8e0b1d",
	ModuleName:               "bonding_curve",
	Alias:                    DefaultAlias,
	DisplayName:              "Kappa",
	FeeBps:                   DefaultFeeBps,
	InitialInputReserve:      DefaultInitialInputReserve,
	InitialOutputReserve:     DefaultInitialOutputReserve,
}

// DefaultConfig returns the built-in deployment.
func DefaultConfig() Config {
	return defaultFactory
}

// staticFactories lists deployments whose config never changes, so they
// resolve without I/O.
func staticFactories() []Config {
	return []Config{defaultFactory}
}
