package config

import "time"

// Devnet defaults. The contract and token addresses are the ones a fresh
// Hardhat or Anvil node assigns to its first two deployments, so the same
// config works against either.
const (
	DefaultRPCURL        = "http://127.0.0.1:8545"
	DefaultRPCTimeout    = 10 * time.Second
	DefaultRPCRetries    = 3
	DefaultDevnetPort    = 8545
	DefaultChainID       = 1337
	DefaultUTXOContract  = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	DefaultTokenContract = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			URL:     DefaultRPCURL,
			Timeout: DefaultRPCTimeout,
			Retries: DefaultRPCRetries,
		},
		Contract: ContractConfig{
			UTXO:  DefaultUTXOContract,
			Token: DefaultTokenContract,
		},
		Devnet: DevnetConfig{
			Addr:       "127.0.0.1",
			Port:       DefaultDevnetPort,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
