// Package config handles configuration for the UTXO client and devnet.
//
// Settings are resolved in order: defaults, the .conf file in the data
// directory, then command-line flags. Devnet chain state (chain id,
// contract address, genesis UTXOs) lives in a separate genesis JSON file.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Config holds client and devnet runtime configuration.
type Config struct {
	DataDir string `conf:"datadir"`

	// Ethereum JSON-RPC endpoint the client talks to
	RPC RPCConfig

	// Deployed contract addresses
	Contract ContractConfig

	// Signing key source for transfers
	Wallet WalletConfig

	// Devnet daemon
	Devnet DevnetConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds client transport settings.
type RPCConfig struct {
	URL     string        `conf:"rpc.url"`
	Timeout time.Duration `conf:"rpc.timeout"`
	Retries uint          `conf:"rpc.retries"` // attempts for read calls; 1 disables retrying
}

// ContractConfig holds the contract addresses.
type ContractConfig struct {
	UTXO  string `conf:"contract.utxo"`
	Token string `conf:"contract.token"` // ERC-20 for approve
}

// WalletConfig selects the key that signs transfers: either a keystore
// wallet or a hex key file.
type WalletConfig struct {
	Name    string `conf:"wallet.name"`
	Index   uint32 `conf:"wallet.index"`
	KeyFile string `conf:"wallet.keyfile"`
}

// DevnetConfig holds devnet daemon settings.
type DevnetConfig struct {
	Addr       string   `conf:"devnet.addr"`
	Port       int      `conf:"devnet.port"`
	AllowedIPs []string `conf:"devnet.allowed"`
	ChainID    uint64   `conf:"devnet.chainid"` // overrides the genesis chain id when non-zero
	Genesis    string   `conf:"devnet.genesis"` // genesis JSON path; empty uses the built-in genesis
	InMemory   bool     `conf:"devnet.memory"`  // keep state in memory instead of badger
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet-utxo
//	macOS:   ~/Library/Application Support/KlingnetUTXO
//	Windows: %APPDATA%\KlingnetUTXO
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet-utxo"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingnetUTXO")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "KlingnetUTXO")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingnetUTXO")
	default:
		return filepath.Join(home, ".klingnet-utxo")
	}
}

// KeystoreDir returns the wallet keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.DataDir, "keystore")
}

// DevnetDir returns the devnet database directory.
func (c *Config) DevnetDir() string {
	return filepath.Join(c.DataDir, "devnet")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "utxo.conf")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
