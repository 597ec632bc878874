package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

// Flags holds parsed command-line flags shared by utxo-cli and utxo-devnet.
type Flags struct {
	// Commands
	Version bool
	Init    bool // write default config and genesis, then exit

	// Core
	DataDir string
	Config  string

	// Client
	RPC      string
	Timeout  time.Duration
	Retries  uint
	Contract string
	Token    string

	// Wallet
	Wallet      string
	WalletIndex uint
	KeyFile     string

	// Devnet
	Addr    string
	Port    int
	Allowed string
	ChainID uint64
	Genesis string
	Memory  bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args (subcommand and its arguments)
	Args []string

	// Explicitly-set flags whose zero value is meaningful.
	SetWalletIndex bool
	SetMemory      bool
	SetLogJSON     bool
}

// ErrHelp is returned by ParseFlags when -h, -help or --help was requested.
var ErrHelp = flag.ErrHelp

// ParseFlags parses the global flags in args. Parsing stops at the first
// positional argument, which starts Flags.Args.
func ParseFlags(name string, args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Init, "init", false, "Write default config and genesis files")

	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	fs.StringVar(&f.RPC, "rpc", "", "Ethereum JSON-RPC endpoint")
	fs.DurationVar(&f.Timeout, "timeout", 0, "RPC request timeout")
	fs.UintVar(&f.Retries, "retries", 0, "Attempts for read-only calls")
	fs.StringVar(&f.Contract, "contract", "", "UTXO contract address")
	fs.StringVar(&f.Token, "token", "", "ERC-20 token contract address")

	fs.StringVar(&f.Wallet, "wallet", "", "Keystore wallet name")
	fs.UintVar(&f.WalletIndex, "index", 0, "Wallet account index")
	fs.StringVar(&f.KeyFile, "key-file", "", "Hex private key file")

	fs.StringVar(&f.Addr, "addr", "", "Devnet listen address")
	fs.IntVar(&f.Port, "port", 0, "Devnet listen port")
	fs.StringVar(&f.Allowed, "allowed", "", "Devnet allowed IPs/CIDRs (comma-separated)")
	fs.Uint64Var(&f.ChainID, "chain-id", 0, "Devnet chain id override")
	fs.StringVar(&f.Genesis, "genesis", "", "Devnet genesis file")
	fs.BoolVar(&f.Memory, "memory", false, "Keep devnet state in memory")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, ErrHelp
		}
		return nil, err
	}

	f.SetWalletIndex = isFlagSet(fs, "index")
	f.SetMemory = isFlagSet(fs, "memory")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()
	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.DataDir != "" {
		cfg.DataDir = ExpandHome(f.DataDir)
	}

	// Client
	if f.RPC != "" {
		cfg.RPC.URL = f.RPC
	}
	if f.Timeout != 0 {
		cfg.RPC.Timeout = f.Timeout
	}
	if f.Retries != 0 {
		cfg.RPC.Retries = f.Retries
	}
	if f.Contract != "" {
		cfg.Contract.UTXO = f.Contract
	}
	if f.Token != "" {
		cfg.Contract.Token = f.Token
	}

	// Wallet. Naming one key source clears the other from the file config.
	if f.Wallet != "" {
		cfg.Wallet.Name = f.Wallet
		cfg.Wallet.KeyFile = ""
	}
	if f.KeyFile != "" {
		cfg.Wallet.KeyFile = ExpandHome(f.KeyFile)
		if f.Wallet == "" {
			cfg.Wallet.Name = ""
		}
	}
	if f.SetWalletIndex {
		cfg.Wallet.Index = uint32(f.WalletIndex)
	}

	// Devnet
	if f.Addr != "" {
		cfg.Devnet.Addr = f.Addr
	}
	if f.Port != 0 {
		cfg.Devnet.Port = f.Port
	}
	if f.Allowed != "" {
		cfg.Devnet.AllowedIPs = parseStringList(f.Allowed)
	}
	if f.ChainID != 0 {
		cfg.Devnet.ChainID = f.ChainID
	}
	if f.Genesis != "" {
		cfg.Devnet.Genesis = ExpandHome(f.Genesis)
	}
	if f.SetMemory {
		cfg.Devnet.InMemory = f.Memory
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = ExpandHome(f.LogFile)
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Load resolves configuration with the following precedence:
// 1. Default values
// 2. Config file (<datadir>/utxo.conf unless --config is given)
// 3. Command-line flags
//
// The data directory is created if missing. The caller handles --help,
// --version and --init, which are reported through the returned Flags.
func Load(name string, args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(name, args)
	if err != nil {
		return nil, nil, err
	}

	cfg := Default()
	if flags.DataDir != "" {
		cfg.DataDir = ExpandHome(flags.DataDir)
	}
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(ExpandHome(configPath))
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory and keystore directory. It is
// idempotent. The config file itself is only written by --init.
func EnsureDataDirs(cfg *Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.KeystoreDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
