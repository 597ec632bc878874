package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration values from a .conf file.
// Format: key = value (one per line, # for comments). A missing file
// yields no values.
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "datadir":
		cfg.DataDir = ExpandHome(value)

	// RPC
	case "rpc.url", "rpc":
		cfg.RPC.URL = value
	case "rpc.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.RPC.Timeout = d
	case "rpc.retries":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.RPC.Retries = uint(n)

	// Contracts
	case "contract.utxo", "contract":
		cfg.Contract.UTXO = value
	case "contract.token":
		cfg.Contract.Token = value

	// Wallet
	case "wallet.name", "wallet":
		cfg.Wallet.Name = value
	case "wallet.index":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Wallet.Index = uint32(n)
	case "wallet.keyfile":
		cfg.Wallet.KeyFile = ExpandHome(value)

	// Devnet
	case "devnet.addr":
		cfg.Devnet.Addr = value
	case "devnet.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Devnet.Port = port
	case "devnet.allowed":
		cfg.Devnet.AllowedIPs = parseStringList(value)
	case "devnet.chainid":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Devnet.ChainID = n
	case "devnet.genesis":
		cfg.Devnet.Genesis = ExpandHome(value)
	case "devnet.memory":
		cfg.Devnet.InMemory = parseBool(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = ExpandHome(value)
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a commented default configuration file.
func WriteDefaultConfig(path string) error {
	content := `# Klingnet UTXO client / devnet configuration
#
# Command-line flags override anything set here.

# Data directory (default: ~/.klingnet-utxo)
# datadir = ~/.klingnet-utxo

# ============================================================================
# Client
# ============================================================================

rpc.url = ` + DefaultRPCURL + `
rpc.timeout = ` + DefaultRPCTimeout.String() + `
# Attempts for read-only calls (transfers are never retried)
rpc.retries = ` + strconv.Itoa(DefaultRPCRetries) + `

contract.utxo = ` + DefaultUTXOContract + `
contract.token = ` + DefaultTokenContract + `

# Signing key for transfers: a keystore wallet or a hex key file
# wallet.name = main
# wallet.index = 0
# wallet.keyfile = ~/.klingnet-utxo/dev.key

# ============================================================================
# Devnet
# ============================================================================

devnet.addr = 127.0.0.1
devnet.port = ` + strconv.Itoa(DefaultDevnetPort) + `
devnet.allowed = 127.0.0.1
# Genesis JSON (chain id, contract address, initial UTXOs)
# devnet.genesis = ~/.klingnet-utxo/genesis.json
# devnet.chainid = ` + strconv.Itoa(DefaultChainID) + `
devnet.memory = false

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
