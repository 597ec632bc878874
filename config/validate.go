package config

import (
	"fmt"
	"net"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
)

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true,
	"error": true, "disabled": true, "off": true,
}

// Validate checks the runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	u, err := url.Parse(cfg.RPC.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("rpc.url %q is not a valid URL", cfg.RPC.URL)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("rpc.url scheme must be http, https, ws or wss, got %q", u.Scheme)
	}
	if cfg.RPC.Timeout <= 0 {
		return fmt.Errorf("rpc.timeout must be positive")
	}
	if cfg.RPC.Retries == 0 {
		return fmt.Errorf("rpc.retries must be at least 1")
	}

	if err := validateAddress(cfg.Contract.UTXO, "contract.utxo"); err != nil {
		return err
	}
	if err := validateAddress(cfg.Contract.Token, "contract.token"); err != nil {
		return err
	}

	if cfg.Wallet.Name != "" && cfg.Wallet.KeyFile != "" {
		return fmt.Errorf("wallet.name and wallet.keyfile are mutually exclusive")
	}

	if cfg.Devnet.Port < 0 || cfg.Devnet.Port > 65535 {
		return fmt.Errorf("devnet.port must be in range [0, 65535]")
	}
	for i, entry := range cfg.Devnet.AllowedIPs {
		if net.ParseIP(entry) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(entry); err != nil {
			return fmt.Errorf("devnet.allowed[%d] %q is not an IP or CIDR", i, entry)
		}
	}

	if !logLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level %q is not one of trace, debug, info, warn, error, off", cfg.Log.Level)
	}
	return nil
}

// validateAddress accepts an empty value (not configured) or a 0x-prefixed
// 20-byte hex address.
func validateAddress(s, field string) error {
	if s == "" {
		return nil
	}
	if len(s) != 42 || !common.IsHexAddress(s) {
		return fmt.Errorf("%s %q is not a 0x-prefixed 20-byte hex address", field, s)
	}
	return nil
}
