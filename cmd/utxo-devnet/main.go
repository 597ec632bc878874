// utxo-devnet serves a simulated UTXO ledger contract over Ethereum JSON-RPC.
//
// Usage:
//
//	utxo-devnet [--memory] [--genesis=...]   Run devnet
//	utxo-devnet --init                       Write default config and genesis
//	utxo-devnet --help                       Show help
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/klingnet-utxo/config"
	"github.com/Klingon-tech/klingnet-utxo/internal/node"
)

const version = "0.1.0"

func main() {
	cfg, flags, err := config.Load("utxo-devnet", os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		usage()
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flags.Version {
		fmt.Println("utxo-devnet version " + version)
		os.Exit(0)
	}
	if flags.Init {
		written, err := node.InitFiles(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, path := range written {
			fmt.Println("Wrote", path)
		}
		return
	}

	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		n.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Stop()
}

func usage() {
	fmt.Fprintf(os.Stderr, `utxo-devnet - single-node chain hosting the UTXO ledger contract

Usage:
  utxo-devnet [options]

Commands:
  --help, -h      Show this help message
  --version       Show version information
  --init          Write default utxo.conf and genesis.json, then exit

Core Options:
  --datadir       Data directory (default: ~/.klingnet-utxo)
  --config, -c    Config file path (default: <datadir>/utxo.conf)

Devnet Options:
  --addr          Listen address (default: 127.0.0.1)
  --port          Listen port (default: 8545)
  --allowed       Allowed client IPs/CIDRs, comma-separated (default: 127.0.0.1)
  --genesis       Genesis file (default: built-in genesis)
  --chain-id      Override the genesis chain id
  --memory        Keep state in memory; nothing is written to disk

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: <datadir>/logs/devnet.log)
  --log-json      Output logs as JSON

Endpoints:
  /               Ethereum JSON-RPC (eth_call, eth_sendRawTransaction, ...)
  /metrics        Prometheus metrics

Examples:
  # Throwaway devnet funding the first Hardhat account
  utxo-devnet --memory

  # Persistent devnet from a custom genesis
  utxo-devnet --genesis=./genesis.json --port=9545
`)
}
