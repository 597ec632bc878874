// Package node assembles a devnet from configuration: logger, storage,
// genesis, the simulated contract backend and its JSON-RPC server.
package node

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-utxo/config"
	"github.com/Klingon-tech/klingnet-utxo/internal/devnet"
	klog "github.com/Klingon-tech/klingnet-utxo/internal/log"
	"github.com/Klingon-tech/klingnet-utxo/internal/storage"
)

// Node is a running devnet.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	db      storage.DB
	backend *devnet.Backend
	metrics *devnet.Metrics
	server  *devnet.Server
	logger  zerolog.Logger
}

// New creates and initializes a devnet node. It opens storage, seeds the
// genesis UTXOs on first start and prepares the RPC server, but does not
// start listening. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" && !cfg.Devnet.InMemory {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "devnet.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	// ── 2. Genesis ──────────────────────────────────────────────────
	genesis, err := config.GenesisFor(cfg)
	if err != nil {
		return nil, err
	}
	allocs, err := genesis.Allocations()
	if err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	logger.Info().
		Uint64("chain_id", genesis.ChainID).
		Str("contract", genesis.ContractAddress().Hex()).
		Int("allocations", len(allocs)).
		Msg("Starting UTXO devnet")

	// ── 3. Open storage ─────────────────────────────────────────────
	db, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	// ── 4. Backend + genesis ────────────────────────────────────────
	metrics := devnet.NewMetrics()
	backend := devnet.NewBackend(db, genesis.ChainIDBig(), genesis.ContractAddress(), metrics)
	seeded, err := backend.Seed(allocs)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("seed genesis: %w", err)
	}
	if seeded {
		logger.Info().Int("utxos", len(allocs)).Msg("Genesis seeded")
	} else {
		logger.Info().Uint64("block", backend.BlockNumber()).Msg("Resuming existing ledger")
	}

	// ── 5. RPC server ───────────────────────────────────────────────
	addr := net.JoinHostPort(cfg.Devnet.Addr, strconv.Itoa(cfg.Devnet.Port))
	server, err := devnet.NewServer(addr, backend, metrics, cfg.Devnet.AllowedIPs)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create rpc server: %w", err)
	}

	return &Node{
		cfg:     cfg,
		genesis: genesis,
		db:      db,
		backend: backend,
		metrics: metrics,
		server:  server,
		logger:  logger,
	}, nil
}

// Start begins serving JSON-RPC.
func (n *Node) Start() error {
	if err := n.server.Start(); err != nil {
		return err
	}
	n.logger.Info().
		Str("rpc", n.server.URL()).
		Uint64("block", n.backend.BlockNumber()).
		Msg("Devnet started successfully")
	return nil
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	if err := n.server.Stop(); err != nil {
		n.logger.Warn().Err(err).Msg("RPC shutdown")
	}
	if err := n.db.Close(); err != nil {
		n.logger.Warn().Err(err).Msg("Close database")
	}
	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	return n.server.Addr()
}

// URL returns the JSON-RPC endpoint.
func (n *Node) URL() string {
	return n.server.URL()
}

// Genesis returns the genesis the node was started from.
func (n *Node) Genesis() *config.Genesis {
	return n.genesis
}

// Backend returns the simulated chain.
func (n *Node) Backend() *devnet.Backend {
	return n.backend
}
