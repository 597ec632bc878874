package node

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Klingon-tech/klingnet-utxo/config"
	klog "github.com/Klingon-tech/klingnet-utxo/internal/log"
	"github.com/Klingon-tech/klingnet-utxo/internal/storage"
)

// openStorage opens the devnet database: badger under <datadir>/devnet,
// or a throwaway in-memory store.
func openStorage(cfg *config.Config) (storage.DB, error) {
	if cfg.Devnet.InMemory {
		klog.Storage.Info().Msg("Using in-memory database")
		return storage.NewMemory(), nil
	}
	db, err := storage.NewBadger(cfg.DevnetDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.DevnetDir(), err)
	}
	klog.Storage.Info().Str("path", cfg.DevnetDir()).Msg("Opened badger database")
	return db, nil
}

// InitFiles writes a default config file and genesis into the data
// directory, leaving existing files alone. It returns the paths written.
func InitFiles(cfg *config.Config) ([]string, error) {
	if err := config.EnsureDataDirs(cfg); err != nil {
		return nil, err
	}

	var written []string
	confPath := cfg.ConfigFile()
	if !exists(confPath) {
		if err := config.WriteDefaultConfig(confPath); err != nil {
			return nil, fmt.Errorf("write config: %w", err)
		}
		written = append(written, confPath)
	}

	genesisPath := cfg.Devnet.Genesis
	if genesisPath == "" {
		genesisPath = filepath.Join(cfg.DataDir, "genesis.json")
	}
	if !exists(genesisPath) {
		if err := config.DefaultGenesis().Save(genesisPath); err != nil {
			return nil, fmt.Errorf("write genesis: %w", err)
		}
		written = append(written, genesisPath)
	}
	return written, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
