package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/Klingon-tech/klingnet-utxo/internal/devnet"
	"github.com/ethereum/go-ethereum/common"
)

// DevAccount is the first Hardhat/Anvil development account. The built-in
// genesis funds it so a fresh devnet is usable with the well-known key.
const DevAccount = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// Genesis describes the initial state of a devnet: which chain it claims
// to be, where the UTXO contract lives and which UTXOs exist at block 0.
// It is fixed once the devnet database has been seeded.
type Genesis struct {
	ChainID  uint64         `json:"chain_id"`
	Contract string         `json:"contract"`
	Alloc    []GenesisAlloc `json:"alloc"`
}

// GenesisAlloc is one genesis UTXO. Amount is a base-10 integer in token
// base units so values beyond 2^64 survive JSON.
type GenesisAlloc struct {
	Token  string `json:"token"`
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

// DefaultGenesis returns the built-in devnet genesis.
func DefaultGenesis() *Genesis {
	return &Genesis{
		ChainID:  DefaultChainID,
		Contract: DefaultUTXOContract,
		Alloc: []GenesisAlloc{
			{Token: DefaultTokenContract, Owner: DevAccount, Amount: "1000000000000000000000"},
			{Token: DefaultTokenContract, Owner: DevAccount, Amount: "500000000000000000000"},
		},
	}
}

// LoadGenesis reads and validates a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	return &g, nil
}

// GenesisFor returns the genesis a devnet should start from: the file named
// by devnet.genesis, or the built-in one. A devnet.chainid override wins
// over the genesis chain id.
func GenesisFor(cfg *Config) (*Genesis, error) {
	g := DefaultGenesis()
	if cfg.Devnet.Genesis != "" {
		loaded, err := LoadGenesis(cfg.Devnet.Genesis)
		if err != nil {
			return nil, err
		}
		g = loaded
	}
	if cfg.Devnet.ChainID != 0 {
		g.ChainID = cfg.Devnet.ChainID
	}
	return g, nil
}

// Save writes the genesis as indented JSON.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal genesis: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks chain id, contract address and every allocation.
func (g *Genesis) Validate() error {
	if g.ChainID == 0 {
		return fmt.Errorf("chain_id is required")
	}
	if g.Contract == "" {
		return fmt.Errorf("contract is required")
	}
	if err := validateAddress(g.Contract, "contract"); err != nil {
		return err
	}
	_, err := g.Allocations()
	return err
}

// ContractAddress returns the parsed contract address.
func (g *Genesis) ContractAddress() common.Address {
	return common.HexToAddress(g.Contract)
}

// ChainIDBig returns the chain id as a big.Int.
func (g *Genesis) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(g.ChainID)
}

// Allocations converts the genesis allocations for devnet.Backend.Seed.
func (g *Genesis) Allocations() ([]devnet.Allocation, error) {
	allocs := make([]devnet.Allocation, 0, len(g.Alloc))
	for i, a := range g.Alloc {
		if err := validateAddress(a.Token, fmt.Sprintf("alloc[%d].token", i)); err != nil || a.Token == "" {
			return nil, fmt.Errorf("alloc[%d]: invalid token %q", i, a.Token)
		}
		if err := validateAddress(a.Owner, fmt.Sprintf("alloc[%d].owner", i)); err != nil || a.Owner == "" {
			return nil, fmt.Errorf("alloc[%d]: invalid owner %q", i, a.Owner)
		}
		amount, ok := new(big.Int).SetString(a.Amount, 10)
		if !ok || amount.Sign() <= 0 {
			return nil, fmt.Errorf("alloc[%d]: amount %q must be a positive integer", i, a.Amount)
		}
		if amount.BitLen() > 256 {
			return nil, fmt.Errorf("alloc[%d]: amount exceeds uint256", i)
		}
		allocs = append(allocs, devnet.Allocation{
			Token:  common.HexToAddress(a.Token),
			Owner:  common.HexToAddress(a.Owner),
			Amount: amount,
		})
	}
	return allocs, nil
}
