package devnet

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-utxo/internal/log"
	"github.com/Klingon-tech/klingnet-utxo/internal/storage"
)

// Gas parameters of the devnet. Gas is accounted but never charged.
const (
	txGas        = 21000
	calldataGas  = 16
	contractGas  = 100_000
	blockGasCap  = 30_000_000
	defaultPrice = 1_000_000_000 // 1 gwei
)

// Key prefixes of the chain bookkeeping namespace.
var (
	prefixNonce   = []byte("nonce/")   // nonce/<addr20> -> uint64
	prefixReceipt = []byte("receipt/") // receipt/<txhash32> -> receipt JSON
	keyBlock      = []byte("block")    // block -> uint64
	keyGenesis    = []byte("genesis")  // genesis -> contract address, set once seeded
)

// Storage namespaces within the devnet database.
var (
	LedgerNamespace = []byte("ledger/")
	ChainNamespace  = []byte("chain/")
)

// runtimeStub is returned as the contract code so clients that check for
// deployed code find some.
var runtimeStub = common.FromHex("0x6080604052")

// Errors returned for rejected transactions.
var (
	ErrNonceTooLow  = errors.New("nonce too low")
	ErrNonceTooHigh = errors.New("nonce too high")
	ErrKnownTx      = errors.New("already known")
)

// Allocation is a UTXO created at genesis.
type Allocation struct {
	Token  common.Address
	Owner  common.Address
	Amount *big.Int
}

// Backend is a single-node chain hosting one UTXO contract. Every accepted
// transaction is mined into its own block immediately.
type Backend struct {
	mu       sync.Mutex
	contract *Contract
	address  common.Address
	chainID  *big.Int
	signer   types.Signer
	chain    storage.DB
	metrics  *Metrics
	logger   zerolog.Logger
}

// NewBackend creates a devnet backend on db with the contract deployed at
// address. metrics may be nil.
func NewBackend(db storage.DB, chainID *big.Int, address common.Address, metrics *Metrics) *Backend {
	ledger := NewLedger(storage.NewPrefixDB(db, LedgerNamespace))
	b := &Backend{
		contract: NewContract(ledger, metrics),
		address:  address,
		chainID:  new(big.Int).Set(chainID),
		signer:   types.LatestSignerForChainID(chainID),
		chain:    storage.NewPrefixDB(db, ChainNamespace),
		metrics:  metrics,
		logger:   klog.Devnet,
	}
	b.metrics.observeBlock(b.blockNumber())
	b.metrics.observeLength(ledger)
	return b
}

// Seed mints the genesis allocations unless the ledger has already been
// seeded. It reports whether anything was minted.
func (b *Backend) Seed(allocs []Allocation) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	done, err := b.chain.Has(keyGenesis)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}
	for _, a := range allocs {
		id, err := b.contract.Ledger().Mint(a.Token, a.Owner, a.Amount)
		if err != nil {
			return false, fmt.Errorf("genesis alloc %s: %w", a.Owner.Hex(), err)
		}
		b.logger.Info().Str("id", id.String()).Str("owner", a.Owner.Hex()).Str("amount", a.Amount.String()).Msg("Genesis UTXO")
	}
	if err := b.chain.Put(keyGenesis, b.address[:]); err != nil {
		return false, err
	}
	b.metrics.observeLength(b.contract.Ledger())
	return true, nil
}

// ChainID returns the devnet chain id.
func (b *Backend) ChainID() *big.Int {
	return new(big.Int).Set(b.chainID)
}

// ContractAddress returns the address the contract is deployed at.
func (b *Backend) ContractAddress() common.Address {
	return b.address
}

// Contract returns the simulated contract.
func (b *Backend) Contract() *Contract {
	return b.contract
}

// BlockNumber returns the number of the latest block.
func (b *Backend) BlockNumber() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blockNumber()
}

func (b *Backend) blockNumber() uint64 {
	return b.getUint64(keyBlock)
}

func (b *Backend) getUint64(key []byte) uint64 {
	data, err := b.chain.Get(key)
	if err != nil || len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func putUint64(batch storage.Batch, key []byte, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return batch.Put(key, buf[:])
}

func nonceKey(addr common.Address) []byte {
	return append(append([]byte{}, prefixNonce...), addr[:]...)
}

func receiptKey(h common.Hash) []byte {
	return append(append([]byte{}, prefixReceipt...), h[:]...)
}

// CodeAt implements bind.ContractCaller.
func (b *Backend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if account == b.address {
		return common.CopyBytes(runtimeStub), nil
	}
	return nil, nil
}

// CallContract implements bind.ContractCaller. Calls never change state.
func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if call.To == nil || *call.To != b.address {
		return nil, nil
	}
	return b.contract.Execute(call.Data, false)
}

// PendingCodeAt implements bind.ContractTransactor.
func (b *Backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return b.CodeAt(ctx, account, nil)
}

// PendingNonceAt implements bind.ContractTransactor.
func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getUint64(nonceKey(account)), nil
}

// HeaderByNumber implements bind.ContractTransactor. A nil number selects
// the latest block. Headers carry no base fee, so clients build legacy
// transactions.
func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	latest := b.BlockNumber()
	n := latest
	if number != nil && number.Sign() >= 0 {
		if !number.IsUint64() || number.Uint64() > latest {
			return nil, ethereum.NotFound
		}
		n = number.Uint64()
	}
	return &types.Header{
		Number:      new(big.Int).SetUint64(n),
		Difficulty:  new(big.Int),
		GasLimit:    blockGasCap,
		UncleHash:   types.EmptyUncleHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Time:        uint64(time.Now().Unix()),
	}, nil
}

// SuggestGasPrice implements bind.ContractTransactor.
func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(defaultPrice), nil
}

// SuggestGasTipCap implements bind.ContractTransactor.
func (b *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(defaultPrice), nil
}

// EstimateGas implements bind.ContractTransactor. Calls that would revert
// fail with the revert error.
func (b *Backend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	gas := uint64(txGas + calldataGas*len(call.Data))
	if call.To == nil || *call.To != b.address {
		return gas, nil
	}
	if _, err := b.contract.Execute(call.Data, false); err != nil {
		return 0, err
	}
	return gas + contractGas, nil
}

// SendTransaction implements bind.ContractTransactor. The transaction is
// mined at once; a contract revert is recorded as a failed receipt.
func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	from, err := types.Sender(b.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if ok, err := b.chain.Has(receiptKey(tx.Hash())); err != nil {
		return err
	} else if ok {
		return ErrKnownTx
	}
	nonce := b.getUint64(nonceKey(from))
	switch {
	case tx.Nonce() < nonce:
		return fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooLow, from.Hex(), tx.Nonce(), nonce)
	case tx.Nonce() > nonce:
		return fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooHigh, from.Hex(), tx.Nonce(), nonce)
	}

	status := types.ReceiptStatusSuccessful
	gasUsed := uint64(txGas + calldataGas*len(tx.Data()))
	if to := tx.To(); to != nil && *to == b.address {
		gasUsed += contractGas
		if _, err := b.contract.Execute(tx.Data(), true); err != nil {
			if !isRevert(err) {
				return err
			}
			status = types.ReceiptStatusFailed
		}
	}
	if gasUsed > tx.Gas() {
		gasUsed = tx.Gas()
	}

	block := b.blockNumber() + 1
	receipt := &types.Receipt{
		Type:              tx.Type(),
		Status:            status,
		CumulativeGasUsed: gasUsed,
		Logs:              []*types.Log{},
		TxHash:            tx.Hash(),
		GasUsed:           gasUsed,
		EffectiveGasPrice: tx.GasPrice(),
		BlockNumber:       new(big.Int).SetUint64(block),
	}
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	batch := storage.NewBatch(b.chain)
	if err := putUint64(batch, nonceKey(from), nonce+1); err != nil {
		return err
	}
	if err := putUint64(batch, keyBlock, block); err != nil {
		return err
	}
	if err := batch.Put(receiptKey(tx.Hash()), data); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit block %d: %w", block, err)
	}
	b.metrics.observeBlock(block)

	b.logger.Info().
		Uint64("block", block).
		Str("tx", tx.Hash().Hex()).
		Str("from", from.Hex()).
		Uint64("status", status).
		Msg("Transaction mined")
	return nil
}

// TransactionReceipt returns the receipt of a mined transaction, or
// ethereum.NotFound.
func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	data, err := b.chain.Get(receiptKey(txHash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ethereum.NotFound
	}
	if err != nil {
		return nil, err
	}
	var r types.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &r, nil
}
