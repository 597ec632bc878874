// Package devnet simulates the UTXO ledger contract on a single-node
// development chain and serves it over Ethereum JSON-RPC.
package devnet

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	klog "github.com/Klingon-tech/klingnet-utxo/internal/log"
	"github.com/Klingon-tech/klingnet-utxo/internal/storage"
	"github.com/Klingon-tech/klingnet-utxo/pkg/contracts/utxo"
)

// Key prefixes for the ledger state.
var (
	prefixUTXO  = []byte("u/") // u/<id32> -> UTXO JSON
	prefixOwner = []byte("a/") // a/<owner20><id32> -> empty (index)
	keyLength   = []byte("n")  // n -> id counter (big-endian)
)

const idSize = 32

var errStop = errors.New("stop iteration")

// Ledger holds the contract state: every UTXO ever created, indexed by
// owner. Ids are assigned sequentially from zero.
type Ledger struct {
	mu sync.RWMutex
	db storage.DB
}

// NewLedger creates a ledger backed by db.
func NewLedger(db storage.DB) *Ledger {
	return &Ledger{db: db}
}

func idBytes(id *big.Int) ([]byte, bool) {
	if id == nil || id.Sign() < 0 || id.BitLen() > 8*idSize {
		return nil, false
	}
	return id.FillBytes(make([]byte, idSize)), true
}

func utxoKey(id []byte) []byte {
	key := make([]byte, 0, len(prefixUTXO)+idSize)
	key = append(key, prefixUTXO...)
	return append(key, id...)
}

func ownerPrefix(owner common.Address) []byte {
	key := make([]byte, 0, len(prefixOwner)+common.AddressLength+idSize)
	key = append(key, prefixOwner...)
	return append(key, owner[:]...)
}

func ownerKey(owner common.Address, id []byte) []byte {
	return append(ownerPrefix(owner), id...)
}

// Length returns the number of UTXOs created so far.
func (l *Ledger) Length() (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.length()
}

func (l *Ledger) length() (*big.Int, error) {
	data, err := l.db.Get(keyLength)
	if errors.Is(err, storage.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger length: %w", err)
	}
	return new(big.Int).SetBytes(data), nil
}

// Get returns the UTXO with the given id. A missing id yields the
// contract's UTXONotFound revert.
func (l *Ledger) Get(id *big.Int) (*utxo.Utxo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.get(id)
}

func (l *Ledger) get(id *big.Int) (*utxo.Utxo, error) {
	key, ok := idBytes(id)
	if !ok {
		return nil, revert(utxo.ErrorUTXONotFound)
	}
	data, err := l.db.Get(utxoKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, revert(utxo.ErrorUTXONotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger get: %w", err)
	}
	var u utxo.Utxo
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("ledger unmarshal: %w", err)
	}
	return &u, nil
}

// ListByOwner returns up to limit UTXOs owned by owner in ascending id
// order, skipping the first offset. Spent UTXOs are included.
func (l *Ledger) ListByOwner(owner common.Address, offset, limit *big.Int) ([]utxo.Utxo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !offset.IsUint64() || limit.Sign() == 0 {
		return []utxo.Utxo{}, nil
	}
	skip := offset.Uint64()
	max := uint64(math.MaxUint64)
	if limit.IsUint64() {
		max = limit.Uint64()
	}

	out := []utxo.Utxo{}
	prefix := ownerPrefix(owner)
	err := l.db.ForEach(prefix, func(key, _ []byte) error {
		if skip > 0 {
			skip--
			return nil
		}
		u, err := l.get(new(big.Int).SetBytes(key[len(prefix):]))
		if err != nil {
			return err
		}
		out = append(out, *u)
		if uint64(len(out)) >= max {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return out, nil
}

// Mint creates a new UTXO outside of any transfer, as genesis allocations do.
func (l *Ledger) Mint(token, owner common.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, revert(utxo.ErrorZeroAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := storage.NewBatch(l.db)
	next, err := l.length()
	if err != nil {
		return nil, err
	}
	id := new(big.Int).Set(next)
	if err := l.create(batch, utxo.Utxo{ID: id, Token: token, Amount: amount, Owner: owner}); err != nil {
		return nil, err
	}
	if err := batch.Put(keyLength, next.Add(next, big.NewInt(1)).Bytes()); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("ledger mint: %w", err)
	}
	klog.Devnet.Debug().Str("id", id.String()).Str("owner", owner.Hex()).Str("amount", amount.String()).Msg("Minted UTXO")
	return id, nil
}

// Transfer validates a spend of inputs into outputs and, when commit is
// set, applies it. It returns the ids assigned to the outputs.
func (l *Ledger) Transfer(inputs []utxo.Input, outputs []utxo.Output, commit bool) ([]*big.Int, error) {
	if len(inputs) == 0 {
		return nil, revert(utxo.ErrorEmptyInputs)
	}
	if len(outputs) == 0 {
		return nil, revert(utxo.ErrorEmptyOutputs)
	}

	if commit {
		l.mu.Lock()
		defer l.mu.Unlock()
	} else {
		l.mu.RLock()
		defer l.mu.RUnlock()
	}

	var (
		token common.Address
		total = new(big.Int)
		spent = make([]*utxo.Utxo, 0, len(inputs))
		seen  = make(map[string]bool, len(inputs))
	)
	for i, in := range inputs {
		u, err := l.get(in.ID)
		if err != nil {
			return nil, err
		}
		if u.IsSpent || seen[u.ID.String()] {
			return nil, revert(utxo.ErrorUTXOAlreadySpent, u.ID)
		}
		seen[u.ID.String()] = true
		if i == 0 {
			token = u.Token
		} else if u.Token != token {
			return nil, revert(utxo.ErrorTokenMismatch)
		}
		signer, err := utxo.SpendSigner(in, outputs)
		if err != nil || signer != u.Owner {
			return nil, revert(utxo.ErrorInvalidSignature, u.ID)
		}
		total.Add(total, u.Amount)
		spent = append(spent, u)
	}

	out := new(big.Int)
	for _, o := range outputs {
		if o.Amount == nil || o.Amount.Sign() <= 0 {
			return nil, revert(utxo.ErrorZeroAmount)
		}
		out.Add(out, o.Amount)
	}
	if out.Cmp(total) != 0 {
		return nil, revert(utxo.ErrorAmountMismatch)
	}
	if !commit {
		return nil, nil
	}

	batch := storage.NewBatch(l.db)
	for _, u := range spent {
		u.IsSpent = true
		if err := l.put(batch, *u); err != nil {
			return nil, err
		}
	}
	next, err := l.length()
	if err != nil {
		return nil, err
	}
	ids := make([]*big.Int, len(outputs))
	for i, o := range outputs {
		ids[i] = new(big.Int).Set(next)
		created := utxo.Utxo{ID: ids[i], Token: token, Amount: new(big.Int).Set(o.Amount), Owner: o.Owner}
		if err := l.create(batch, created); err != nil {
			return nil, err
		}
		next.Add(next, big.NewInt(1))
	}
	if err := batch.Put(keyLength, next.Bytes()); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("ledger transfer: %w", err)
	}
	return ids, nil
}

func (l *Ledger) create(batch storage.Batch, u utxo.Utxo) error {
	if err := l.put(batch, u); err != nil {
		return err
	}
	id, _ := idBytes(u.ID)
	return batch.Put(ownerKey(u.Owner, id), []byte{})
}

func (l *Ledger) put(batch storage.Batch, u utxo.Utxo) error {
	id, ok := idBytes(u.ID)
	if !ok {
		return fmt.Errorf("ledger put: id %s out of range", u.ID)
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("ledger marshal: %w", err)
	}
	return batch.Put(utxoKey(id), data)
}
