package wallet

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/Klingon-tech/klingnet-utxo/pkg/contracts/utxo"
	"github.com/ethereum/go-ethereum/common"
)

// Coin selection errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoUTXOs           = errors.New("no spendable UTXOs")
)

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs []utxo.Utxo // UTXOs to spend
	Total  *big.Int    // sum of selected amounts
	Change *big.Int    // Total - target
}

// SelectCoins picks unspent UTXOs of token to fund target. It compares the
// smallest single UTXO that covers the target with largest-first
// accumulation and returns whichever leaves less change; ties go to the
// single UTXO. Accumulation starts from the largest UTXO, so it only wins
// when no single UTXO covers the target.
func SelectCoins(utxos []utxo.Utxo, token common.Address, target *big.Int) (*CoinSelection, error) {
	if target == nil || target.Sign() <= 0 {
		return nil, fmt.Errorf("target must be positive")
	}

	candidates := make([]utxo.Utxo, 0, len(utxos))
	for _, u := range utxos {
		if u.IsSpent || u.Token != token || u.Amount == nil || u.Amount.Sign() <= 0 {
			continue
		}
		candidates = append(candidates, u)
	}
	if len(candidates) == 0 {
		return nil, ErrNoUTXOs
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Amount.Cmp(candidates[j].Amount) < 0
	})

	var single *CoinSelection
	for _, u := range candidates {
		if u.Amount.Cmp(target) >= 0 {
			single = newSelection([]utxo.Utxo{u}, target)
			break
		}
	}

	var accum *CoinSelection
	var selected []utxo.Utxo
	total := new(big.Int)
	for i := len(candidates) - 1; i >= 0; i-- {
		selected = append(selected, candidates[i])
		total.Add(total, candidates[i].Amount)
		if total.Cmp(target) >= 0 {
			accum = newSelection(selected, target)
			break
		}
	}

	switch {
	case single != nil && accum != nil:
		if single.Change.Cmp(accum.Change) <= 0 {
			return single, nil
		}
		return accum, nil
	case single != nil:
		return single, nil
	case accum != nil:
		return accum, nil
	default:
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, total, target)
	}
}

// Outputs builds the transfer outputs for a selection: target to the
// recipient, and any change back to changeOwner.
func (s *CoinSelection) Outputs(recipient, changeOwner common.Address, target *big.Int) []utxo.Output {
	outs := []utxo.Output{{Amount: new(big.Int).Set(target), Owner: recipient}}
	if s.Change.Sign() > 0 {
		outs = append(outs, utxo.Output{Amount: new(big.Int).Set(s.Change), Owner: changeOwner})
	}
	return outs
}

func newSelection(inputs []utxo.Utxo, target *big.Int) *CoinSelection {
	total := new(big.Int)
	for _, u := range inputs {
		total.Add(total, u.Amount)
	}
	return &CoinSelection{
		Inputs: append([]utxo.Utxo(nil), inputs...),
		Total:  total,
		Change: new(big.Int).Sub(total, target),
	}
}
