package utxo

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Utxo is a snapshot of an output record held by the ledger contract.
//
// ABI tuple: (uint256 id, address token, uint256 amount, address owner, bool isSpent).
type Utxo struct {
	ID      *big.Int       `json:"id"`
	Token   common.Address `json:"token"`
	Amount  *big.Int       `json:"amount"`
	Owner   common.Address `json:"owner"`
	IsSpent bool           `json:"isSpent"`
}

// Output describes a UTXO to be created by a transfer.
//
// ABI tuple: (uint256 amount, address owner).
type Output struct {
	Amount *big.Int       `json:"amount"`
	Owner  common.Address `json:"owner"`
}

// Input references an existing unspent UTXO together with the owner's
// authorization to spend it. The signature is passed through unchanged.
//
// ABI tuple: (uint256 id, bytes signature).
type Input struct {
	ID        *big.Int      `json:"id"`
	Signature hexutil.Bytes `json:"signature"`
}

// IUTXOUtxo is the positional ABI form of Utxo. Field order and names must
// match the contract tuple components.
type IUTXOUtxo struct {
	Id      *big.Int
	Token   common.Address
	Amount  *big.Int
	Owner   common.Address
	IsSpent bool
}

// IUTXOOutput is the positional ABI form of Output.
type IUTXOOutput struct {
	Amount *big.Int
	Owner  common.Address
}

// IUTXOInput is the positional ABI form of Input.
type IUTXOInput struct {
	Id        *big.Int
	Signature []byte
}

// ToABI converts u to its tuple form.
func (u Utxo) ToABI() IUTXOUtxo {
	return IUTXOUtxo{
		Id:      copyInt(u.ID),
		Token:   u.Token,
		Amount:  copyInt(u.Amount),
		Owner:   u.Owner,
		IsSpent: u.IsSpent,
	}
}

// UtxoFromABI converts a decoded tuple to a Utxo.
func UtxoFromABI(t IUTXOUtxo) Utxo {
	return Utxo{
		ID:      copyInt(t.Id),
		Token:   t.Token,
		Amount:  copyInt(t.Amount),
		Owner:   t.Owner,
		IsSpent: t.IsSpent,
	}
}

// ToABI converts o to its tuple form.
func (o Output) ToABI() IUTXOOutput {
	return IUTXOOutput{Amount: copyInt(o.Amount), Owner: o.Owner}
}

// OutputFromABI converts a decoded tuple to an Output.
func OutputFromABI(t IUTXOOutput) Output {
	return Output{Amount: copyInt(t.Amount), Owner: t.Owner}
}

// ToABI converts in to its tuple form.
func (in Input) ToABI() IUTXOInput {
	return IUTXOInput{Id: copyInt(in.ID), Signature: bytes.Clone(in.Signature)}
}

// InputFromABI converts a decoded tuple to an Input.
func InputFromABI(t IUTXOInput) Input {
	return Input{ID: copyInt(t.Id), Signature: bytes.Clone(t.Signature)}
}

// Equal reports whether u and other hold the same values.
func (u Utxo) Equal(other Utxo) bool {
	return intEqual(u.ID, other.ID) &&
		u.Token == other.Token &&
		intEqual(u.Amount, other.Amount) &&
		u.Owner == other.Owner &&
		u.IsSpent == other.IsSpent
}

// Equal reports whether o and other hold the same values.
func (o Output) Equal(other Output) bool {
	return intEqual(o.Amount, other.Amount) && o.Owner == other.Owner
}

// Equal reports whether in and other hold the same values.
func (in Input) Equal(other Input) bool {
	return intEqual(in.ID, other.ID) && bytes.Equal(in.Signature, other.Signature)
}

func inputsToABI(inputs []Input) []IUTXOInput {
	out := make([]IUTXOInput, len(inputs))
	for i, in := range inputs {
		out[i] = in.ToABI()
	}
	return out
}

func outputsToABI(outputs []Output) []IUTXOOutput {
	out := make([]IUTXOOutput, len(outputs))
	for i, o := range outputs {
		out[i] = o.ToABI()
	}
	return out
}

func utxosFromABI(ts []IUTXOUtxo) []Utxo {
	out := make([]Utxo, len(ts))
	for i, t := range ts {
		out[i] = UtxoFromABI(t)
	}
	return out
}

// copyInt returns a copy of x; nil becomes zero so packed values are
// always well-formed.
func copyInt(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

func intEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
