package devnet

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Klingon-tech/klingnet-utxo/pkg/contracts/utxo"
)

// Contract executes ABI-encoded calls against a Ledger the way the
// deployed UTXO contract would.
type Contract struct {
	ledger  *Ledger
	abi     abi.ABI
	metrics *Metrics
}

// NewContract creates a contract over ledger. metrics may be nil.
func NewContract(ledger *Ledger, metrics *Metrics) *Contract {
	return &Contract{ledger: ledger, abi: utxo.ABI(), metrics: metrics}
}

// Ledger returns the contract state.
func (c *Contract) Ledger() *Ledger {
	return c.ledger
}

// Execute runs calldata. State changes are applied only when commit is
// set. Contract-level failures are returned as *RevertError.
func (c *Contract) Execute(calldata []byte, commit bool) ([]byte, error) {
	if len(calldata) < 4 {
		return nil, emptyRevert()
	}
	method, err := c.abi.MethodById(calldata[:4])
	if err != nil {
		return nil, emptyRevert()
	}
	args, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return nil, emptyRevert()
	}

	out, err := c.dispatch(method, args, commit)
	c.metrics.observeCall(method.Name, err)
	return out, err
}

func (c *Contract) dispatch(method *abi.Method, args []interface{}, commit bool) ([]byte, error) {
	switch method.Name {
	case utxo.MethodGetUTXOByID:
		u, err := c.ledger.Get(args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(u.ToABI())

	case utxo.MethodListUTXOsByAddress:
		list, err := c.ledger.ListByOwner(args[0].(common.Address), args[1].(*big.Int), args[2].(*big.Int))
		if err != nil {
			return nil, err
		}
		ts := make([]utxo.IUTXOUtxo, len(list))
		for i, u := range list {
			ts[i] = u.ToABI()
		}
		return method.Outputs.Pack(ts)

	case utxo.MethodGetUTXOsLength:
		n, err := c.ledger.Length()
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(n)

	case utxo.MethodTransfer:
		ins := *abi.ConvertType(args[0], new([]utxo.IUTXOInput)).(*[]utxo.IUTXOInput)
		outs := *abi.ConvertType(args[1], new([]utxo.IUTXOOutput)).(*[]utxo.IUTXOOutput)

		inputs := make([]utxo.Input, len(ins))
		for i, in := range ins {
			inputs[i] = utxo.InputFromABI(in)
		}
		outputs := make([]utxo.Output, len(outs))
		for i, o := range outs {
			outputs[i] = utxo.OutputFromABI(o)
		}
		if _, err := c.ledger.Transfer(inputs, outputs, commit); err != nil {
			return nil, err
		}
		if commit {
			c.metrics.observeTransfer(c.ledger)
		}
		return method.Outputs.Pack()
	}
	return nil, emptyRevert()
}

// isRevert reports whether err is a contract revert rather than an
// internal failure.
func isRevert(err error) bool {
	var re *RevertError
	return errors.As(err, &re)
}
