package devnet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// CallArgs are the transaction arguments of eth_call and eth_estimateGas.
type CallArgs struct {
	From     *common.Address `json:"from"`
	To       *common.Address `json:"to"`
	Gas      *hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Value    *hexutil.Big    `json:"value"`
	Data     *hexutil.Bytes  `json:"data"`
	Input    *hexutil.Bytes  `json:"input"`
}

func (a CallArgs) message() ethereum.CallMsg {
	msg := ethereum.CallMsg{To: a.To}
	if a.From != nil {
		msg.From = *a.From
	}
	if a.Gas != nil {
		msg.Gas = uint64(*a.Gas)
	}
	if a.Value != nil {
		msg.Value = a.Value.ToInt()
	}
	switch {
	case a.Input != nil:
		msg.Data = *a.Input
	case a.Data != nil:
		msg.Data = *a.Data
	}
	return msg
}

// EthAPI serves the eth namespace subset used by contract clients.
type EthAPI struct {
	b *Backend
}

// NewEthAPI creates the eth namespace service for b.
func NewEthAPI(b *Backend) *EthAPI {
	return &EthAPI{b: b}
}

// ChainId returns the chain id (eth_chainId).
func (api *EthAPI) ChainId() *hexutil.Big {
	return (*hexutil.Big)(api.b.ChainID())
}

// BlockNumber returns the latest block number (eth_blockNumber).
func (api *EthAPI) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(api.b.BlockNumber())
}

// GetCode returns the code stored at address (eth_getCode).
func (api *EthAPI) GetCode(ctx context.Context, address common.Address, blockNrOrHash rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	return api.b.CodeAt(ctx, address, nil)
}

// Call executes a read-only call (eth_call).
func (api *EthAPI) Call(ctx context.Context, args CallArgs, blockNrOrHash *rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	return api.b.CallContract(ctx, args.message(), nil)
}

// EstimateGas estimates the gas a transaction needs (eth_estimateGas).
func (api *EthAPI) EstimateGas(ctx context.Context, args CallArgs, blockNrOrHash *rpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	gas, err := api.b.EstimateGas(ctx, args.message())
	return hexutil.Uint64(gas), err
}

// GasPrice returns the suggested legacy gas price (eth_gasPrice).
func (api *EthAPI) GasPrice(ctx context.Context) (*hexutil.Big, error) {
	p, err := api.b.SuggestGasPrice(ctx)
	return (*hexutil.Big)(p), err
}

// MaxPriorityFeePerGas returns the suggested tip (eth_maxPriorityFeePerGas).
func (api *EthAPI) MaxPriorityFeePerGas(ctx context.Context) (*hexutil.Big, error) {
	p, err := api.b.SuggestGasTipCap(ctx)
	return (*hexutil.Big)(p), err
}

// GetTransactionCount returns the next nonce of address (eth_getTransactionCount).
func (api *EthAPI) GetTransactionCount(ctx context.Context, address common.Address, blockNrOrHash rpc.BlockNumberOrHash) (*hexutil.Uint64, error) {
	n, err := api.b.PendingNonceAt(ctx, address)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Uint64)(&n), nil
}

// SendRawTransaction submits a signed, RLP or typed-envelope encoded
// transaction (eth_sendRawTransaction).
func (api *EthAPI) SendRawTransaction(ctx context.Context, input hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(input); err != nil {
		return common.Hash{}, err
	}
	if err := api.b.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// GetBlockByNumber returns the header of a block (eth_getBlockByNumber).
// Transactions are never included.
func (api *EthAPI) GetBlockByNumber(ctx context.Context, number rpc.BlockNumber, fullTx bool) (*types.Header, error) {
	var n *big.Int
	if number >= 0 {
		n = big.NewInt(number.Int64())
	}
	h, err := api.b.HeaderByNumber(ctx, n)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return h, err
}

// GetTransactionReceipt returns the receipt of a mined transaction or null
// (eth_getTransactionReceipt).
func (api *EthAPI) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	r, err := api.b.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return r, err
}

// NetAPI serves the net namespace.
type NetAPI struct {
	b *Backend
}

// Version returns the network id (net_version).
func (api *NetAPI) Version() string {
	return api.b.ChainID().String()
}
