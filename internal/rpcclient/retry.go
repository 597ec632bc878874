package rpcclient

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/avast/retry-go"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	klog "github.com/Klingon-tech/klingnet-utxo/internal/log"
)

// Retrying decorates a Backend, repeating read-side calls that fail at
// the transport level. SendTransaction is passed through untouched so a
// transaction is submitted at most once.
type Retrying struct {
	Backend

	attempts uint
	delay    time.Duration
}

// NewRetrying wraps b. attempts counts the first try; values below 2
// disable retrying.
func NewRetrying(b Backend, attempts uint, delay time.Duration) *Retrying {
	if attempts == 0 {
		attempts = 1
	}
	return &Retrying{Backend: b, attempts: attempts, delay: delay}
}

// Retryable reports whether err is a transient transport failure. Errors
// produced by the remote node (including reverts), missing results and
// context cancellation are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ethereum.NotFound) {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return false
	}
	var dataErr rpc.DataError
	return !errors.As(err, &dataErr)
}

func (r *Retrying) do(ctx context.Context, method string, fn func() error) error {
	if r.attempts < 2 {
		return fn()
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(Retryable),
		retry.OnRetry(func(n uint, err error) {
			klog.RPC.Debug().Str("method", method).Uint("attempt", n+1).Err(err).Msg("Retrying call")
		}),
	)
}

func (r *Retrying) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := r.do(ctx, "eth_call", func() (err error) {
		out, err = r.Backend.CallContract(ctx, call, blockNumber)
		return err
	})
	return out, err
}

func (r *Retrying) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := r.do(ctx, "eth_getCode", func() (err error) {
		out, err = r.Backend.CodeAt(ctx, contract, blockNumber)
		return err
	})
	return out, err
}

func (r *Retrying) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	var out []byte
	err := r.do(ctx, "eth_getCode", func() (err error) {
		out, err = r.Backend.PendingCodeAt(ctx, account)
		return err
	})
	return out, err
}

func (r *Retrying) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var out uint64
	err := r.do(ctx, "eth_getTransactionCount", func() (err error) {
		out, err = r.Backend.PendingNonceAt(ctx, account)
		return err
	})
	return out, err
}

func (r *Retrying) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	var out uint64
	err := r.do(ctx, "eth_estimateGas", func() (err error) {
		out, err = r.Backend.EstimateGas(ctx, call)
		return err
	})
	return out, err
}

func (r *Retrying) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := r.do(ctx, "eth_gasPrice", func() (err error) {
		out, err = r.Backend.SuggestGasPrice(ctx)
		return err
	})
	return out, err
}

func (r *Retrying) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := r.do(ctx, "eth_maxPriorityFeePerGas", func() (err error) {
		out, err = r.Backend.SuggestGasTipCap(ctx)
		return err
	})
	return out, err
}

func (r *Retrying) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var out *types.Header
	err := r.do(ctx, "eth_getBlockByNumber", func() (err error) {
		out, err = r.Backend.HeaderByNumber(ctx, number)
		return err
	})
	return out, err
}

func (r *Retrying) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var out *types.Receipt
	err := r.do(ctx, "eth_getTransactionReceipt", func() (err error) {
		out, err = r.Backend.TransactionReceipt(ctx, txHash)
		return err
	})
	return out, err
}
