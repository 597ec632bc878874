package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// dataError mimics a JSON-RPC error carrying revert data.
type dataError struct{}

func (dataError) Error() string          { return "execution reverted" }
func (dataError) ErrorCode() int         { return 3 }
func (dataError) ErrorData() interface{} { return "0xdeadbeef" }

// countingBackend fails every call with err and counts invocations.
type countingBackend struct {
	err   error
	calls map[string]int
}

func newCountingBackend(err error) *countingBackend {
	return &countingBackend{err: err, calls: make(map[string]int)}
}

func (b *countingBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	b.calls["CodeAt"]++
	return nil, b.err
}

func (b *countingBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	b.calls["CallContract"]++
	return nil, b.err
}

func (b *countingBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	b.calls["HeaderByNumber"]++
	return nil, b.err
}

func (b *countingBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	b.calls["PendingCodeAt"]++
	return nil, b.err
}

func (b *countingBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.calls["PendingNonceAt"]++
	return 0, b.err
}

func (b *countingBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	b.calls["SuggestGasPrice"]++
	return nil, b.err
}

func (b *countingBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	b.calls["SuggestGasTipCap"]++
	return nil, b.err
}

func (b *countingBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	b.calls["EstimateGas"]++
	return 0, b.err
}

func (b *countingBackend) SendTransaction(context.Context, *types.Transaction) error {
	b.calls["SendTransaction"]++
	return b.err
}

func (b *countingBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	b.calls["TransactionReceipt"]++
	return nil, b.err
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport", errors.New("connection refused"), true},
		{"wrapped transport", fmt.Errorf("post: %w", errors.New("eof")), true},
		{"revert", dataError{}, false},
		{"wrapped revert", fmt.Errorf("call: %w", dataError{}), false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), false},
		{"not found", ethereum.NotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetrying_RetriesTransportErrors(t *testing.T) {
	transport := errors.New("connection reset")
	b := newCountingBackend(transport)
	r := NewRetrying(b, 3, 0)

	_, err := r.CallContract(context.Background(), ethereum.CallMsg{}, nil)
	if !errors.Is(err, transport) {
		t.Fatalf("err = %v, want %v", err, transport)
	}
	if b.calls["CallContract"] != 3 {
		t.Errorf("CallContract calls = %d, want 3", b.calls["CallContract"])
	}
}

func TestRetrying_RevertIsFinal(t *testing.T) {
	b := newCountingBackend(dataError{})
	r := NewRetrying(b, 5, 0)

	_, err := r.CallContract(context.Background(), ethereum.CallMsg{}, nil)
	var de dataError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want the revert error unchanged", err)
	}
	if b.calls["CallContract"] != 1 {
		t.Errorf("CallContract calls = %d, want 1", b.calls["CallContract"])
	}
}

func TestRetrying_SendTransactionAtMostOnce(t *testing.T) {
	b := newCountingBackend(errors.New("connection reset"))
	r := NewRetrying(b, 5, 0)

	if err := r.SendTransaction(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	if b.calls["SendTransaction"] != 1 {
		t.Errorf("SendTransaction calls = %d, want 1", b.calls["SendTransaction"])
	}
}

func TestRetrying_SingleAttempt(t *testing.T) {
	b := newCountingBackend(errors.New("connection reset"))
	r := NewRetrying(b, 1, 0)

	if _, err := r.PendingNonceAt(context.Background(), common.Address{}); err == nil {
		t.Fatal("expected error")
	}
	if b.calls["PendingNonceAt"] != 1 {
		t.Errorf("PendingNonceAt calls = %d, want 1", b.calls["PendingNonceAt"])
	}
}
