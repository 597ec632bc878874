// Package rpcclient provides an Ethereum JSON-RPC client for the UTXO
// ledger contract tools.
package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// DefaultTimeout bounds each HTTP round trip.
const DefaultTimeout = 10 * time.Second

// Backend is the set of chain operations the contract connectors need.
type Backend interface {
	bind.ContractCaller
	bind.ContractTransactor
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client is a JSON-RPC client for an Ethereum-compatible endpoint.
type Client struct {
	*ethclient.Client

	endpoint string
	rpc      *rpc.Client
}

// New creates a new RPC client targeting the given endpoint URL.
func New(endpoint string) (*Client, error) {
	return NewWithTimeout(endpoint, DefaultTimeout)
}

// NewWithTimeout creates a new RPC client with a custom HTTP timeout.
// HTTP endpoints are not contacted until the first call.
func NewWithTimeout(endpoint string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rc, err := rpc.DialOptions(context.Background(), endpoint,
		rpc.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return &Client{
		Client:   ethclient.NewClient(rc),
		endpoint: endpoint,
		rpc:      rc,
	}, nil
}

// Endpoint returns the URL the client was created with.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Call invokes a JSON-RPC method and unmarshals the result into the provided pointer.
// If result is nil, the response result is discarded.
func (c *Client) Call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	return c.rpc.CallContext(ctx, result, method, params...)
}

// WaitReceipt polls for the receipt of txHash until it is available or
// ctx is done.
func (c *Client) WaitReceipt(ctx context.Context, txHash common.Hash, interval time.Duration) (*types.Receipt, error) {
	return WaitReceipt(ctx, c, txHash, interval)
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// ReceiptSource looks up transaction receipts.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// WaitReceipt polls src for the receipt of txHash.
func WaitReceipt(ctx context.Context, src ReceiptSource, txHash common.Hash, interval time.Duration) (*types.Receipt, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := src.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt %s: %w", txHash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("receipt %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
