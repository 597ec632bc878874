// Package utxo is a typed client for the UTXO ledger contract.
//
// Two capability tiers are provided. ReadOnlyClient can only query the
// ledger. SigningClient additionally submits transfers. Because only
// SigningClient has a Transfer method, calling transfer without a signer
// does not compile.
package utxo

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-utxo/internal/log"
	"github.com/Klingon-tech/klingnet-utxo/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-utxo/pkg/crypto"
)

// Reader is the query surface of the ledger contract.
type Reader interface {
	// GetUTXOByID returns the UTXO with the given id, or nil and no error
	// when the contract reports that it does not exist.
	GetUTXOByID(ctx context.Context, id *big.Int) (*Utxo, error)
	// ListUTXOsByAddress returns at most limit UTXOs owned by owner,
	// starting at offset.
	ListUTXOsByAddress(ctx context.Context, owner common.Address, offset, limit uint64) ([]Utxo, error)
	// UTXOLength returns the total number of UTXOs recorded by the contract.
	UTXOLength(ctx context.Context) (*big.Int, error)
}

// Transferer is a Reader that can also submit transfers.
type Transferer interface {
	Reader
	// Transfer consumes inputs and creates outputs, returning the hash of
	// the submitted transaction.
	Transfer(ctx context.Context, inputs []Input, outputs []Output) (common.Hash, error)
}

// Backend is the chain access a SigningClient needs.
type Backend interface {
	bind.ContractCaller
	bind.ContractTransactor
}

// Signer signs transactions on behalf of a single account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// Option configures a client.
type Option func(*options)

type options struct {
	logger    zerolog.Logger
	timeout   time.Duration
	transport func(*rpcclient.Client) rpcclient.Backend
}

func defaultOptions() options {
	return options{logger: klog.Contract, timeout: rpcclient.DefaultTimeout}
}

// WithLogger sets the logger used for call tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeout sets the HTTP timeout of dialed transports.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTransport decorates the transport created by Dial and DialWithKey,
// e.g. with rpcclient.NewRetrying.
func WithTransport(wrap func(*rpcclient.Client) rpcclient.Backend) Option {
	return func(o *options) { o.transport = wrap }
}

// caller implements the read path shared by both tiers.
type caller struct {
	address  common.Address
	contract *bind.BoundContract
	logger   zerolog.Logger
	closer   func()
}

func newCaller(address common.Address, c bind.ContractCaller, t bind.ContractTransactor, o options) caller {
	return caller{
		address:  address,
		contract: bind.NewBoundContract(address, parsedABI, c, t, nil),
		logger:   o.logger.With().Str("contract", address.Hex()).Logger(),
	}
}

// Address returns the contract address.
func (c *caller) Address() common.Address {
	return c.address
}

// Close releases the transport opened by Dial or DialWithKey. It is a
// no-op for clients built on a caller-supplied backend.
func (c *caller) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// GetUTXOByID implements Reader.
func (c *caller) GetUTXOByID(ctx context.Context, id *big.Int) (*Utxo, error) {
	if id == nil {
		return nil, &CallError{Kind: ErrQueryFailed, Method: MethodGetUTXOByID, Err: errors.New("nil id")}
	}
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodGetUTXOByID, id)
	if err != nil {
		if IsRevertReason(err, ErrUTXONotFoundSelector) {
			c.logger.Debug().Str("id", id.String()).Msg("UTXO not found")
			return nil, nil
		}
		return nil, &CallError{Kind: ErrQueryFailed, Method: MethodGetUTXOByID, Err: err}
	}

	t := *abi.ConvertType(out[0], new(IUTXOUtxo)).(*IUTXOUtxo)
	u := UtxoFromABI(t)
	c.logger.Debug().Str("id", id.String()).Bool("spent", u.IsSpent).Msg("Fetched UTXO")
	return &u, nil
}

// ListUTXOsByAddress implements Reader.
func (c *caller) ListUTXOsByAddress(ctx context.Context, owner common.Address, offset, limit uint64) ([]Utxo, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodListUTXOsByAddress,
		owner, new(big.Int).SetUint64(offset), new(big.Int).SetUint64(limit))
	if err != nil {
		return nil, &CallError{Kind: ErrQueryFailed, Method: MethodListUTXOsByAddress, Err: err}
	}

	ts := *abi.ConvertType(out[0], new([]IUTXOUtxo)).(*[]IUTXOUtxo)
	c.logger.Debug().
		Str("owner", owner.Hex()).
		Uint64("offset", offset).
		Uint64("limit", limit).
		Int("count", len(ts)).
		Msg("Listed UTXOs")
	return utxosFromABI(ts), nil
}

// UTXOLength implements Reader.
func (c *caller) UTXOLength(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodGetUTXOsLength)
	if err != nil {
		return nil, &CallError{Kind: ErrLengthQueryFailed, Method: MethodGetUTXOsLength, Err: err}
	}
	n := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return n, nil
}

// ReadOnlyClient queries the ledger contract. It cannot submit transfers.
type ReadOnlyClient struct {
	caller
}

var _ Reader = (*ReadOnlyClient)(nil)

// NewReadOnlyClient creates a query-only client bound to address.
func NewReadOnlyClient(address common.Address, backend bind.ContractCaller, opts ...Option) *ReadOnlyClient {
	o := applyOptions(opts)
	return &ReadOnlyClient{caller: newCaller(address, backend, nil, o)}
}

// Dial connects a ReadOnlyClient to the contract at address through the
// JSON-RPC endpoint rpcURL.
func Dial(rpcURL, address string, opts ...Option) (*ReadOnlyClient, error) {
	o := applyOptions(opts)
	if err := validateServiceURL(rpcURL); err != nil {
		return nil, err
	}
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	rc, err := rpcclient.NewWithTimeout(rpcURL, o.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	c := &ReadOnlyClient{caller: newCaller(addr, transport(rc, o), nil, o)}
	c.closer = rc.Close
	return c, nil
}

// SigningClient queries the ledger contract and submits signed transfers.
//
// Transfers on one client are serialized so each picks up the nonce left
// by the previous one. Separate clients sending from the same account must
// be coordinated by the caller.
type SigningClient struct {
	caller
	signer Signer

	sendMu sync.Mutex
}

var _ Transferer = (*SigningClient)(nil)

// NewSigningClient creates a client that signs transfers with signer.
func NewSigningClient(address common.Address, backend Backend, signer Signer, opts ...Option) (*SigningClient, error) {
	if signer == nil {
		return nil, ErrNoSigner
	}
	o := applyOptions(opts)
	return &SigningClient{
		caller: newCaller(address, backend, backend, o),
		signer: signer,
	}, nil
}

// DialWithKey connects a SigningClient through rpcURL, signing with the
// hex-encoded privateKey. All arguments are validated before the endpoint
// is contacted for its chain id.
func DialWithKey(ctx context.Context, rpcURL, address, privateKey string, opts ...Option) (*SigningClient, error) {
	o := applyOptions(opts)
	if err := validateServiceURL(rpcURL); err != nil {
		return nil, err
	}
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	key, err := crypto.ParsePrivateKeyHex(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}

	rc, err := rpcclient.NewWithTimeout(rpcURL, o.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	chainID, err := rc.ChainID(ctx)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("%w: fetch chain id: %w", ErrConnectFailed, err)
	}
	signer, err := crypto.NewTxSigner(key, chainID)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}

	c, err := NewSigningClient(addr, transport(rc, o), signer, opts...)
	if err != nil {
		rc.Close()
		return nil, err
	}
	c.closer = rc.Close
	return c, nil
}

// From returns the account transfers are sent from.
func (c *SigningClient) From() common.Address {
	return c.signer.Address()
}

// Transfer implements Transferer. Arguments are passed to the contract
// without local validation.
func (c *SigningClient) Transfer(ctx context.Context, inputs []Input, outputs []Output) (common.Hash, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	tx, err := c.contract.Transact(c.transactOpts(ctx), MethodTransfer, inputsToABI(inputs), outputsToABI(outputs))
	if err != nil {
		return common.Hash{}, &CallError{Kind: ErrTransferFailed, Method: MethodTransfer, Err: err}
	}
	c.logger.Debug().
		Str("tx", tx.Hash().Hex()).
		Int("inputs", len(inputs)).
		Int("outputs", len(outputs)).
		Msg("Submitted transfer")
	return tx.Hash(), nil
}

func (c *SigningClient) transactOpts(ctx context.Context) *bind.TransactOpts {
	from := c.signer.Address()
	return &bind.TransactOpts{
		From:    from,
		Context: ctx,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != from {
				return nil, bind.ErrNotAuthorized
			}
			return c.signer.SignTx(tx)
		},
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func transport(rc *rpcclient.Client, o options) rpcclient.Backend {
	if o.transport != nil {
		return o.transport(rc)
	}
	return rc
}

func validateServiceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidServiceURL, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidServiceURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidServiceURL)
	}
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}
