// Package erc20 approves spending of ERC-20 tokens, typically so the UTXO
// ledger contract can pull deposits.
package erc20

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-utxo/internal/log"
)

//go:embed ierc20.abi.json
var ierc20ABI string

const (
	methodApprove   = "approve"
	methodAllowance = "allowance"
)

var (
	ErrInvalidAddress = errors.New("invalid token address")
	ErrNoSigner       = errors.New("no signer configured")
	ErrApproveFailed  = errors.New("approve failed")
	ErrQueryFailed    = errors.New("allowance query failed")
	ErrEncodeFailed   = errors.New("encode calldata failed")
)

var parsedABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ierc20ABI))
	if err != nil {
		panic("erc20: parse abi: " + err.Error())
	}
	return parsed
}()

// Backend is the chain access the client needs.
type Backend interface {
	bind.ContractCaller
	bind.ContractTransactor
}

// Signer signs transactions on behalf of a single account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// Client sends approvals for one token contract.
type Client struct {
	token    common.Address
	contract *bind.BoundContract
	signer   Signer
	logger   zerolog.Logger
}

// NewClient binds the token at the hex address token.
func NewClient(token string, backend Backend, signer Signer) (*Client, error) {
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, token)
	}
	if signer == nil {
		return nil, ErrNoSigner
	}
	addr := common.HexToAddress(token)
	return &Client{
		token:    addr,
		contract: bind.NewBoundContract(addr, parsedABI, backend, backend, nil),
		signer:   signer,
		logger:   klog.WithContract(addr.Hex()),
	}, nil
}

// Token returns the token contract address.
func (c *Client) Token() common.Address {
	return c.token
}

// Approve allows spender to transfer up to value of the signer's tokens
// and returns the transaction hash.
func (c *Client) Approve(ctx context.Context, spender common.Address, value *big.Int) (common.Hash, error) {
	if value == nil || value.Sign() < 0 {
		return common.Hash{}, fmt.Errorf("%w: value must be a non-negative integer", ErrEncodeFailed)
	}
	from := c.signer.Address()
	opts := &bind.TransactOpts{
		From:    from,
		Context: ctx,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != from {
				return nil, bind.ErrNotAuthorized
			}
			return c.signer.SignTx(tx)
		},
	}
	tx, err := c.contract.Transact(opts, methodApprove, spender, value)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrApproveFailed, err)
	}
	c.logger.Debug().Str("spender", spender.Hex()).Str("value", value.String()).Str("tx", tx.Hash().Hex()).Msg("Submitted approve")
	return tx.Hash(), nil
}

// Allowance returns how much spender may still transfer on behalf of owner.
func (c *Client) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodAllowance, owner, spender); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// ApproveCalldata returns the ABI-encoded approve(spender, value) call,
// for submission through another account or a multisig.
func ApproveCalldata(spender common.Address, value *big.Int) ([]byte, error) {
	if value == nil || value.Sign() < 0 {
		return nil, fmt.Errorf("%w: value must be a non-negative integer", ErrEncodeFailed)
	}
	data, err := parsedABI.Pack(methodApprove, spender, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return data, nil
}
