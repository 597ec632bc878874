package crypto

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxSigner signs transactions for a single chain with a local key.
type TxSigner struct {
	key     *PrivateKey
	signer  types.Signer
	address common.Address
}

// NewTxSigner creates a signer bound to chainID.
func NewTxSigner(key *PrivateKey, chainID *big.Int) (*TxSigner, error) {
	if key == nil {
		return nil, errors.New("nil private key")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("chain id must be positive")
	}
	return &TxSigner{
		key:     key,
		signer:  types.LatestSignerForChainID(chainID),
		address: key.Address(),
	}, nil
}

// Address returns the sender address of transactions signed by s.
func (s *TxSigner) Address() common.Address {
	return s.address
}

// SignTx returns a signed copy of tx.
func (s *TxSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	h := s.signer.Hash(tx)
	sig, err := s.key.SignDigest(h[:])
	if err != nil {
		return nil, err
	}
	return tx.WithSignature(s.signer, sig)
}

// SignDigest signs an arbitrary 32-byte digest with the transaction key.
func (s *TxSigner) SignDigest(hash []byte) ([]byte, error) {
	return s.key.SignDigest(hash)
}
