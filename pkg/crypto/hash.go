// Package crypto provides the secp256k1 and Keccak primitives used to sign
// ledger transactions and UTXO spend authorizations.
package crypto

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 computes the legacy Keccak-256 hash of the concatenated inputs.
func Keccak256(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// personalPrefix is the EIP-191 version 0x45 prefix for 32-byte messages.
const personalPrefix = "\x19Ethereum Signed Message:\n32"

// PersonalDigest wraps a 32-byte message hash the way eth_sign does.
func PersonalDigest(message common.Hash) common.Hash {
	return Keccak256([]byte(personalPrefix), message[:])
}
