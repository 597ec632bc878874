package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common"
)

// Sizes of the serialized forms handled by this package.
const (
	PrivateKeySize = 32
	SignatureSize  = 65 // [R || S || V], V in {0, 1}
	DigestSize     = 32
)

// compactRecoveryBase is the header byte offset used by compact signatures
// for uncompressed public keys.
const compactRecoveryBase = 27

var (
	// ErrInvalidKey is returned for malformed or out-of-range private keys.
	ErrInvalidKey = errors.New("invalid private key")
	// ErrInvalidSignature is returned for malformed recoverable signatures.
	ErrInvalidSignature = errors.New("invalid signature")
)

// DigestSigner signs 32-byte digests with a recoverable secp256k1 signature.
type DigestSigner interface {
	// SignDigest returns a 65-byte [R || S || V] signature over hash.
	SignDigest(hash []byte) ([]byte, error)
	// Address returns the Ethereum address of the signing key.
	Address() common.Address
}

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret. The
// scalar must be non-zero and below the curve order.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKey, PrivateKeySize, len(b))
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow {
		return nil, fmt.Errorf("%w: scalar exceeds curve order", ErrInvalidKey)
	}
	if scalar.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&scalar)}, nil
}

// ParsePrivateKeyHex parses a hex-encoded 32-byte private key, with or
// without a 0x prefix. Surrounding whitespace is ignored so key files can
// end with a newline.
func ParsePrivateKeyHex(s string) (*PrivateKey, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	defer zeroBytes(b)
	return PrivateKeyFromBytes(b)
}

// SignDigest produces a recoverable signature over a 32-byte digest in the
// Ethereum [R || S || V] layout with V in {0, 1}.
func (pk *PrivateKey) SignDigest(hash []byte) ([]byte, error) {
	if len(hash) != DigestSize {
		return nil, fmt.Errorf("hash must be %d bytes, got %d", DigestSize, len(hash))
	}
	compact := ecdsa.SignCompact(pk.key, hash, false)

	sig := make([]byte, SignatureSize)
	copy(sig, compact[1:])
	sig[64] = compact[0] - compactRecoveryBase
	return sig, nil
}

// PublicKey returns the uncompressed 65-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeUncompressed()
}

// Address returns the Ethereum address of the key.
func (pk *PrivateKey) Address() common.Address {
	return AddressFromPubKey(pk.PublicKey())
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// AddressFromPubKey derives an Ethereum address from an uncompressed
// 65-byte public key: Keccak256(X || Y)[12:].
func AddressFromPubKey(pub []byte) common.Address {
	if len(pub) == 65 {
		pub = pub[1:]
	}
	h := Keccak256(pub)
	return common.BytesToAddress(h[12:])
}

// RecoverAddress returns the address whose key produced sig over hash.
// V may be given as {0, 1} or {27, 28}.
func RecoverAddress(hash, sig []byte) (common.Address, error) {
	if len(hash) != DigestSize {
		return common.Address{}, fmt.Errorf("hash must be %d bytes, got %d", DigestSize, len(hash))
	}
	if len(sig) != SignatureSize {
		return common.Address{}, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(sig))
	}
	v := sig[64]
	if v >= compactRecoveryBase {
		v -= compactRecoveryBase
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, sig[64])
	}

	compact := make([]byte, SignatureSize)
	compact[0] = compactRecoveryBase + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return AddressFromPubKey(pub.SerializeUncompressed()), nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
