package utxo

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Klingon-tech/klingnet-utxo/pkg/crypto"
)

// spendRecoveryBase is added to the recovery id of spend signatures so V
// is 27 or 28, the form ecrecover accepts.
const spendRecoveryBase = 27

var spendArgs = mustSpendArgs()

func mustSpendArgs() abi.Arguments {
	uint256, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	outputs, err := abi.NewType("tuple[]", "struct IUTXO.Output[]", []abi.ArgumentMarshaling{
		{Name: "amount", Type: "uint256"},
		{Name: "owner", Type: "address"},
	})
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Name: "id", Type: uint256}, {Name: "outputs", Type: outputs}}
}

// SpendHash returns the digest the owner of UTXO id signs to authorize
// spending it into outputs:
//
//	personal_digest(keccak256(abi.encode(id, outputs)))
func SpendHash(id *big.Int, outputs []Output) (common.Hash, error) {
	packed, err := spendArgs.Pack(copyInt(id), outputsToABI(outputs))
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode spend: %w", err)
	}
	return crypto.PersonalDigest(crypto.Keccak256(packed)), nil
}

// SignInput builds an Input spending UTXO id into outputs, signed by signer.
// The signature is [R || S || V] with V set to 27 or 28.
func SignInput(signer crypto.DigestSigner, id *big.Int, outputs []Output) (Input, error) {
	h, err := SpendHash(id, outputs)
	if err != nil {
		return Input{}, err
	}
	sig, err := signer.SignDigest(h[:])
	if err != nil {
		return Input{}, fmt.Errorf("sign input %s: %w", id, err)
	}
	if len(sig) != crypto.SignatureSize {
		return Input{}, fmt.Errorf("sign input %s: %w", id, crypto.ErrInvalidSignature)
	}
	out := make([]byte, len(sig))
	copy(out, sig)
	if out[64] < spendRecoveryBase {
		out[64] += spendRecoveryBase
	}
	return Input{ID: copyInt(id), Signature: out}, nil
}

// SpendSigner recovers the address that signed input for outputs. Like
// ecrecover it only accepts V of 27 or 28.
func SpendSigner(in Input, outputs []Output) (common.Address, error) {
	if len(in.Signature) != crypto.SignatureSize {
		return common.Address{}, crypto.ErrInvalidSignature
	}
	if v := in.Signature[64]; v != spendRecoveryBase && v != spendRecoveryBase+1 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", crypto.ErrInvalidSignature, v)
	}
	h, err := SpendHash(in.ID, outputs)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.RecoverAddress(h[:], in.Signature)
}
