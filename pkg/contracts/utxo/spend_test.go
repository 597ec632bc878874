package utxo

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Klingon-tech/klingnet-utxo/pkg/crypto"
)

func TestSpendHash_Deterministic(t *testing.T) {
	outputs := []Output{{Amount: big.NewInt(100), Owner: common.HexToAddress("0xABCD000000000000000000000000000000000001")}}

	h1, err := SpendHash(big.NewInt(1), outputs)
	if err != nil {
		t.Fatalf("SpendHash: %v", err)
	}
	h2, _ := SpendHash(big.NewInt(1), outputs)
	if h1 != h2 {
		t.Error("SpendHash should be deterministic")
	}

	h3, _ := SpendHash(big.NewInt(2), outputs)
	if h1 == h3 {
		t.Error("different ids should give different hashes")
	}
	h4, _ := SpendHash(big.NewInt(1), []Output{{Amount: big.NewInt(101), Owner: outputs[0].Owner}})
	if h1 == h4 {
		t.Error("different outputs should give different hashes")
	}
}

func TestSignInput_Recover(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	outputs := []Output{{Amount: big.NewInt(100), Owner: common.HexToAddress("0x01")}}

	in, err := SignInput(key, big.NewInt(3), outputs)
	if err != nil {
		t.Fatalf("SignInput: %v", err)
	}
	if in.ID.Int64() != 3 || len(in.Signature) != crypto.SignatureSize {
		t.Fatalf("input = %+v", in)
	}

	signer, err := SpendSigner(in, outputs)
	if err != nil {
		t.Fatalf("SpendSigner: %v", err)
	}
	if signer != key.Address() {
		t.Errorf("signer = %s, want %s", signer.Hex(), key.Address().Hex())
	}

	// The signature does not authorize other outputs.
	other := []Output{{Amount: big.NewInt(100), Owner: common.HexToAddress("0x02")}}
	if signer, err := SpendSigner(in, other); err == nil && signer == key.Address() {
		t.Error("signature must be bound to the outputs")
	}
}

func TestSignInput_RecoveryID(t *testing.T) {
	outputs := []Output{{Amount: big.NewInt(7), Owner: common.HexToAddress("0x03")}}

	// Enough keys and ids to see both parities of the recovery id.
	for i := 0; i < 16; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatal(err)
		}
		in, err := SignInput(key, big.NewInt(int64(i)), outputs)
		if err != nil {
			t.Fatalf("SignInput: %v", err)
		}
		if v := in.Signature[64]; v != 27 && v != 28 {
			t.Fatalf("V = %d, want 27 or 28", v)
		}
		signer, err := SpendSigner(in, outputs)
		if err != nil {
			t.Fatalf("SpendSigner: %v", err)
		}
		if signer != key.Address() {
			t.Errorf("signer = %s, want %s", signer.Hex(), key.Address().Hex())
		}
	}
}

func TestSpendSigner_RejectsRawRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	outputs := []Output{{Amount: big.NewInt(7), Owner: common.HexToAddress("0x03")}}
	in, err := SignInput(key, big.NewInt(1), outputs)
	if err != nil {
		t.Fatalf("SignInput: %v", err)
	}

	tests := []struct {
		name string
		v    byte
	}{
		{"zero based", in.Signature[64] - 27},
		{"out of range", 29},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := append([]byte(nil), in.Signature...)
			sig[64] = tt.v
			_, err := SpendSigner(Input{ID: in.ID, Signature: sig}, outputs)
			if !errors.Is(err, crypto.ErrInvalidSignature) {
				t.Errorf("SpendSigner error = %v, want ErrInvalidSignature", err)
			}
		})
	}
}
