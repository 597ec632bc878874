package devnet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Klingon-tech/klingnet-utxo/pkg/contracts/utxo"
	"github.com/Klingon-tech/klingnet-utxo/pkg/crypto"
)

var recipient = common.HexToAddress("0xABCD000000000000000000000000000000000001")

func TestLedger_GenesisState(t *testing.T) {
	env := setupTestEnv(t)

	n, err := env.ledger.Length()
	if err != nil {
		t.Fatalf("Length: %v", err)
	}
	if n.Int64() != 1 {
		t.Fatalf("length = %d, want 1", n.Int64())
	}

	u, err := env.ledger.Get(big.NewInt(0))
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if u.Amount.Int64() != 100 || u.Owner != env.key.Address() || u.Token != testToken || u.IsSpent {
		t.Errorf("genesis utxo = %+v", u)
	}
}

func TestLedger_GetMissing(t *testing.T) {
	env := setupTestEnv(t)

	for _, id := range []*big.Int{big.NewInt(42), nil, big.NewInt(-1), new(big.Int).Lsh(big.NewInt(1), 300)} {
		_, err := env.ledger.Get(id)
		if name := revertName(t, err); name != utxo.ErrorUTXONotFound {
			t.Errorf("Get(%v) revert = %q, want %q", id, name, utxo.ErrorUTXONotFound)
		}
	}
}

func TestLedger_Transfer(t *testing.T) {
	env := setupTestEnv(t)

	outputs := []utxo.Output{
		{Amount: big.NewInt(60), Owner: recipient},
		{Amount: big.NewInt(40), Owner: env.key.Address()},
	}
	in := signedInput(t, env.key, 0, outputs)

	ids, err := env.ledger.Transfer([]utxo.Input{in}, outputs, true)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if len(ids) != 2 || ids[0].Int64() != 1 || ids[1].Int64() != 2 {
		t.Fatalf("ids = %v, want [1 2]", ids)
	}

	spent, _ := env.ledger.Get(big.NewInt(0))
	if !spent.IsSpent {
		t.Error("input should be marked spent")
	}
	created, _ := env.ledger.Get(big.NewInt(1))
	if created.Owner != recipient || created.Amount.Int64() != 60 || created.Token != testToken {
		t.Errorf("created = %+v", created)
	}
	n, _ := env.ledger.Length()
	if n.Int64() != 3 {
		t.Errorf("length = %d, want 3", n.Int64())
	}
}

func TestLedger_TransferDryRun(t *testing.T) {
	env := setupTestEnv(t)

	outputs := []utxo.Output{{Amount: big.NewInt(100), Owner: recipient}}
	in := signedInput(t, env.key, 0, outputs)

	if _, err := env.ledger.Transfer([]utxo.Input{in}, outputs, false); err != nil {
		t.Fatalf("Transfer(dry run): %v", err)
	}
	u, _ := env.ledger.Get(big.NewInt(0))
	if u.IsSpent {
		t.Error("dry run must not change state")
	}
	n, _ := env.ledger.Length()
	if n.Int64() != 1 {
		t.Errorf("length = %d, want 1", n.Int64())
	}
}

func TestLedger_TransferRejections(t *testing.T) {
	env := setupTestEnv(t)
	other, _ := crypto.GenerateKey()
	otherToken := common.HexToAddress("0x00000000000000000000000000000000000070cF")
	if _, err := env.ledger.Mint(otherToken, env.key.Address(), big.NewInt(5)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	full := []utxo.Output{{Amount: big.NewInt(100), Owner: recipient}}

	tests := []struct {
		name    string
		inputs  func() []utxo.Input
		outputs []utxo.Output
		want    string
	}{
		{
			name:    "no inputs",
			inputs:  func() []utxo.Input { return nil },
			outputs: full,
			want:    utxo.ErrorEmptyInputs,
		},
		{
			name:    "no outputs",
			inputs:  func() []utxo.Input { return []utxo.Input{signedInput(t, env.key, 0, nil)} },
			outputs: nil,
			want:    utxo.ErrorEmptyOutputs,
		},
		{
			name:    "unknown input",
			inputs:  func() []utxo.Input { return []utxo.Input{signedInput(t, env.key, 42, full)} },
			outputs: full,
			want:    utxo.ErrorUTXONotFound,
		},
		{
			name: "wrong signer",
			inputs: func() []utxo.Input {
				in, _ := utxo.SignInput(other, big.NewInt(0), full)
				return []utxo.Input{in}
			},
			outputs: full,
			want:    utxo.ErrorInvalidSignature,
		},
		{
			name: "garbage signature",
			inputs: func() []utxo.Input {
				return []utxo.Input{{ID: big.NewInt(0), Signature: []byte{1, 2, 3}}}
			},
			outputs: full,
			want:    utxo.ErrorInvalidSignature,
		},
		{
			name: "duplicate input",
			inputs: func() []utxo.Input {
				in := signedInput(t, env.key, 0, []utxo.Output{{Amount: big.NewInt(200), Owner: recipient}})
				return []utxo.Input{in, in}
			},
			outputs: []utxo.Output{{Amount: big.NewInt(200), Owner: recipient}},
			want:    utxo.ErrorUTXOAlreadySpent,
		},
		{
			name: "mixed tokens",
			inputs: func() []utxo.Input {
				outs := []utxo.Output{{Amount: big.NewInt(105), Owner: recipient}}
				return []utxo.Input{signedInput(t, env.key, 0, outs), signedInput(t, env.key, 1, outs)}
			},
			outputs: []utxo.Output{{Amount: big.NewInt(105), Owner: recipient}},
			want:    utxo.ErrorTokenMismatch,
		},
		{
			name: "zero amount",
			inputs: func() []utxo.Input {
				outs := []utxo.Output{{Amount: big.NewInt(100), Owner: recipient}, {Amount: big.NewInt(0), Owner: recipient}}
				return []utxo.Input{signedInput(t, env.key, 0, outs)}
			},
			outputs: []utxo.Output{{Amount: big.NewInt(100), Owner: recipient}, {Amount: big.NewInt(0), Owner: recipient}},
			want:    utxo.ErrorZeroAmount,
		},
		{
			name: "not conserved",
			inputs: func() []utxo.Input {
				outs := []utxo.Output{{Amount: big.NewInt(99), Owner: recipient}}
				return []utxo.Input{signedInput(t, env.key, 0, outs)}
			},
			outputs: []utxo.Output{{Amount: big.NewInt(99), Owner: recipient}},
			want:    utxo.ErrorAmountMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.Transfer(tt.inputs(), tt.outputs, true)
			if name := revertName(t, err); name != tt.want {
				t.Errorf("revert = %q, want %q", name, tt.want)
			}
		})
	}

	u, _ := env.ledger.Get(big.NewInt(0))
	if u.IsSpent {
		t.Error("rejected transfers must not spend inputs")
	}
}

func TestLedger_DoubleSpend(t *testing.T) {
	env := setupTestEnv(t)

	outputs := []utxo.Output{{Amount: big.NewInt(100), Owner: recipient}}
	in := signedInput(t, env.key, 0, outputs)
	if _, err := env.ledger.Transfer([]utxo.Input{in}, outputs, true); err != nil {
		t.Fatalf("first transfer: %v", err)
	}

	_, err := env.ledger.Transfer([]utxo.Input{in}, outputs, true)
	if name := revertName(t, err); name != utxo.ErrorUTXOAlreadySpent {
		t.Errorf("revert = %q, want %q", name, utxo.ErrorUTXOAlreadySpent)
	}
}

func TestLedger_ListByOwner(t *testing.T) {
	env := setupTestEnv(t)
	owner := env.key.Address()
	for i := 0; i < 4; i++ {
		if _, err := env.ledger.Mint(testToken, owner, big.NewInt(int64(10+i))); err != nil {
			t.Fatalf("Mint: %v", err)
		}
	}
	if _, err := env.ledger.Mint(testToken, recipient, big.NewInt(7)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	tests := []struct {
		name          string
		offset, limit int64
		wantIDs       []int64
	}{
		{"all", 0, 10, []int64{0, 1, 2, 3, 4}},
		{"first page", 0, 2, []int64{0, 1}},
		{"second page", 2, 2, []int64{2, 3}},
		{"tail", 4, 2, []int64{4}},
		{"beyond", 9, 2, nil},
		{"zero limit", 0, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.ledger.ListByOwner(owner, big.NewInt(tt.offset), big.NewInt(tt.limit))
			if err != nil {
				t.Fatalf("ListByOwner: %v", err)
			}
			if got == nil {
				t.Fatal("result should be an empty slice, not nil")
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d utxos, want %d", len(got), len(tt.wantIDs))
			}
			for i, u := range got {
				if u.ID.Int64() != tt.wantIDs[i] {
					t.Errorf("utxo[%d].ID = %d, want %d", i, u.ID.Int64(), tt.wantIDs[i])
				}
				if u.Owner != owner {
					t.Errorf("utxo[%d].Owner = %s, want %s", i, u.Owner.Hex(), owner.Hex())
				}
			}
		})
	}

	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	got, err := env.ledger.ListByOwner(owner, huge, big.NewInt(1))
	if err != nil || len(got) != 0 {
		t.Errorf("huge offset: got %d utxos, err %v", len(got), err)
	}
	got, err = env.ledger.ListByOwner(owner, big.NewInt(0), huge)
	if err != nil || len(got) != 5 {
		t.Errorf("huge limit: got %d utxos, err %v", len(got), err)
	}
}

func TestLedger_MintZero(t *testing.T) {
	env := setupTestEnv(t)
	_, err := env.ledger.Mint(testToken, recipient, big.NewInt(0))
	if name := revertName(t, err); name != utxo.ErrorZeroAmount {
		t.Errorf("revert = %q, want %q", name, utxo.ErrorZeroAmount)
	}
}
