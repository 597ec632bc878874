package devnet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	klog "github.com/Klingon-tech/klingnet-utxo/internal/log"
	"github.com/Klingon-tech/klingnet-utxo/internal/storage"
	"github.com/Klingon-tech/klingnet-utxo/pkg/contracts/utxo"
	"github.com/Klingon-tech/klingnet-utxo/pkg/crypto"
)

var (
	testToken    = common.HexToAddress("0x00000000000000000000000000000000000070cE")
	testContract = common.HexToAddress("0x000000000000000000000000000000000000C0De")
	testChainID  = big.NewInt(1337)
)

// testEnv is a seeded devnet with one UTXO of 100 owned by key.
type testEnv struct {
	db      storage.DB
	backend *Backend
	ledger  *Ledger
	metrics *Metrics
	key     *crypto.PrivateKey
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	klog.Init("error", false, "")

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	db := storage.NewMemory()
	metrics := NewMetrics()
	b := NewBackend(db, testChainID, testContract, metrics)
	seeded, err := b.Seed([]Allocation{{Token: testToken, Owner: key.Address(), Amount: big.NewInt(100)}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !seeded {
		t.Fatal("fresh backend should be seeded")
	}

	return &testEnv{db: db, backend: b, ledger: b.Contract().Ledger(), metrics: metrics, key: key}
}

// signedInput spends id into outputs with key.
func signedInput(t *testing.T, key *crypto.PrivateKey, id int64, outputs []utxo.Output) utxo.Input {
	t.Helper()
	in, err := utxo.SignInput(key, big.NewInt(id), outputs)
	if err != nil {
		t.Fatalf("sign input: %v", err)
	}
	return in
}

func revertName(t *testing.T, err error) string {
	t.Helper()
	re, ok := err.(*RevertError)
	if !ok {
		t.Fatalf("error %v (%T) is not a revert", err, err)
	}
	return re.Name
}
