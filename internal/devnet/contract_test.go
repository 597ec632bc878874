package devnet

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Klingon-tech/klingnet-utxo/pkg/contracts/utxo"
)

func TestContract_GetUTXOById(t *testing.T) {
	env := setupTestEnv(t)
	c := env.backend.Contract()
	contractABI := utxo.ABI()

	data, err := contractABI.Pack(utxo.MethodGetUTXOByID, big.NewInt(0))
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Execute(data, false)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	res, err := contractABI.Unpack(utxo.MethodGetUTXOByID, out)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	got := utxo.UtxoFromABI(*abi.ConvertType(res[0], new(utxo.IUTXOUtxo)).(*utxo.IUTXOUtxo))
	if got.Amount.Int64() != 100 || got.Owner != env.key.Address() {
		t.Errorf("utxo = %+v", got)
	}
}

func TestContract_NotFoundPayload(t *testing.T) {
	env := setupTestEnv(t)
	c := env.backend.Contract()

	data, _ := utxo.ABI().Pack(utxo.MethodGetUTXOByID, big.NewInt(42))
	_, err := c.Execute(data, false)
	re, ok := err.(*RevertError)
	if !ok {
		t.Fatalf("error = %v, want *RevertError", err)
	}
	sel := utxo.ErrUTXONotFoundSelector
	if !bytes.Equal(re.Data(), sel[:]) {
		t.Errorf("payload = %x, want %x", re.Data(), sel)
	}
	if re.ErrorCode() != 3 {
		t.Errorf("code = %d, want 3", re.ErrorCode())
	}
	if re.ErrorData() != hexutil.Encode(sel[:]) {
		t.Errorf("data = %v, want %s", re.ErrorData(), hexutil.Encode(sel[:]))
	}
}

func TestContract_RevertWithArgs(t *testing.T) {
	env := setupTestEnv(t)
	c := env.backend.Contract()

	outputs := []utxo.Output{{Amount: big.NewInt(100), Owner: recipient}}
	in := utxo.Input{ID: big.NewInt(0), Signature: make([]byte, 65)}
	data, err := utxo.ABI().Pack(utxo.MethodTransfer, []utxo.IUTXOInput{in.ToABI()}, []utxo.IUTXOOutput{outputs[0].ToABI()})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Execute(data, true)
	re, ok := err.(*RevertError)
	if !ok {
		t.Fatalf("error = %v, want *RevertError", err)
	}
	if got := utxo.DecodeRevert(re.Data()); got != "InvalidSignature(0)" {
		t.Errorf("DecodeRevert = %q, want InvalidSignature(0)", got)
	}
}

func TestContract_UnknownCalldata(t *testing.T) {
	env := setupTestEnv(t)
	c := env.backend.Contract()

	for _, data := range [][]byte{nil, {0x01, 0x02}, {0xde, 0xad, 0xbe, 0xef}} {
		_, err := c.Execute(data, false)
		re, ok := err.(*RevertError)
		if !ok {
			t.Fatalf("Execute(%x) error = %v, want *RevertError", data, err)
		}
		if len(re.Data()) != 0 {
			t.Errorf("Execute(%x) payload = %x, want empty", data, re.Data())
		}
	}
}

func TestContract_Metrics(t *testing.T) {
	env := setupTestEnv(t)
	c := env.backend.Contract()

	data, _ := utxo.ABI().Pack(utxo.MethodGetUTXOByID, big.NewInt(42))
	c.Execute(data, false)
	data, _ = utxo.ABI().Pack(utxo.MethodGetUTXOsLength)
	c.Execute(data, false)

	if got := testutil.ToFloat64(env.metrics.calls.WithLabelValues(utxo.MethodGetUTXOByID)); got != 1 {
		t.Errorf("getUTXOById calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(env.metrics.reverts.WithLabelValues(utxo.MethodGetUTXOByID, utxo.ErrorUTXONotFound)); got != 1 {
		t.Errorf("UTXONotFound reverts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(env.metrics.utxos); got != 1 {
		t.Errorf("utxos gauge = %v, want 1", got)
	}

	expected := `
# HELP utxo_devnet_contract_calls_total Contract calls executed, by method.
# TYPE utxo_devnet_contract_calls_total counter
utxo_devnet_contract_calls_total{method="getUTXOById"} 1
utxo_devnet_contract_calls_total{method="getUTXOsLength"} 1
`
	if err := testutil.GatherAndCompare(env.metrics.Registry(), strings.NewReader(expected), "utxo_devnet_contract_calls_total"); err != nil {
		t.Error(err)
	}
}
