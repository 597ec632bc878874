package erc20

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Klingon-tech/klingnet-utxo/pkg/crypto"
)

var (
	testToken   = common.HexToAddress("0x00000000000000000000000000000000000070cE")
	testSpender = common.HexToAddress("0x000000000000000000000000000000000000C0De")
	testChainID = big.NewInt(1337)
)

// fakeBackend accepts every transaction and answers calls with callOut.
type fakeBackend struct {
	sent    []*types.Transaction
	callOut []byte
	sendErr error
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return f.callOut, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), Difficulty: new(big.Int)}, nil
}

func (f *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 50_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func newTestClient(t *testing.T, b *fakeBackend) (*Client, *crypto.TxSigner) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	signer, err := crypto.NewTxSigner(key, testChainID)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewClient(testToken.Hex(), b, signer)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, signer
}

func TestApproveCalldata(t *testing.T) {
	data, err := ApproveCalldata(testSpender, big.NewInt(100))
	if err != nil {
		t.Fatalf("ApproveCalldata: %v", err)
	}
	// approve(address,uint256) selector.
	if got := hexutil.Encode(data[:4]); got != "0x095ea7b3" {
		t.Errorf("selector = %s, want 0x095ea7b3", got)
	}
	if len(data) != 4+64 {
		t.Errorf("calldata length = %d, want 68", len(data))
	}
	if common.BytesToAddress(data[4:36]) != testSpender {
		t.Error("spender not encoded in the first argument")
	}
	if new(big.Int).SetBytes(data[36:68]).Int64() != 100 {
		t.Error("value not encoded in the second argument")
	}
}

func TestApproveCalldata_Invalid(t *testing.T) {
	for _, v := range []*big.Int{nil, big.NewInt(-1)} {
		if _, err := ApproveCalldata(testSpender, v); !errors.Is(err, ErrEncodeFailed) {
			t.Errorf("ApproveCalldata(%v) error = %v, want ErrEncodeFailed", v, err)
		}
	}
}

func TestNewClient_Invalid(t *testing.T) {
	if _, err := NewClient("not-an-address", &fakeBackend{}, nil); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("error = %v, want ErrInvalidAddress", err)
	}
	if _, err := NewClient(testToken.Hex(), &fakeBackend{}, nil); !errors.Is(err, ErrNoSigner) {
		t.Errorf("error = %v, want ErrNoSigner", err)
	}
}

func TestApprove(t *testing.T) {
	b := &fakeBackend{}
	c, signer := newTestClient(t, b)

	hash, err := c.Approve(context.Background(), testSpender, big.NewInt(100))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if len(b.sent) != 1 {
		t.Fatalf("sent %d transactions, want 1", len(b.sent))
	}
	tx := b.sent[0]
	if tx.Hash() != hash {
		t.Errorf("hash = %s, want %s", hash.Hex(), tx.Hash().Hex())
	}
	if tx.To() == nil || *tx.To() != testToken {
		t.Errorf("to = %v, want %s", tx.To(), testToken.Hex())
	}
	want, _ := ApproveCalldata(testSpender, big.NewInt(100))
	if hexutil.Encode(tx.Data()) != hexutil.Encode(want) {
		t.Errorf("data = %x, want %x", tx.Data(), want)
	}
	from, err := types.Sender(types.LatestSignerForChainID(testChainID), tx)
	if err != nil || from != signer.Address() {
		t.Errorf("sender = %s (%v), want %s", from.Hex(), err, signer.Address().Hex())
	}
}

func TestApprove_SendFails(t *testing.T) {
	boom := errors.New("connection refused")
	c, _ := newTestClient(t, &fakeBackend{sendErr: boom})

	_, err := c.Approve(context.Background(), testSpender, big.NewInt(1))
	if !errors.Is(err, ErrApproveFailed) || !errors.Is(err, boom) {
		t.Errorf("error = %v, want ErrApproveFailed wrapping the send error", err)
	}
}

func TestApprove_InvalidValue(t *testing.T) {
	tests := []struct {
		name  string
		value *big.Int
	}{
		{"nil", nil},
		{"negative", big.NewInt(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			c, _ := newTestClient(t, b)

			_, err := c.Approve(context.Background(), testSpender, tt.value)
			if !errors.Is(err, ErrEncodeFailed) {
				t.Errorf("error = %v, want ErrEncodeFailed", err)
			}
			if len(b.sent) != 0 {
				t.Errorf("sent %d transactions, want none", len(b.sent))
			}
		})
	}
}

func TestAllowance(t *testing.T) {
	out, _ := parsedABI.Methods[methodAllowance].Outputs.Pack(big.NewInt(77))
	c, _ := newTestClient(t, &fakeBackend{callOut: out})

	got, err := c.Allowance(context.Background(), common.Address{}, testSpender)
	if err != nil {
		t.Fatalf("Allowance: %v", err)
	}
	if got.Int64() != 77 {
		t.Errorf("allowance = %d, want 77", got.Int64())
	}
}
