package devnet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Klingon-tech/klingnet-utxo/pkg/contracts/utxo"
)

// revertCode is the JSON-RPC error code nodes use for execution reverts.
const revertCode = 3

// RevertError is a contract execution failure carrying an ABI-encoded
// revert payload. Over JSON-RPC it is reported with code 3 and the payload
// as hex error data.
type RevertError struct {
	Name string
	data []byte
}

func (e *RevertError) Error() string {
	if e.Name == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Name
}

// ErrorCode implements rpc.Error.
func (e *RevertError) ErrorCode() int { return revertCode }

// ErrorData implements rpc.DataError.
func (e *RevertError) ErrorData() interface{} { return hexutil.Encode(e.data) }

// Data returns the raw revert payload.
func (e *RevertError) Data() []byte { return e.data }

// revert builds the payload of the named contract error.
func revert(name string, args ...interface{}) *RevertError {
	e, ok := utxo.ABI().Errors[name]
	if !ok {
		panic("devnet: unknown contract error " + name)
	}
	packed, err := e.Inputs.Pack(args...)
	if err != nil {
		panic(fmt.Sprintf("devnet: encode %s: %v", name, err))
	}
	data := make([]byte, 0, 4+len(packed))
	data = append(data, e.ID[:4]...)
	data = append(data, packed...)
	return &RevertError{Name: name, data: data}
}

// emptyRevert is what a contract without a matching function returns.
func emptyRevert() *RevertError {
	return &RevertError{data: []byte{}}
}
