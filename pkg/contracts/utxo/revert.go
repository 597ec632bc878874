package utxo

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RevertData extracts the revert payload carried by err. It reports false
// when no error in the chain carries structured revert data.
func RevertData(err error) ([]byte, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return nil, false
	}
	switch data := de.ErrorData().(type) {
	case string:
		b, decErr := hexutil.Decode(data)
		if decErr != nil {
			return nil, false
		}
		return b, true
	case hexutil.Bytes:
		return data, true
	case []byte:
		return data, true
	default:
		return nil, false
	}
}

// HasSelector reports whether payload starts with selector. Payloads
// shorter than a selector never match.
func HasSelector(payload []byte, selector [4]byte) bool {
	if len(payload) < len(selector) {
		return false
	}
	return bytes.Equal(payload[:len(selector)], selector[:])
}

// IsRevertReason reports whether err is a revert whose payload identifies
// the custom error with the given selector.
func IsRevertReason(err error, selector [4]byte) bool {
	payload, ok := RevertData(err)
	if !ok {
		return false
	}
	return HasSelector(payload, selector)
}

// DecodeRevert renders a revert payload for display: a contract custom
// error with its arguments, a standard Error(string)/Panic(uint256) reason,
// or the raw hex.
func DecodeRevert(payload []byte) string {
	if len(payload) < 4 {
		return hexutil.Encode(payload)
	}
	var sel [4]byte
	copy(sel[:], payload[:4])
	if e, err := parsedABI.ErrorByID(sel); err == nil {
		if len(e.Inputs) == 0 {
			return e.Name + "()"
		}
		args, err := e.Inputs.Unpack(payload[4:])
		if err != nil {
			return e.Name + " " + hexutil.Encode(payload[4:])
		}
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = fmt.Sprint(a)
		}
		return e.Name + "(" + strings.Join(parts, ", ") + ")"
	}
	if reason, err := abi.UnpackRevert(payload); err == nil {
		return reason
	}
	return hexutil.Encode(payload)
}
