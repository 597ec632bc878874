package utxo

import (
	_ "embed"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// IUTXOMetaABI is the JSON ABI of the UTXO ledger contract.
//
//go:embed iutxo.abi.json
var IUTXOMetaABI string

// Contract method names as declared in the ABI.
const (
	MethodGetUTXOByID        = "getUTXOById"
	MethodListUTXOsByAddress = "listUTXOsByAddress"
	MethodGetUTXOsLength     = "getUTXOsLength"
	MethodTransfer           = "transfer"
)

// Custom error names declared by the contract.
const (
	ErrorUTXONotFound     = "UTXONotFound"
	ErrorUTXOAlreadySpent = "UTXOAlreadySpent"
	ErrorInvalidSignature = "InvalidSignature"
	ErrorTokenMismatch    = "TokenMismatch"
	ErrorZeroAmount       = "ZeroAmount"
	ErrorAmountMismatch   = "AmountMismatch"
	ErrorEmptyInputs      = "EmptyInputs"
	ErrorEmptyOutputs     = "EmptyOutputs"
)

var parsedABI = mustParseABI(IUTXOMetaABI)

// ErrUTXONotFoundSelector is the 4-byte selector of UTXONotFound().
var ErrUTXONotFoundSelector = ErrorSelector(ErrorUTXONotFound)

// ABI returns the parsed contract ABI.
func ABI() abi.ABI {
	return parsedABI
}

// ErrorSelector returns the selector of the named custom error. It panics
// if the contract declares no such error.
func ErrorSelector(name string) [4]byte {
	e, ok := parsedABI.Errors[name]
	if !ok {
		panic("utxo: unknown contract error " + name)
	}
	var sel [4]byte
	copy(sel[:], e.ID[:4])
	return sel
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("utxo: parse contract abi: " + err.Error())
	}
	return parsed
}
