package utxo

import (
	"errors"
	"fmt"
)

// Construction errors. Each wraps the underlying parse error.
var (
	ErrInvalidAddress    = errors.New("invalid contract address")
	ErrInvalidServiceURL = errors.New("invalid rpc service url")
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrNoSigner          = errors.New("no signer configured")
)

// ErrConnectFailed is returned when the endpoint cannot be reached or
// does not answer the chain id request.
var ErrConnectFailed = errors.New("rpc connection failed")

// Call failure kinds, carried by *CallError.
var (
	ErrQueryFailed       = errors.New("utxo query failed")
	ErrLengthQueryFailed = errors.New("utxo length query failed")
	ErrTransferFailed    = errors.New("utxo transfer failed")
)

// CallError reports a failed contract call. Err is the transport or
// execution error exactly as returned by the backend, so revert payloads
// remain reachable through errors.As.
type CallError struct {
	Kind   error
	Method string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Method, e.Err)
}

// Unwrap exposes both the failure kind and the underlying error.
func (e *CallError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
