package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/Klingon-tech/klingnet-utxo/pkg/contracts/utxo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// maxDecimals bounds --decimals; ERC-20 tokens use at most 18 in practice.
const maxDecimals = 36

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// parseAmount converts a decimal string to base units of a token with the
// given number of decimals.
func parseAmount(s string, decimals int) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if decimals < 0 || decimals > maxDecimals {
		return nil, fmt.Errorf("decimals must be between 0 and %d", maxDecimals)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("negative amount")
	}
	units := d.Shift(int32(decimals))
	if !units.Equal(units.Truncate(0)) {
		return nil, fmt.Errorf("too many decimal places (max %d)", decimals)
	}
	return units.BigInt(), nil
}

// formatAmount renders base units with the given number of decimals,
// trimming trailing zeros.
func formatAmount(units *big.Int, decimals int) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, -int32(decimals)).String()
}

// parseID parses a UTXO id in decimal or 0x-prefixed hex.
func parseID(s string) (*big.Int, error) {
	var id *big.Int
	var ok bool
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		id, ok = new(big.Int).SetString(s[2:], 16)
	} else {
		id, ok = new(big.Int).SetString(s, 10)
	}
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid UTXO id %q", s)
	}
	return id, nil
}

func parseAddress(s, what string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", what, s)
	}
	return common.HexToAddress(s), nil
}

// parseOutput parses an "owner:amount" pair.
func parseOutput(s string, decimals int) (utxo.Output, error) {
	owner, amount, ok := strings.Cut(s, ":")
	if !ok {
		return utxo.Output{}, fmt.Errorf("output %q: want <owner>:<amount>", s)
	}
	addr, err := parseAddress(owner, "output owner")
	if err != nil {
		return utxo.Output{}, err
	}
	value, err := parseAmount(amount, decimals)
	if err != nil {
		return utxo.Output{}, fmt.Errorf("output %q: %w", s, err)
	}
	return utxo.Output{Amount: value, Owner: addr}, nil
}

func parseOutputs(args []string, decimals int) ([]utxo.Output, error) {
	outputs := make([]utxo.Output, 0, len(args))
	for _, s := range args {
		out, err := parseOutput(s, decimals)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// tokenBalance is the unspent total of one token held by an address.
type tokenBalance struct {
	Token  common.Address
	Amount *big.Int
	Count  int
}

// sumUnspent totals unspent UTXOs per token, ordered by token address.
func sumUnspent(utxos []utxo.Utxo) []tokenBalance {
	byToken := make(map[common.Address]*tokenBalance)
	for _, u := range utxos {
		if u.IsSpent || u.Amount == nil {
			continue
		}
		b, ok := byToken[u.Token]
		if !ok {
			b = &tokenBalance{Token: u.Token, Amount: new(big.Int)}
			byToken[u.Token] = b
		}
		b.Amount.Add(b.Amount, u.Amount)
		b.Count++
	}

	out := make([]tokenBalance, 0, len(byToken))
	for _, b := range byToken {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Token[:], out[j].Token[:]) < 0
	})
	return out
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("encode json: %v", err)
	}
	os.Stdout.Write(append(data, '\n'))
}

func printUTXO(u *utxo.Utxo, decimals int) {
	fmt.Printf("ID:     %s\n", u.ID)
	fmt.Printf("Token:  %s\n", u.Token.Hex())
	fmt.Printf("Amount: %s\n", formatAmount(u.Amount, decimals))
	fmt.Printf("Owner:  %s\n", u.Owner.Hex())
	fmt.Printf("Spent:  %v\n", u.IsSpent)
}
