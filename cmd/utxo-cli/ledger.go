package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-utxo/config"
	klog "github.com/Klingon-tech/klingnet-utxo/internal/log"
	"github.com/Klingon-tech/klingnet-utxo/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-utxo/internal/wallet"
	"github.com/Klingon-tech/klingnet-utxo/pkg/contracts/erc20"
	"github.com/Klingon-tech/klingnet-utxo/pkg/contracts/utxo"
	"github.com/Klingon-tech/klingnet-utxo/pkg/crypto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

const (
	// listPageSize is the page size used when walking all UTXOs of an owner.
	listPageSize = 100
	// balanceWorkers bounds concurrent owners queried by balance.
	balanceWorkers = 4
	// receiptTimeout bounds --wait.
	receiptTimeout = 2 * time.Minute
)

// ── length ──────────────────────────────────────────────────────────────

func (e *env) cmdLength(ctx context.Context) {
	client := e.reader()
	defer client.Close()

	n, err := client.UTXOLength(ctx)
	if err != nil {
		failCall("utxo length", err)
	}
	fmt.Println(n)
}

// ── get ─────────────────────────────────────────────────────────────────

func (e *env) cmdGet(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print as JSON")
	decimals := fs.Int("decimals", 0, "Token decimals for display")
	idArg, rest := splitPositional(args)
	fs.Parse(rest)
	if idArg == "" {
		idArg = fs.Arg(0)
	}
	if idArg == "" {
		fatal("Usage: utxo-cli get <id> [--json] [--decimals n]")
	}

	id, err := parseID(idArg)
	if err != nil {
		fatal("%v", err)
	}

	client := e.reader()
	defer client.Close()

	u, err := client.GetUTXOByID(ctx, id)
	if err != nil {
		failCall("get utxo", err)
	}
	if u == nil {
		fatal("UTXO %s not found", id)
	}
	if *asJSON {
		printJSON(u)
		return
	}
	printUTXO(u, *decimals)
}

// ── list ────────────────────────────────────────────────────────────────

func (e *env) cmdList(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	offset := fs.Uint64("offset", 0, "Index of the first UTXO to return")
	limit := fs.Uint64("limit", 20, "Maximum number of UTXOs to return")
	asJSON := fs.Bool("json", false, "Print as JSON")
	decimals := fs.Int("decimals", 0, "Token decimals for display")
	addrArg, rest := splitPositional(args)
	fs.Parse(rest)
	if addrArg == "" {
		addrArg = fs.Arg(0)
	}
	if addrArg == "" {
		fatal("Usage: utxo-cli list <address> [--offset n] [--limit n] [--json]")
	}

	owner, err := parseAddress(addrArg, "owner")
	if err != nil {
		fatal("%v", err)
	}

	client := e.reader()
	defer client.Close()

	utxos, err := client.ListUTXOsByAddress(ctx, owner, *offset, *limit)
	if err != nil {
		failCall("list utxos", err)
	}
	if *asJSON {
		if utxos == nil {
			utxos = []utxo.Utxo{}
		}
		printJSON(utxos)
		return
	}
	if len(utxos) == 0 {
		fmt.Println("No UTXOs.")
		return
	}

	fmt.Printf("%-10s %-42s %-28s %s\n", "ID", "TOKEN", "AMOUNT", "SPENT")
	for _, u := range utxos {
		fmt.Printf("%-10s %-42s %-28s %v\n", u.ID, u.Token.Hex(), formatAmount(u.Amount, *decimals), u.IsSpent)
	}
	fmt.Printf("\n%d UTXO(s) from offset %d\n", len(utxos), *offset)
}

// ── balance ─────────────────────────────────────────────────────────────

func (e *env) cmdBalance(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	decimals := fs.Int("decimals", 0, "Token decimals for display")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fatal("Usage: utxo-cli balance [--decimals n] <address>...")
	}
	owners := make([]common.Address, fs.NArg())
	for i, a := range fs.Args() {
		owner, err := parseAddress(a, "owner")
		if err != nil {
			fatal("%v", err)
		}
		owners[i] = owner
	}

	client := e.reader()
	defer client.Close()
	defer klog.Benchmark("balance")()

	balances := make([][]tokenBalance, len(owners))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(balanceWorkers)
	for i, owner := range owners {
		g.Go(func() error {
			utxos, err := listAll(gctx, client, owner)
			if err != nil {
				return fmt.Errorf("%s: %w", owner.Hex(), err)
			}
			balances[i] = sumUnspent(utxos)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		failCall("balance", err)
	}

	for i, owner := range owners {
		fmt.Printf("Address: %s\n", owner.Hex())
		if len(balances[i]) == 0 {
			fmt.Println("  (no unspent UTXOs)")
		}
		for _, b := range balances[i] {
			fmt.Printf("  %s  %s  (%d UTXO)\n", b.Token.Hex(), formatAmount(b.Amount, *decimals), b.Count)
		}
	}
}

// listAll pages through every UTXO owned by owner.
func listAll(ctx context.Context, r utxo.Reader, owner common.Address) ([]utxo.Utxo, error) {
	var all []utxo.Utxo
	for offset := uint64(0); ; offset += listPageSize {
		page, err := r.ListUTXOsByAddress(ctx, owner, offset, listPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < listPageSize {
			return all, nil
		}
	}
}

// ── transfer ────────────────────────────────────────────────────────────

func (e *env) cmdTransfer(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("transfer", flag.ExitOnError)
	keys := e.keyFlags(fs)
	var inputArgs, outputArgs stringList
	fs.Var(&inputArgs, "input", "UTXO id to spend (repeatable)")
	fs.Var(&outputArgs, "output", "Output as <owner>:<amount> (repeatable)")
	decimals := fs.Int("decimals", 0, "Token decimals of output amounts")
	wait := fs.Bool("wait", false, "Wait for the transaction receipt")
	fs.Parse(args)

	if len(inputArgs) == 0 || len(outputArgs) == 0 {
		fatal("Usage: utxo-cli transfer (--wallet <w> | --key-file <path>) --input <id>... --output <owner>:<amount>... [--wait]")
	}

	outputs, err := parseOutputs(outputArgs, *decimals)
	if err != nil {
		fatal("%v", err)
	}

	key := e.loadKey(keys)
	s := e.openSession(ctx, key)
	defer s.Close()

	inputs := make([]utxo.Input, 0, len(inputArgs))
	for _, raw := range inputArgs {
		id, err := parseID(raw)
		if err != nil {
			fatal("%v", err)
		}
		in, err := utxo.SignInput(s.signer, id, outputs)
		if err != nil {
			fatal("sign input %s: %v", id, err)
		}
		inputs = append(inputs, in)
	}

	s.submitTransfer(ctx, e.cfg.Contract.UTXO, inputs, outputs, *wait)
}

// ── send ────────────────────────────────────────────────────────────────

func (e *env) cmdSend(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	keys := e.keyFlags(fs)
	toAddr := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount to send (e.g. 1.5)")
	tokenAddr := fs.String("token", e.cfg.Contract.Token, "Token to pay in")
	decimals := fs.Int("decimals", 0, "Token decimals of --amount")
	wait := fs.Bool("wait", false, "Wait for the transaction receipt")
	fs.Parse(args)

	if *toAddr == "" || *amountStr == "" {
		fatal("Usage: utxo-cli send (--wallet <w> | --key-file <path>) --to <addr> --amount <amt> [--token addr] [--wait]")
	}
	recipient, err := parseAddress(*toAddr, "recipient")
	if err != nil {
		fatal("%v", err)
	}
	token, err := parseAddress(*tokenAddr, "token")
	if err != nil {
		fatal("%v", err)
	}
	amount, err := parseAmount(*amountStr, *decimals)
	if err != nil {
		fatal("invalid amount: %v", err)
	}
	if amount.Sign() == 0 {
		fatal("amount must be positive")
	}

	key := e.loadKey(keys)
	s := e.openSession(ctx, key)
	defer s.Close()
	from := s.signer.Address()

	client := s.ledger(e.cfg.Contract.UTXO)
	owned, err := listAll(ctx, client, from)
	if err != nil {
		failCall("list utxos", err)
	}

	sel, err := wallet.SelectCoins(owned, token, amount)
	if err != nil {
		fatal("select UTXOs for %s: %v", from.Hex(), err)
	}
	outputs := sel.Outputs(recipient, from, amount)

	inputs := make([]utxo.Input, 0, len(sel.Inputs))
	for _, u := range sel.Inputs {
		in, err := utxo.SignInput(s.signer, u.ID, outputs)
		if err != nil {
			fatal("sign input %s: %v", u.ID, err)
		}
		inputs = append(inputs, in)
	}

	klog.CLI.Info().
		Str("from", from.Hex()).
		Str("to", recipient.Hex()).
		Str("amount", amount.String()).
		Int("inputs", len(inputs)).
		Str("change", sel.Change.String()).
		Msg("Sending")

	s.submitTransfer(ctx, e.cfg.Contract.UTXO, inputs, outputs, *wait)
}

// ── sign-input ──────────────────────────────────────────────────────────

func (e *env) cmdSignInput(args []string) {
	fs := flag.NewFlagSet("sign-input", flag.ExitOnError)
	keys := e.keyFlags(fs)
	idStr := fs.String("id", "", "UTXO id to authorize")
	var outputArgs stringList
	fs.Var(&outputArgs, "output", "Output as <owner>:<amount> (repeatable)")
	decimals := fs.Int("decimals", 0, "Token decimals of output amounts")
	fs.Parse(args)

	if *idStr == "" || len(outputArgs) == 0 {
		fatal("Usage: utxo-cli sign-input (--wallet <w> | --key-file <path>) --id <id> --output <owner>:<amount>...")
	}
	id, err := parseID(*idStr)
	if err != nil {
		fatal("%v", err)
	}
	outputs, err := parseOutputs(outputArgs, *decimals)
	if err != nil {
		fatal("%v", err)
	}

	key := e.loadKey(keys)
	defer key.Zero()

	hash, err := utxo.SpendHash(id, outputs)
	if err != nil {
		fatal("%v", err)
	}
	in, err := utxo.SignInput(key, id, outputs)
	if err != nil {
		fatal("sign input: %v", err)
	}

	fmt.Printf("Signer:    %s\n", key.Address().Hex())
	fmt.Printf("Hash:      %s\n", hash.Hex())
	fmt.Printf("Signature: 0x%s\n", hex.EncodeToString(in.Signature))
}

// ── approve ─────────────────────────────────────────────────────────────

func (e *env) cmdApprove(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	keys := e.keyFlags(fs)
	tokenAddr := fs.String("token", e.cfg.Contract.Token, "ERC-20 token contract")
	spenderAddr := fs.String("spender", e.cfg.Contract.UTXO, "Spender address (default: the ledger contract)")
	amountStr := fs.String("amount", "", "Allowance to grant")
	decimals := fs.Int("decimals", 0, "Token decimals of --amount")
	calldata := fs.Bool("calldata", false, "Print the approve calldata instead of sending")
	wait := fs.Bool("wait", false, "Wait for the transaction receipt")
	fs.Parse(args)

	if *amountStr == "" {
		fatal("Usage: utxo-cli approve --amount <amt> [--spender addr] [--token addr] [--calldata] [--wait]")
	}
	spender, err := parseAddress(*spenderAddr, "spender")
	if err != nil {
		fatal("%v", err)
	}
	amount, err := parseAmount(*amountStr, *decimals)
	if err != nil {
		fatal("invalid amount: %v", err)
	}

	if *calldata {
		data, err := erc20.ApproveCalldata(spender, amount)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("To:   %s\n", common.HexToAddress(*tokenAddr).Hex())
		fmt.Printf("Data: 0x%s\n", hex.EncodeToString(data))
		return
	}

	key := e.loadKey(keys)
	s := e.openSession(ctx, key)
	defer s.Close()

	token, err := erc20.NewClient(*tokenAddr, s.backend, s.signer)
	if err != nil {
		fatal("%v", err)
	}
	hash, err := token.Approve(ctx, spender, amount)
	if err != nil {
		failCall("approve", err)
	}
	fmt.Printf("Submitted: %s\n", hash.Hex())
	if *wait {
		s.waitReceipt(ctx, hash)
	}

	allowance, err := token.Allowance(ctx, s.signer.Address(), spender)
	if err != nil {
		failCall("allowance", err)
	}
	fmt.Printf("Allowance: %s\n", formatAmount(allowance, *decimals))
}

// ── Signing session ─────────────────────────────────────────────────────

// keySource holds the flags that select a signing key.
type keySource struct {
	wallet  *string
	index   *uint
	keyFile *string
}

func (e *env) keyFlags(fs *flag.FlagSet) *keySource {
	return &keySource{
		wallet:  fs.String("wallet", e.cfg.Wallet.Name, "Wallet to sign with"),
		index:   fs.Uint("index", uint(e.cfg.Wallet.Index), "Account index within the wallet"),
		keyFile: fs.String("key-file", e.cfg.Wallet.KeyFile, "File holding a hex private key"),
	}
}

// loadKey resolves the signing key. A key file wins over a wallet.
func (e *env) loadKey(src *keySource) *crypto.PrivateKey {
	switch {
	case *src.keyFile != "":
		data, err := os.ReadFile(config.ExpandHome(*src.keyFile))
		if err != nil {
			fatal("read key file: %v", err)
		}
		key, err := crypto.ParsePrivateKeyHex(strings.TrimSpace(string(data)))
		if err != nil {
			fatal("parse key file: %v", err)
		}
		return key
	case *src.wallet != "":
		password, err := readPassword("Enter password: ")
		if err != nil {
			fatal("read password: %v", err)
		}
		key, err := e.keystore().Unlock(*src.wallet, password, uint32(*src.index))
		if err != nil {
			fatal("unlock wallet: %v", err)
		}
		return key
	default:
		fatal("no signing key: pass --wallet <name> or --key-file <path>")
		return nil
	}
}

// session is an open transport plus a transaction signer bound to the
// endpoint's chain id.
type session struct {
	rpc     *rpcclient.Client
	backend rpcclient.Backend
	signer  *crypto.TxSigner
}

func (e *env) openSession(ctx context.Context, key *crypto.PrivateKey) *session {
	rc, err := rpcclient.NewWithTimeout(e.cfg.RPC.URL, e.cfg.RPC.Timeout)
	if err != nil {
		fatal("connect: %v", err)
	}
	chainID, err := rc.ChainID(ctx)
	if err != nil {
		rc.Close()
		fatal("fetch chain id: %v", err)
	}
	signer, err := crypto.NewTxSigner(key, chainID)
	if err != nil {
		rc.Close()
		fatal("%v", err)
	}
	klog.CLI.Debug().Str("from", signer.Address().Hex()).Str("chain_id", chainID.String()).Msg("Opened signing session")
	return &session{
		rpc:     rc,
		backend: rpcclient.NewRetrying(rc, e.cfg.RPC.Retries, retryDelay),
		signer:  signer,
	}
}

func (s *session) Close() {
	s.rpc.Close()
}

func (s *session) ledger(address string) *utxo.SigningClient {
	client, err := utxo.NewSigningClient(common.HexToAddress(address), s.backend, s.signer)
	if err != nil {
		fatal("%v", err)
	}
	return client
}

func (s *session) submitTransfer(ctx context.Context, contract string, inputs []utxo.Input, outputs []utxo.Output, wait bool) {
	hash, err := s.ledger(contract).Transfer(ctx, inputs, outputs)
	if err != nil {
		failCall("transfer", err)
	}
	fmt.Printf("Submitted: %s\n", hash.Hex())
	if wait {
		s.waitReceipt(ctx, hash)
	}
}

func (s *session) waitReceipt(ctx context.Context, hash common.Hash) {
	ctx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	receipt, err := s.rpc.WaitReceipt(ctx, hash, time.Second)
	if err != nil {
		fatal("wait for receipt: %v", err)
	}
	status := "success"
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = "failed"
	}
	fmt.Printf("Block:     %s\n", receipt.BlockNumber)
	fmt.Printf("Gas used:  %d\n", receipt.GasUsed)
	fmt.Printf("Status:    %s\n", status)
	if receipt.Status != types.ReceiptStatusSuccessful {
		os.Exit(1)
	}
}

// splitPositional separates a leading positional argument from the flags
// that follow it, so "get 7 --json" parses like "get --json 7".
func splitPositional(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}
