// utxo-cli is a command-line client for the UTXO ledger contract.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Klingon-tech/klingnet-utxo/config"
	klog "github.com/Klingon-tech/klingnet-utxo/internal/log"
	"github.com/Klingon-tech/klingnet-utxo/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-utxo/internal/wallet"
	"github.com/Klingon-tech/klingnet-utxo/pkg/contracts/utxo"
	"golang.org/x/term"
)

const version = "0.1.0"

// retryDelay is the pause between attempts of a failed read-only call.
const retryDelay = 500 * time.Millisecond

// env carries the resolved configuration into every command.
type env struct {
	cfg *config.Config
}

func main() {
	cfg, flags, err := config.Load("utxo-cli", os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		usage()
		os.Exit(0)
	}
	if err != nil {
		fatal("%v", err)
	}
	if flags.Version {
		fmt.Println("utxo-cli version " + version)
		os.Exit(0)
	}
	if flags.Init {
		path := cfg.ConfigFile()
		if _, err := os.Stat(path); err == nil {
			fatal("%s already exists", path)
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			fatal("write config: %v", err)
		}
		fmt.Println("Wrote", path)
		return
	}

	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	args := flags.Args
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := &env{cfg: cfg}
	cmd := args[0]
	cmdArgs := args[1:]

	klog.CLI.Debug().Str("command", cmd).Str("rpc", cfg.RPC.URL).Msg("Dispatching")

	switch cmd {
	case "length":
		e.cmdLength(ctx)
	case "get":
		e.cmdGet(ctx, cmdArgs)
	case "list":
		e.cmdList(ctx, cmdArgs)
	case "balance":
		e.cmdBalance(ctx, cmdArgs)
	case "transfer":
		e.cmdTransfer(ctx, cmdArgs)
	case "send":
		e.cmdSend(ctx, cmdArgs)
	case "sign-input":
		e.cmdSignInput(cmdArgs)
	case "approve":
		e.cmdApprove(ctx, cmdArgs)
	case "wallet":
		e.cmdWallet(cmdArgs)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: utxo-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>           JSON-RPC endpoint (default: %s)
  --contract <addr>     UTXO ledger contract address
  --token <addr>        ERC-20 token contract address
  --datadir <path>      Data directory (default: ~/.klingnet-utxo)
  --config, -c <path>   Config file (default: <datadir>/utxo.conf)
  --timeout <dur>       HTTP timeout per request (default: %s)
  --retries <n>         Attempts for read-only calls (default: %d)
  --wallet <name>       Default wallet for signing commands
  --index <n>           Default account index within the wallet
  --key-file <path>     Sign with a hex private key file instead of a wallet
  --log-level <lvl>     trace, debug, info, warn, error (default: info)
  --log-json            Emit JSON logs
  --log-file <path>     Also write JSON logs to a file
  --init                Write a default config file and exit

Commands:
  length                          Show how many UTXOs the contract holds
  get <id> [--json]               Show one UTXO
  list <address> [--offset n] [--limit n] [--json]
                                  List UTXOs owned by an address
  balance [--decimals n] <address>...
                                  Sum unspent UTXOs per token
  transfer --input <id>... --output <owner>:<amount>... [--wait]
                                  Spend UTXOs into new outputs
  send --to <addr> --amount <amt> [--token addr] [--wait]
                                  Pay from the signer's UTXOs with change
  sign-input --id <id> --output <owner>:<amount>...
                                  Print the spend signature for one input
  approve --spender <addr> --amount <amt> [--calldata] [--wait]
                                  Approve the ledger to move ERC-20 tokens

  wallet create --name <n>        Create an HD wallet
  wallet import --name <n> (--mnemonic "..." | --key <hex>)
                                  Import a mnemonic or raw private key
  wallet list                     List wallets
  wallet address --wallet <w>     List wallet addresses
  wallet new-address --wallet <w> Derive the next address
  wallet export-key --wallet <w> [--index n] [--output path]
                                  Write an account's private key to a file

Signing commands take --wallet <w> [--index n] or --key-file <path>.
Amounts accept decimals; --decimals sets the token's scale (default 0).
`, config.DefaultRPCURL, config.DefaultRPCTimeout, config.DefaultRPCRetries)
}

// ── Clients ─────────────────────────────────────────────────────────────

func (e *env) clientOptions() []utxo.Option {
	retries := e.cfg.RPC.Retries
	return []utxo.Option{
		utxo.WithTimeout(e.cfg.RPC.Timeout),
		utxo.WithTransport(func(c *rpcclient.Client) rpcclient.Backend {
			return rpcclient.NewRetrying(c, retries, retryDelay)
		}),
	}
}

func (e *env) reader() *utxo.ReadOnlyClient {
	client, err := utxo.Dial(e.cfg.RPC.URL, e.cfg.Contract.UTXO, e.clientOptions()...)
	if err != nil {
		fatal("connect: %v", err)
	}
	return client
}

func (e *env) keystore() *wallet.Keystore {
	ks, err := wallet.NewKeystore(e.cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	return ks
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func readNewPassword() []byte {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}
	return password
}

// ── Error helpers ───────────────────────────────────────────────────────

// failCall reports a failed contract call, decoding revert data when the
// node returned any.
func failCall(what string, err error) {
	if data, ok := utxo.RevertData(err); ok {
		fatal("%s reverted: %s", what, utxo.DecodeRevert(data))
	}
	fatal("%s: %v", what, err)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
