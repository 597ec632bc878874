package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/Klingon-tech/klingnet-utxo/internal/wallet"
	"github.com/Klingon-tech/klingnet-utxo/pkg/crypto"
)

const walletUsage = "Usage: utxo-cli wallet <create|import|list|address|new-address|export-key|delete> [flags]"

func (e *env) cmdWallet(args []string) {
	if len(args) < 1 {
		fatal(walletUsage)
	}

	switch args[0] {
	case "create":
		e.cmdWalletCreate(args[1:])
	case "import":
		e.cmdWalletImport(args[1:])
	case "list":
		e.cmdWalletList()
	case "address":
		e.cmdWalletAddress(args[1:])
	case "new-address":
		e.cmdWalletNewAddress(args[1:])
	case "export-key":
		e.cmdWalletExportKey(args[1:])
	case "delete":
		e.cmdWalletDelete(args[1:])
	default:
		fatal("Unknown wallet command: %s\n%s", args[0], walletUsage)
	}
}

func (e *env) cmdWalletCreate(args []string) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	passphrase := fs.String("passphrase", "", "Optional BIP-39 passphrase")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: utxo-cli wallet create --name <name> [--passphrase p]")
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	password := readNewPassword()
	seed, err := wallet.SeedFromMnemonic(mnemonic, *passphrase)
	if err != nil {
		fatal("derive seed: %v", err)
	}
	defer zeroBytes(seed)

	acct, err := e.keystore().Create(*name, seed, password, wallet.DefaultParams())
	if err != nil {
		fatal("create wallet: %v", err)
	}

	fmt.Printf("\nWallet created: %s\n", *name)
	fmt.Printf("Address: %s\n", acct.Address.Hex())
}

func (e *env) cmdWalletImport(args []string) {
	fs := flag.NewFlagSet("wallet import", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	mnemonic := fs.String("mnemonic", "", "BIP-39 mnemonic")
	passphrase := fs.String("passphrase", "", "Optional BIP-39 passphrase")
	keyHex := fs.String("key", "", "Hex-encoded secp256k1 private key")
	fs.Parse(args)

	if *name == "" || (*mnemonic == "") == (*keyHex == "") {
		fatal("Usage: utxo-cli wallet import --name <name> (--mnemonic \"...\" | --key <hex>)")
	}

	ks := e.keystore()
	var acct wallet.AccountEntry
	if *mnemonic != "" {
		if !wallet.ValidateMnemonic(*mnemonic) {
			fatal("%v", wallet.ErrInvalidMnemonic)
		}
		seed, err := wallet.SeedFromMnemonic(*mnemonic, *passphrase)
		if err != nil {
			fatal("derive seed: %v", err)
		}
		defer zeroBytes(seed)

		password := readNewPassword()
		acct, err = ks.Create(*name, seed, password, wallet.DefaultParams())
		if err != nil {
			fatal("import wallet: %v", err)
		}
	} else {
		key, err := crypto.ParsePrivateKeyHex(*keyHex)
		if err != nil {
			fatal("parse key: %v", err)
		}
		defer key.Zero()

		password := readNewPassword()
		acct, err = ks.Import(*name, key, password, wallet.DefaultParams())
		if err != nil {
			fatal("import key: %v", err)
		}
	}
	fmt.Printf("Wallet imported: %s\n", *name)
	fmt.Printf("Address: %s\n", acct.Address.Hex())
}

func (e *env) cmdWalletList() {
	ks := e.keystore()
	names, err := ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("No wallets found.")
		return
	}
	for _, name := range names {
		kind, err := ks.Kind(name)
		if err != nil {
			fmt.Printf("  %-20s (unreadable: %v)\n", name, err)
			continue
		}
		fmt.Printf("  %-20s %s\n", name, kind)
	}
}

func (e *env) cmdWalletAddress(args []string) {
	fs := flag.NewFlagSet("wallet address", flag.ExitOnError)
	name := fs.String("wallet", e.cfg.Wallet.Name, "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: utxo-cli wallet address --wallet <name>")
	}

	accounts, err := e.keystore().ListAccounts(*name)
	if err != nil {
		fatal("list accounts: %v", err)
	}
	for _, a := range accounts {
		fmt.Printf("  %-4d %-42s %s\n", a.Index, a.Address.Hex(), a.Name)
	}
}

func (e *env) cmdWalletNewAddress(args []string) {
	fs := flag.NewFlagSet("wallet new-address", flag.ExitOnError)
	name := fs.String("wallet", e.cfg.Wallet.Name, "Wallet name")
	label := fs.String("label", "", "Account label (default: account-<index>)")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: utxo-cli wallet new-address --wallet <name> [--label l]")
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	acct, err := e.keystore().NewAccount(*name, password, *label)
	if err != nil {
		fatal("derive address: %v", err)
	}

	fmt.Printf("Index:   %d\n", acct.Index)
	fmt.Printf("Path:    m/44'/60'/0'/0/%d\n", acct.Index)
	fmt.Printf("Address: %s\n", acct.Address.Hex())
}

func (e *env) cmdWalletExportKey(args []string) {
	fs := flag.NewFlagSet("wallet export-key", flag.ExitOnError)
	name := fs.String("wallet", e.cfg.Wallet.Name, "Wallet name")
	index := fs.Uint("index", uint(e.cfg.Wallet.Index), "Account index")
	output := fs.String("output", "", "Output file path (default: <name>-<index>.key)")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: utxo-cli wallet export-key --wallet <name> [--index n] [--output path]")
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	key, err := e.keystore().Unlock(*name, password, uint32(*index))
	if err != nil {
		fatal("unlock wallet: %v", err)
	}
	defer key.Zero()

	privBytes := key.Serialize()
	privHex := hex.EncodeToString(privBytes)
	zeroBytes(privBytes)

	outPath := *output
	if outPath == "" {
		outPath = fmt.Sprintf("%s-%d.key", *name, *index)
	}
	if err := os.WriteFile(outPath, []byte(privHex+"\n"), 0600); err != nil {
		fatal("write key file: %v", err)
	}

	fmt.Printf("Exported key to: %s\n", outPath)
	fmt.Printf("  Address: %s\n", key.Address().Hex())
	fmt.Println("\nUse with: utxo-cli --key-file", outPath, "<command>")
}

func (e *env) cmdWalletDelete(args []string) {
	fs := flag.NewFlagSet("wallet delete", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	yes := fs.Bool("yes", false, "Confirm deletion")
	fs.Parse(args)

	if *name == "" || !*yes {
		fatal("Usage: utxo-cli wallet delete --wallet <name> --yes")
	}
	if err := e.keystore().Delete(*name); err != nil {
		fatal("delete wallet: %v", err)
	}
	fmt.Printf("Deleted wallet: %s\n", *name)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
