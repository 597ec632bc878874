package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	klog "github.com/Klingon-tech/klingnet-utxo/internal/log"
	"github.com/Klingon-tech/klingnet-utxo/pkg/crypto"
)

const (
	keystoreVersion = 2
	walletExt       = ".wallet"
)

// Kind says what secret a wallet file holds.
type Kind string

const (
	// KindHD wallets hold a BIP-39 seed and derive accounts on demand.
	KindHD Kind = "hd"
	// KindImported wallets hold a single raw secp256k1 key.
	KindImported Kind = "imported"
)

// Keystore errors.
var (
	ErrWalletExists   = errors.New("wallet already exists")
	ErrWalletNotFound = errors.New("wallet not found")
	ErrInvalidName    = errors.New("invalid wallet name")
	ErrNotHD          = errors.New("wallet has no seed to derive from")
	ErrNoAccount      = errors.New("account not found")
)

// keystoreFile is the on-disk JSON format for an encrypted wallet.
type keystoreFile struct {
	Version         int            `json:"version"`
	Kind            Kind           `json:"kind"`
	CreatedAt       time.Time      `json:"created_at"`
	EncryptedSecret []byte         `json:"encrypted_secret"`
	Accounts        []AccountEntry `json:"accounts"`
	NextIndex       uint32         `json:"next_index"` // next external BIP-44 index
}

// AccountEntry stores metadata for an address held by a wallet. For HD
// wallets Index is the external-chain index under m/44'/60'/0'/0.
type AccountEntry struct {
	Index   uint32         `json:"index"`
	Name    string         `json:"name"`
	Address common.Address `json:"address"`
}

// Keystore manages encrypted wallet files in a directory.
type Keystore struct {
	path string
}

// NewKeystore creates a keystore that reads/writes to the given directory.
// The directory is created if it doesn't exist.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

// Dir returns the keystore directory.
func (ks *Keystore) Dir() string {
	return ks.path
}

func (ks *Keystore) walletPath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(ks.path, name+walletExt), nil
}

// Create stores an HD wallet for seed and records its first account,
// m/44'/60'/0'/0/0, as "default".
func (ks *Keystore) Create(name string, seed, password []byte, params EncryptionParams) (AccountEntry, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return AccountEntry{}, err
	}
	first, err := deriveAccount(master, 0, "default")
	if err != nil {
		return AccountEntry{}, err
	}
	if err := ks.create(name, KindHD, seed, password, params, first); err != nil {
		return AccountEntry{}, err
	}
	return first, nil
}

// Import stores a single raw private key as its own wallet.
func (ks *Keystore) Import(name string, key *crypto.PrivateKey, password []byte, params EncryptionParams) (AccountEntry, error) {
	secret := key.Serialize()
	defer zero(secret)

	acct := AccountEntry{Index: 0, Name: "imported", Address: key.Address()}
	if err := ks.create(name, KindImported, secret, password, params, acct); err != nil {
		return AccountEntry{}, err
	}
	return acct, nil
}

func (ks *Keystore) create(name string, kind Kind, secret, password []byte, params EncryptionParams, first AccountEntry) error {
	path, err := ks.walletPath(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %q", ErrWalletExists, name)
	}

	encrypted, err := Encrypt(secret, password, params)
	if err != nil {
		return fmt.Errorf("encrypt secret: %w", err)
	}

	kf := keystoreFile{
		Version:         keystoreVersion,
		Kind:            kind,
		CreatedAt:       time.Now().UTC(),
		EncryptedSecret: encrypted,
		Accounts:        []AccountEntry{first},
		NextIndex:       first.Index + 1,
	}
	if err := ks.writeFile(path, &kf); err != nil {
		return err
	}
	klog.Wallet.Info().Str("wallet", name).Str("kind", string(kind)).Str("address", first.Address.Hex()).Msg("Created wallet")
	return nil
}

// Kind reports what a wallet file holds without decrypting it.
func (ks *Keystore) Kind(name string) (Kind, error) {
	kf, _, err := ks.load(name)
	if err != nil {
		return "", err
	}
	return kf.Kind, nil
}

// Load decrypts a wallet and returns its secret: the seed for HD wallets,
// the 32-byte key for imported ones.
func (ks *Keystore) Load(name string, password []byte) ([]byte, error) {
	kf, _, err := ks.load(name)
	if err != nil {
		return nil, err
	}
	secret, err := Decrypt(kf.EncryptedSecret, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet %q: %w", name, err)
	}
	return secret, nil
}

// Unlock returns the signing key for the account at index. Imported
// wallets only have index 0.
func (ks *Keystore) Unlock(name string, password []byte, index uint32) (*crypto.PrivateKey, error) {
	kf, _, err := ks.load(name)
	if err != nil {
		return nil, err
	}
	secret, err := Decrypt(kf.EncryptedSecret, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet %q: %w", name, err)
	}
	defer zero(secret)

	switch kf.Kind {
	case KindImported:
		if index != 0 {
			return nil, fmt.Errorf("%w: imported wallet %q has only index 0", ErrNoAccount, name)
		}
		return crypto.PrivateKeyFromBytes(secret)
	case KindHD:
		master, err := NewMasterKey(secret)
		if err != nil {
			return nil, err
		}
		key, err := master.DeriveAddress(0, ChangeExternal, index)
		if err != nil {
			return nil, err
		}
		return key.Signer()
	default:
		return nil, fmt.Errorf("unknown wallet kind %q", kf.Kind)
	}
}

// NewAccount derives the next external address of an HD wallet and
// records it under label.
func (ks *Keystore) NewAccount(name string, password []byte, label string) (AccountEntry, error) {
	kf, path, err := ks.load(name)
	if err != nil {
		return AccountEntry{}, err
	}
	if kf.Kind != KindHD {
		return AccountEntry{}, fmt.Errorf("%w: %q is %s", ErrNotHD, name, kf.Kind)
	}

	seed, err := Decrypt(kf.EncryptedSecret, password)
	if err != nil {
		return AccountEntry{}, fmt.Errorf("decrypt wallet %q: %w", name, err)
	}
	defer zero(seed)

	master, err := NewMasterKey(seed)
	if err != nil {
		return AccountEntry{}, err
	}
	if label == "" {
		label = fmt.Sprintf("account-%d", kf.NextIndex)
	}
	acct, err := deriveAccount(master, kf.NextIndex, label)
	if err != nil {
		return AccountEntry{}, err
	}

	kf.Accounts = append(kf.Accounts, acct)
	kf.NextIndex++
	if err := ks.writeFile(path, kf); err != nil {
		return AccountEntry{}, err
	}
	klog.Wallet.Debug().Str("wallet", name).Uint32("index", acct.Index).Str("address", acct.Address.Hex()).Msg("Derived account")
	return acct, nil
}

// ListAccounts returns the account entries for a wallet.
func (ks *Keystore) ListAccounts(name string) ([]AccountEntry, error) {
	kf, _, err := ks.load(name)
	if err != nil {
		return nil, err
	}
	return kf.Accounts, nil
}

// Account looks up an account entry by index.
func (ks *Keystore) Account(name string, index uint32) (AccountEntry, error) {
	accounts, err := ks.ListAccounts(name)
	if err != nil {
		return AccountEntry{}, err
	}
	for _, a := range accounts {
		if a.Index == index {
			return a, nil
		}
	}
	return AccountEntry{}, fmt.Errorf("%w: %q index %d", ErrNoAccount, name, index)
}

// List returns the names of all wallet files in the keystore.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), walletExt); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Delete removes a wallet file.
func (ks *Keystore) Delete(name string) error {
	path, err := ks.walletPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrWalletNotFound, name)
		}
		return fmt.Errorf("delete wallet: %w", err)
	}
	return nil
}

func deriveAccount(master *HDKey, index uint32, label string) (AccountEntry, error) {
	key, err := master.DeriveAddress(0, ChangeExternal, index)
	if err != nil {
		return AccountEntry{}, err
	}
	addr, err := key.Address()
	if err != nil {
		return AccountEntry{}, err
	}
	return AccountEntry{Index: index, Name: label, Address: addr}, nil
}

func (ks *Keystore) load(name string) (*keystoreFile, string, error) {
	path, err := ks.walletPath(name)
	if err != nil {
		return nil, "", err
	}
	kf, err := ks.readFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %q", ErrWalletNotFound, name)
		}
		return nil, "", err
	}
	return kf, path, nil
}

// writeFile replaces the wallet atomically so an interrupted write never
// leaves a truncated file behind.
func (ks *Keystore) writeFile(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile(path string) (*keystoreFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if kf.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported wallet version: %d", kf.Version)
	}
	return &kf, nil
}
