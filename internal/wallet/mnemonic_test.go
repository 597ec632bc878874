package wallet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

const abandonArt = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

func TestGenerateMnemonic(t *testing.T) {
	m1, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error: %v", err)
	}
	m2, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error: %v", err)
	}

	if words := strings.Fields(m1); len(words) != 24 {
		t.Errorf("word count = %d, want 24", len(words))
	}
	if !ValidateMnemonic(m1) {
		t.Error("generated mnemonic should validate")
	}
	if m1 == m2 {
		t.Error("two generated mnemonics should not be identical")
	}
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		valid    bool
	}{
		{"valid 24-word BIP-39", abandonArt, true},
		{"valid 12-word BIP-39", abandonMnemonic, true},
		{"empty string", "", false},
		{"random words", "not a valid mnemonic phrase at all", false},
		{"wrong checksum", strings.Repeat("abandon ", 23) + "abandon", false},
		{"single word", "abandon", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateMnemonic(tt.mnemonic); got != tt.valid {
				t.Errorf("ValidateMnemonic() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestNormalizeMnemonic(t *testing.T) {
	messy := "  Abandon abandon\tabandon abandon abandon abandon\nabandon abandon abandon abandon  abandon ABOUT\n"
	if got := NormalizeMnemonic(messy); got != abandonMnemonic {
		t.Errorf("NormalizeMnemonic() = %q, want %q", got, abandonMnemonic)
	}
}

func TestSeedFromMnemonic_KnownVector(t *testing.T) {
	seed, err := SeedFromMnemonic(abandonMnemonic, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	want, _ := hex.DecodeString("c55257c360c07c72029aebc1b53c05ed0362ada38ead3e3e9efa3708e53495531f09a6987599d18264c1e1c92f2cf141630c7a3c4ab7c81b2f001698e7463b04")
	if !bytes.Equal(seed, want) {
		t.Errorf("seed = %x, want %x", seed, want)
	}
	if len(seed) != SeedSize {
		t.Errorf("seed length = %d, want %d", len(seed), SeedSize)
	}
}

func TestSeedFromMnemonic_Passphrase(t *testing.T) {
	seed1, _ := SeedFromMnemonic(abandonMnemonic, "")
	seed2, _ := SeedFromMnemonic(abandonMnemonic, "my passphrase")
	seed3, _ := SeedFromMnemonic(strings.ToUpper(abandonMnemonic), "")

	if bytes.Equal(seed1, seed2) {
		t.Error("different passphrases should produce different seeds")
	}
	if !bytes.Equal(seed1, seed3) {
		t.Error("normalized phrase should produce the same seed")
	}
}

func TestSeedFromMnemonic_Invalid(t *testing.T) {
	for _, m := range []string{"", "not valid words here"} {
		if _, err := SeedFromMnemonic(m, ""); !errors.Is(err, ErrInvalidMnemonic) {
			t.Errorf("SeedFromMnemonic(%q) error = %v, want ErrInvalidMnemonic", m, err)
		}
	}
}
