package wallet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// fastParams returns low-cost Argon2 params for fast tests.
func fastParams() EncryptionParams {
	return EncryptionParams{
		Memory:      64, // 64 KiB (minimal)
		Iterations:  1,
		Parallelism: 1,
	}
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"short", []byte("secret wallet data")},
		{"empty", []byte{}},
		{"private key", bytes.Repeat([]byte{0xab}, 32)},
		{"large", bytes.Repeat([]byte{1, 2, 3, 4}, 2500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			password := []byte("strong-password-123")
			encrypted, err := Encrypt(tt.plaintext, password, fastParams())
			if err != nil {
				t.Fatalf("Encrypt() error: %v", err)
			}
			decrypted, err := Decrypt(encrypted, password)
			if err != nil {
				t.Fatalf("Decrypt() error: %v", err)
			}
			if !bytes.Equal(decrypted, tt.plaintext) {
				t.Errorf("decrypted = %x, want %x", decrypted, tt.plaintext)
			}
		})
	}
}

func TestDecrypt_WrongPassword(t *testing.T) {
	encrypted, err := Encrypt([]byte("secret data"), []byte("correct"), fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if _, err := Decrypt(encrypted, []byte("wrong")); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Decrypt() error = %v, want ErrDecrypt", err)
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"auth tag", func(b []byte) []byte { b[len(b)-1] ^= 0xFF; return b }},
		{"salt", func(b []byte) []byte { b[1] ^= 0x01; return b }},
		{"iterations", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[1+SaltSize+4:], 2)
			return b
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := Encrypt([]byte("data"), []byte("pass"), fastParams())
			if err != nil {
				t.Fatalf("Encrypt() error: %v", err)
			}
			if _, err := Decrypt(tt.mutate(encrypted), []byte("pass")); !errors.Is(err, ErrDecrypt) {
				t.Errorf("Decrypt() error = %v, want ErrDecrypt", err)
			}
		})
	}
}

func TestDecrypt_MalformedEnvelope(t *testing.T) {
	valid, err := Encrypt([]byte("data"), []byte("pass"), fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	badVersion := append([]byte(nil), valid...)
	badVersion[0] = 9

	hugeMemory := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(hugeMemory[1+SaltSize:], maxMemoryKiB+1)

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", []byte("too short")},
		{"unknown version", badVersion},
		{"unbounded memory", hugeMemory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decrypt(tt.data, []byte("pass")); err == nil {
				t.Error("Decrypt() should fail")
			}
		})
	}
}

func TestEncrypt_DifferentEachTime(t *testing.T) {
	plaintext := []byte("same data")
	password := []byte("same pass")

	enc1, _ := Encrypt(plaintext, password, fastParams())
	enc2, _ := Encrypt(plaintext, password, fastParams())
	if bytes.Equal(enc1, enc2) {
		t.Error("encrypting same data twice should produce different output (random salt/nonce)")
	}
}

func TestEncrypt_OutputFormat(t *testing.T) {
	plaintext := []byte("test")
	encrypted, err := Encrypt(plaintext, []byte("pass"), fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	want := headerSize + 24 + len(plaintext) + 16
	if len(encrypted) != want {
		t.Errorf("encrypted length = %d, want %d", len(encrypted), want)
	}
	if encrypted[0] != envelopeVersion {
		t.Errorf("version byte = %d, want %d", encrypted[0], envelopeVersion)
	}
}

func TestEncryptionParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  EncryptionParams
		wantErr bool
	}{
		{"default", DefaultParams(), false},
		{"fast", fastParams(), false},
		{"zero parallelism", EncryptionParams{Memory: 64, Iterations: 1}, true},
		{"zero iterations", EncryptionParams{Memory: 64, Parallelism: 1}, true},
		{"memory below lanes", EncryptionParams{Memory: 8, Iterations: 1, Parallelism: 4}, true},
		{"memory too large", EncryptionParams{Memory: maxMemoryKiB + 1, Iterations: 1, Parallelism: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("error %v does not wrap ErrInvalidParams", err)
			}
		})
	}

	if _, err := Encrypt([]byte("x"), []byte("p"), EncryptionParams{}); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Encrypt with zero params error = %v, want ErrInvalidParams", err)
	}
}
