package security

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Well-known test vector: the first Hardhat/Anvil dev account.
const (
	devKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// ─── Generation ─────────────────────────────────────────────────────────────

func TestGenerateSigner(t *testing.T) {
	s, err := GenerateSigner()
	if err != nil {
		t.Fatalf("GenerateSigner() error: %v", err)
	}
	if len(s.KeyHex()) != 64 {
		t.Errorf("key hex len = %d, want 64", len(s.KeyHex()))
	}
	if !strings.HasPrefix(s.AddressHex(), "0x") || len(s.AddressHex()) != 42 {
		t.Errorf("address = %q, want 0x + 40 hex", s.AddressHex())
	}
}

func TestGenerateSigner_Unique(t *testing.T) {
	s1, _ := GenerateSigner()
	s2, _ := GenerateSigner()

	if s1.Address == s2.Address {
		t.Error("two generated signers should have different addresses")
	}
}

// ─── Parsing ────────────────────────────────────────────────────────────────

func TestParseSigner(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"bare hex", devKey, false},
		{"0x prefix", "0x" + devKey, false},
		{"surrounding whitespace", "  " + devKey + "\n", false},
		{"too short", devKey[:10], true},
		{"not hex", strings.Repeat("zz", 32), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSigner(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSigner() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && s.AddressHex() != devAddress {
				t.Errorf("address = %s, want %s", s.AddressHex(), devAddress)
			}
		})
	}
}

// ─── Loading ────────────────────────────────────────────────────────────────

func TestLoadSigner_Empty(t *testing.T) {
	_, err := LoadSigner("   ")
	if !errors.Is(err, ErrNoKey) {
		t.Errorf("LoadSigner(\"\") error = %v, want ErrNoKey", err)
	}
}

func TestLoadSigner_Inline(t *testing.T) {
	s, err := LoadSigner("0x" + devKey)
	if err != nil {
		t.Fatalf("LoadSigner() error: %v", err)
	}
	if s.AddressHex() != devAddress {
		t.Errorf("address = %s, want %s", s.AddressHex(), devAddress)
	}
}

func TestLoadSigner_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signer.key")
	if err := os.WriteFile(path, []byte(devKey+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSigner(path)
	if err != nil {
		t.Fatalf("LoadSigner() error: %v", err)
	}
	if s.AddressHex() != devAddress {
		t.Errorf("address = %s, want %s", s.AddressHex(), devAddress)
	}
}

func TestLoadSigner_MissingFile(t *testing.T) {
	_, err := LoadSigner(filepath.Join(t.TempDir(), "nope.key"))
	if err == nil {
		t.Error("LoadSigner() should fail for a missing file")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	s, _ := GenerateSigner()
	path := filepath.Join(t.TempDir(), "keys", "signer.key")

	if err := s.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0077 != 0 {
		t.Errorf("key file mode = %v, want owner-only", info.Mode().Perm())
	}

	loaded, err := LoadSigner(path)
	if err != nil {
		t.Fatalf("LoadSigner() error: %v", err)
	}
	if loaded.Address != s.Address {
		t.Errorf("loaded address = %s, want %s", loaded.AddressHex(), s.AddressHex())
	}
}
