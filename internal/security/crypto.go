// Package security loads the secp256k1 key that signs on-chain task
// submissions. The key never leaves the process; only its address is logged.
package security

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoKey is returned by LoadSigner when no key is configured.
var ErrNoKey = errors.New("no signing key configured")

// Signer holds the submission key and its derived account address.
type Signer struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

func newSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
}

// GenerateSigner creates a fresh random key.
func GenerateSigner() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	return newSigner(key), nil
}

// ParseSigner decodes a hex private key, with or without 0x prefix.
func ParseSigner(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return newSigner(key), nil
}

// LoadSigner resolves a configured key. value is either a hex private key
// or a path to a file holding one. Empty value returns ErrNoKey.
func LoadSigner(value string) (*Signer, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrNoKey
	}
	if looksLikeHexKey(value) {
		return ParseSigner(value)
	}

	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return ParseSigner(string(data))
}

// Save writes the key as hex to path with owner-only permissions.
func (s *Signer) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(s.KeyHex()), 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	return nil
}

// KeyHex returns the private key as 64 hex chars without prefix.
func (s *Signer) KeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(s.Key))
}

// AddressHex returns the checksummed account address.
func (s *Signer) AddressHex() string {
	return s.Address.Hex()
}

func looksLikeHexKey(v string) bool {
	v = strings.TrimPrefix(v, "0x")
	if len(v) != 64 {
		return false
	}
	for _, r := range v {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
