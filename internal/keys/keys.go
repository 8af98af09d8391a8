// Package keys reads and writes ed25519 keypair files.
//
// A keypair file is a JSON array of the 64 private key bytes (seed
// followed by public key), the layout wallets in this ecosystem use, so
// keys can be moved between tools unchanged.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/ledgermsg/internal/ir"
)

// ErrExists is returned by Save when the file exists and overwrite is off.
var ErrExists = errors.New("keypair file already exists")

// Generate creates a new random keypair.
func Generate() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return priv, nil
}

// Save writes priv to path with owner-only permissions, creating parent
// directories as needed.
func Save(path string, priv ed25519.PrivateKey, overwrite bool) error {
	if len(priv) != ed25519.PrivateKeySize {
		return fmt.Errorf("save keypair: private key is %d bytes, want %d", len(priv), ed25519.PrivateKeySize)
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("save keypair: %w", err)
	}

	ints := make([]int, len(priv))
	for i, b := range priv {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("save keypair: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("save keypair: %w", err)
	}
	return nil
}

// Load reads a keypair file and checks that its public half matches the
// seed.
func Load(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair: %w", err)
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("load keypair %s: %d bytes, want %d", path, len(ints), ed25519.PrivateKeySize)
	}
	raw := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("load keypair %s: byte %d out of range", path, i)
		}
		raw[i] = byte(v)
	}

	priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(raw[ed25519.SeedSize:])) {
		return nil, fmt.Errorf("load keypair %s: public key does not match seed", path)
	}
	return priv, nil
}

// Address returns the ledger address of priv.
func Address(priv ed25519.PrivateKey) ir.Pubkey {
	var p ir.Pubkey
	copy(p[:], priv.Public().(ed25519.PublicKey))
	return p
}
