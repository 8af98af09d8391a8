package testutil

import (
	"crypto/ed25519"
	"crypto/sha256"
	"testing"

	"github.com/roach88/ledgermsg/internal/ir"
)

// Keypair returns a deterministic ed25519 key for a named test principal.
// The same name always yields the same key, so addresses derived from it
// are stable across runs.
func Keypair(name string) ed25519.PrivateKey {
	seed := sha256.Sum256([]byte("ledgermsg/test-key/" + name))
	return ed25519.NewKeyFromSeed(seed[:])
}

// Pubkey returns the public key of a named test principal.
func Pubkey(name string) ir.Pubkey {
	var p ir.Pubkey
	copy(p[:], Keypair(name).Public().(ed25519.PublicKey))
	return p
}

// Sign builds an envelope for ix, signed by the named principal.
func Sign(t testing.TB, name, txID string, ix ir.Instruction) ir.Envelope {
	t.Helper()
	env := ir.Envelope{ID: txID, Instruction: ix}
	if err := env.Sign(Keypair(name)); err != nil {
		t.Fatalf("sign %s as %s: %v", txID, name, err)
	}
	return env
}
