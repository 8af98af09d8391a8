package ir

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeySize is the byte length of a principal identifier or address.
const PubkeySize = 32

// Pubkey identifies a principal (an ed25519 public key) or a record address.
// The text form is base58, matching the ledger's native rendering.
type Pubkey [PubkeySize]byte

// SystemProgramID owns wallet accounts. It is the all-zero key.
var SystemProgramID = Pubkey{}

// String returns the base58 encoding of the key.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Short returns an abbreviated form for logs.
func (p Pubkey) Short() string {
	s := p.String()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

// IsZero reports whether p is the all-zero key.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// Bytes returns a copy of the key bytes.
func (p Pubkey) Bytes() []byte {
	b := make([]byte, PubkeySize)
	copy(b, p[:])
	return b
}

// Compare orders keys by their raw bytes.
func (p Pubkey) Compare(other Pubkey) int {
	return bytes.Compare(p[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePubkey decodes a base58 key. The decoded value must be exactly 32 bytes.
func ParsePubkey(s string) (Pubkey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("parse pubkey %q: %w", s, err)
	}
	if len(raw) != PubkeySize {
		return Pubkey{}, fmt.Errorf("parse pubkey %q: decoded to %d bytes, want %d", s, len(raw), PubkeySize)
	}
	var p Pubkey
	copy(p[:], raw)
	return p, nil
}

// MustPubkey is like ParsePubkey but panics on error.
// Use only in tests or for compile-time constants.
func MustPubkey(s string) Pubkey {
	p, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PubkeyFromPublicKey converts an ed25519 public key.
func PubkeyFromPublicKey(pub ed25519.PublicKey) (Pubkey, error) {
	if len(pub) != ed25519.PublicKeySize {
		return Pubkey{}, fmt.Errorf("public key is %d bytes, want %d", len(pub), ed25519.PublicKeySize)
	}
	var p Pubkey
	copy(p[:], pub)
	return p, nil
}

// ThreadID is the caller-chosen 32-byte nonce that distinguishes threads
// between the same two participants.
type ThreadID [32]byte

// String returns the hex encoding of the id.
func (id ThreadID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseThreadID decodes a hex thread id. Shorter inputs are left-padded
// with zeros, so "01" is the id 0x00...01.
func ParseThreadID(s string) (ThreadID, error) {
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ThreadID{}, fmt.Errorf("parse thread id: %w", err)
	}
	if len(raw) > len(ThreadID{}) {
		return ThreadID{}, fmt.Errorf("parse thread id: %d bytes exceeds 32", len(raw))
	}
	var id ThreadID
	copy(id[len(id)-len(raw):], raw)
	return id, nil
}
