package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEntry   = "ledgermsg/entry/v1"
	DomainEffects = "ledgermsg/effects/v1"
	DomainState   = "ledgermsg/state/v1"
	DomainSigning = "ledgermsg/envelope/v1"
)

// GenesisID is the PrevID of the first ledger entry.
var GenesisID = strings.Repeat("0", 64)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EntryID computes the content-addressed id of a ledger entry. The id
// covers the previous entry's id, so rewriting any entry invalidates every
// id after it.
func EntryID(e Entry) (string, error) {
	canonical, err := MarshalCanonical(e.hashObject())
	if err != nil {
		return "", fmt.Errorf("EntryID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEntry, canonical), nil
}

// EffectsHash hashes the account writes applied by one entry. Writes are
// hashed in the order given; callers sort them by address.
func EffectsHash(writes []AccountWrite) (string, error) {
	arr := make(Array, len(writes))
	for i, w := range writes {
		arr[i] = w.object()
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("EffectsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEffects, canonical), nil
}

// StateRoot hashes a full account set. Accounts must be sorted by address.
func StateRoot(accounts []Account) (string, error) {
	arr := make(Array, len(accounts))
	for i, a := range accounts {
		arr[i] = AccountWrite{Account: a}.object()
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("StateRoot: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// SigningMessage returns the bytes a principal signs to authorize an
// envelope: the domain tag, a null separator, and the canonical JSON of the
// envelope without its signature.
func SigningMessage(env Envelope) ([]byte, error) {
	canonical, err := MarshalCanonical(Object{
		"id":          Str(env.ID),
		"signer":      Str(env.Signer.String()),
		"instruction": Str(string(env.Instruction.Op)),
		"args":        env.Instruction.Args(),
	})
	if err != nil {
		return nil, fmt.Errorf("SigningMessage: failed to marshal: %w", err)
	}
	msg := make([]byte, 0, len(DomainSigning)+1+len(canonical))
	msg = append(msg, DomainSigning...)
	msg = append(msg, 0x00)
	return append(msg, canonical...), nil
}

// MustEntryID is like EntryID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEntryID(e Entry) string {
	id, err := EntryID(e)
	if err != nil {
		panic(err)
	}
	return id
}

// Discriminator returns the 8-byte record-type prefix for a record type
// name: the first 8 bytes of sha256("account:" + name).
func Discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}
