// Package pda derives program addresses: deterministic record addresses
// computed from a program id and a list of seeds.
//
// A derived address is SHA-256(seeds, bump, program id, marker) where
// bump is the highest value in 255..0 whose hash is NOT a valid ed25519
// point. Off-curve addresses have no private key, so no principal can
// ever sign for a record. Anyone who knows the seeds can recompute the
// address; no index lookup is needed.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/roach88/ledgermsg/internal/ir"
)

// Limits on seeds, matching the ledger runtime.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

// marker is appended after the program id in every derivation.
const marker = "ProgramDerivedAddress"

var (
	// ErrMaxSeedLengthExceeded is returned for too many or too long seeds.
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	// ErrInvalidSeeds is returned when a single bump lands on the curve.
	ErrInvalidSeeds = errors.New("provided seeds do not result in a valid address")
	// ErrNoViableBump is returned when every bump lands on the curve.
	// The probability is about 2^-256; it exists for totality.
	ErrNoViableBump = errors.New("unable to find a viable program address bump seed")
)

// IsOnCurve reports whether b decodes to a point on the ed25519 curve.
func IsOnCurve(b [32]byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b[:])
	return err == nil
}

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return fmt.Errorf("%w: %d seeds, max %d", ErrMaxSeedLengthExceeded, len(seeds), MaxSeeds)
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLen {
			return fmt.Errorf("%w: seed %d is %d bytes, max %d", ErrMaxSeedLengthExceeded, i, len(s), MaxSeedLen)
		}
	}
	return nil
}

// CreateProgramAddress hashes the seeds as given (any bump already
// appended) and fails if the result is on the curve.
func CreateProgramAddress(seeds [][]byte, programID ir.Pubkey) (ir.Pubkey, error) {
	if err := checkSeeds(seeds); err != nil {
		return ir.Pubkey{}, err
	}
	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write([]byte(marker))

	var addr ir.Pubkey
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr) {
		return ir.Pubkey{}, ErrInvalidSeeds
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address together with its bump. The seed list passed to the
// hash has one extra (bump) seed, so at most MaxSeeds-1 seeds are accepted.
func FindProgramAddress(seeds [][]byte, programID ir.Pubkey) (ir.Pubkey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return ir.Pubkey{}, 0, fmt.Errorf("%w: %d seeds plus bump, max %d", ErrMaxSeedLengthExceeded, len(seeds), MaxSeeds)
	}
	if err := checkSeeds(seeds); err != nil {
		return ir.Pubkey{}, 0, err
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return ir.Pubkey{}, 0, err
		}
	}
	return ir.Pubkey{}, 0, ErrNoViableBump
}
