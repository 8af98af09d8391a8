// Package ir provides the foundational types for ledgermsg.
//
// This package contains the wire and storage representations shared by
// every other package: principal keys, account records and their binary
// layouts, instructions, signed envelopes and ledger entries. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Record layouts are fixed-width little-endian behind an 8-byte
//     discriminator and must match other implementations bit-for-bit
//   - Ledger entries are hashed from RFC 8785 canonical JSON only
//   - NO float types anywhere - use int64/uint32/uint64 for numbers
//   - All JSON tags use snake_case
package ir
