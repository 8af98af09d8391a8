// Package store provides SQLite-backed durable storage for the simulated
// ledger: the current account set and the append-only, hash-chained entry
// log that produced it.
//
// # Tables
//
//   - accounts: current state, keyed by 32-byte address
//   - entries: one row per executed envelope, successful or not
//   - entry_effects: the account writes each successful entry applied
//
// # Invariants
//
// Logical time: entries are ordered by seq INTEGER, assigned by the
// engine's clock. Timestamps are data, never ordering.
//
// Atomicity: Commit applies an entry's account writes and appends the
// entry in one SQL transaction. A failed entry is appended with no
// effects.
//
// Deterministic reads: account listings are ORDER BY address (byte
// order), entry listings ORDER BY seq ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Entry ids and effects hashes are computed in internal/ir/hash.go using
// RFC 8785 canonical JSON and SHA-256 with domain separation; VerifyChain
// recomputes them from stored rows.
package store
