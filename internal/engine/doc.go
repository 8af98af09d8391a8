// Package engine is the single writer of the ledger.
//
// ARCHITECTURE:
//
// Every state change enters as a signed envelope (or, for the faucet, a
// locally built fund entry) and leaves as one appended entry:
//
//  1. Envelope verified (ed25519 over the canonical signing message)
//  2. Tx id checked against the log (no duplicates)
//  3. Program runs against a copy-on-write overlay of committed state
//  4. Entry chained to the head (prev_id, effects_hash, content id)
//  5. Entry plus the overlay's writes committed in one SQLite transaction
//
// A failed instruction still reaches step 4 and 5, with its error code as
// status and no writes. A rejected envelope (bad signature, duplicate)
// never reaches the log.
//
// CRITICAL PATTERNS:
//
// Single writer: Execute and Fund hold the engine mutex for the whole
// path, and Run drains the Submit queue on one goroutine. No two entries
// are ever built concurrently.
//
// Logical time: seq comes from Clock and only advances after a commit.
// Entry timestamps come from the time oracle, clamped so they never go
// backwards.
//
// Determinism: the same envelopes with the same timestamps produce the
// same entry ids. Replay relies on this.
package engine
