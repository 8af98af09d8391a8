// Package ledger simulates the ledger runtime the messaging program runs
// on: a keyed account store with a storage-deposit (rent) schedule, a time
// oracle, and per-transaction atomicity.
//
// An instruction never touches persistent state directly. It runs against
// an Overlay that buffers every write; the engine flushes the overlay only
// when the instruction succeeds, so a failed instruction leaves no trace
// in account state.
package ledger
