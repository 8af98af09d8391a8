// Package program is the messaging program: the state machines for
// two-party threads, broadcast channels and channel subscriptions.
//
// Every operation runs against a ledger.Context and either completes or
// returns an error. The engine discards all writes of a failed operation,
// so no handler needs to undo partial work. Handlers check authorization
// before they check message indices, and both before any mutation.
package program
