// Package harness runs YAML conformance scenarios against a real engine.
//
// Each scenario gets a fresh in-memory ledger, deterministic keys (one per
// named principal), a deterministic time oracle starting at start_time and
// advancing one second per entry, and genesis funding for every principal
// with a positive balance.
//
// # Scenario Format
//
//	name: thread_lifecycle
//	description: "Two participants exchange messages, then close"
//	principals:
//	  alice: 1000000000
//	  bob: 1000000000
//	steps:
//	  - op: initialize_thread
//	    signer: alice
//	    args: { participant_b: $bob, thread_id: "1" }
//	    as: thread
//	  - op: send_message
//	    signer: bob
//	    args: { target: $thread, message_index: 0, content: "hi" }
//	    expect: { status: ok }
//	assertions:
//	  - type: account
//	    address: $thread
//	    expect: { message_count: 1, participant_a: $alice }
//
// A "$name" reference resolves to a principal's public key or to the
// address bound by an earlier step's "as". Record fields holding a known
// key render as the same "$name", so expectations can use references.
//
// A step without a signer is a faucet entry (op: fund). A step with
// tamper: true has its signature corrupted after signing. Setting tx
// reuses an explicit transaction id, which is how duplicate submissions
// are written.
//
// # Assertion Types
//
//   - account: the account exists and its fields match expect (subset)
//   - absent: no account at address
//   - balance: the account holds exactly lamports
//   - trace_count: op (optionally with status) appears count times
//   - trace_order: the first occurrences of ops appear in order
//   - chain_valid: the stored log verifies, optionally with entries total
//   - replay: re-executing the log reproduces every entry id
//
// # Golden Traces
//
// RunWithGolden compares the canonical JSON of the trace and the final
// state of every bound address against testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
