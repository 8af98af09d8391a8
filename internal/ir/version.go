package ir

// Version constants for the ledger format and engine.
const (
	// LedgerVersion is the entry and record layout version.
	LedgerVersion = "1"

	// EngineVersion is the ledgermsg engine version.
	EngineVersion = "0.1.0"
)
