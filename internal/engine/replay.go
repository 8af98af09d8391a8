package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/ledgermsg/internal/program"
	"github.com/roach88/ledgermsg/internal/store"
)

// ReplayReport summarizes a successful replay.
type ReplayReport struct {
	Entries   int64  `json:"entries"`
	HeadID    string `json:"head_id"`
	StateRoot string `json:"state_root"`
}

// DivergenceError reports the first entry whose re-execution produced a
// different entry id than the one recorded.
type DivergenceError struct {
	Seq  int64
	Want string
	Got  string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("replay diverged at seq %d: recorded %s, replayed %s", e.Seq, e.Want, e.Got)
}

// Replay re-executes every entry of src into the empty store dst, pinning
// each entry to its recorded timestamp, and checks that every replayed
// entry id equals the recorded one.
//
// Replay uses the same execution path as live traffic: signatures are
// verified again and failed entries fail again with the same status.
// The rent schedule and program id must match the original run.
func Replay(ctx context.Context, src, dst *store.Store, prog *program.Program, opts ...Option) (ReplayReport, error) {
	entries, err := src.ReadAllEntries(ctx)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}

	eng, err := New(ctx, dst, prog, opts...)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}
	if seq, _ := eng.Head(); seq != 0 {
		return ReplayReport{}, fmt.Errorf("replay: destination ledger is not empty (seq %d)", seq)
	}

	var report ReplayReport
	_, report.HeadID = eng.Head()
	for _, recorded := range entries {
		var receipt Receipt
		if isFaucet(recorded) {
			to, lamports, perr := faucetArgs(recorded)
			if perr != nil {
				return report, fmt.Errorf("replay seq %d: %w", recorded.Seq, perr)
			}
			receipt, err = eng.fund(ctx, recorded.TxID, to, lamports, recorded.Timestamp)
		} else {
			env, perr := recorded.Envelope()
			if perr != nil {
				return report, fmt.Errorf("replay seq %d: %w", recorded.Seq, perr)
			}
			receipt, err = eng.execute(ctx, env, recorded.Timestamp)
		}
		if err != nil {
			return report, fmt.Errorf("replay seq %d: %w", recorded.Seq, err)
		}
		if receipt.Entry.ID != recorded.ID {
			return report, &DivergenceError{Seq: recorded.Seq, Want: recorded.ID, Got: receipt.Entry.ID}
		}
		report.Entries++
		report.HeadID = receipt.Entry.ID
	}

	if report.StateRoot, err = dst.StateRoot(ctx); err != nil {
		return report, err
	}
	slog.Info("replay complete", "entries", report.Entries, "head", report.HeadID)
	return report, nil
}
