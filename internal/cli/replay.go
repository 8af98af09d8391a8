package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgermsg/internal/engine"
	"github.com/roach88/ledgermsg/internal/program"
	"github.com/roach88/ledgermsg/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Into string // destination ledger; default in-memory
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute the log and verify determinism",
		Long: `Re-execute every entry of the ledger into an empty ledger, pinning
each entry to its recorded timestamp, and check that every re-executed
entry id equals the recorded one.

Exit codes:
  0 - Replay reproduced the ledger
  1 - Replay diverged
  2 - Command error (database not found, destination not empty, etc.)

Examples:
  ledgermsg replay --db ./ledgermsg.db
  ledgermsg replay --db ./ledgermsg.db --into ./copy.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Into, "into", ":memory:", "destination ledger (must be empty)")

	return cmd
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions) error {
	ctx := cmd.Context()

	cfg, src, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer src.Close()

	programID, err := cfg.ProgramID()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	dst, err := store.Open(opts.Into)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open destination", err)
	}
	defer dst.Close()

	out := opts.formatter(cmd)
	out.VerboseLog("replaying %s into %s", cfg.Ledger.DB, opts.Into)
	report, err := engine.Replay(ctx, src, dst, program.New(programID), engine.WithRent(cfg.Ledger.Rent))

	var diverged *engine.DivergenceError
	if errors.As(err, &diverged) {
		details := map[string]any{"seq": diverged.Seq, "recorded": diverged.Want, "replayed": diverged.Got}
		if ferr := out.Error("ReplayDiverged", diverged.Error(), details); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "replay is not deterministic", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	return out.Emit(report, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %d entries replayed deterministically\n", report.Entries)
		fmt.Fprintf(w, "head:       %s\n", report.HeadID)
		fmt.Fprintf(w, "state root: %s\n", report.StateRoot)
	})
}
