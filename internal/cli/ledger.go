package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/ledgermsg/internal/config"
	"github.com/roach88/ledgermsg/internal/engine"
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/program"
	"github.com/roach88/ledgermsg/internal/store"
)

// ledgerHandle bundles an open ledger and the engine writing to it.
type ledgerHandle struct {
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
}

func (h *ledgerHandle) Close() error {
	return h.store.Close()
}

// openLedger opens the configured ledger and applies genesis funding if
// the ledger is empty.
func openLedger(ctx context.Context, opts *RootOptions, engineOpts ...engine.Option) (*ledgerHandle, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	programID, err := cfg.ProgramID()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	allocs, err := cfg.Allocations()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	st, err := store.Open(cfg.Ledger.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}

	engineOpts = append([]engine.Option{engine.WithRent(cfg.Ledger.Rent)}, engineOpts...)
	eng, err := engine.New(ctx, st, program.New(programID), engineOpts...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	if err := eng.Genesis(ctx, allocs); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "genesis failed", err)
	}
	return &ledgerHandle{cfg: cfg, store: st, engine: eng}, nil
}

// openStore opens the configured ledger store without an engine, so no
// genesis entries are written.
func openStore(opts *RootOptions) (*config.Config, *store.Store, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.Ledger.DB)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	return cfg, st, nil
}

// parseKey parses a base58 key argument.
func parseKey(name, s string) (ir.Pubkey, error) {
	k, err := ir.ParsePubkey(s)
	if err != nil {
		return ir.Pubkey{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s", name), err)
	}
	return k, nil
}

// ReceiptView is the CLI rendering of an engine receipt.
type ReceiptView struct {
	Seq         int64    `json:"seq"`
	EntryID     string   `json:"entry_id"`
	TxID        string   `json:"tx_id"`
	Instruction string   `json:"instruction"`
	Status      string   `json:"status"`
	Message     string   `json:"message,omitempty"`
	Address     string   `json:"address,omitempty"`
	Logs        []string `json:"logs,omitempty"`
}

func newReceiptView(r engine.Receipt) ReceiptView {
	v := ReceiptView{
		Seq:         r.Entry.Seq,
		EntryID:     r.Entry.ID,
		TxID:        r.Entry.TxID,
		Instruction: string(r.Entry.Instruction),
		Status:      r.Entry.Status,
		Message:     r.Entry.Message,
		Logs:        r.Logs,
	}
	if !r.Address.IsZero() {
		v.Address = r.Address.String()
	}
	return v
}

func (v ReceiptView) writeText(w io.Writer) {
	fmt.Fprintf(w, "%s seq=%d status=%s\n", v.Instruction, v.Seq, v.Status)
	if v.Address != "" {
		fmt.Fprintf(w, "address: %s\n", v.Address)
	}
	fmt.Fprintf(w, "entry:   %s\n", v.EntryID)
	fmt.Fprintf(w, "tx:      %s\n", v.TxID)
	if v.Message != "" {
		fmt.Fprintf(w, "error:   %s\n", v.Message)
	}
	for _, line := range v.Logs {
		fmt.Fprintf(w, "  log: %s\n", line)
	}
}

// reportReceipt prints a receipt. A failed instruction is reported and
// then returned as an ExitFailure so scripts see a non-zero exit.
func reportReceipt(out *OutputFormatter, r engine.Receipt) error {
	view := newReceiptView(r)
	if r.Err != nil {
		if out.Format == "json" {
			if err := out.Error(view.Status, view.Message, view); err != nil {
				return err
			}
		} else {
			view.writeText(out.Writer)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s failed: %s", view.Instruction, view.Status))
	}
	return out.Emit(view, view.writeText)
}

// reportReject prints an envelope the engine refused.
func reportReject(out *OutputFormatter, err error) error {
	var rej *engine.RejectError
	if errors.As(err, &rej) {
		if ferr := out.Error(string(rej.Code), rej.Message, map[string]string{"tx_id": rej.TxID}); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "transaction rejected", err)
	}
	return WrapExitError(ExitCommandError, "transaction not executed", err)
}
