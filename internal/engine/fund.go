package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
)

// Allocation is one genesis balance.
type Allocation struct {
	Address  ir.Pubkey
	Lamports uint64
}

// Fund credits lamports to an account through a faucet entry, creating a
// system account if needed. Faucet entries are signed by no one: their
// signer is the system program id and their signature is empty.
func (e *Engine) Fund(ctx context.Context, to ir.Pubkey, lamports uint64) (Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fund(ctx, e.txids.Generate(), to, lamports, e.now())
}

// Genesis funds every allocation in order on an empty ledger. It does
// nothing if the ledger already has entries.
func (e *Engine) Genesis(ctx context.Context, allocs []Allocation) error {
	if seq, _ := e.Head(); seq > 0 {
		return nil
	}
	for _, a := range allocs {
		receipt, err := e.Fund(ctx, a.Address, a.Lamports)
		if err != nil {
			return fmt.Errorf("genesis %s: %w", a.Address, err)
		}
		if receipt.Err != nil {
			return fmt.Errorf("genesis %s: %w", a.Address, receipt.Err)
		}
	}
	return nil
}

func (e *Engine) fund(ctx context.Context, txID string, to ir.Pubkey, lamports uint64, now int64) (Receipt, error) {
	if lamports > math.MaxInt64 {
		return Receipt{}, e.reject(ErrCodeMalformed, txID, "lamports exceed the faucet limit")
	}
	if err := e.checkDuplicate(ctx, txID); err != nil {
		return Receipt{}, err
	}

	ix := ir.Instruction{Op: ir.OpFund, Recipient: to, Lamports: lamports}
	entry := ir.Entry{
		TxID:        txID,
		Signer:      ir.SystemProgramID,
		Instruction: ir.OpFund,
		Args:        ix.Args(),
		Signature:   []byte{},
		Status:      ir.StatusOK,
		Timestamp:   now,
	}

	ov := ledger.NewOverlay(ctx, e.store)
	var writes []ir.AccountWrite
	fundErr := ov.Credit(to, lamports)
	if fundErr != nil {
		status, ok := classify(fundErr)
		if !ok {
			return Receipt{}, fmt.Errorf("fund %s: %w", to, fundErr)
		}
		entry.Status = status
		entry.Message = fundErr.Error()
	} else {
		writes = ov.Writes()
	}

	receipt, err := e.append(ctx, entry, writes)
	if err != nil {
		return Receipt{}, err
	}
	receipt.Address = to
	receipt.Err = fundErr
	if fundErr == nil {
		receipt.Logs = []string{fmt.Sprintf("Funded %s with %d lamports", to, lamports)}
	}
	e.metrics.observe(string(ir.OpFund), entry.Status, 0, receipt.Entry.Seq)
	return receipt, nil
}

// isFaucet reports whether an entry was produced by Fund rather than a
// signed envelope.
func isFaucet(e ir.Entry) bool {
	return e.Instruction == ir.OpFund && e.Signer == ir.SystemProgramID && len(e.Signature) == 0
}

func faucetArgs(e ir.Entry) (ir.Pubkey, uint64, error) {
	ix, err := ir.ParseInstruction(ir.OpFund, e.Args)
	if err != nil {
		return ir.Pubkey{}, 0, err
	}
	return ix.Recipient, ix.Lamports, nil
}
