package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/ledgermsg/internal/ir"
)

// Commit appends an entry and applies its account writes in one SQL
// transaction. Either both land or neither does.
//
// The entry's seq must be exactly one past the current head and its
// PrevID must equal the head's id. A failed entry must carry no writes.
func (s *Store) Commit(ctx context.Context, e ir.Entry, writes []ir.AccountWrite) error {
	if !e.OK() && len(writes) > 0 {
		return fmt.Errorf("commit seq %d: failed entry with %d writes", e.Seq, len(writes))
	}

	argsJSON, err := marshalArgs(e.Args)
	if err != nil {
		return fmt.Errorf("commit seq %d: %w", e.Seq, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit seq %d: begin: %w", e.Seq, err)
	}
	defer tx.Rollback()

	head, err := readHead(ctx, tx)
	if err != nil {
		return fmt.Errorf("commit seq %d: %w", e.Seq, err)
	}
	if e.Seq != head.Seq+1 {
		return fmt.Errorf("commit seq %d: head is at seq %d", e.Seq, head.Seq)
	}
	if e.PrevID != head.ID {
		return fmt.Errorf("commit seq %d: prev_id %s does not match head %s", e.Seq, e.PrevID, head.ID)
	}

	signature := e.Signature
	if signature == nil {
		signature = []byte{}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries
		(seq, id, prev_id, tx_id, signer, instruction, args, signature, status, message, timestamp, effects_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Seq,
		e.ID,
		e.PrevID,
		e.TxID,
		e.Signer.String(),
		string(e.Instruction),
		argsJSON,
		signature,
		e.Status,
		e.Message,
		e.Timestamp,
		e.EffectsHash,
	)
	if err != nil {
		return fmt.Errorf("commit seq %d: insert entry: %w", e.Seq, err)
	}

	for i, w := range writes {
		if err := applyWrite(ctx, tx, e.Seq, i, w); err != nil {
			return fmt.Errorf("commit seq %d: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seq %d: %w", e.Seq, err)
	}
	return nil
}

func applyWrite(ctx context.Context, tx *sql.Tx, seq int64, position int, w ir.AccountWrite) error {
	data := w.Data
	if data == nil {
		data = []byte{}
	}
	deleted := 0
	if w.Deleted {
		deleted = 1
		data = []byte{}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO entry_effects (seq, position, address, owner, lamports, data, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, seq, position, w.Address.Bytes(), w.Owner.Bytes(), toDBLamports(w.Lamports), data, deleted)
	if err != nil {
		return fmt.Errorf("record effect on %s: %w", w.Address, err)
	}

	if w.Deleted {
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE address = ?`, w.Address.Bytes()); err != nil {
			return fmt.Errorf("delete account %s: %w", w.Address, err)
		}
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (address, owner, lamports, data, updated_seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			owner = excluded.owner,
			lamports = excluded.lamports,
			data = excluded.data,
			updated_seq = excluded.updated_seq
	`, w.Address.Bytes(), w.Owner.Bytes(), toDBLamports(w.Lamports), data, seq)
	if err != nil {
		return fmt.Errorf("write account %s: %w", w.Address, err)
	}
	return nil
}
