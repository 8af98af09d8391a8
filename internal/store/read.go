package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/ledgermsg/internal/ir"
)

// Head is the position of the last entry in the log. The zero seq with
// GenesisID means the log is empty.
type Head struct {
	Seq       int64
	ID        string
	Timestamp int64
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readHead(ctx context.Context, q queryer) (Head, error) {
	var h Head
	err := q.QueryRowContext(ctx, `
		SELECT seq, id, timestamp FROM entries ORDER BY seq DESC LIMIT 1
	`).Scan(&h.Seq, &h.ID, &h.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return Head{ID: ir.GenesisID}, nil
	}
	if err != nil {
		return Head{}, fmt.Errorf("read head: %w", err)
	}
	return h, nil
}

// Head returns the last entry's position.
func (s *Store) Head(ctx context.Context) (Head, error) {
	return readHead(ctx, s.db)
}

// GetAccount returns the committed account at addr.
func (s *Store) GetAccount(ctx context.Context, addr ir.Pubkey) (ir.Account, bool, error) {
	var owner []byte
	var lamports int64
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT owner, lamports, data FROM accounts WHERE address = ?
	`, addr.Bytes()).Scan(&owner, &lamports, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Account{}, false, nil
	}
	if err != nil {
		return ir.Account{}, false, fmt.Errorf("get account %s: %w", addr, err)
	}
	ownerKey, err := pubkeyFromBlob(owner, "owner")
	if err != nil {
		return ir.Account{}, false, fmt.Errorf("get account %s: %w", addr, err)
	}
	return ir.Account{Address: addr, Owner: ownerKey, Lamports: fromDBLamports(lamports), Data: data}, true, nil
}

// ListAccounts returns every account in address order.
func (s *Store) ListAccounts(ctx context.Context) ([]ir.Account, error) {
	return s.listAccounts(ctx, `
		SELECT address, owner, lamports, data FROM accounts ORDER BY address ASC
	`)
}

// ListAccountsByOwner returns the accounts owned by owner in address order.
func (s *Store) ListAccountsByOwner(ctx context.Context, owner ir.Pubkey) ([]ir.Account, error) {
	return s.listAccounts(ctx, `
		SELECT address, owner, lamports, data FROM accounts WHERE owner = ? ORDER BY address ASC
	`, owner.Bytes())
}

func (s *Store) listAccounts(ctx context.Context, query string, args ...any) ([]ir.Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []ir.Account{}
	for rows.Next() {
		var addr, owner, data []byte
		var lamports int64
		if err := rows.Scan(&addr, &owner, &lamports, &data); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a, err := pubkeyFromBlob(addr, "address")
		if err != nil {
			return nil, err
		}
		o, err := pubkeyFromBlob(owner, "owner")
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, ir.Account{Address: a, Owner: o, Lamports: fromDBLamports(lamports), Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

const entryColumns = `seq, id, prev_id, tx_id, signer, instruction, args, signature, status, message, timestamp, effects_hash`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (ir.Entry, error) {
	var e ir.Entry
	var signer, instruction, args string
	err := row.Scan(
		&e.Seq,
		&e.ID,
		&e.PrevID,
		&e.TxID,
		&signer,
		&instruction,
		&args,
		&e.Signature,
		&e.Status,
		&e.Message,
		&e.Timestamp,
		&e.EffectsHash,
	)
	if err != nil {
		return ir.Entry{}, err
	}
	if e.Signer, err = ir.ParsePubkey(signer); err != nil {
		return ir.Entry{}, fmt.Errorf("entry %d: %w", e.Seq, err)
	}
	e.Instruction = ir.Op(instruction)
	if e.Args, err = unmarshalArgs(args); err != nil {
		return ir.Entry{}, fmt.Errorf("entry %d: %w", e.Seq, err)
	}
	return e, nil
}

// ReadEntry returns the entry at seq, or ErrNotFound.
func (s *Store) ReadEntry(ctx context.Context, seq int64) (ir.Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE seq = ?`, seq)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Entry{}, fmt.Errorf("entry %d: %w", seq, ErrNotFound)
	}
	if err != nil {
		return ir.Entry{}, fmt.Errorf("read entry %d: %w", seq, err)
	}
	return e, nil
}

// ReadEntries returns up to limit entries starting at seq from, in seq
// order. A limit of zero or less means no limit.
func (s *Store) ReadEntries(ctx context.Context, from int64, limit int) ([]ir.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM entries WHERE seq >= ? ORDER BY seq ASC LIMIT ?
	`, from, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []ir.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ReadAllEntries returns the whole log in seq order.
func (s *Store) ReadAllEntries(ctx context.Context) ([]ir.Entry, error) {
	return s.ReadEntries(ctx, 1, 0)
}

// ReadEffects returns the account writes applied by the entry at seq.
func (s *Store) ReadEffects(ctx context.Context, seq int64) ([]ir.AccountWrite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, owner, lamports, data, deleted
		FROM entry_effects WHERE seq = ? ORDER BY position ASC
	`, seq)
	if err != nil {
		return nil, fmt.Errorf("query effects: %w", err)
	}
	defer rows.Close()

	writes := []ir.AccountWrite{}
	for rows.Next() {
		var addr, owner, data []byte
		var lamports int64
		var deleted bool
		if err := rows.Scan(&addr, &owner, &lamports, &data, &deleted); err != nil {
			return nil, fmt.Errorf("scan effect: %w", err)
		}
		w := ir.AccountWrite{Deleted: deleted}
		if w.Address, err = pubkeyFromBlob(addr, "address"); err != nil {
			return nil, err
		}
		if w.Owner, err = pubkeyFromBlob(owner, "owner"); err != nil {
			return nil, err
		}
		w.Lamports = fromDBLamports(lamports)
		if !deleted {
			w.Data = data
		}
		writes = append(writes, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate effects: %w", err)
	}
	return writes, nil
}

// HasTx reports whether an entry with the given transaction id exists.
func (s *Store) HasTx(ctx context.Context, txID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE tx_id = ?`, txID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup tx %s: %w", txID, err)
	}
	return n > 0, nil
}

// EntryCounts returns the number of entries, and how many of them failed.
func (s *Store) EntryCounts(ctx context.Context) (total, failed int64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status != ? THEN 1 ELSE 0 END), 0) FROM entries
	`, ir.StatusOK).Scan(&total, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("count entries: %w", err)
	}
	return total, failed, nil
}
