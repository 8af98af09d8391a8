// Package snapshot writes the account state at a ledger head into a
// Pebble database and reads it back.
//
// Key layout:
//
//	meta:manifest      JSON Manifest
//	acct:<32 bytes>    owner(32) | lamports(u64 LE) | data
//
// A snapshot is self-verifying: the manifest records the state root, and
// Verify recomputes it from the stored accounts.
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cockroachdb/pebble"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/store"
)

const (
	manifestKey   = "meta:manifest"
	accountPrefix = "acct:"
	accountUpper  = "acct;" // ';' sorts right after ':'
	headerSize    = ir.PubkeySize + 8
)

// Manifest describes the ledger position a snapshot was taken at.
type Manifest struct {
	Seq       int64  `json:"seq"`
	HeadID    string `json:"head_id"`
	Timestamp int64  `json:"timestamp"`
	StateRoot string `json:"state_root"`
	Accounts  int    `json:"accounts"`
}

// ErrLedgerAdvanced is returned by Export when entries were appended
// while the snapshot was being read.
var ErrLedgerAdvanced = errors.New("ledger advanced during export")

// Export writes every account of s and the current head into a new Pebble
// database at dir. dir must not already hold a database.
func Export(ctx context.Context, s *store.Store, dir string) (Manifest, error) {
	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		return Manifest{}, fmt.Errorf("snapshot dir %s is not empty", dir)
	}

	head, err := s.Head(ctx)
	if err != nil {
		return Manifest{}, err
	}
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return Manifest{}, err
	}
	after, err := s.Head(ctx)
	if err != nil {
		return Manifest{}, err
	}
	if after.Seq != head.Seq {
		return Manifest{}, fmt.Errorf("%w: seq %d -> %d", ErrLedgerAdvanced, head.Seq, after.Seq)
	}

	root, err := ir.StateRoot(accounts)
	if err != nil {
		return Manifest{}, err
	}
	m := Manifest{
		Seq:       head.Seq,
		HeadID:    head.ID,
		Timestamp: head.Timestamp,
		StateRoot: root,
		Accounts:  len(accounts),
	}

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return Manifest{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	batch := db.NewBatch()
	defer batch.Close()
	for _, a := range accounts {
		if err := batch.Set(accountKey(a.Address), encodeAccount(a), nil); err != nil {
			return Manifest{}, err
		}
	}
	meta, err := json.Marshal(m)
	if err != nil {
		return Manifest{}, err
	}
	if err := batch.Set([]byte(manifestKey), meta, nil); err != nil {
		return Manifest{}, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return Manifest{}, fmt.Errorf("write snapshot: %w", err)
	}

	slog.Info("snapshot exported", "dir", dir, "seq", m.Seq, "accounts", m.Accounts)
	return m, nil
}

// Snapshot is a read-only view of an exported snapshot.
type Snapshot struct {
	db       *pebble.DB
	manifest Manifest
}

// Open opens the snapshot at dir read-only.
func Open(dir string) (*Snapshot, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	db, err := pebble.Open(dir, &pebble.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}

	v, closer, err := db.Get([]byte(manifestKey))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	err = json.Unmarshal(v, &m)
	closer.Close()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &Snapshot{db: db, manifest: m}, nil
}

// Close releases the database.
func (s *Snapshot) Close() error {
	return s.db.Close()
}

// Manifest returns the snapshot's ledger position.
func (s *Snapshot) Manifest() Manifest {
	return s.manifest
}

// GetAccount looks up one account. It satisfies ledger.Reader, so a
// snapshot can back an overlay.
func (s *Snapshot) GetAccount(_ context.Context, addr ir.Pubkey) (ir.Account, bool, error) {
	v, closer, err := s.db.Get(accountKey(addr))
	if errors.Is(err, pebble.ErrNotFound) {
		return ir.Account{}, false, nil
	}
	if err != nil {
		return ir.Account{}, false, err
	}
	defer closer.Close()

	a, err := decodeAccount(addr, v)
	if err != nil {
		return ir.Account{}, false, err
	}
	return a, true, nil
}

// Accounts returns every account in address order.
func (s *Snapshot) Accounts() ([]ir.Account, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(accountPrefix),
		UpperBound: []byte(accountUpper),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []ir.Account
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(accountPrefix)+ir.PubkeySize {
			return nil, fmt.Errorf("snapshot: malformed account key %x", key)
		}
		var addr ir.Pubkey
		copy(addr[:], key[len(accountPrefix):])
		a, err := decodeAccount(addr, iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, iter.Error()
}

// Verify recomputes the state root from the stored accounts and compares
// it with the manifest.
func (s *Snapshot) Verify() error {
	accounts, err := s.Accounts()
	if err != nil {
		return err
	}
	if len(accounts) != s.manifest.Accounts {
		return fmt.Errorf("snapshot holds %d accounts, manifest says %d", len(accounts), s.manifest.Accounts)
	}
	root, err := ir.StateRoot(accounts)
	if err != nil {
		return err
	}
	if root != s.manifest.StateRoot {
		return fmt.Errorf("snapshot state root %s does not match manifest %s", root, s.manifest.StateRoot)
	}
	return nil
}

func accountKey(addr ir.Pubkey) []byte {
	return append([]byte(accountPrefix), addr[:]...)
}

func encodeAccount(a ir.Account) []byte {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(a.Data))
	buf.Write(a.Owner[:])
	buf.Write(binary.LittleEndian.AppendUint64(nil, a.Lamports))
	buf.Write(a.Data)
	return buf.Bytes()
}

// decodeAccount copies out of v, which Pebble owns.
func decodeAccount(addr ir.Pubkey, v []byte) (ir.Account, error) {
	if len(v) < headerSize {
		return ir.Account{}, fmt.Errorf("snapshot: account %s value is %d bytes", addr, len(v))
	}
	a := ir.Account{Address: addr}
	copy(a.Owner[:], v[:ir.PubkeySize])
	a.Lamports = binary.LittleEndian.Uint64(v[ir.PubkeySize:headerSize])
	a.Data = append([]byte{}, v[headerSize:]...)
	return a, nil
}
