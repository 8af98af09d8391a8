package store

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/ledgermsg/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testKey(b byte) ir.Pubkey {
	return ir.Pubkey(bytes.Repeat([]byte{b}, 32))
}

// appendTestEntry builds a correctly chained entry on top of the current
// head and commits it with writes.
func appendTestEntry(t *testing.T, s *Store, status string, writes []ir.AccountWrite) ir.Entry {
	t.Helper()
	ctx := context.Background()
	head, err := s.Head(ctx)
	if err != nil {
		t.Fatalf("Head() failed: %v", err)
	}
	effects, err := ir.EffectsHash(writes)
	if err != nil {
		t.Fatalf("EffectsHash() failed: %v", err)
	}
	e := ir.Entry{
		Seq:         head.Seq + 1,
		PrevID:      head.ID,
		TxID:        fmt.Sprintf("tx-%d", head.Seq+1),
		Signer:      testKey(1),
		Instruction: ir.OpFund,
		Args:        ir.Object{"recipient": ir.Str(testKey(2).String()), "lamports": ir.Int(10)},
		Signature:   []byte{1, 2, 3},
		Status:      status,
		Timestamp:   1000 + head.Seq,
		EffectsHash: effects,
	}
	if status != ir.StatusOK {
		e.Message = "failed"
	}
	e.ID = ir.MustEntryID(e)
	if err := s.Commit(ctx, e, writes); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	return e
}

func systemWrite(addr ir.Pubkey, lamports uint64) ir.AccountWrite {
	return ir.AccountWrite{Account: ir.Account{Address: addr, Owner: ir.SystemProgramID, Lamports: lamports}}
}
