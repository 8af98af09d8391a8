package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/program"
	"github.com/roach88/ledgermsg/internal/store"
	"github.com/roach88/ledgermsg/internal/testutil"
)

const startTime = 1_700_000_000

func openStore(t *testing.T, name string) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	store *store.Store
	eng   *Engine
	time  *testutil.DeterministicTime
	n     int
}

// newHarness opens an engine on a fresh store with alice, bob and carol
// funded at genesis.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{t: t, ctx: context.Background(), store: openStore(t, "ledger.db")}
	h.time = testutil.NewDeterministicTime(startTime, 1)
	opts = append([]Option{
		WithTimeOracle(h.time),
		WithTxIDGenerator(NewFixedGenerator("fund")),
	}, opts...)

	eng, err := New(h.ctx, h.store, program.New(program.DefaultID), opts...)
	require.NoError(t, err)
	h.eng = eng

	var allocs []Allocation
	for _, name := range []string{"alice", "bob", "carol"} {
		allocs = append(allocs, Allocation{Address: testutil.Pubkey(name), Lamports: 1_000_000_000})
	}
	require.NoError(t, eng.Genesis(h.ctx, allocs))
	return h
}

func (h *harness) send(signer string, ix ir.Instruction) (Receipt, error) {
	h.n++
	env := testutil.Sign(h.t, signer, fmt.Sprintf("tx-%d", h.n), ix)
	return h.eng.Execute(h.ctx, env)
}

func (h *harness) mustSend(signer string, ix ir.Instruction) Receipt {
	h.t.Helper()
	r, err := h.send(signer, ix)
	require.NoError(h.t, err)
	require.NoError(h.t, r.Err)
	return r
}

func (h *harness) thread(addr ir.Pubkey) ir.Thread {
	h.t.Helper()
	acct, ok, err := h.store.GetAccount(h.ctx, addr)
	require.NoError(h.t, err)
	require.True(h.t, ok)
	th, err := ir.DecodeThread(acct.Data)
	require.NoError(h.t, err)
	return th
}

func threadID(n byte) ir.ThreadID {
	var id ir.ThreadID
	id[31] = n
	return id
}
