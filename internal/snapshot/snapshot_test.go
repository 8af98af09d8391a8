package snapshot

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgermsg/internal/engine"
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
	"github.com/roach88/ledgermsg/internal/program"
	"github.com/roach88/ledgermsg/internal/store"
	"github.com/roach88/ledgermsg/internal/testutil"
)

// populatedStore returns a ledger with wallets, a thread and a channel.
func populatedStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	eng, err := engine.New(ctx, st, program.New(program.DefaultID),
		engine.WithTimeOracle(testutil.NewDeterministicTime(1_700_000_000, 1)),
		engine.WithTxIDGenerator(engine.NewFixedGenerator("fund")),
	)
	require.NoError(t, err)
	require.NoError(t, eng.Genesis(ctx, []engine.Allocation{
		{Address: testutil.Pubkey("alice"), Lamports: 1_000_000_000},
		{Address: testutil.Pubkey("bob"), Lamports: 1_000_000_000},
	}))

	for i, step := range []struct {
		signer string
		ix     ir.Instruction
	}{
		{"alice", ir.Instruction{Op: ir.OpInitializeThread, ParticipantB: testutil.Pubkey("bob")}},
		{"bob", ir.Instruction{Op: ir.OpInitializeChannel, ChannelName: "news"}},
	} {
		r, err := eng.Execute(ctx, testutil.Sign(t, step.signer, string(rune('a'+i)), step.ix))
		require.NoError(t, err)
		require.NoError(t, r.Err)
	}
	return st
}

func TestExportOpen(t *testing.T) {
	ctx := context.Background()
	st := populatedStore(t)
	dir := filepath.Join(t.TempDir(), "snap")

	m, err := Export(ctx, st, dir)
	require.NoError(t, err)

	head, err := st.Head(ctx)
	require.NoError(t, err)
	root, err := st.StateRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, head.Seq, m.Seq)
	assert.Equal(t, head.ID, m.HeadID)
	assert.Equal(t, root, m.StateRoot)
	assert.Equal(t, 4, m.Accounts)

	snap, err := Open(dir)
	require.NoError(t, err)
	defer snap.Close()

	assert.Equal(t, m, snap.Manifest())
	require.NoError(t, snap.Verify())

	want, err := st.ListAccounts(ctx)
	require.NoError(t, err)
	got, err := snap.Accounts()
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Address, got[i].Address)
		assert.Equal(t, want[i].Owner, got[i].Owner)
		assert.Equal(t, want[i].Lamports, got[i].Lamports)
		assert.True(t, bytes.Equal(want[i].Data, got[i].Data), "data of %s", want[i].Address)
	}
}

func TestSnapshotBacksOverlay(t *testing.T) {
	ctx := context.Background()
	st := populatedStore(t)
	dir := filepath.Join(t.TempDir(), "snap")
	_, err := Export(ctx, st, dir)
	require.NoError(t, err)

	snap, err := Open(dir)
	require.NoError(t, err)
	defer snap.Close()

	alice := testutil.Pubkey("alice")
	acct, ok, err := snap.GetAccount(ctx, alice)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.SystemProgramID, acct.Owner)

	_, ok, err = snap.GetAccount(ctx, testutil.Pubkey("nobody"))
	require.NoError(t, err)
	assert.False(t, ok)

	// A what-if execution against the snapshot leaves it untouched.
	var reader ledger.Reader = snap
	ov := ledger.NewOverlay(ctx, reader)
	lc := ledger.NewContext(ov, program.DefaultID, alice, 1_800_000_000, ledger.DefaultRent)
	_, err = program.New(program.DefaultID).Execute(lc, ir.Instruction{Op: ir.OpInitializeChannel, ChannelName: "what-if"})
	require.NoError(t, err)
	assert.NotEmpty(t, ov.Writes())
	require.NoError(t, snap.Verify())
}

func TestExport_RefusesNonEmptyDir(t *testing.T) {
	st := populatedStore(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk"), []byte("x"), 0o600))

	_, err := Export(context.Background(), st, dir)
	assert.ErrorContains(t, err, "not empty")
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// A Pebble database without a manifest is not a snapshot.
	dir := filepath.Join(t.TempDir(), "bare")
	db, err := pebble.Open(dir, &pebble.Options{})
	require.NoError(t, err)
	require.NoError(t, db.Close())
	_, err = Open(dir)
	assert.ErrorIs(t, err, pebble.ErrNotFound)
}

func TestVerify_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	st := populatedStore(t)
	dir := filepath.Join(t.TempDir(), "snap")
	_, err := Export(ctx, st, dir)
	require.NoError(t, err)

	db, err := pebble.Open(dir, &pebble.Options{})
	require.NoError(t, err)
	acct, _, err := st.GetAccount(ctx, testutil.Pubkey("bob"))
	require.NoError(t, err)
	acct.Lamports++
	require.NoError(t, db.Set(accountKey(acct.Address), encodeAccount(acct), pebble.Sync))
	require.NoError(t, db.Close())

	snap, err := Open(dir)
	require.NoError(t, err)
	defer snap.Close()
	assert.ErrorContains(t, snap.Verify(), "does not match manifest")
}

func TestAccountCodec(t *testing.T) {
	a := ir.Account{
		Address:  testutil.Pubkey("x"),
		Owner:    program.DefaultID,
		Lamports: 1<<63 + 5,
		Data:     []byte{1, 2, 3},
	}
	got, err := decodeAccount(a.Address, encodeAccount(a))
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = decodeAccount(a.Address, []byte{1, 2})
	assert.Error(t, err)
}
