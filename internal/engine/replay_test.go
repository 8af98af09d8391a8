package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
	"github.com/roach88/ledgermsg/internal/program"
	"github.com/roach88/ledgermsg/internal/testutil"
)

func populate(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	bob := testutil.Pubkey("bob")

	th := h.mustSend("alice", ir.Instruction{Op: ir.OpInitializeThread, ParticipantB: bob, ThreadID: threadID(1)}).Address
	h.mustSend("bob", ir.Instruction{Op: ir.OpSendMessage, Target: th, MessageIndex: 0, Content: []byte("x")})
	_, _ = h.send("carol", ir.Instruction{Op: ir.OpSendMessage, Target: th, MessageIndex: 1})

	ch := h.mustSend("carol", ir.Instruction{Op: ir.OpInitializeChannel, ChannelName: "caf\u00e9"}).Address
	h.mustSend("bob", ir.Instruction{Op: ir.OpSubscribeChannel, Target: ch})
	h.mustSend("carol", ir.Instruction{Op: ir.OpSendBroadcast, Target: ch, MessageIndex: 0, Content: []byte("y")})
	h.mustSend("carol", ir.Instruction{Op: ir.OpCloseChannel, Target: ch, Recipient: testutil.Pubkey("dave")})
	h.mustSend("alice", ir.Instruction{Op: ir.OpCloseThread, Target: th, Recipient: bob})
	return h
}

func TestReplay_ReproducesLedger(t *testing.T) {
	h := populate(t)
	dst := openStore(t, "replay.db")

	report, err := Replay(h.ctx, h.store, dst, program.New(program.DefaultID))
	require.NoError(t, err)

	_, head := h.eng.Head()
	assert.Equal(t, int64(11), report.Entries)
	assert.Equal(t, head, report.HeadID)

	root, err := h.store.StateRoot(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, root, report.StateRoot)

	_, err = dst.VerifyChain(h.ctx)
	require.NoError(t, err)
}

func TestReplay_DetectsDivergence(t *testing.T) {
	h := populate(t)
	dst := openStore(t, "replay.db")

	_, err := Replay(h.ctx, h.store, dst, program.New(program.DefaultID),
		WithRent(ledger.Rent{Overhead: 128, LamportsPerByte: 1}))

	var div *DivergenceError
	require.True(t, errors.As(err, &div), "got %v", err)
	assert.Equal(t, int64(4), div.Seq, "genesis entries match, the first deposit does not")
}

func TestReplay_RequiresEmptyDestination(t *testing.T) {
	h := populate(t)
	_, err := Replay(h.ctx, h.store, h.store, program.New(program.DefaultID))
	assert.Error(t, err)
}
