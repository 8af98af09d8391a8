package program

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
)

var (
	alice = ir.Pubkey(bytes.Repeat([]byte{1}, 32))
	bob   = ir.Pubkey(bytes.Repeat([]byte{2}, 32))
	carol = ir.Pubkey(bytes.Repeat([]byte{3}, 32))
)

const startingBalance = 1_000_000_000

// world is an in-memory ledger that commits an instruction's writes only
// when it succeeds, the way the engine does.
type world struct {
	t        *testing.T
	prog     *Program
	accounts ledger.Accounts
	now      int64
	logs     []string
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{t: t, prog: New(DefaultID), accounts: ledger.Accounts{}, now: 1_700_000_000}
	for _, p := range []ir.Pubkey{alice, bob, carol} {
		w.accounts[p] = ir.Account{Address: p, Owner: ir.SystemProgramID, Lamports: startingBalance}
	}
	return w
}

func (w *world) exec(signer ir.Pubkey, ix ir.Instruction) (ir.Pubkey, error) {
	w.now++
	ov := ledger.NewOverlay(context.Background(), w.accounts)
	c := ledger.NewContext(ov, w.prog.ID(), signer, w.now, ledger.DefaultRent)
	addr, err := w.prog.Execute(c, ix)
	w.logs = c.Logs()
	if err == nil {
		w.accounts.Apply(ov.Writes())
	}
	return addr, err
}

func (w *world) mustExec(signer ir.Pubkey, ix ir.Instruction) ir.Pubkey {
	w.t.Helper()
	addr, err := w.exec(signer, ix)
	require.NoError(w.t, err)
	return addr
}

func (w *world) thread(addr ir.Pubkey) ir.Thread {
	w.t.Helper()
	acct, ok := w.accounts[addr]
	require.True(w.t, ok, "thread %s missing", addr)
	th, err := ir.DecodeThread(acct.Data)
	require.NoError(w.t, err)
	return th
}

func (w *world) channel(addr ir.Pubkey) ir.Channel {
	w.t.Helper()
	acct, ok := w.accounts[addr]
	require.True(w.t, ok, "channel %s missing", addr)
	ch, err := ir.DecodeChannel(acct.Data)
	require.NoError(w.t, err)
	return ch
}

func (w *world) balance(p ir.Pubkey) uint64 {
	return w.accounts[p].Lamports
}

// snapshot deep-copies account state for before/after comparisons.
func (w *world) snapshot() ledger.Accounts {
	out := make(ledger.Accounts, len(w.accounts))
	for k, v := range w.accounts {
		out[k] = v.Clone()
	}
	return out
}

func threadID(n byte) ir.ThreadID {
	var id ir.ThreadID
	id[31] = n
	return id
}

func initThread(b ir.Pubkey, id ir.ThreadID) ir.Instruction {
	return ir.Instruction{Op: ir.OpInitializeThread, ParticipantB: b, ThreadID: id}
}

func sendMessage(target ir.Pubkey, index uint32) ir.Instruction {
	return ir.Instruction{Op: ir.OpSendMessage, Target: target, MessageIndex: index, Content: []byte("ciphertext")}
}

func initChannel(name string) ir.Instruction {
	return ir.Instruction{Op: ir.OpInitializeChannel, ChannelName: name}
}

func broadcast(target ir.Pubkey, index uint32) ir.Instruction {
	return ir.Instruction{Op: ir.OpSendBroadcast, Target: target, MessageIndex: index, Content: []byte("news")}
}

func subscribe(channel ir.Pubkey) ir.Instruction {
	return ir.Instruction{Op: ir.OpSubscribeChannel, Target: channel}
}

func closeThread(target, recipient ir.Pubkey) ir.Instruction {
	return ir.Instruction{Op: ir.OpCloseThread, Target: target, Recipient: recipient}
}

func closeChannel(target, recipient ir.Pubkey) ir.Instruction {
	return ir.Instruction{Op: ir.OpCloseChannel, Target: target, Recipient: recipient}
}

// setChannel overwrites a stored channel record.
func (w *world) setChannel(addr ir.Pubkey, ch ir.Channel) {
	w.t.Helper()
	data, err := ir.EncodeChannel(ch)
	require.NoError(w.t, err)
	acct := w.accounts[addr]
	acct.Data = data
	w.accounts[addr] = acct
}

// refundInto has signer open and close a throwaway record with addr as the
// refund recipient, leaving a lamports-only system account at addr. It
// returns the amount refunded.
func (w *world) refundInto(signer, addr ir.Pubkey) uint64 {
	w.t.Helper()
	var id ir.ThreadID
	copy(id[:], "refund")
	th := w.mustExec(signer, initThread(signer, id))
	refund := w.accounts[th].Lamports
	w.mustExec(signer, closeThread(th, addr))

	acct, ok := w.accounts[addr]
	require.True(w.t, ok)
	require.Equal(w.t, ir.SystemProgramID, acct.Owner)
	require.Empty(w.t, acct.Data)
	return refund
}
