package ledger

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgermsg/internal/ir"
)

var (
	program = ir.Pubkey(bytes.Repeat([]byte{0xAA}, 32))
	payer   = ir.Pubkey(bytes.Repeat([]byte{1}, 32))
	other   = ir.Pubkey(bytes.Repeat([]byte{2}, 32))
	record  = ir.Pubkey(bytes.Repeat([]byte{3}, 32))
)

func newContext(t *testing.T, base Accounts) *Context {
	t.Helper()
	return NewContext(NewOverlay(context.Background(), base), program, payer, 1000, DefaultRent)
}

func funded(addr ir.Pubkey, lamports uint64) ir.Account {
	return ir.Account{Address: addr, Owner: ir.SystemProgramID, Lamports: lamports}
}

func TestRent_MinimumBalance(t *testing.T) {
	assert.Equal(t, uint64(128*6960), DefaultRent.MinimumBalance(0))
	assert.Equal(t, uint64((128+124)*6960), DefaultRent.MinimumBalance(ir.ThreadSpace))
	assert.Equal(t, uint64(3*(10+5)), Rent{Overhead: 10, LamportsPerByte: 3}.MinimumBalance(5))
}

func TestOverlay_CopyOnWrite(t *testing.T) {
	base := Accounts{payer: funded(payer, 100)}
	ov := NewOverlay(context.Background(), base)

	acct, ok, err := ov.Get(payer)
	require.NoError(t, err)
	require.True(t, ok)
	acct.Lamports = 1
	ov.Put(acct)

	got, _, _ := ov.Get(payer)
	assert.Equal(t, uint64(1), got.Lamports)
	assert.Equal(t, uint64(100), base[payer].Lamports, "base must be untouched until applied")

	ov.Delete(payer)
	_, ok, _ = ov.Get(payer)
	assert.False(t, ok)

	base.Apply(ov.Writes())
	_, ok = base[payer]
	assert.False(t, ok)
}

func TestOverlay_WritesSortedByAddress(t *testing.T) {
	ov := NewOverlay(context.Background(), Accounts{})
	ov.Put(funded(record, 3))
	ov.Put(funded(payer, 1))
	ov.Put(funded(other, 2))

	writes := ov.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, payer, writes[0].Address)
	assert.Equal(t, other, writes[1].Address)
	assert.Equal(t, record, writes[2].Address)
}

func TestOverlay_CreditOverflow(t *testing.T) {
	ov := NewOverlay(context.Background(), Accounts{payer: funded(payer, math.MaxUint64)})
	err := ov.Credit(payer, 1)
	assert.True(t, IsCode(err, ArithmeticOverflow))

	require.NoError(t, ov.Credit(other, 5))
	acct, ok, _ := ov.Get(other)
	require.True(t, ok)
	assert.Equal(t, ir.SystemProgramID, acct.Owner)
	assert.Equal(t, uint64(5), acct.Lamports)
}

func TestContext_CreateAccount(t *testing.T) {
	deposit := DefaultRent.MinimumBalance(ir.ThreadSpace)
	c := newContext(t, Accounts{payer: funded(payer, deposit+7)})

	require.NoError(t, c.CreateAccount(payer, record, ir.ThreadSpace))

	acct, ok, _ := c.Accounts().Get(record)
	require.True(t, ok)
	assert.Equal(t, program, acct.Owner)
	assert.Equal(t, deposit, acct.Lamports)
	assert.Len(t, acct.Data, ir.ThreadSpace)

	p, _, _ := c.Accounts().Get(payer)
	assert.Equal(t, uint64(7), p.Lamports)

	err := c.CreateAccount(payer, record, ir.ThreadSpace)
	assert.True(t, IsCode(err, AccountAlreadyInUse))
}

func TestContext_CreateAccountOverPrefundedAddress(t *testing.T) {
	deposit := DefaultRent.MinimumBalance(ir.ChannelSpace)

	tests := []struct {
		name       string
		prefund    uint64
		wantRecord uint64
		wantPayer  uint64
	}{
		{"partial", 1000, deposit, 1100},
		{"exact", deposit, deposit, deposit + 100},
		{"surplus", deposit + 50, deposit + 50, deposit + 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newContext(t, Accounts{
				payer:  funded(payer, deposit+100),
				record: funded(record, tt.prefund),
			})

			require.NoError(t, c.CreateAccount(payer, record, ir.ChannelSpace))

			acct, ok, _ := c.Accounts().Get(record)
			require.True(t, ok)
			assert.Equal(t, program, acct.Owner)
			assert.Equal(t, tt.wantRecord, acct.Lamports)
			assert.Len(t, acct.Data, ir.ChannelSpace)

			p, _, _ := c.Accounts().Get(payer)
			assert.Equal(t, tt.wantPayer, p.Lamports)
		})
	}
}

func TestContext_CreateAccountFullyPrefundedNeedsNoPayer(t *testing.T) {
	deposit := DefaultRent.MinimumBalance(ir.SubscriptionSpace)
	c := newContext(t, Accounts{record: funded(record, deposit)})

	require.NoError(t, c.CreateAccount(payer, record, ir.SubscriptionSpace))
	_, ok, _ := c.Accounts().Get(payer)
	assert.False(t, ok)
}

func TestContext_CreateAccountInUse(t *testing.T) {
	tests := []struct {
		name     string
		existing ir.Account
	}{
		{"program owned", ir.Account{Address: record, Owner: program, Lamports: 1, Data: []byte{1}}},
		{"system with data", ir.Account{Address: record, Owner: ir.SystemProgramID, Lamports: 1, Data: []byte{1}}},
		{"other owner without data", ir.Account{Address: record, Owner: other, Lamports: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newContext(t, Accounts{payer: funded(payer, 1_000_000_000), record: tt.existing})
			err := c.CreateAccount(payer, record, ir.ThreadSpace)
			assert.True(t, IsCode(err, AccountAlreadyInUse), "got %v", err)
			assert.Empty(t, c.Accounts().Writes())
		})
	}
}

func TestContext_CreateAccountInsufficientFunds(t *testing.T) {
	deposit := DefaultRent.MinimumBalance(ir.ChannelSpace)

	tests := []struct {
		name string
		base Accounts
	}{
		{"missing payer", Accounts{}},
		{"short balance", Accounts{payer: funded(payer, deposit-1)}},
		{"payer is a record", Accounts{payer: {Address: payer, Owner: program, Lamports: deposit * 2, Data: []byte{1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newContext(t, tt.base)
			err := c.CreateAccount(payer, record, ir.ChannelSpace)
			assert.True(t, IsCode(err, InsufficientFunds), "got %v", err)
			assert.Empty(t, c.Accounts().Writes())
		})
	}
}

func TestContext_Load(t *testing.T) {
	thread := ir.EncodeThread(ir.Thread{ParticipantA: payer, ParticipantB: other})
	base := Accounts{
		record: {Address: record, Owner: program, Lamports: 1, Data: thread},
		other:  {Address: other, Owner: ir.SystemProgramID, Lamports: 1},
		payer:  {Address: payer, Owner: program, Lamports: 1, Data: []byte{1, 2}},
	}
	c := newContext(t, base)

	data, err := c.Load(record, ir.RecordThread)
	require.NoError(t, err)
	assert.Equal(t, thread, data)

	_, err = c.Load(record, ir.RecordChannel)
	assert.True(t, IsCode(err, AccountDiscriminatorMismatch))

	_, err = c.Load(other, ir.RecordThread)
	assert.True(t, IsCode(err, AccountOwnedByWrongProgram))

	_, err = c.Load(payer, ir.RecordThread)
	assert.True(t, IsCode(err, AccountDidNotDeserialize))

	_, err = c.Load(ir.Pubkey{9}, ir.RecordThread)
	assert.True(t, IsCode(err, AccountNotInitialized))
}

func TestContext_CloseAccount(t *testing.T) {
	base := Accounts{
		record: {Address: record, Owner: program, Lamports: 500, Data: make([]byte, 4)},
		other:  funded(other, 10),
	}
	c := newContext(t, base)

	require.NoError(t, c.CloseAccount(record, other))
	_, ok, _ := c.Accounts().Get(record)
	assert.False(t, ok)
	o, _, _ := c.Accounts().Get(other)
	assert.Equal(t, uint64(510), o.Lamports)

	t.Run("recipient created when absent", func(t *testing.T) {
		c := newContext(t, Accounts{record: base[record]})
		fresh := ir.Pubkey{7}
		require.NoError(t, c.CloseAccount(record, fresh))
		acct, ok, _ := c.Accounts().Get(fresh)
		require.True(t, ok)
		assert.Equal(t, uint64(500), acct.Lamports)
	})

	t.Run("self close rejected", func(t *testing.T) {
		c := newContext(t, Accounts{record: base[record]})
		err := c.CloseAccount(record, record)
		assert.True(t, IsCode(err, InvalidInstructionData))
	})
}

func TestContext_Logs(t *testing.T) {
	c := newContext(t, Accounts{})
	c.Log("first %d", 1)
	c.Log("second")
	assert.Equal(t, []string{"first 1", "second"}, c.Logs())
}

func TestCodeOf(t *testing.T) {
	err := Errorf(InsufficientFunds, payer, "need %d", 5)
	wrapped := errors.Join(errors.New("outer"), err)

	code, ok := CodeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, InsufficientFunds, code)
	assert.Contains(t, err.Error(), payer.String())

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}
