package program

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
)

func TestExecute_UnknownInstruction(t *testing.T) {
	w := newWorld(t)
	_, err := w.exec(alice, ir.Instruction{Op: ir.OpFund, Recipient: alice, Lamports: 5})
	assert.True(t, ledger.IsCode(err, ledger.InvalidInstructionData))
}

func TestExecute_WrongProgramContext(t *testing.T) {
	ov := ledger.NewOverlay(context.Background(), ledger.Accounts{})
	c := ledger.NewContext(ov, alice, alice, 1, ledger.DefaultRent)
	_, err := New(DefaultID).Execute(c, initChannel("x"))
	assert.Error(t, err)
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		code ErrorCode
		name string
		num  uint32
	}{
		{UnauthorizedSender, "UnauthorizedSender", 6000},
		{InvalidMessageIndex, "InvalidMessageIndex", 6001},
		{ChannelNameTooLong, "ChannelNameTooLong", 6002},
		{ThreadClosed, "ThreadClosed", 6003},
		{ConstraintSeeds, "ConstraintSeeds", 2006},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.code.String())
		assert.Equal(t, tt.num, uint32(tt.code))
		assert.NotEmpty(t, tt.code.Message())
	}
	assert.Equal(t, "ErrorCode(1)", ErrorCode(1).String())
}

func TestCodeOf(t *testing.T) {
	err := newError(InvalidMessageIndex, "got %d, expected %d", 1, 2)
	assert.Equal(t, "InvalidMessageIndex (6001): Message index must be sequential: got 1, expected 2", err.Error())

	code, ok := CodeOf(errors.Join(errors.New("ctx"), err))
	require.True(t, ok)
	assert.Equal(t, InvalidMessageIndex, code)

	_, ok = CodeOf(ledger.Errorf(ledger.InsufficientFunds, alice, "x"))
	assert.False(t, ok)
}
