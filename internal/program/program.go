package program

import (
	"fmt"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
)

// DefaultID is the program id records are derived under unless configured
// otherwise.
var DefaultID = ir.MustPubkey("9tN5NBvynubfJwQWDqrSoHEE3Xy2MVj3BmHdLu13wCcS")

// Program executes messaging instructions for one program id.
type Program struct {
	id ir.Pubkey
}

// New returns the messaging program deployed at id.
func New(id ir.Pubkey) *Program {
	return &Program{id: id}
}

// ID returns the program id.
func (p *Program) ID() ir.Pubkey {
	return p.id
}

// Execute dispatches one instruction. It returns the address of the record
// the instruction created or acted on.
func (p *Program) Execute(c *ledger.Context, ix ir.Instruction) (ir.Pubkey, error) {
	if c.ProgramID != p.id {
		return ir.Pubkey{}, fmt.Errorf("context bound to program %s, not %s", c.ProgramID, p.id)
	}
	switch ix.Op {
	case ir.OpInitializeThread:
		return p.InitializeThread(c, ix.ParticipantB, ix.ThreadID, ix.Target)
	case ir.OpSendMessage:
		return ix.Target, p.SendMessage(c, ix.Target, ix.MessageIndex, ix.Content)
	case ir.OpInitializeChannel:
		return p.InitializeChannel(c, ix.ChannelName, ix.Target)
	case ir.OpSendBroadcast:
		return ix.Target, p.SendBroadcast(c, ix.Target, ix.MessageIndex, ix.Content)
	case ir.OpSubscribeChannel:
		return p.SubscribeChannel(c, ix.Target)
	case ir.OpCloseThread:
		return ix.Target, p.CloseThread(c, ix.Target, ix.Recipient)
	case ir.OpCloseChannel:
		return ix.Target, p.CloseChannel(c, ix.Target, ix.Recipient)
	}
	return ir.Pubkey{}, ledger.Errorf(ledger.InvalidInstructionData, ir.Pubkey{}, "unknown instruction %q", ix.Op)
}
