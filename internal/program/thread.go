package program

import (
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
	"github.com/roach88/ledgermsg/internal/pda"
)

// InitializeThread creates the thread between the signer (participant A,
// who pays the deposit) and participantB. participantB does not sign and
// is not checked; it may equal the signer.
func (p *Program) InitializeThread(c *ledger.Context, participantB ir.Pubkey, id ir.ThreadID, target ir.Pubkey) (ir.Pubkey, error) {
	addr, _, err := pda.ThreadAddress(p.id, c.Signer, participantB, id)
	if err != nil {
		return ir.Pubkey{}, err
	}
	if err := requireTarget(target, addr); err != nil {
		return ir.Pubkey{}, err
	}
	if err := c.CreateAccount(c.Signer, addr, ir.ThreadSpace); err != nil {
		return ir.Pubkey{}, err
	}

	t := ir.Thread{
		ParticipantA: c.Signer,
		ParticipantB: participantB,
		ThreadID:     id,
		CreatedAt:    c.Now,
	}
	if err := c.Store(addr, ir.EncodeThread(t)); err != nil {
		return ir.Pubkey{}, err
	}

	c.Log("Message thread initialized")
	c.Log("Participant A: %s", t.ParticipantA)
	c.Log("Participant B: %s", t.ParticipantB)
	c.Log("Thread ID: %s", t.ThreadID)
	return addr, nil
}

// SendMessage records one message on a thread. The content travels in the
// entry only; the thread stores nothing but its counter and timestamp.
func (p *Program) SendMessage(c *ledger.Context, addr ir.Pubkey, index uint32, content []byte) error {
	t, err := loadThread(c, addr)
	if err != nil {
		return err
	}
	if err := authorize(c.Signer, t.ParticipantA, t.ParticipantB); err != nil {
		return err
	}
	if err := requireNextIndex(index, t.MessageCount); err != nil {
		return err
	}

	if t.MessageCount, err = increment(addr, t.MessageCount); err != nil {
		return err
	}
	t.LastMessageAt = c.Now
	if err := c.Store(addr, ir.EncodeThread(t)); err != nil {
		return err
	}

	c.Log("Message %d sent by %s (%d bytes)", index, c.Signer, len(content))
	c.Log("Thread messages: %d", t.MessageCount)
	return nil
}

// CloseThread deletes a thread and refunds its deposit to recipient. Only
// participant A may close.
func (p *Program) CloseThread(c *ledger.Context, addr, recipient ir.Pubkey) error {
	t, err := loadThread(c, addr)
	if err != nil {
		return err
	}
	if err := authorize(c.Signer, t.ParticipantA); err != nil {
		return err
	}

	c.Log("Closing message thread")
	c.Log("Messages exchanged: %d", t.MessageCount)
	return reclaim(c, addr, recipient)
}
