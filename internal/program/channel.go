package program

import (
	"unicode/utf8"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
	"github.com/roach88/ledgermsg/internal/pda"
)

// InitializeChannel creates the signer's channel called name. The name
// length is checked before the address is derived, so an overlong name
// never allocates storage.
func (p *Program) InitializeChannel(c *ledger.Context, name string, target ir.Pubkey) (ir.Pubkey, error) {
	if len(name) > ir.MaxChannelNameLen {
		return ir.Pubkey{}, newError(ChannelNameTooLong, "%d bytes", len(name))
	}
	if !utf8.ValidString(name) {
		return ir.Pubkey{}, ledger.Errorf(ledger.InvalidInstructionData, ir.Pubkey{}, "channel name is not valid UTF-8")
	}

	addr, _, err := pda.ChannelAddress(p.id, c.Signer, name)
	if err != nil {
		return ir.Pubkey{}, err
	}
	if err := requireTarget(target, addr); err != nil {
		return ir.Pubkey{}, err
	}
	if err := c.CreateAccount(c.Signer, addr, ir.ChannelSpace); err != nil {
		return ir.Pubkey{}, err
	}

	ch := ir.Channel{Owner: c.Signer, Name: name, CreatedAt: c.Now}
	if err := storeChannel(c, addr, ch); err != nil {
		return ir.Pubkey{}, err
	}

	c.Log("Broadcast channel initialized")
	c.Log("Owner: %s", ch.Owner)
	c.Log("Channel: %s", ch.Name)
	return addr, nil
}

// SendBroadcast records one broadcast. Only the owner may broadcast.
func (p *Program) SendBroadcast(c *ledger.Context, addr ir.Pubkey, index uint32, content []byte) error {
	ch, err := loadChannel(c, addr)
	if err != nil {
		return err
	}
	if err := authorize(c.Signer, ch.Owner); err != nil {
		return err
	}
	if err := requireNextIndex(index, ch.MessageCount); err != nil {
		return err
	}

	if ch.MessageCount, err = increment(addr, ch.MessageCount); err != nil {
		return err
	}
	ch.LastBroadcastAt = c.Now
	if err := storeChannel(c, addr, ch); err != nil {
		return err
	}

	c.Log("Broadcast %d sent (%d bytes)", index, len(content))
	c.Log("Total broadcasts: %d", ch.MessageCount)
	return nil
}

// CloseChannel deletes a channel and refunds its deposit to recipient.
// Subscriptions to the channel survive and keep pointing at its address.
func (p *Program) CloseChannel(c *ledger.Context, addr, recipient ir.Pubkey) error {
	ch, err := loadChannel(c, addr)
	if err != nil {
		return err
	}
	if err := authorize(c.Signer, ch.Owner); err != nil {
		return err
	}

	c.Log("Closing broadcast channel: %s", ch.Name)
	c.Log("Total broadcasts: %d", ch.MessageCount)
	c.Log("Subscribers: %d", ch.SubscriberCount)
	return reclaim(c, addr, recipient)
}
