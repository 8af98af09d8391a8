package program

import (
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
	"github.com/roach88/ledgermsg/internal/pda"
)

// SubscribeChannel creates the signer's subscription to a channel and
// bumps the channel's subscriber count. Both writes land together or not
// at all. A second subscription by the same signer fails with
// AccountAlreadyInUse.
func (p *Program) SubscribeChannel(c *ledger.Context, channelAddr ir.Pubkey) (ir.Pubkey, error) {
	ch, err := loadChannel(c, channelAddr)
	if err != nil {
		return ir.Pubkey{}, err
	}

	addr, _, err := pda.SubscriptionAddress(p.id, channelAddr, c.Signer)
	if err != nil {
		return ir.Pubkey{}, err
	}
	if err := c.CreateAccount(c.Signer, addr, ir.SubscriptionSpace); err != nil {
		return ir.Pubkey{}, err
	}

	sub := ir.Subscription{
		Subscriber:   c.Signer,
		Channel:      channelAddr,
		SubscribedAt: c.Now,
	}
	if err := c.Store(addr, ir.EncodeSubscription(sub)); err != nil {
		return ir.Pubkey{}, err
	}

	if ch.SubscriberCount, err = increment(channelAddr, ch.SubscriberCount); err != nil {
		return ir.Pubkey{}, err
	}
	if err := storeChannel(c, channelAddr, ch); err != nil {
		return ir.Pubkey{}, err
	}

	c.Log("Subscribed to channel: %s", ch.Name)
	c.Log("Total subscribers: %d", ch.SubscriberCount)
	return addr, nil
}
