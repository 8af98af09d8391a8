package program

import (
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
)

func loadThread(c *ledger.Context, addr ir.Pubkey) (ir.Thread, error) {
	data, err := c.Load(addr, ir.RecordThread)
	if err != nil {
		return ir.Thread{}, err
	}
	t, err := ir.DecodeThread(data)
	if err != nil {
		return ir.Thread{}, ledger.Errorf(ledger.AccountDidNotDeserialize, addr, "%v", err)
	}
	return t, nil
}

func loadChannel(c *ledger.Context, addr ir.Pubkey) (ir.Channel, error) {
	data, err := c.Load(addr, ir.RecordChannel)
	if err != nil {
		return ir.Channel{}, err
	}
	ch, err := ir.DecodeChannel(data)
	if err != nil {
		return ir.Channel{}, ledger.Errorf(ledger.AccountDidNotDeserialize, addr, "%v", err)
	}
	return ch, nil
}

func storeChannel(c *ledger.Context, addr ir.Pubkey, ch ir.Channel) error {
	data, err := ir.EncodeChannel(ch)
	if err != nil {
		return ledger.Errorf(ledger.AccountDidNotDeserialize, addr, "%v", err)
	}
	return c.Store(addr, data)
}
