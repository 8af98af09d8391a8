package program

import (
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
)

// reclaim releases a record and transfers its whole storage deposit to
// recipient, which may be any account. Records that point at the closed
// one are left untouched.
func reclaim(c *ledger.Context, addr, recipient ir.Pubkey) error {
	c.Log("Refunding deposit to: %s", recipient)
	return c.CloseAccount(addr, recipient)
}
