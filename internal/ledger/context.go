package ledger

import (
	"fmt"

	"github.com/roach88/ledgermsg/internal/ir"
)

// Context is everything one instruction sees: the authenticated signer,
// the executing program, the time, the deposit schedule and the accounts
// (through an Overlay). It also collects program log lines.
type Context struct {
	Signer    ir.Pubkey
	ProgramID ir.Pubkey
	Now       int64
	Rent      Rent

	accounts *Overlay
	logs     []string
}

// NewContext binds an instruction execution to an overlay.
func NewContext(accounts *Overlay, programID, signer ir.Pubkey, now int64, rent Rent) *Context {
	return &Context{
		Signer:    signer,
		ProgramID: programID,
		Now:       now,
		Rent:      rent,
		accounts:  accounts,
	}
}

// Accounts exposes the underlying overlay.
func (c *Context) Accounts() *Overlay {
	return c.accounts
}

// Log appends a program log line.
func (c *Context) Log(format string, args ...any) {
	c.logs = append(c.logs, fmt.Sprintf(format, args...))
}

// Logs returns the program log lines in emission order.
func (c *Context) Logs() []string {
	return c.logs
}

// CreateAccount allocates a zeroed, program-owned account of space bytes
// at addr and makes it rent-exempt, debiting payer for the shortfall.
//
// A system account holding only lamports may already sit at addr (a close
// can refund anywhere). It is taken over: its lamports stay with the new
// record and count toward the deposit. Anything with data or another
// owner is AccountAlreadyInUse.
func (c *Context) CreateAccount(payer, addr ir.Pubkey, space int) error {
	existing, exists, err := c.accounts.Get(addr)
	if err != nil {
		return err
	}
	if exists && (existing.Owner != ir.SystemProgramID || len(existing.Data) != 0) {
		return Errorf(AccountAlreadyInUse, addr, "account already in use")
	}

	deposit := c.Rent.MinimumBalance(space)
	var shortfall uint64
	if existing.Lamports < deposit {
		shortfall = deposit - existing.Lamports
	}

	if shortfall > 0 {
		from, ok, err := c.accounts.Get(payer)
		if err != nil {
			return err
		}
		if !ok || from.Owner != ir.SystemProgramID || len(from.Data) != 0 {
			return Errorf(InsufficientFunds, payer, "payer is not a funded system account")
		}
		if from.Lamports < shortfall {
			return Errorf(InsufficientFunds, payer, "need %d lamports, have %d", shortfall, from.Lamports)
		}
		from.Lamports -= shortfall
		c.accounts.Put(from)
	}

	c.accounts.Put(ir.Account{
		Address:  addr,
		Owner:    c.ProgramID,
		Lamports: existing.Lamports + shortfall,
		Data:     make([]byte, space),
	})
	return nil
}

// Load returns the data of a program-owned account holding the named
// record type.
func (c *Context) Load(addr ir.Pubkey, record string) ([]byte, error) {
	acct, ok, err := c.accounts.Get(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Errorf(AccountNotInitialized, addr, "account not initialized")
	}
	if acct.Owner != c.ProgramID {
		return nil, Errorf(AccountOwnedByWrongProgram, addr, "owned by %s", acct.Owner)
	}
	if len(acct.Data) < ir.DiscriminatorSize {
		return nil, Errorf(AccountDidNotDeserialize, addr, "data too short for a discriminator")
	}
	if got := ir.RecordType(acct.Data); got != record {
		return nil, Errorf(AccountDiscriminatorMismatch, addr, "expected %s", record)
	}
	return acct.Data, nil
}

// Store replaces the data of a program-owned account. The account keeps
// its allocated size.
func (c *Context) Store(addr ir.Pubkey, data []byte) error {
	acct, ok, err := c.accounts.Get(addr)
	if err != nil {
		return err
	}
	if !ok {
		return Errorf(AccountNotInitialized, addr, "account not initialized")
	}
	if acct.Owner != c.ProgramID {
		return Errorf(AccountOwnedByWrongProgram, addr, "owned by %s", acct.Owner)
	}
	if len(data) != len(acct.Data) {
		return Errorf(AccountDidNotDeserialize, addr, "data is %d bytes, account holds %d", len(data), len(acct.Data))
	}
	acct.Data = data
	c.accounts.Put(acct)
	return nil
}

// CloseAccount deletes a program-owned account and moves its whole
// balance to recipient. Closing an account into itself would destroy the
// deposit and is rejected.
func (c *Context) CloseAccount(addr, recipient ir.Pubkey) error {
	if addr == recipient {
		return Errorf(InvalidInstructionData, addr, "cannot close an account into itself")
	}
	acct, ok, err := c.accounts.Get(addr)
	if err != nil {
		return err
	}
	if !ok {
		return Errorf(AccountNotInitialized, addr, "account not initialized")
	}
	if acct.Owner != c.ProgramID {
		return Errorf(AccountOwnedByWrongProgram, addr, "owned by %s", acct.Owner)
	}
	if err := c.accounts.Credit(recipient, acct.Lamports); err != nil {
		return err
	}
	c.accounts.Delete(addr)
	return nil
}
