package ledger

import (
	"context"
	"sort"

	"github.com/roach88/ledgermsg/internal/ir"
)

// Reader is read access to committed account state.
type Reader interface {
	GetAccount(ctx context.Context, addr ir.Pubkey) (ir.Account, bool, error)
}

// Accounts is an in-memory Reader, used for tests and scratch execution.
type Accounts map[ir.Pubkey]ir.Account

// GetAccount returns a copy of the account at addr.
func (m Accounts) GetAccount(_ context.Context, addr ir.Pubkey) (ir.Account, bool, error) {
	a, ok := m[addr]
	if !ok {
		return ir.Account{}, false, nil
	}
	return a.Clone(), true, nil
}

// Apply writes effects into the map.
func (m Accounts) Apply(writes []ir.AccountWrite) {
	for _, w := range writes {
		if w.Deleted {
			delete(m, w.Address)
			continue
		}
		m[w.Address] = w.Account.Clone()
	}
}

// Overlay is a copy-on-write view over a Reader. Reads fall through to the
// base until an address is written; writes stay in the overlay until the
// caller collects them with Writes.
//
// Overlay is not safe for concurrent use. The engine creates one per entry.
type Overlay struct {
	ctx    context.Context
	base   Reader
	writes map[ir.Pubkey]ir.AccountWrite
}

// NewOverlay creates an empty overlay over base.
func NewOverlay(ctx context.Context, base Reader) *Overlay {
	return &Overlay{ctx: ctx, base: base, writes: make(map[ir.Pubkey]ir.AccountWrite)}
}

// Get returns the current view of addr.
func (o *Overlay) Get(addr ir.Pubkey) (ir.Account, bool, error) {
	if w, ok := o.writes[addr]; ok {
		if w.Deleted {
			return ir.Account{}, false, nil
		}
		return w.Account.Clone(), true, nil
	}
	return o.base.GetAccount(o.ctx, addr)
}

// Put stages the full post-state of an account.
func (o *Overlay) Put(a ir.Account) {
	o.writes[a.Address] = ir.AccountWrite{Account: a.Clone()}
}

// Delete stages removal of addr.
func (o *Overlay) Delete(addr ir.Pubkey) {
	o.writes[addr] = ir.AccountWrite{Account: ir.Account{Address: addr}, Deleted: true}
}

// Writes returns the staged effects sorted by address.
func (o *Overlay) Writes() []ir.AccountWrite {
	out := make([]ir.AccountWrite, 0, len(o.writes))
	for _, w := range o.writes {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Compare(out[j].Address) < 0
	})
	return out
}

// Credit adds lamports to addr, creating a system account if none exists.
func (o *Overlay) Credit(addr ir.Pubkey, lamports uint64) error {
	acct, ok, err := o.Get(addr)
	if err != nil {
		return err
	}
	if !ok {
		acct = ir.Account{Address: addr, Owner: ir.SystemProgramID}
	}
	acct.Lamports, err = CheckedAdd(addr, acct.Lamports, lamports)
	if err != nil {
		return err
	}
	o.Put(acct)
	return nil
}
