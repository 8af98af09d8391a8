package ir

import "encoding/hex"

// Account is one keyed storage slot on the ledger. Wallets are owned by
// SystemProgramID and carry no data; records are owned by the messaging
// program and hold their storage deposit in Lamports.
type Account struct {
	Address  Pubkey `json:"address"`
	Owner    Pubkey `json:"owner"`
	Lamports uint64 `json:"lamports"`
	Data     []byte `json:"data"`
}

// Clone returns a deep copy.
func (a Account) Clone() Account {
	c := a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return c
}

// AccountWrite is one effect of an applied entry: an account's full
// post-state, or its deletion.
type AccountWrite struct {
	Account
	Deleted bool `json:"deleted"`
}

func (w AccountWrite) object() Object {
	return Object{
		"address":  Str(w.Address.String()),
		"owner":    Str(w.Owner.String()),
		"lamports": Int(int64(w.Lamports)),
		"data":     Str(hex.EncodeToString(w.Data)),
		"deleted":  Bool(w.Deleted),
	}
}
