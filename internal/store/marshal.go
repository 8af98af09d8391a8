package store

import (
	"fmt"
	"sort"

	"github.com/roach88/ledgermsg/internal/ir"
)

// marshalArgs converts instruction args to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so the stored text hashes the same way the
// engine hashed it.
func marshalArgs(args ir.Object) (string, error) {
	if args == nil {
		args = ir.Object{}
	}
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT back into an Object.
// Integers come back as ir.Int without float64 precision loss.
func unmarshalArgs(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	var obj ir.Object
	if err := obj.UnmarshalJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return obj, nil
}

// lamports are stored as the int64 bit pattern of the uint64 value;
// the SQLite driver rejects uint64 values with the high bit set.
func toDBLamports(n uint64) int64   { return int64(n) }
func fromDBLamports(n int64) uint64 { return uint64(n) }

func pubkeyFromBlob(b []byte, column string) (ir.Pubkey, error) {
	var p ir.Pubkey
	if len(b) != len(p) {
		return p, fmt.Errorf("%s is %d bytes, want %d", column, len(b), len(p))
	}
	copy(p[:], b)
	return p, nil
}

func sortAccounts(accounts []ir.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Address.Compare(accounts[j].Address) < 0
	})
}
