package program

import (
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
)

// authorize fails with UnauthorizedSender unless the authenticated signer
// is one of the principals stored on the record. The signer's signature
// was verified by the engine before the program ran.
func authorize(signer ir.Pubkey, allowed ...ir.Pubkey) error {
	for _, p := range allowed {
		if signer == p {
			return nil
		}
	}
	return newError(UnauthorizedSender, "signer %s", signer)
}

// requireNextIndex enforces strictly sequential message indices.
func requireNextIndex(got, count uint32) error {
	if got != count {
		return newError(InvalidMessageIndex, "got %d, expected %d", got, count)
	}
	return nil
}

// requireTarget checks a client-supplied record address against the
// derived one. A zero target means the client did not supply one.
func requireTarget(target, derived ir.Pubkey) error {
	if !target.IsZero() && target != derived {
		return newError(ConstraintSeeds, "target %s, derived %s", target, derived)
	}
	return nil
}

// increment adds one to a record counter.
func increment(addr ir.Pubkey, n uint32) (uint32, error) {
	if n == ^uint32(0) {
		return 0, ledger.Errorf(ledger.ArithmeticOverflow, addr, "counter overflow")
	}
	return n + 1, nil
}
