package ledger

import (
	"errors"
	"fmt"

	"github.com/roach88/ledgermsg/internal/ir"
)

// Code is a symbolic ledger error kind. Failed entries record it as
// their status.
type Code string

const (
	AccountAlreadyInUse          Code = "AccountAlreadyInUse"
	AccountNotInitialized        Code = "AccountNotInitialized"
	AccountOwnedByWrongProgram   Code = "AccountOwnedByWrongProgram"
	AccountDiscriminatorMismatch Code = "AccountDiscriminatorMismatch"
	AccountDidNotDeserialize     Code = "AccountDidNotDeserialize"
	InsufficientFunds            Code = "InsufficientFunds"
	ArithmeticOverflow           Code = "ArithmeticOverflow"
	InvalidInstructionData       Code = "InvalidInstructionData"
)

// Error is a ledger runtime failure tied to one account.
type Error struct {
	Code    Code
	Address ir.Pubkey
	Message string
}

func (e *Error) Error() string {
	if e.Address.IsZero() {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (account %s)", e.Code, e.Message, e.Address)
}

// Errorf builds an *Error with a formatted message.
func Errorf(code Code, addr ir.Pubkey, format string, args ...any) *Error {
	return &Error{Code: code, Address: addr, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ledger error code from err, if any.
func CodeOf(err error) (Code, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given ledger error code.
func IsCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// CheckedAdd adds two lamport amounts, failing on overflow.
func CheckedAdd(addr ir.Pubkey, a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, Errorf(ArithmeticOverflow, addr, "%d + %d overflows", a, b)
	}
	return sum, nil
}
