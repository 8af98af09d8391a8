package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
	"github.com/roach88/ledgermsg/internal/program"
)

// RejectCode categorizes envelopes the engine refused before execution.
// Rejected envelopes never reach the ledger.
type RejectCode string

const (
	// ErrCodeInvalidSignature: the signature does not verify against the
	// signer and canonical envelope bytes.
	ErrCodeInvalidSignature RejectCode = "InvalidSignature"

	// ErrCodeDuplicateTransaction: an entry with this tx id already exists.
	ErrCodeDuplicateTransaction RejectCode = "DuplicateTransaction"

	// ErrCodeMalformed: the envelope is structurally unusable.
	ErrCodeMalformed RejectCode = "MalformedEnvelope"

	// ErrCodeStopped: the engine is no longer accepting work.
	ErrCodeStopped RejectCode = "EngineStopped"
)

// RejectError is returned by Execute when an envelope is refused.
type RejectError struct {
	Code    RejectCode
	TxID    string
	Message string
}

// Error implements the error interface.
func (e *RejectError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("%s: %s (tx=%s)", e.Code, e.Message, e.TxID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRejected reports whether err is a RejectError with the given code.
func IsRejected(err error, code RejectCode) bool {
	var re *RejectError
	return errors.As(err, &re) && re.Code == code
}

// classify maps an instruction failure to the status recorded on its
// entry. ok is false for failures that are not instruction outcomes
// (storage errors), which must abort without an entry.
func classify(err error) (status string, ok bool) {
	if code, found := program.CodeOf(err); found {
		return code.String(), true
	}
	if code, found := ledger.CodeOf(err); found {
		return string(code), true
	}
	return "", false
}

// Failure reconstructs the error behind a failed entry's status, so
// callers reading the log can test it with program.IsCode or
// ledger.IsCode. Returns nil for successful entries.
func Failure(e ir.Entry) error {
	if e.OK() {
		return nil
	}
	for _, code := range []program.ErrorCode{
		program.UnauthorizedSender,
		program.InvalidMessageIndex,
		program.ChannelNameTooLong,
		program.ThreadClosed,
		program.ConstraintSeeds,
	} {
		if code.String() == e.Status {
			return &program.Error{Code: code, Detail: e.Message}
		}
	}
	return &ledger.Error{Code: ledger.Code(e.Status), Message: e.Message}
}
