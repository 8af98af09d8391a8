package program

import (
	"errors"
	"fmt"
)

// ErrorCode is a program-defined failure. Custom codes start at 6000;
// ConstraintSeeds uses the framework's constraint range.
type ErrorCode uint32

const (
	// ConstraintSeeds: a client-supplied record address does not match
	// the address derived from the operation's inputs.
	ConstraintSeeds ErrorCode = 2006

	UnauthorizedSender  ErrorCode = 6000
	InvalidMessageIndex ErrorCode = 6001
	ChannelNameTooLong  ErrorCode = 6002
	// ThreadClosed is part of the error table but no operation raises it:
	// closing a thread deletes it, so there is never a closed thread to
	// reject messages for.
	ThreadClosed ErrorCode = 6003
)

var codeNames = map[ErrorCode]string{
	ConstraintSeeds:     "ConstraintSeeds",
	UnauthorizedSender:  "UnauthorizedSender",
	InvalidMessageIndex: "InvalidMessageIndex",
	ChannelNameTooLong:  "ChannelNameTooLong",
	ThreadClosed:        "ThreadClosed",
}

var codeMessages = map[ErrorCode]string{
	ConstraintSeeds:     "A seeds constraint was violated",
	UnauthorizedSender:  "You are not authorized to act on this record",
	InvalidMessageIndex: "Message index must be sequential",
	ChannelNameTooLong:  "Channel name cannot exceed 32 bytes",
	ThreadClosed:        "Thread is closed and cannot receive new messages",
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(c))
}

// Message returns the human-readable description of the code.
func (c ErrorCode) Message() string {
	return codeMessages[c]
}

// Error is a program failure.
type Error struct {
	Code   ErrorCode
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, uint32(e.Code), e.Code.Message())
	}
	return fmt.Sprintf("%s (%d): %s: %s", e.Code, uint32(e.Code), e.Code.Message(), e.Detail)
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the program error code from err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// IsCode reports whether err carries the given program error code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
