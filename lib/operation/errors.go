package operation

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess            RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                     // 1: Operation failed due to an internal error.
	RetCInvalidOperation                  // 2: Malformed request.
	RetCWrongPartition                    // 3: The local node does not own the partition of the key.
	RetCKeyLocked                         // 4: The key is locked by another owner.
	RetCPersistence                       // 5: Loader or store failed; the in-memory change is kept.
	RetCBackupTimeout                     // 6: Sync backups did not acknowledge in time.
	RetCUnknownTransaction                // 7: The transaction has no items in the partition.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "RetCSuccess"
	case RetCInternalError:
		return "RetCInternalError"
	case RetCInvalidOperation:
		return "RetCInvalidOperation"
	case RetCWrongPartition:
		return "RetCWrongPartition"
	case RetCKeyLocked:
		return "RetCKeyLocked"
	case RetCPersistence:
		return "RetCPersistence"
	case RetCBackupTimeout:
		return "RetCBackupTimeout"
	case RetCUnknownTransaction:
		return "RetCUnknownTransaction"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code, a message and an optional cause.
type Error struct {
	Code  RetCode // The return code
	Msg   string  // The error message
	Cause error   // The underlying error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("MapError (code %s): %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("MapError (code %s): %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code caused by cause.
func WrapError(code RetCode, msg string, cause error) *Error {
	return &Error{
		Code:  code,
		Msg:   msg,
		Cause: cause,
	}
}

// CodeOf returns the return code of err: RetCSuccess for nil, the code of the
// first *Error in the chain, RetCInternalError otherwise.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// IsCode reports whether err carries code.
func IsCode(err error, code RetCode) bool {
	return CodeOf(err) == code
}

// ErrResponseAlreadySent is returned by a Responder that already delivered
// its response.
var ErrResponseAlreadySent = errors.New("response already sent")
