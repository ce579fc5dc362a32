// Package nnerr defines the closed error taxonomy shared by every core
// package. All fallible core operations return an *Error carrying one
// of these codes, so callers can branch with errors.Is against the
// Err* sentinels (or read the code with Of) instead of parsing strings.
package nnerr

import "errors"

// Code is the stable, integer-valued error code carried by every Error.
// Values are never renumbered; new codes are only ever appended.
type Code uint8

const (
	// System errors.
	Internal Code = iota
	InvalidState
	EndOfMethod

	// Logical errors.
	NotSupported
	NotImplemented
	InvalidArgument
	InvalidType
	OperatorMissing

	// Resource errors.
	NotFound
	MemoryAllocationFailed
	AccessFailed
	InvalidProgram
	InvalidExternalData
	OutOfResources

	// Delegate errors.
	DelegateInvalidCompatibility
	DelegateMemoryAllocationFailed
	DelegateInvalidHandle
)

var names = [...]string{
	Internal:                        "internal",
	InvalidState:                    "invalid state",
	EndOfMethod:                     "end of method",
	NotSupported:                    "not supported",
	NotImplemented:                  "not implemented",
	InvalidArgument:                 "invalid argument",
	InvalidType:                     "invalid type",
	OperatorMissing:                 "operator missing",
	NotFound:                        "not found",
	MemoryAllocationFailed:          "memory allocation failed",
	AccessFailed:                    "access failed",
	InvalidProgram:                  "invalid program",
	InvalidExternalData:             "invalid external data",
	OutOfResources:                  "out of resources",
	DelegateInvalidCompatibility:    "delegate invalid compatibility",
	DelegateMemoryAllocationFailed:  "delegate memory allocation failed",
	DelegateInvalidHandle:           "delegate invalid handle",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if int(c) < len(names) && names[c] != "" {
		return names[c]
	}
	return "unknown error code"
}

// Error wraps a Code with optional free-form context. It implements
// error and an Is method that compares Codes, so
// errors.Is(err, nnerr.ErrNotFound) works whether or not the error
// carries extra context.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Msg
}

// Is makes errors.Is(err, ErrSomeCode) work: target matches when it is
// an *Error with the same Code, whatever either message says.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// New builds an *Error for code with a formatted message.
func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// sentinel returns a bare, message-less *Error for use with errors.Is.
func sentinel(code Code) error { return &Error{Code: code} }

// Sentinels for errors.Is comparisons, one per Code.
var (
	ErrInternal                       = sentinel(Internal)
	ErrInvalidState                   = sentinel(InvalidState)
	ErrEndOfMethod                    = sentinel(EndOfMethod)
	ErrNotSupported                   = sentinel(NotSupported)
	ErrNotImplemented                 = sentinel(NotImplemented)
	ErrInvalidArgument                = sentinel(InvalidArgument)
	ErrInvalidType                    = sentinel(InvalidType)
	ErrOperatorMissing                = sentinel(OperatorMissing)
	ErrNotFound                       = sentinel(NotFound)
	ErrMemoryAllocationFailed         = sentinel(MemoryAllocationFailed)
	ErrAccessFailed                   = sentinel(AccessFailed)
	ErrInvalidProgram                 = sentinel(InvalidProgram)
	ErrInvalidExternalData            = sentinel(InvalidExternalData)
	ErrOutOfResources                 = sentinel(OutOfResources)
	ErrDelegateInvalidCompatibility   = sentinel(DelegateInvalidCompatibility)
	ErrDelegateMemoryAllocationFailed = sentinel(DelegateMemoryAllocationFailed)
	ErrDelegateInvalidHandle          = sentinel(DelegateInvalidHandle)
)

// Of reports the Code carried by err, if any, and whether err was an
// *Error (or wrapped one) at all.
func Of(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
