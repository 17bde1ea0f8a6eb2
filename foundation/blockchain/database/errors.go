package database

import (
	"errors"
	"fmt"
)

// The set of error kinds reported by chain, mempool and sync operations.
// The kind is the stable string surfaced through the HTTP layer.
const (
	KindInvalidAddress       = "InvalidAddress"
	KindInvalidTransaction   = "InvalidTransaction"
	KindInsufficientBalance  = "InsufficientBalance"
	KindDuplicateTransaction = "DuplicateTransaction"
	KindInvalidBlock         = "InvalidBlock"
	KindChainInvalid         = "ChainInvalid"
	KindPeerUnreachable      = "PeerUnreachable"
	KindSyncSkipped          = "SyncSkipped"
	KindStoreUnavailable     = "StoreUnavailable"
	KindUnsupported          = "Unsupported"
)

// Error carries the kind classification for a failure so callers can react
// to the class of problem without parsing message text.
type Error struct {
	Kind string
	Err  error
}

// NewError constructs a classified error from a format string.
func NewError(kind string, format string, args ...any) error {
	return &Error{
		Kind: kind,
		Err:  fmt.Errorf(format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind extracts the kind from the specified error. An empty string is
// returned when the error carries no classification.
func ErrorKind(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// IsKind reports whether the specified error carries the specified kind.
func IsKind(err error, kind string) bool {
	return ErrorKind(err) == kind
}
