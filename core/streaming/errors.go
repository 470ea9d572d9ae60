package streaming

import (
	"errors"
	"fmt"
)

// Terminal per-request failures of the media delivery path. None are
// retried; handlers map them onto HTTP statuses. ErrNotFound and
// ErrUnsafePath must be indistinguishable to clients so a traversal
// attempt never learns whether it found a vector.
var (
	ErrMalformedToken = errors.New("malformed token")
	ErrBadSignature   = errors.New("bad token signature")
	ErrExpired        = errors.New("token expired")
	ErrTrackMismatch  = errors.New("token does not match track")
	ErrNotFound       = errors.New("track not found")
	ErrUnsafePath     = errors.New("unsafe storage key")
	ErrInvalidRange   = errors.New("invalid range")
)

// StorageIOError is an unexpected filesystem failure after the existence
// check passed. The wrapped error carries raw OS detail and must only be
// logged server-side, never written to a client.
type StorageIOError struct {
	Op  string
	Err error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageIOError) Unwrap() error {
	return e.Err
}
