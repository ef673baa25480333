package sled

import (
	"errors"
	"fmt"
)

// Error kinds.  Every error returned by a Store method wraps exactly
// one of these; test for them with errors.Is.
var (
	// ErrConfig means the store name could not be resolved.
	ErrConfig = errors.New("sled: configuration error")
	// ErrOpen means the store location could not be opened, most
	// often because another session holds its lock.
	ErrOpen = errors.New("sled: cannot open store")
	// ErrDecode means a key or value is not valid UTF-8 text, a
	// stored value could not be decoded by the store's codec, or a
	// JSON value could not be encoded or decoded.
	ErrDecode = errors.New("sled: not valid text")
	// ErrFlush means the durability commit or the release of the
	// handle failed after the operation itself succeeded.
	ErrFlush = errors.New("sled: flush failed")
	// ErrEngine means the engine failed the operation itself.
	ErrEngine = errors.New("sled: engine operation failed")
	// ErrEmptyKey is returned by writes with an empty key.
	ErrEmptyKey = errors.New("sled: empty key")
	// ErrClosed is returned by every operation on a closed,
	// serialized Store.
	ErrClosed = errors.New("sled: store is closed")
)

// Error describes a failed operation.
type Error struct {
	// Op is the public operation that failed, e.g. "set".
	Op string
	// Name is the store name the operation was issued against.
	Name string
	// Kind is one of the Err* sentinels above.
	Kind error
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Name, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and
// errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// fail wraps cause in an *Error of the given kind.  An error that is
// already an *Error is returned unchanged so that the innermost
// classification wins.
func (s *Store) fail(op string, kind, cause error) error {
	var serr *Error
	if errors.As(cause, &serr) {
		return cause
	}
	return &Error{Op: op, Name: s.cfg.Name, Kind: kind, Err: cause}
}
