package apperrors

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that an entity failed its invariant checks.
var ErrValidation = errors.New("invariant violation")

// ErrDuplicate indicates that an attempt was made to create a resource under an identifier already in use.
var ErrDuplicate = errors.New("duplicate identifier")

// ErrImmutable indicates an attempt to change or remove a reconciled, signed or read-only record.
var ErrImmutable = errors.New("record is immutable")

// ErrForbidden indicates the acting user lacks the permission for an action.
var ErrForbidden = errors.New("action not permitted")

// Resolution errors. These signal a caller or configuration mistake and are never retried.
var (
	ErrUnknownScheme     = errors.New("unsupported store scheme")
	ErrStoreExists       = errors.New("a data store already exists")
	ErrStoreDoesNotExist = errors.New("a data store was not found")
)

// ErrSerialization indicates a malformed settings, permissions or entity document.
var ErrSerialization = errors.New("malformed stored document")

// ErrTimeout indicates a physical I/O operation exceeded its configured bound.
var ErrTimeout = errors.New("store operation timed out")

// ErrStoreClosed is returned by operations on a disconnected store handle.
var ErrStoreClosed = errors.New("store handle is disconnected")

// IOError wraps a filesystem or connection failure with the path or address it concerned.
type IOError struct {
	Op     string
	Target string
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NewIOError builds an IOError. It returns nil when err is nil so call sites can wrap unconditionally.
func NewIOError(op, target string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Target: target, Err: err}
}

// IsRetryable reports whether err is an I/O level failure a caller may retry.
// Domain and validation failures are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		return false
	}
	// a missing file surfaced through an IOError is a state problem, not a transient one
	return !errors.Is(ioErr.Err, os.ErrNotExist)
}
