package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/packkit/packkit/internal/progress"
)

// Kind classifies an operation failure.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindTraversal      Kind = "traversal"
	KindNotFound       Kind = "not_found"
	KindFormatMismatch Kind = "format_mismatch"
	KindExistingOutput Kind = "existing_output"
	KindIO             Kind = "io"
	KindCancelled      Kind = "cancelled"
)

// Error is the typed failure returned by handlers, the pathguard, and the
// dispatcher. Message is safe to surface to callers; the wrapped cause is
// attached to response details as chain text only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewIOError wraps a stream or filesystem failure.
func NewIOError(message string, err error) *Error {
	return &Error{Kind: KindIO, Message: message, Err: err}
}

// UnknownFormatError is returned when a format name is not registered.
type UnknownFormatError struct {
	Format    string
	Available []string
}

func (e *UnknownFormatError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown format %q: no formats registered", e.Format)
	}
	return fmt.Sprintf("unknown format %q (available: %v)", e.Format, e.Available)
}

// KindOf classifies any error into the failure taxonomy. Unrecognized errors
// count as I/O failures.
func KindOf(err error) Kind {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	var unknownFormat *UnknownFormatError
	if errors.As(err, &unknownFormat) {
		return KindFormatMismatch
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, progress.ErrCancelled) {
		return KindCancelled
	}
	return KindIO
}
