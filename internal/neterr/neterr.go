// Package neterr normalizes transport and I/O failures of network tasks into
// a small closed set of kinds.
package neterr

import (
	"context"
	"errors"
	"net"
)

// Kind classifies why a network task failed.
type Kind int

const (
	// Unknown is the fallback when nothing more specific is known.
	Unknown Kind = iota
	// Cancelled means the task was aborted by its owner.
	Cancelled
	// Timeout means the resource timeout elapsed.
	Timeout
	// MissingData means the response succeeded but carried no payload.
	MissingData
	// MissingFile means a download succeeded but produced no file.
	MissingFile
	// SaveFailed means the downloaded file could not be moved into the cache.
	SaveFailed
	// Unspecified is a recognized transport failure with no dedicated kind.
	Unspecified
)

func (k Kind) String() string {
	switch k {
	case Cancelled:
		return "cancelled"
	case Timeout:
		return "timeout"
	case MissingData:
		return "missing_data"
	case MissingFile:
		return "missing_file"
	case SaveFailed:
		return "save_failed"
	case Unspecified:
		return "unspecified"
	default:
		return "unknown"
	}
}

// Error carries a Kind together with the underlying cause, if any.
type Error struct {
	Kind Kind
	Err  error
}

// New wraps err with the given kind.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "network: " + e.Kind.String()
	}
	return "network: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match for any *Error of the same kind, so callers can write
// errors.Is(err, neterr.ErrTimeout).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrCancelled   = &Error{Kind: Cancelled}
	ErrTimeout     = &Error{Kind: Timeout}
	ErrMissingData = &Error{Kind: MissingData}
	ErrMissingFile = &Error{Kind: MissingFile}
	ErrSaveFailed  = &Error{Kind: SaveFailed}
	ErrUnspecified = &Error{Kind: Unspecified}
	ErrUnknown     = &Error{Kind: Unknown}
)

// KindOf returns the kind carried by err. A nil error has no kind and reports
// Unknown, as does any error that was never classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Classify maps a transport-level failure onto a Kind. Errors already
// carrying a kind keep it.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return Cancelled
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout
	}
	return Unspecified
}

// Wrap classifies err and wraps it. It returns nil for a nil error.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return New(Classify(err), err)
}
