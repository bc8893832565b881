package importer

import (
	"errors"
	"fmt"
)

// Kind classifies import errors by how the walker reacts to them.
type Kind string

const (
	KindTransport     Kind = "transport"
	KindAuthorization Kind = "authorization"
	KindDataShape     Kind = "data_shape"
	KindPersistence   Kind = "persistence"
	KindNotFound      Kind = "not_found"
)

// ErrUntrackedFailures marks a walk whose failed records could not all be recorded for retry.
var ErrUntrackedFailures = errors.New("failed records left untracked")

// ErrNothingToRun is returned by a run with no groups or no walkers.
var ErrNothingToRun = errors.New("no groups or import types to run")

var errNoFailureStore = errors.New("no failure store configured")

// Error is the error type returned by sources, sinks and enrichers.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Transport(op string, err error) *Error     { return NewError(KindTransport, op, err) }
func Authorization(op string, err error) *Error { return NewError(KindAuthorization, op, err) }
func DataShape(op string, err error) *Error     { return NewError(KindDataShape, op, err) }
func Persistence(op string, err error) *Error   { return NewError(KindPersistence, op, err) }
func NotFound(op string, err error) *Error      { return NewError(KindNotFound, op, err) }

// KindOf returns the kind of the first *Error in err's chain.
// Errors that carry no kind are treated as transport failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindTransport
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// classify wraps err as an *Error of the given kind unless it already is one.
func classify(kind Kind, op string, err error) error {
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	return NewError(kind, op, err)
}
