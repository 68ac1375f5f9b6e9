// Package cdberrors defines the error kinds shared across the converter.
//
// Recoverable kinds (ParseFailure, IOError) are meant to be logged and
// skipped by the directory walker; the rest escape to the CLI and abort
// the run.
package cdberrors

import "errors"

// Kind classifies an error for the driver's recover-or-abort decision.
type Kind int

const (
	// ConfigError covers bad CLI arguments, unknown datasets, unparseable CS.
	ConfigError Kind = iota
	// OutOfRange covers a tile constructor violating an invariant.
	OutOfRange
	// ParseFailure covers a filename or payload that fails to parse.
	ParseFailure
	// PreconditionViolation covers calling an operation on a tile that
	// does not satisfy its precondition (e.g. NegativeChild on L >= 0).
	PreconditionViolation
	// IOError covers a failure reading or writing a file during payload
	// emission.
	IOError
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "ConfigError"
	case OutOfRange:
		return "OutOfRange"
	case ParseFailure:
		return "ParseFailure"
	case PreconditionViolation:
		return "PreconditionViolation"
	case IOError:
		return "IOError"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can dispatch
// with errors.As without string matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Kind-tagged error with no wrapped cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds a Kind-tagged error around an existing cause.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Recoverable reports whether the driver should log and continue
// (ParseFailure, IOError) rather than abort the run.
func Recoverable(err error) bool {
	return Is(err, ParseFailure) || Is(err, IOError)
}
