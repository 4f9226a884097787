// Package cloneerr classifies failures so callers can decide between aborting
// the process and turning the failure into a step or run outcome.
package cloneerr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an Error.
type Kind int

const (
	// Configuration errors are fatal and stop the run before any connection is made.
	Configuration Kind = iota + 1
	// Connection covers driver loading, network and authentication failures.
	Connection
	// DestructiveStep is a provisioning statement that the server rejected.
	DestructiveStep
	// MigrationEngine is a diff or apply failure inside the schema migration engine.
	MigrationEngine
	// Transform is a malformed or unexpected token sequence in a changelog document.
	Transform
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Connection:
		return "connection"
	case DestructiveStep:
		return "destructive step"
	case MigrationEngine:
		return "migration engine"
	case Transform:
		return "transform"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error carries the failure class together with the operation and target
// that failed.
type Error struct {
	Kind   Kind
	Op     string
	Target string
	Err    error
}

// New wraps err. A nil err still produces an error so callers can report
// conditions that have no underlying cause.
func New(kind Kind, op, target string, err error) *Error {
	return &Error{Kind: kind, Op: op, Target: target, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, op, target, format string, args ...any) *Error {
	return New(kind, op, target, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg += " in " + e.Op
	}
	if e.Target != "" {
		msg += fmt.Sprintf(" (%s)", e.Target)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	for err != nil {
		if !errors.As(err, &ce) {
			return false
		}
		if ce.Kind == kind {
			return true
		}
		err = ce.Err
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
