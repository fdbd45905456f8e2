// Package compositorerr carries the error taxonomy every component in
// the compositor reports through: a small closed set of kinds wrapped
// with pkg/errors stack context at package boundaries.
package compositorerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// InputFormat marks a malformed or unsupported archive/sample.
	InputFormat Kind = iota
	// EngineFailure marks a decode/encode engine returning an error.
	EngineFailure
	// ContractViolation marks a processor breaking its own contract
	// (e.g. wrong sample kind on an edge). Always fatal.
	ContractViolation
	// IoFailure marks a failed read/write against the filesystem.
	IoFailure
	// ResourceExhausted marks hitting a resource limit (e.g. a full
	// channel that refuses to grow, a worker pool at capacity).
	ResourceExhausted
)

func (k Kind) String() string {
	switch k {
	case InputFormat:
		return "input_format"
	case EngineFailure:
		return "engine_failure"
	case ContractViolation:
		return "contract_violation"
	case IoFailure:
		return "io_failure"
	case ResourceExhausted:
		return "resource_exhausted"
	default:
		return "unknown"
	}
}

// Fatal reports whether an error of this kind always terminates the run.
func (k Kind) Fatal() bool {
	return k == ContractViolation
}

// Error is a Kind-tagged error. It wraps an underlying cause via
// pkg/errors so callers keep a stack trace while still being able to
// pull the Kind back out with errors.As.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: [%s] %v", e.Op, e.Kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// Wrap builds a Kind-tagged Error, attaching a pkg/errors stack trace to
// the underlying cause.
func Wrap(kind Kind, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: errors.WithStack(cause)}
}

// Newf builds a Kind-tagged Error from a format string.
func Newf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, err: errors.Errorf(format, args...)}
}

// As extracts the Kind-tagged Error from err, if any is in its chain.
func As(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
