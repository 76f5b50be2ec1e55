package assoc

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph construction and evaluation.
var (
	// ErrDecodeVersion indicates persisted data carries a version this build cannot read.
	ErrDecodeVersion = errors.New("unsupported data version")
	// ErrGraphInvariant indicates the graph structure violates a precondition of evaluation.
	ErrGraphInvariant = errors.New("graph invariant violated")
	// ErrDanglingSource indicates a watched source object was erased.
	ErrDanglingSource = errors.New("source object erased")
	// ErrDegenerateGeometry indicates source geometry collapsed (e.g. a zero-length path).
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	// ErrReentrantEvaluation indicates evaluate was called while an evaluation was in progress.
	ErrReentrantEvaluation = errors.New("evaluation already in progress")
	// ErrAlreadyAttached indicates a record is already attached to an object.
	ErrAlreadyAttached = errors.New("dependency already attached")
	// ErrNotFound indicates an action, record or parameter does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnknownKind indicates no body is registered for an action kind.
	ErrUnknownKind = errors.New("unknown action kind")
	// ErrDuplicateKind indicates a body kind was registered twice.
	ErrDuplicateKind = errors.New("duplicate action kind")
)

// EvalError records the failure of one action's evaluation.
type EvalError struct {
	Action ActionID
	Kind   string
	Err    error
}

// Error returns a human-readable string including the action context.
func (e *EvalError) Error() string {
	return fmt.Sprintf("action %d (%s): %v", e.Action, e.Kind, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *EvalError) Unwrap() error {
	return e.Err
}

// Invariant builds an error wrapping ErrGraphInvariant.
func Invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrGraphInvariant, fmt.Sprintf(format, args...))
}

// IsLocal reports whether err is a failure that an action recovers from by
// erasing itself (dangling source, degenerate geometry).
func IsLocal(err error) bool {
	return errors.Is(err, ErrDanglingSource) || errors.Is(err, ErrDegenerateGeometry)
}
