// Package errkind defines the error taxonomy shared by ingestion, the sync
// gateway and the interaction layer.
//
// Callers match on kinds with errors.Is; the concrete *Error carries the
// operation name for logs.
package errkind

import (
	"errors"
	"fmt"
)

// Sentinel kinds.
var (
	// ErrMalformedInput marks an input file that lacks required structure.
	ErrMalformedInput = errors.New("malformed input")
	// ErrMissingColumns is a malformed input whose header lacks required columns.
	ErrMissingColumns = fmt.Errorf("%w: missing required columns", ErrMalformedInput)
	// ErrRowInvalid marks a single rejected row. It never escapes ingestion.
	ErrRowInvalid = errors.New("invalid row")
	// ErrQuotaExceeded marks a transient remote rate limit.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrWriteFailure marks any other failed remote write.
	ErrWriteFailure = errors.New("write failed")
	// ErrPermissionDenied marks a mutation attempted without passing the access gate.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound marks a missing document.
	ErrNotFound = errors.New("not found")
	// ErrInvalidBrand marks a brand outside the allowed set.
	ErrInvalidBrand = errors.New("invalid brand")
)

// Error ties a kind to the operation that produced it and an optional cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Op != "":
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Kind.Error() + ": " + e.Err.Error()
	case e.Op != "":
		return e.Op + ": " + e.Kind.Error()
	default:
		return e.Kind.Error()
	}
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// New returns an error of kind for op without a cause.
func New(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap attaches kind and op to err. A nil err yields nil.
func Wrap(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Newf returns an error of kind with a formatted cause.
func Newf(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}
