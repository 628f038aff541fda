package drive

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind classifies a drive.Error the way callers actually need to branch
// on it: by what went wrong, not by which layer noticed.
type ErrKind int

const (
	ErrReserved ErrKind = iota

	// ErrNoSuchFile: the named child does not exist in the directory.
	ErrNoSuchFile

	// ErrFileExists: an AddChild/Rename target name is already taken.
	ErrFileExists

	// ErrUninitialised: InitialiseVersions was called on a Directory whose
	// version chain is already populated.
	ErrUninitialised

	// ErrParsingError: stored bytes did not decode as a valid directory
	// snapshot.
	ErrParsingError

	// ErrStoreFailed: the backing Store returned an error that survived
	// the backend's own retry policy.
	ErrStoreFailed

	// ErrInvalidParameter: a caller-supplied argument violated a
	// documented precondition (empty name, nil id, and so on).
	ErrInvalidParameter
)

// Error is the single error type returned across the directory subsystem's
// public API. Every returned error can be inspected with errors.As to
// recover its Kind; wrapped causes remain reachable with errors.Unwrap.
type Error struct {
	Kind ErrKind
	// Op names the operation that failed, e.g. "Directory.AddChild".
	Op string
	// Path is the directory-relative path involved, when known.
	Path string
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Path != "":
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &drive.Error{Kind: k}) match by kind alone: a
// target with an empty Op matches any operation, otherwise Op must match too.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind && (other.Op == "" || other.Op == e.Op)
}

func (k ErrKind) String() string {
	switch k {
	case ErrNoSuchFile:
		return "no such file"
	case ErrFileExists:
		return "file exists"
	case ErrUninitialised:
		return "uninitialised"
	case ErrParsingError:
		return "parsing error"
	case ErrStoreFailed:
		return "store failed"
	case ErrInvalidParameter:
		return "invalid parameter"
	default:
		return "unknown error"
	}
}

// NewError constructs a drive.Error, optionally wrapping cause. cause may be
// nil.
func NewError(kind ErrKind, op string, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: cause}
}

// WrapStoreErr wraps a backend-returned error as ErrStoreFailed, attaching a
// stack trace via pkg/errors so backend failures remain diagnosable once
// they cross the Store boundary.
func WrapStoreErr(op string, cause error) *Error {
	return &Error{Kind: ErrStoreFailed, Op: op, Err: errors.WithStack(cause)}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and false
// otherwise.
func KindOf(err error) (ErrKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return ErrReserved, false
}
