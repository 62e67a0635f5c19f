// Package errs defines the closed set of error kinds PuzzleFS components
// report, and a small Error type that lets callers recover the kind with
// errors.As while still wrapping the underlying cause.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a PuzzleFS failure into one of a fixed set of categories.
type Kind int

const (
	// Unknown is the zero value and should never be constructed directly.
	Unknown Kind = iota
	// NotFound means an inode, tag, manifest, blob or verity entry was absent.
	NotFound
	// NotADirectory means a path component that should be a directory was not.
	NotADirectory
	// IsADirectory means an operation expected a non-directory inode.
	IsADirectory
	// InvalidArgument means the caller passed a malformed argument (a
	// non-absolute lookup path, a malformed digest string, ...).
	InvalidArgument
	// InvalidSchema means an on-disk record or layout version was unrecognized.
	InvalidSchema
	// VerityMismatch means a measured fs-verity digest differed from expected.
	VerityMismatch
	// LocalRefUnresolved means a BlobRef with no digest escaped its enclosing
	// blob. This always indicates a bug in the producer.
	LocalRefUnresolved
	// IO wraps an underlying filesystem or I/O error.
	IO
	// ReadOnly means a mutating request was made against a mounted image.
	ReadOnly
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case NotADirectory:
		return "not a directory"
	case IsADirectory:
		return "is a directory"
	case InvalidArgument:
		return "invalid argument"
	case InvalidSchema:
		return "invalid schema"
	case VerityMismatch:
		return "fsverity mismatch"
	case LocalRefUnresolved:
		return "unresolved local blob reference"
	case IO:
		return "i/o error"
	case ReadOnly:
		return "read-only filesystem"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type returned by PuzzleFS packages. Msg adds
// context beyond Kind's generic description; Cause, if non-nil, is the
// underlying error (an *os.PathError, a digest mismatch detail, etc).
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
		}
		return e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, errs.New(errs.NotFound, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind wrapping cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Of reports the Kind of err if err is (or wraps) an *Error, and Unknown
// otherwise.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
