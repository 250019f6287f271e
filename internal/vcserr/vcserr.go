// Package vcserr defines the failure taxonomy shared by all repository
// components. Callers match on the failure kind with KindOf or errors.As
// instead of string-matching messages.
package vcserr

import (
	"errors"
	"fmt"
)

// Kind classifies a repository failure.
type Kind int

const (
	// NotFound reports an absent object, ref, branch, checkpoint, or file.
	NotFound Kind = iota + 1
	// AlreadyExists reports a branch name collision or re-initialization.
	AlreadyExists
	// AmbiguousID reports a short hash matching multiple objects.
	AmbiguousID
	// InvalidOperation reports a request the current state forbids, such as
	// deleting the checked-out branch or committing with nothing staged.
	InvalidOperation
	// Corruption reports stored bytes that fail to re-hash to their key.
	Corruption
	// IO reports an underlying filesystem failure.
	IO
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case AlreadyExists:
		return "already exists"
	case AmbiguousID:
		return "ambiguous id"
	case InvalidOperation:
		return "invalid operation"
	case Corruption:
		return "corruption"
	case IO:
		return "io error"
	default:
		return "unknown"
	}
}

// Error is a typed repository failure. It wraps an optional cause and
// supports errors.Is/errors.As matching by kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so sentinel-style checks like
// errors.Is(err, &Error{Kind: NotFound}) work alongside KindOf.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a typed failure with a formatted message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or 0 if err carries no taxonomy kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
