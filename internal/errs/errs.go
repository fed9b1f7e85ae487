// Package errs defines the error kinds shared by the recognition pipeline.
// Engine failures are not represented here; they keep the engine's own
// status code (see engine.Error).
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindInvalidState marks an operation attempted outside its legal state,
	// e.g. feeding a finished stream.
	KindInvalidState Kind = "invalid_state"
	// KindConversion marks unsupported or malformed audio.
	KindConversion Kind = "conversion"
	// KindIO marks unavailable files or directories.
	KindIO Kind = "io"
	// KindConfig marks invalid configuration.
	KindConfig Kind = "config"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind with no message,
// which lets package-level sentinels match any error of their kind and op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

func Newf(kind Kind, op, format string, args ...any) *Error {
	return New(kind, op, fmt.Sprintf(format, args...))
}

func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	for err != nil {
		if !errors.As(err, &target) {
			return false
		}
		if target.Kind == kind {
			return true
		}
		err = target.Cause
	}
	return false
}
