// Package apperr defines the typed failures returned by repositories and engines.
// Every failure carries a Kind (its family) and a stable Code that callers map to
// user-facing messages.
package apperr

import "errors"

// Kind groups failures by how a caller is expected to react to them.
type Kind string

const (
	KindNotFound               Kind = "NOT_FOUND"
	KindPermissionDenied       Kind = "PERMISSION_DENIED"
	KindCapacityExceeded       Kind = "CAPACITY_EXCEEDED"
	KindInvalidStateTransition Kind = "INVALID_STATE_TRANSITION"
	KindInsufficientScore      Kind = "INSUFFICIENT_SCORE"
	KindInvalidInput           Kind = "INVALID_INPUT"
	KindConflict               Kind = "CONFLICT"
	KindInternal               Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
