package minesduel

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the match engine for a rejected
// request wraps exactly one of these.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// Error is a rejected request. Reason is safe to show to clients.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundf reports an unknown record.
func NotFoundf(format string, args ...interface{}) error {
	return newError(ErrNotFound, format, args...)
}

// Forbiddenf reports a caller that may not act on the record.
func Forbiddenf(format string, args ...interface{}) error {
	return newError(ErrForbidden, format, args...)
}

// Conflictf reports a request the current match state does not allow.
func Conflictf(format string, args ...interface{}) error {
	return newError(ErrConflict, format, args...)
}

// Invalidf reports malformed input.
func Invalidf(format string, args ...interface{}) error {
	return newError(ErrValidation, format, args...)
}
