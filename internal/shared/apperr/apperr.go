package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies failures so handlers can map them to accurate HTTP responses
// and callers know whether a retry makes sense.
type Kind int

const (
	KindValidation Kind = iota
	KindConflict
	KindInvalidState
	KindNotFound
	KindTransientIO
)

type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, apperr.Conflict("", "")) style checks
// work without comparing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
	}
	return false
}

func Validation(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(code, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(code, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(code, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// TransientIO wraps a storage or provider failure the caller may retry.
func TransientIO(code string, err error) *Error {
	return &Error{Kind: KindTransientIO, Code: code, Msg: "temporary failure", Err: err}
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// CodeOf returns the reason code, or "internal" for unclassified errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
