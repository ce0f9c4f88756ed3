// Package averr defines the error taxonomy shared by every avwrap component.
//
// Validation and configuration failures are reported as *Error values through
// the ordinary error channel. Steady-state engine signals (retry, end of
// stream) are never errors; see package engine.
package averr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of an error.
type Kind string

const (
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindInvalidState    Kind = "INVALID_STATE"
	KindConfig          Kind = "CONFIG_ERROR"
	KindIO              Kind = "IO_ERROR"
	KindEngine          Kind = "ENGINE_ERROR"
	KindNotFound        Kind = "NOT_FOUND"
	KindInternal        Kind = "INTERNAL_ERROR"
)

// Sentinels usable with errors.Is to match any *Error of the same kind.
var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrConfig          = &Error{Kind: KindConfig}
	ErrIO              = &Error{Kind: KindIO}
	ErrEngine          = &Error{Kind: KindEngine}
	ErrNotFound        = &Error{Kind: KindNotFound}
)

// Error is an avwrap error with additional context.
type Error struct {
	Kind    Kind                   `json:"type"`
	Op      string                 `json:"op,omitempty"`
	Message string                 `json:"message"`
	Code    int                    `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a kind sentinel matching e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Op == "" && t.Kind == e.Kind
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithCode attaches the engine result code that caused the error.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// HTTPStatus maps the error kind onto an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindInvalidState:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindIO, KindEngine:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new Error.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap wraps an existing error.
func Wrap(err error, kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// InvalidArgument reports an argument rejected at the call that introduced it.
func InvalidArgument(op, format string, args ...interface{}) *Error {
	return New(KindInvalidArgument, op, fmt.Sprintf(format, args...))
}

// InvalidState reports a call made on a component that cannot accept it.
func InvalidState(op, format string, args ...interface{}) *Error {
	return New(KindInvalidState, op, fmt.Sprintf(format, args...))
}

// Config reports a non-recoverable construction failure.
func Config(op, format string, args ...interface{}) *Error {
	return New(KindConfig, op, fmt.Sprintf(format, args...))
}

// IO reports an input/output failure.
func IO(op, format string, args ...interface{}) *Error {
	return New(KindIO, op, fmt.Sprintf(format, args...))
}

// NotFound reports a missing resource.
func NotFound(op, resource string) *Error {
	return New(KindNotFound, op, fmt.Sprintf("%s not found", resource))
}

// Engine reports a failure code returned by the external engine together
// with the engine's own description of it.
func Engine(op string, code int, description string) *Error {
	return &Error{Kind: KindEngine, Op: op, Message: description, Code: code}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
