// Package errs defines the error taxonomy shared by the agent plane.
//
// Every failure that crosses a package boundary carries a Kind so the HTTP
// layer can pick a status code without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	Internal          Kind = "internal"
	NotFound          Kind = "not_found"
	Forbidden         Kind = "forbidden"
	InvalidArguments  Kind = "invalid_arguments"
	InvalidToolOutput Kind = "invalid_tool_output"
	ModelUnavailable  Kind = "model_unavailable"
	UnknownAgent      Kind = "unknown_agent"
	UnknownTool       Kind = "unknown_tool"
	BadRequest        Kind = "bad_request"
	Unauthenticated   Kind = "unauthenticated"
)

// ErrNotConfigured marks a model call rejected before any network I/O
// because no provider credential is present.
var ErrNotConfigured = errors.New("chat model is not configured")

// Error is a classified error. Message is safe to show to clients;
// Err is kept for logs and errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with a formatted client message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of the first classified error in err's chain,
// or Internal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the client-safe message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}

// NotConfigured is the ModelUnavailable failure returned when the gateway
// has no credential.
func NotConfigured(provider string) error {
	return &Error{
		Kind:    ModelUnavailable,
		Message: "AI model is not configured",
		Err:     fmt.Errorf("%s: %w", provider, ErrNotConfigured),
	}
}
