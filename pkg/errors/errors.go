// Package errors defines the closed error-kind taxonomy used across the
// inference server (spec §7). Call sites wrap an underlying error with a
// Kind using New or Wrap; callers test the kind with Is.
package errors

import (
	"errors"
	"fmt"
)

// Kind is a closed taxonomy of error categories. Transport layers map a
// Kind to a protocol-specific status (HTTP code, gRPC status code).
type Kind uint8

const (
	// Unknown is the zero value; it should never be deliberately returned.
	Unknown Kind = iota
	// InvalidArgument covers bad request shape/type, unknown endpoint,
	// unknown parameter value.
	InvalidArgument
	// FileNotFound covers a missing plug-in library or model file.
	FileNotFound
	// External covers a worker acquire failure inside its back-end.
	External
	// Runtime covers pool exhaustion, address-not-found, internal
	// assertion failures.
	Runtime
	// ConnectionError covers a protocol client that cannot reach the server.
	ConnectionError
	// BadStatus covers a protocol server returning a non-2xx status.
	BadStatus
	// EnvironmentNotSet covers a required environment variable missing.
	EnvironmentNotSet
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case FileNotFound:
		return "FileNotFound"
	case External:
		return "External"
	case Runtime:
		return "Runtime"
	case ConnectionError:
		return "ConnectionError"
	case BadStatus:
		return "BadStatus"
	case EnvironmentNotSet:
		return "EnvironmentNotSet"
	default:
		return "Unknown"
	}
}

// Error is a typed error carrying a Kind alongside the usual message and
// wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a new Error of the given Kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error of the given Kind wrapping an existing error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, and
// Unknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err is (or wraps) an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
