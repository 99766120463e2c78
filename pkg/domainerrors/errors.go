// Package domainerrors defines coded errors shared across the client.
// Services and transports return these (optionally wrapping a cause) so
// callers can branch on the code instead of string-matching messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for handling decisions.
type Code string

const (
	// CodeConfiguration marks misuse or misconfiguration of the client
	// (request before initialization, insecure base URL). Fatal, never retried.
	CodeConfiguration Code = "configuration"
	// CodeUnauthorized marks a 401 from the upstream API. The auth transport
	// handles one refresh-and-retry before this reaches callers.
	CodeUnauthorized Code = "unauthorized"
	// CodeSessionInvalid marks an unrecoverable auth failure: refresh was
	// attempted and failed, the session has been torn down.
	CodeSessionInvalid Code = "session_invalid"
	// CodeValidation marks a 4xx other than 401 (bad credentials on login,
	// duplicate registration). Surfaced to the initiating form.
	CodeValidation Code = "validation"
	// CodeNotFound marks a 404.
	CodeNotFound Code = "not_found"
	// CodeNetwork marks transport-level failures and timeouts.
	CodeNetwork Code = "network"
	// CodeServer marks a 5xx from the upstream API.
	CodeServer Code = "server"
	// CodeInternal marks a client-side bug or unexpected condition.
	CodeInternal Code = "internal"
)

// Error is the canonical error type for this module.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. A nil cause
// yields nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors and the empty code for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
