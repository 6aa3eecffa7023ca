// Package domainerrors provides coded errors for the trust layer.
//
// Services attach a Code when translating infrastructure failures or rejecting
// input; transports map codes to protocol status. Codes are stable API surface,
// messages are not.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and caller branching.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeTimeout            Code = "timeout"
	CodeInvalidConsent     Code = "invalid_consent"
	CodeMissingConsent     Code = "missing_consent"
	CodeInvariantViolation Code = "invariant_violation"
	CodeRateLimited        Code = "rate_limited"
	CodeInternal           Code = "internal_error"

	// Delegation limits: a trust link may never widen the backing token's
	// scope or outlive its expiry.
	CodeDelegationScopeExceeded  Code = "delegation_scope_exceeded"
	CodeDelegationWindowExceeded Code = "delegation_window_exceeded"

	// CodeIntegrityCheckFailed is the single decryption failure the vault
	// reports. Wrong key, tampered ciphertext, and truncation are deliberately
	// indistinguishable.
	CodeIntegrityCheckFailed Code = "integrity_check_failed"
)

// Error is a coded domain error. Use New or Wrap; never construct directly.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error with a message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias for HasCode kept for older call sites.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// GetCode returns the outermost code in the chain, or CodeInternal when the
// error carries none. A nil error has no code and also maps to CodeInternal;
// callers should not ask for the code of a nil error.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Message returns the outermost domain message, or the plain Error() string
// for uncoded errors.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
