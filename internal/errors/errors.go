package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess  Code = 0
	CodeInternal Code = 1
	CodeUsage    Code = 2

	// Validation-layer failures. Both are user-facing and never retried;
	// CodeSecurity marks the subset raised by the defense-in-depth checks
	// around model output.
	CodeInput    Code = 10
	CodeSecurity Code = 11

	// Chain read outcomes.
	CodeTransient Code = 12
	CodeReverted  Code = 13
	CodeGas       Code = 14
	CodeContract  Code = 15

	// Trace verification and loading.
	CodeIntegrity Code = 16
	CodeNotFound  Code = 17
	CodeConfig    Code = 18
	CodeMalformed Code = 19

	// External collaborators (LLM endpoint, IPFS API).
	CodeUnavailable Code = 20
	CodeAuth        Code = 21
	CodeRateLimited Code = 22
)

// Error is a typed error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the stable code for err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if typed, ok := As(err); ok {
		return typed.Code
	}
	return CodeInternal
}

// IsValidation reports whether err is a user-facing validation failure
// (input validation or a security check on model output).
func IsValidation(err error) bool {
	code := CodeOf(err)
	return code == CodeInput || code == CodeSecurity
}

// IsTransient reports whether a retry may succeed. Deterministic contract
// outcomes (reverts, gas exhaustion) are never transient.
func IsTransient(err error) bool {
	code := CodeOf(err)
	return code == CodeTransient || code == CodeUnavailable || code == CodeRateLimited
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if typed, ok := As(err); ok {
		return int(typed.Code)
	}
	return int(CodeInternal)
}
