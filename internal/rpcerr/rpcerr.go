// Package rpcerr implements the protocol error taxonomy of spec.md §6.1
// and §7: a closed set of error codes, a structured Error carrying an
// optional cause and details, and constructors for each code. Repository
// and lens code returns plain wrapped errors; only the RPC boundary
// (internal/rpc and internal/rpc/methods) translates them into an
// rpcerr.Error, which is what ends up as an envelope's "error" payload.
package rpcerr

import "fmt"

// Code is one of the method-agnostic error codes from spec.md §6.1.
type Code string

const (
	InvalidRequest     Code = "InvalidRequest"
	UnknownMethod      Code = "UnknownMethod"
	InvalidParams      Code = "InvalidParams"
	OperationFailed    Code = "OperationFailed"
	OperationCancelled Code = "OperationCancelled"
	NotInitialized     Code = "NotInitialized"
	RateLimited        Code = "RateLimited"
	InternalError      Code = "InternalError"
)

// Error is the structured error carried by a terminal "error" envelope.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an Error with the given code, message, and underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithDetails returns a copy of e with Details set.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// As extracts an *Error from err, or synthesizes an InternalError that
// wraps it — the last line of defense so client-visible errors never
// leak an unclassified Go error value or a stack trace.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if ok := asError(err, &e); ok {
		return e
	}
	return Wrap(InternalError, "unexpected internal error", err)
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
