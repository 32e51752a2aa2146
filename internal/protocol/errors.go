// ABOUTME: Decode errors and the wire error object carried by error responses
// ABOUTME: Standard JSON-RPC codes plus client-side codes for timeouts and closed connections

package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by DecodeError via errors.Is.
var (
	ErrParse        = errors.New("parse error")
	ErrInvalidShape = errors.New("invalid message shape")
)

// DecodeKind distinguishes malformed JSON from well-formed JSON of the wrong shape.
type DecodeKind int

const (
	KindParse DecodeKind = iota
	KindInvalidShape
)

// DecodeError describes a line that could not be decoded. Line keeps the
// original text for diagnostics.
type DecodeError struct {
	Kind   DecodeKind
	Line   string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case KindParse:
		return fmt.Sprintf("parse error: %v: %q", e.Err, truncate(e.Line, 120))
	default:
		return fmt.Sprintf("invalid message shape: %s: %q", e.Reason, truncate(e.Line, 120))
	}
}

// Is lets errors.Is match the ErrParse and ErrInvalidShape sentinels.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrParse:
		return e.Kind == KindParse
	case ErrInvalidShape:
		return e.Kind == KindInvalidShape
	}
	return false
}

func (e *DecodeError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParse          = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
)

// Client-side codes used when a pending request completes without a response.
const (
	CodeRequestTimeout   = -32001
	CodeConnectionClosed = -32002
)

// Error is the payload of an error Response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewMethodNotFoundError returns an Error for an unknown method.
func NewMethodNotFoundError(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "method not found: " + method}
}

// NewInvalidParamsError returns an Error for params that do not decode.
func NewInvalidParamsError(msg string) *Error {
	return &Error{Code: CodeInvalidParams, Message: msg}
}

// NewInternalError returns an Error for unexpected failures while handling a request.
func NewInternalError(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// NewTimeoutError is delivered to a pending callback whose response never arrived.
func NewTimeoutError(method string) *Error {
	return &Error{Code: CodeRequestTimeout, Message: "request timed out: " + method}
}

// NewConnectionClosedError is delivered to pending callbacks when the client shuts down.
func NewConnectionClosedError() *Error {
	return &Error{Code: CodeConnectionClosed, Message: "connection to core engine closed"}
}
