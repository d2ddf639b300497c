// Package errors is this module's error taxonomy: one AppError type
// carrying an ErrorType, an HTTP status for the demo server, and a
// captured stack trace.
package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// ErrorType is the error kind surfaced through a relay or task promise.
type ErrorType string

const (
	// Validation carries the path breadcrumb, expected type, and
	// received value summary from a failed parser.ParseValue call.
	Validation ErrorType = "VALIDATION"
	// Transport covers non-2xx fetcher responses or a Fetcher.Do error;
	// subject to retry.
	Transport ErrorType = "TRANSPORT"
	// ParseJSON covers a Response.JSON decode failure.
	ParseJSON ErrorType = "PARSE_JSON"
	// Stream covers a StreamSource.Subscribe failure (not an onUpdate
	// delivery); surfaces as the relay's error; never auto-retried.
	Stream ErrorType = "STREAM"
	// Storage covers a querystore Writer delegate call that returned an
	// error; logged, the write queue advances, in-memory state
	// untouched.
	Storage ErrorType = "STORAGE"
	// Context covers resolving a query/mutation outside of a Query
	// Client scope.
	Context ErrorType = "CONTEXT"
	// Configuration covers a programmer error caught synchronously at
	// the call site, e.g. an optimistic insert against a definition with
	// no OptimisticInsertsDef.
	Configuration ErrorType = "CONFIGURATION"
)

// AppError is the one error type every package in this module raises
// for an expected failure mode: a wide struct with narrow usage per
// field, so one type serves every ErrorType variant.
type AppError struct {
	Type       ErrorType
	Code       string
	Message    string
	StatusCode int
	Cause      error
	Stack      string
}

// New builds an AppError of typ, capturing the caller's stack.
func New(typ ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       typ,
		Code:       code,
		Message:    message,
		StatusCode: statusCodeFor(typ),
		Stack:      captureStack(),
	}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap exposes Cause so errors.Is/errors.As traverse through it.
func (e *AppError) Unwrap() error { return e.Cause }

// Is matches another *AppError by Type and Code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithCause attaches the underlying error that triggered this one.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithStatusCode overrides the HTTP status code this error maps to.
func (e *AppError) WithStatusCode(code int) *AppError {
	e.StatusCode = code
	return e
}

func statusCodeFor(typ ErrorType) int {
	switch typ {
	case Validation, Configuration:
		return 400
	case Context:
		return 412
	case Transport:
		return 502
	case ParseJSON:
		return 502
	case Stream:
		return 500
	case Storage:
		return 500
	default:
		return 500
	}
}

func captureStack() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return strings.TrimSpace(string(buf[:n]))
}

// NewValidationError builds a Validation AppError carrying a parser path
// breadcrumb, the expected type, and a summary of the received value.
func NewValidationError(path []string, expected string, got interface{}) *AppError {
	breadcrumb := strings.Join(path, ".")
	msg := fmt.Sprintf("at %q: expected %s, got %v", breadcrumb, expected, got)
	return New(Validation, "VALIDATION_FAILED", msg)
}

// NewTransportError builds a Transport AppError for a non-2xx response
// or a Fetcher.Do failure.
func NewTransportError(status int, message string) *AppError {
	return New(Transport, "TRANSPORT_FAILED", message).WithStatusCode(status)
}

// NewParseJSONError builds a ParseJSON AppError wrapping a
// Response.JSON decode failure.
func NewParseJSONError(cause error) *AppError {
	return New(ParseJSON, "PARSE_JSON_FAILED", "failed to decode response body").WithCause(cause)
}

// NewStreamError builds a Stream AppError for a failed
// StreamSource.Subscribe call.
func NewStreamError(cause error) *AppError {
	return New(Stream, "STREAM_SUBSCRIBE_FAILED", "stream subscription failed").WithCause(cause)
}

// NewStorageError builds a Storage AppError for a failed KV delegate
// call observed by the querystore writer.
func NewStorageError(op string, cause error) *AppError {
	return New(Storage, "STORAGE_OP_FAILED", fmt.Sprintf("storage operation %q failed", op)).WithCause(cause)
}

// NewContextError builds a Context AppError for resolving a query or
// mutation outside of a Query Client scope.
func NewContextError(message string) *AppError {
	return New(Context, "NO_CLIENT_CONTEXT", message)
}

// NewConfigurationError builds a Configuration AppError for a
// programmer error caught synchronously at the call site.
func NewConfigurationError(message string) *AppError {
	return New(Configuration, "INVALID_CONFIGURATION", message)
}
