// Package errors provides structured error types for the webhttp library.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	multierror "github.com/hashicorp/go-multierror"
)

// ErrorType represents the category of error that occurred.
type ErrorType string

const (
	// Input errors (spec §7)
	ErrorTypeMalformedURL    ErrorType = "malformed_url"
	ErrorTypeNoHostInURL     ErrorType = "no_host_in_url"
	ErrorTypeUnknownScheme   ErrorType = "unknown_scheme_no_default"
	ErrorTypePortMissing     ErrorType = "port_missing"
	ErrorTypeLocationTooLong ErrorType = "location_too_long"
	ErrorTypeMissingLocation ErrorType = "missing_location_header"
	ErrorTypeMethodRequired  ErrorType = "method_required"
	ErrorTypeURLRequired     ErrorType = "url_required"
	ErrorTypeValidation      ErrorType = "validation"

	// Framing errors
	ErrorTypeMalformedResponse      ErrorType = "malformed_response"
	ErrorTypeHTTPVersionUnsupported ErrorType = "http_version_not_supported"
	ErrorTypeInvalidChunkSize       ErrorType = "invalid_chunk_size"
	ErrorTypeMalformedChunk         ErrorType = "malformed_chunk"
	ErrorTypeHeadersTooLarge        ErrorType = "headers_too_large"
	ErrorTypeUnexpectedEOF          ErrorType = "unexpected_eof"
	ErrorTypeUnexpectedEndOfStream  ErrorType = "unexpected_end_of_stream"
	ErrorTypeEmptyResponse          ErrorType = "empty_response"

	// Transport errors
	ErrorTypeNotConnected     ErrorType = "not_connected"
	ErrorTypeAlreadyConnected ErrorType = "already_connected"
	ErrorTypeNoAddressFound   ErrorType = "no_address_found"
	ErrorTypeTLSHandshake     ErrorType = "tls_handshake"
	ErrorTypeConnectionClosed ErrorType = "connection_closed"
	ErrorTypeDNS              ErrorType = "dns"
	ErrorTypeConnection       ErrorType = "connection"
	ErrorTypeTLS              ErrorType = "tls"
	ErrorTypeTimeout          ErrorType = "timeout"
	ErrorTypeIO               ErrorType = "io"

	// Policy errors
	ErrorTypeTooManyRedirects          ErrorType = "too_many_redirects"
	ErrorTypeConnectionPoolExhausted   ErrorType = "connection_pool_exhausted"
	ErrorTypeEventTooLarge             ErrorType = "event_too_large"
	ErrorTypeHeapFallbackRequiresAlloc ErrorType = "heap_fallback_requires_allocator"
	ErrorTypeStreamClosed              ErrorType = "stream_closed"
	ErrorTypeNotSSEResponse            ErrorType = "not_sse_response"
)

// Error represents a structured error with context information.
type Error struct {
	Type      ErrorType `json:"type"`
	Op        string    `json:"op"`
	Message   string    `json:"message"`
	Cause     error     `json:"cause,omitempty"`
	Host      string    `json:"host,omitempty"`
	Port      int       `json:"port,omitempty"`
	Addr      string    `json:"addr,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TransportError is an alias kept for transport-error naming convention.
type TransportError = Error

// Error implements the error interface.
// Format: [type] op addr: message: cause
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Type))
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Addr != "" {
		parts = append(parts, e.Addr)
	} else if e.Host != "" {
		if e.Port > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", e.Host, e.Port))
		} else {
			parts = append(parts, e.Host)
		}
	}

	errStr := strings.Join(parts, " ")
	if e.Message != "" {
		errStr += ": " + e.Message
	}
	if e.Cause != nil {
		errStr += ": " + e.Cause.Error()
	}
	return errStr
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target type.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Type == t.Type
	}
	return false
}

func newErr(t ErrorType, op, message string, cause error) *Error {
	return &Error{Type: t, Op: op, Message: message, Cause: cause, Timestamp: time.Now()}
}

func newAddrErr(t ErrorType, op, host string, port int, message string, cause error) *Error {
	addr := host
	if port > 0 {
		addr = fmt.Sprintf("%s:%d", host, port)
	}
	return &Error{Type: t, Op: op, Message: message, Cause: cause, Host: host, Port: port, Addr: addr, Timestamp: time.Now()}
}

// --- Input errors ---

func NewMalformedURLError(raw string, cause error) *Error {
	return newErr(ErrorTypeMalformedURL, "parse_url", fmt.Sprintf("malformed URL %q", raw), cause)
}

func NewNoHostInURLError(raw string) *Error {
	return newErr(ErrorTypeNoHostInURL, "parse_url", fmt.Sprintf("no host in URL %q", raw), nil)
}

func NewUnknownSchemeError(scheme string) *Error {
	return newErr(ErrorTypeUnknownScheme, "resolve_port", fmt.Sprintf("unknown scheme %q has no default port", scheme), nil)
}

func NewPortMissingError(raw string) *Error {
	return newErr(ErrorTypePortMissing, "resolve_port", fmt.Sprintf("URL %q has no port and policy forbids defaulting", raw), nil)
}

func NewLocationTooLongError(n, max int) *Error {
	return newErr(ErrorTypeLocationTooLong, "redirect", fmt.Sprintf("Location header length %d exceeds max %d", n, max), nil)
}

func NewMissingLocationHeaderError() *Error {
	return newErr(ErrorTypeMissingLocation, "redirect", "3xx response missing Location header", nil)
}

func NewMethodRequiredError() *Error {
	return newErr(ErrorTypeMethodRequired, "validate", "method is required", nil)
}

func NewURLRequiredError() *Error {
	return newErr(ErrorTypeURLRequired, "validate", "URL is required", nil)
}

func NewValidationError(message string) *Error {
	return newErr(ErrorTypeValidation, "validate", message, nil)
}

// --- Framing errors ---

func NewMalformedResponseError(message string, cause error) *Error {
	return newErr(ErrorTypeMalformedResponse, "parse", message, cause)
}

func NewHTTPVersionNotSupportedError(version string) *Error {
	return newErr(ErrorTypeHTTPVersionUnsupported, "parse", fmt.Sprintf("HTTP version %q not supported", version), nil)
}

func NewInvalidChunkSizeError(raw string) *Error {
	return newErr(ErrorTypeInvalidChunkSize, "chunked_decode", fmt.Sprintf("invalid chunk size %q", raw), nil)
}

func NewMalformedChunkError(message string) *Error {
	return newErr(ErrorTypeMalformedChunk, "chunked_decode", message, nil)
}

func NewHeadersTooLargeError(max int) *Error {
	return newErr(ErrorTypeHeadersTooLarge, "parse_headers", fmt.Sprintf("headers exceed maximum size of %d bytes", max), nil)
}

func NewUnexpectedEOFError(op string) *Error {
	return newErr(ErrorTypeUnexpectedEOF, op, "connection closed mid-read", nil)
}

func NewUnexpectedEndOfStreamError(expected, got int64) *Error {
	return newErr(ErrorTypeUnexpectedEndOfStream, "read_body", fmt.Sprintf("expected %d bytes, got %d before stream ended", expected, got), nil)
}

func NewEmptyResponseError() *Error {
	return newErr(ErrorTypeEmptyResponse, "read_response", "server closed connection without sending a response", nil)
}

// --- Transport errors ---

func NewNotConnectedError() *Error {
	return newErr(ErrorTypeNotConnected, "io", "connection is not in a state that permits I/O", nil)
}

func NewAlreadyConnectedError() *Error {
	return newErr(ErrorTypeAlreadyConnected, "connect", "connection is already connected", nil)
}

func NewNoAddressFoundError(host string) *Error {
	return newAddrErr(ErrorTypeNoAddressFound, "resolve", host, 0, "no addresses found for host", nil)
}

func NewDNSError(host string, cause error) *Error {
	return newAddrErr(ErrorTypeDNS, "lookup", host, 0, fmt.Sprintf("DNS lookup failed for host %s", host), cause)
}

func NewConnectionError(host string, port int, cause error) *Error {
	return newAddrErr(ErrorTypeConnection, "dial", host, port, fmt.Sprintf("failed to connect to %s:%d", host, port), cause)
}

func NewTLSError(host string, port int, cause error) *Error {
	return newAddrErr(ErrorTypeTLSHandshake, "handshake", host, port, fmt.Sprintf("TLS handshake failed for %s:%d", host, port), cause)
}

func NewConnectionClosedError() *Error {
	return newErr(ErrorTypeConnectionClosed, "io", "connection closed by peer", nil)
}

func NewTimeoutError(operation string, timeout time.Duration) *Error {
	return newErr(ErrorTypeTimeout, operation, fmt.Sprintf("operation timed out after %v", timeout), nil)
}

func NewIOError(operation string, cause error) *Error {
	op := operation
	switch {
	case strings.Contains(strings.ToLower(operation), "read"):
		op = "read"
	case strings.Contains(strings.ToLower(operation), "writ"):
		op = "write"
	}
	return newErr(ErrorTypeIO, op, fmt.Sprintf("I/O error during %s", operation), cause)
}

// --- Policy errors ---

func NewTooManyRedirectsError(max int) *Error {
	return newErr(ErrorTypeTooManyRedirects, "redirect", fmt.Sprintf("exceeded maximum of %d redirects", max), nil)
}

func NewConnectionPoolExhaustedError(key string, max int) *Error {
	return newErr(ErrorTypeConnectionPoolExhausted, "pool_acquire", fmt.Sprintf("connection pool exhausted for %s (max_per_host=%d)", key, max), nil)
}

func NewEventTooLargeError(max int) *Error {
	return newErr(ErrorTypeEventTooLarge, "sse_arena", fmt.Sprintf("event exceeds arena capacity of %d bytes", max), nil)
}

func NewHeapFallbackRequiresAllocatorError() *Error {
	return newErr(ErrorTypeHeapFallbackRequiresAlloc, "sse_arena", "overflow policy heap_fallback requires an allocator", nil)
}

func NewStreamClosedError() *Error {
	return newErr(ErrorTypeStreamClosed, "stream", "stream is already closed", nil)
}

func NewNotSSEResponseError() *Error {
	return newErr(ErrorTypeNotSSEResponse, "stream_sse", "response is not a text/event-stream response", nil)
}

// --- Predicates / helpers ---

// IsTimeoutError checks if an error is a timeout error.
func IsTimeoutError(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrorTypeTimeout
	}
	if netErr, ok := err.(net.Error); ok {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsTemporaryError checks if an error is temporary.
func IsTemporaryError(err error) bool {
	if netErr, ok := err.(net.Error); ok {
		return netErr.Temporary()
	}
	return false
}

// GetErrorType returns the error type if it's a structured error.
func GetErrorType(err error) ErrorType {
	if e, ok := err.(*Error); ok {
		return e.Type
	}
	return ""
}

// IsContextCanceled checks if an error is due to context cancellation.
func IsContextCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsContextTimeout checks if an error is due to context deadline exceeded.
func IsContextTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// Append aggregates independent failures (e.g. closing every pooled
// connection across hosts) without letting one failure suppress the rest.
func Append(existing error, errs ...error) error {
	var merr *multierror.Error
	if existing != nil {
		merr = multierror.Append(merr, existing)
	}
	for _, e := range errs {
		if e != nil {
			merr = multierror.Append(merr, e)
		}
	}
	if merr == nil {
		return nil
	}
	return merr.ErrorOrNil()
}
