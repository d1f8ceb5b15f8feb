// Package webhttp is the top-level facade over the HTTP/1.1 client: a
// Client that sends Requests, follows redirects, pools connections, and
// streams chunked/SSE bodies without buffering them whole. It re-exports
// the pieces most callers need so `import "github.com/oneopane/webhttp"`
// is enough for everyday use; pkg/request, pkg/response, pkg/pool, and the
// rest remain importable directly for anything more specific.
package webhttp

import (
	"context"

	"github.com/oneopane/webhttp/pkg/buffer"
	"github.com/oneopane/webhttp/pkg/errors"
	"github.com/oneopane/webhttp/pkg/httpclient"
	"github.com/oneopane/webhttp/pkg/request"
	"github.com/oneopane/webhttp/pkg/response"
	"github.com/oneopane/webhttp/pkg/sse"
	"github.com/oneopane/webhttp/pkg/streaming"
)

// Version identifies this module's release.
const Version = "1.0.0"

// GetVersion returns Version.
func GetVersion() string {
	return Version
}

// Re-export the core types so typical callers never need to import the
// underlying packages directly.
type (
	// Client sends Requests, following redirects and pooling connections
	// per Options.
	Client = httpclient.Client

	// Options configures a Client's timeouts, redirect policy, and pooling.
	Options = httpclient.Options

	// Request is a single HTTP request awaiting serialization.
	Request = request.Request

	// Response is a parsed HTTP response, including its body.
	Response = response.Response

	// Buffer provides memory-bounded storage that spills to disk past a
	// configured limit.
	Buffer = buffer.Buffer

	// Stream is a connection-owning handle for reading a response body
	// incrementally instead of buffering it whole.
	Stream = streaming.Stream

	// Event is a single parsed Server-Sent Event.
	Event = sse.Event

	// Error is a structured error carrying a category and operation.
	Error = errors.Error
)

// New constructs a Client with the given Options. Use DefaultOptions() as
// a starting point.
func New(opts Options) *Client {
	return httpclient.New(opts)
}

// DefaultOptions returns the client's documented defaults: redirects
// followed up to 10 hops, connection pooling enabled, SSE parsing on.
func DefaultOptions() Options {
	return httpclient.DefaultOptions()
}

// Re-export request constructors for the common verbs.
var (
	Get    = request.Get
	Head   = request.Head
	Post   = request.Post
	Put    = request.Put
	Patch  = request.Patch
	Delete = request.Delete
)

// NewRequest builds a request with an arbitrary method.
func NewRequest(method, rawURL string) (*Request, error) {
	return request.New(method, rawURL)
}

// NewBuilder starts a fluent Request builder:
//
//	req, err := webhttp.NewBuilder("POST", url).
//	    Header("Content-Type", "application/json").
//	    JSON(payload).
//	    Build()
func NewBuilder(method, rawURL string) *request.Builder {
	return request.NewBuilder(method, rawURL)
}

// NewBuffer creates a Buffer with the given in-memory limit before it
// spills to disk.
func NewBuffer(limit int64) *Buffer {
	return buffer.New(limit)
}

// IsTimeoutError reports whether err is a timeout error: a *Error of the
// timeout type, a net.Error whose Timeout() is true, or an error wrapping
// context.DeadlineExceeded. A timeout *Error or net.Error wrapped inside
// another error is not detected.
func IsTimeoutError(err error) bool {
	return errors.IsTimeoutError(err)
}

// IsTemporaryError reports whether err is itself a net.Error whose
// Temporary() is true; wrapped errors are not unwrapped.
func IsTemporaryError(err error) bool {
	return errors.IsTemporaryError(err)
}

// GetErrorType returns err's structured error category, or "" if err isn't
// one of ours.
func GetErrorType(err error) string {
	return string(errors.GetErrorType(err))
}

// Send is a package-level convenience around a one-shot Client built from
// DefaultOptions. Callers making more than a handful of requests should
// construct a Client directly so pooling actually has something to pool.
func Send(ctx context.Context, req *Request) (*Response, error) {
	return New(DefaultOptions()).Send(ctx, req)
}
