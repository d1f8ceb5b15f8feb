// Package httpclient implements the HTTP Client Orchestrator component:
// the entry point that ties request serialization, connection
// acquisition, response framing, redirect following, and streaming
// consumption together. Grounded on the teacher's Client.Do orchestration
// shape (go-rawhttp's pkg/client/client.go: build config, connect, send,
// read response, release/close), generalized to route through
// [[package request]]/[[package response]]/[[package pool]]/
// [[package redirect]] instead of raw byte slices and a single
// monolithic Transport.
package httpclient

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/oneopane/webhttp/pkg/constants"
	"github.com/oneopane/webhttp/pkg/errors"
	"github.com/oneopane/webhttp/pkg/httpconn"
	"github.com/oneopane/webhttp/pkg/logging"
	"github.com/oneopane/webhttp/pkg/pool"
	"github.com/oneopane/webhttp/pkg/redirect"
	"github.com/oneopane/webhttp/pkg/request"
	"github.com/oneopane/webhttp/pkg/response"
	"github.com/oneopane/webhttp/pkg/sse"
	"github.com/oneopane/webhttp/pkg/streaming"
	"github.com/oneopane/webhttp/pkg/timing"
	"github.com/oneopane/webhttp/pkg/urlkit"
)

// Options configures a Client's defaults and pooling policy.
type Options struct {
	DefaultTimeout        time.Duration
	FollowRedirects       bool
	MaxRedirects          int
	UseConnectionPool     bool
	MaxConnectionsPerHost int
	MaxIdleTime           time.Duration
	MaxKeepaliveRequests  int
	BodyMemLimit          int64
	ParseSSE              bool
	OverflowPolicy        streaming.OverflowPolicy
	SSEArenaSize          int
}

// DefaultOptions mirrors the orchestrator's documented defaults.
func DefaultOptions() Options {
	return Options{
		DefaultTimeout:        constants.DefaultReadTimeout,
		FollowRedirects:       true,
		MaxRedirects:          10,
		UseConnectionPool:     true,
		MaxConnectionsPerHost: 10,
		MaxIdleTime:           constants.DefaultIdleTimeout,
		MaxKeepaliveRequests:  100,
		BodyMemLimit:          constants.DefaultBodyMemLimit,
		ParseSSE:              true,
		OverflowPolicy:        streaming.ReturnError,
		SSEArenaSize:          0,
	}
}

// Client is the HTTP/1.1 orchestrator: send requests, follow redirects,
// and optionally pool connections across calls.
type Client struct {
	opts     Options
	pool     *pool.Pool
	redirect *redirect.Controller
}

// New creates a Client. Zero-valued fields in opts are NOT defaulted;
// callers that want the documented defaults should start from
// DefaultOptions().
func New(opts Options) *Client {
	c := &Client{opts: opts, redirect: redirect.New(opts.MaxRedirects)}
	if opts.UseConnectionPool {
		c.pool = pool.New(pool.Config{
			MaxConnsPerHost:      opts.MaxConnectionsPerHost,
			MaxIdlePerHost:       opts.MaxConnectionsPerHost,
			MaxIdleTime:          opts.MaxIdleTime,
			MaxKeepaliveRequests: opts.MaxKeepaliveRequests,
		})
	}
	return c
}

// Send serializes req, executes it, and follows redirects per Options
// until a non-redirect response is reached or MaxRedirects is exceeded.
func (c *Client) Send(ctx context.Context, req *request.Request) (*response.Response, error) {
	current := req
	hop := 0
	for {
		resp, err := c.sendOnce(ctx, current)
		if err != nil {
			return resp, err
		}
		if !(c.opts.FollowRedirects && current.FollowRedirects) || !resp.IsRedirect() {
			return resp, nil
		}
		next, rerr := c.redirect.NextRequest(current, resp, hop)
		if rerr != nil {
			return resp, rerr
		}
		next.TraceID = req.TraceID
		logging.WithHop(hop, next.URL.String(), req.TraceID).Debug("following redirect")
		hop++
		current = next
	}
}

// connTarget resolves the (host, port, tls, poolKey) a request dials to.
func connTarget(req *request.Request) (host string, port int, useTLS bool, key string, err error) {
	useTLS = urlkit.IsSecure(req.URL)
	port, err = urlkit.Port(req.URL, urlkit.DefaultForKnownSchemes)
	if err != nil {
		return "", 0, false, "", err
	}
	host = req.URL.Host
	key = pool.Key(host, port, useTLS)
	return host, port, useTLS, key, nil
}

func (c *Client) acquireConnection(ctx context.Context, req *request.Request) (conn *httpconn.Connection, key string, err error) {
	host, port, useTLS, key, err := connTarget(req)
	if err != nil {
		return nil, "", err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.opts.DefaultTimeout
	}

	if c.pool == nil {
		conn = httpconn.New(host, port, useTLS)
		if err := conn.Connect(ctx, httpconn.Options{ConnTimeout: timeout}, timing.NewTimer()); err != nil {
			return nil, "", err
		}
		return conn, key, nil
	}

	pooled, isNew, err := c.pool.Acquire(key)
	if err != nil {
		return nil, "", err
	}
	if !isNew {
		logging.WithPool(key, req.TraceID).Debug("reused pooled connection")
		return pooled, key, nil
	}

	conn = httpconn.New(host, port, useTLS)
	if err := conn.Connect(ctx, httpconn.Options{ConnTimeout: timeout}, timing.NewTimer()); err != nil {
		c.pool.CancelReservation(key)
		return nil, "", err
	}
	return conn, key, nil
}

func (c *Client) releaseConnection(key string, conn *httpconn.Connection, reusable bool) {
	if c.pool == nil {
		conn.Close()
		return
	}
	c.pool.Release(key, conn, reusable)
}

// sendOnce performs exactly one request/response exchange: no redirect
// following.
func (c *Client) sendOnce(ctx context.Context, req *request.Request) (*response.Response, error) {
	conn, key, err := c.acquireConnection(ctx, req)
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.opts.DefaultTimeout
	}

	data, err := req.Serialize()
	if err != nil {
		c.releaseConnection(key, conn, false)
		return nil, err
	}

	if err := conn.SendAll(data, timeout); err != nil {
		c.releaseConnection(key, conn, false)
		return nil, err
	}

	headerBytes, leftover, err := readHeaderBlock(conn, timeout)
	if err != nil {
		c.releaseConnection(key, conn, false)
		return nil, err
	}

	resp := response.New(c.opts.BodyMemLimit)
	if _, err := resp.ParseHeaders(headerBytes); err != nil {
		c.releaseConnection(key, conn, false)
		return nil, err
	}

	if req.Method != "HEAD" {
		reader := readerWithLeftover(conn, leftover, timeout)
		if err := readBody(resp, reader); err != nil {
			c.releaseConnection(key, conn, false)
			return resp, err
		}
	}

	reusable := isReusable(resp)
	c.releaseConnection(key, conn, reusable)
	return resp, nil
}

func readBody(resp *response.Response, reader response.Reader) error {
	switch resp.TransferMode {
	case response.Chunked:
		return resp.ReadChunked(reader)
	case response.FixedLength:
		return resp.ReadFixedLength(reader, resp.ContentLength)
	default:
		return resp.ReadUntilClose(reader)
	}
}

func isReusable(resp *response.Response) bool {
	if conn, ok := resp.GetHeader("Connection"); ok {
		if strings.EqualFold(conn, "close") {
			return false
		}
	}
	return true
}

// readerWithLeftover wraps conn.RecvSome so leftover body bytes captured
// during the header read are replayed before hitting the socket again.
func readerWithLeftover(conn *httpconn.Connection, leftover []byte, timeout time.Duration) response.Reader {
	remaining := leftover
	return func(buf []byte) (int, error) {
		if len(remaining) > 0 {
			n := copy(buf, remaining)
			remaining = remaining[n:]
			return n, nil
		}
		return conn.RecvSome(buf, timeout)
	}
}

// readHeaderBlock reads from conn until a blank line terminates the
// header block, enforcing a 64KiB cap (HeadersTooLarge beyond that), and
// returns the header bytes plus any body bytes read past them in the same
// socket reads.
func readHeaderBlock(conn *httpconn.Connection, timeout time.Duration) (headerBytes, leftover []byte, err error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		n, rerr := conn.RecvSome(chunk, timeout)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if end := findHeaderEnd(buf); end >= 0 {
				return buf[:end], buf[end:], nil
			}
			if len(buf) > constants.MaxHeaderBlockSize {
				return nil, nil, errors.NewHeadersTooLargeError(constants.MaxHeaderBlockSize)
			}
		}
		if rerr != nil {
			return nil, nil, rerr
		}
	}
}

func findHeaderEnd(buf []byte) int {
	if idx := bytes.Index(buf, []byte("\r\n\r\n")); idx >= 0 {
		return idx + 4
	}
	if idx := bytes.Index(buf, []byte("\n\n")); idx >= 0 {
		return idx + 2
	}
	return -1
}

// SendStreaming performs the request and hands back a Stream positioned
// right after the header block, bypassing the pool entirely: the
// returned Stream owns the connection outright and destroys it on
// completion (see [[package streaming]]).
func (c *Client) SendStreaming(ctx context.Context, req *request.Request) (*response.Response, *streaming.Stream, error) {
	host, port, useTLS, _, err := connTarget(req)
	if err != nil {
		return nil, nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.opts.DefaultTimeout
	}

	conn := httpconn.New(host, port, useTLS)
	if err := conn.Connect(ctx, httpconn.Options{ConnTimeout: timeout}, timing.NewTimer()); err != nil {
		return nil, nil, err
	}

	data, err := req.Serialize()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := conn.SendAll(data, timeout); err != nil {
		conn.Close()
		return nil, nil, err
	}

	headerBytes, leftover, err := readHeaderBlock(conn, timeout)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	resp := response.New(c.opts.BodyMemLimit)
	if _, err := resp.ParseHeaders(headerBytes); err != nil {
		conn.Close()
		return nil, nil, err
	}

	wireMode, contentLength := streaming.DetermineWireMode(resp.Headers)
	stream := streaming.New(conn, wireMode, contentLength, leftover, timeout)
	return resp, stream, nil
}

// SendStreamingSSE is SendStreaming plus an SSE event callback driven to
// completion; it closes the underlying stream before returning.
func (c *Client) SendStreamingSSE(ctx context.Context, req *request.Request, cb func(sse.Event) error) (*response.Response, error) {
	resp, stream, err := c.SendStreaming(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	arena := c.opts.SSEArenaSize
	overflow := c.opts.OverflowPolicy
	if err := stream.StreamSSE(cb, arena, overflow); err != nil {
		return resp, err
	}
	return resp, nil
}

// GetPoolStats reports current pool occupancy, or a zero Stats if pooling
// is disabled.
func (c *Client) GetPoolStats() pool.Stats {
	if c.pool == nil {
		return pool.Stats{PerHost: map[string]pool.HostStats{}}
	}
	return c.pool.GetStats()
}

// CleanupIdleConnections evicts idle pooled connections past MaxIdleTime.
func (c *Client) CleanupIdleConnections() {
	if c.pool != nil {
		c.pool.CleanupIdle()
	}
}

// Close closes every idle pooled connection, releasing their sockets.
// Active (in-flight) connections are unaffected; it's the caller's
// responsibility not to discard a Client with requests still in flight.
// A Client with pooling disabled has nothing to close.
func (c *Client) Close() error {
	if c.pool == nil {
		return nil
	}
	return c.pool.Close()
}
