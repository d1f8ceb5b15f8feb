// Package response implements the Response component: status + headers +
// decoded body, a header parser, and the body-framing strategies (fixed
// length, chunked, read-until-close; an SSE transfer mode is detected here
// but has no reader of its own). Grounded on the teacher's
// readHeaders/readBody/readChunkedBody/readFixedBody/readUntilClose family
// (go-rawhttp's pkg/client/client.go), restructured as a header parser plus
// pluggable framing strategies instead of one monolithic method, and made
// to RAISE the framing errors the core spec names as first-class
// (UnexpectedEndOfStream, UnexpectedEof, ...) rather than silently
// tolerating RFC violations the way a raw-HTTP debugging library does.
package response

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/oneopane/webhttp/pkg/buffer"
	"github.com/oneopane/webhttp/pkg/chunked"
	"github.com/oneopane/webhttp/pkg/errors"
	"github.com/oneopane/webhttp/pkg/headers"
	"github.com/oneopane/webhttp/pkg/jsoncodec"
)

// TransferMode describes how the response body is framed on the wire.
type TransferMode int

const (
	FixedLength TransferMode = iota
	Chunked
	SSE
	ReadUntilClose
)

// Response is {status_code, http_version, headers, body?, transfer_mode}.
type Response struct {
	StatusCode  int
	HTTPVersion string // always "1.1" once parsed successfully
	Reason      string
	Headers     *headers.Map

	TransferMode    TransferMode
	ContentLength   int64
	hasContentLen   bool
	bodyMemoryLimit int64

	Body *buffer.Buffer
}

// New creates an empty Response. bodyMemoryLimit bounds the in-memory
// portion of the body buffer before it spills to disk (see
// [[package buffer]]); 0 selects buffer's own default.
func New(bodyMemoryLimit int64) *Response {
	return &Response{
		Headers:         headers.New(),
		bodyMemoryLimit: bodyMemoryLimit,
	}
}

// ParseHeaders parses a well-formed status line followed by zero or more
// "Name: value" lines terminated by a blank line, tolerating CRLF or bare
// LF line endings. It returns the offset in raw immediately after the
// blank line (the start of any body bytes captured in the same read).
func (r *Response) ParseHeaders(raw []byte) (int, error) {
	if len(raw) == 0 {
		return 0, errors.NewEmptyResponseError()
	}

	offset := 0
	firstLine, next, ok := readLine(raw, offset)
	if !ok {
		return 0, errors.NewMalformedResponseError("truncated status line", nil)
	}
	offset = next

	if err := r.parseStatusLine(string(firstLine)); err != nil {
		return 0, err
	}

	for {
		line, next, ok := readLine(raw, offset)
		if !ok {
			return 0, errors.NewMalformedResponseError("truncated headers", nil)
		}
		offset = next
		if len(line) == 0 {
			break
		}
		if err := r.parseHeaderLine(string(line)); err != nil {
			return 0, err
		}
	}

	r.determineTransferMode()
	return offset, nil
}

// readLine returns the line starting at offset (without its terminator)
// and the offset just past the terminator. A line may end in "\r\n" or a
// bare "\n". ok is false if no terminator was found before the end of raw.
func readLine(raw []byte, offset int) ([]byte, int, bool) {
	idx := bytes.IndexByte(raw[offset:], '\n')
	if idx < 0 {
		return nil, offset, false
	}
	end := offset + idx
	line := raw[offset:end]
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, end + 1, true
}

func (r *Response) parseStatusLine(line string) error {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return errors.NewMalformedResponseError("malformed status line: "+line, nil)
	}

	version := parts[0]
	major, minor, ok := parseHTTPVersion(version)
	if !ok {
		return errors.NewMalformedResponseError("malformed HTTP version: "+version, nil)
	}
	if major == 0 {
		return errors.NewHTTPVersionNotSupportedError(version)
	}
	if major != 1 {
		// HTTP/2 and HTTP/3 status lines are rejected outright rather than
		// silently downgraded to 1.1 (see DESIGN.md open-question decision).
		return errors.NewHTTPVersionNotSupportedError(version)
	}
	_ = minor
	r.HTTPVersion = "1.1"

	statusCode, err := strconv.Atoi(parts[1])
	if err != nil || statusCode < 100 || statusCode > 599 {
		return errors.NewMalformedResponseError("invalid status code: "+parts[1], nil)
	}
	r.StatusCode = statusCode

	if len(parts) == 3 {
		r.Reason = parts[2]
	}
	return nil
}

// parseHTTPVersion parses "HTTP/x.y", returning ok=false if it doesn't
// even match that shape (as with a bare HTTP/0.9 response, which has no
// status line; the caller reports MalformedResponse). A version string
// such as "HTTP/0.9" parses with major=0, which the caller rejects as
// HTTPVersionNotSupported.
func parseHTTPVersion(s string) (major, minor int, ok bool) {
	if !strings.HasPrefix(s, "HTTP/") {
		return 0, 0, false
	}
	rest := s[len("HTTP/"):]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return 0, 0, false
	}
	majorN, err1 := strconv.Atoi(rest[:dot])
	minorN, err2 := strconv.Atoi(rest[dot+1:])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return majorN, minorN, true
}

func (r *Response) parseHeaderLine(line string) error {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return errors.NewMalformedResponseError("header line missing colon: "+line, nil)
	}
	name := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])
	if name == "" {
		return errors.NewMalformedResponseError("empty header name", nil)
	}
	r.Headers.Set(name, value)
	return nil
}

// determineTransferMode selects the body framing after headers are parsed:
// chunked > SSE > fixed_length > read_until_close.
func (r *Response) determineTransferMode() {
	if te, ok := r.Headers.Get("Transfer-Encoding"); ok && containsToken(te, "chunked") {
		r.TransferMode = Chunked
		return
	}
	if ct, ok := r.Headers.Get("Content-Type"); ok && strings.HasPrefix(strings.TrimSpace(ct), "text/event-stream") {
		r.TransferMode = SSE
		return
	}
	if cl, ok := r.Headers.Get("Content-Length"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64); err == nil && n >= 0 {
			r.TransferMode = FixedLength
			r.ContentLength = n
			r.hasContentLen = true
			return
		}
	}
	r.TransferMode = ReadUntilClose
}

func containsToken(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

// GetHeader looks up a header case-insensitively.
func (r *Response) GetHeader(name string) (string, bool) {
	return r.Headers.Get(name)
}

// GetContentLength returns the parsed Content-Length, if present.
func (r *Response) GetContentLength() (int64, bool) {
	return r.ContentLength, r.hasContentLen
}

// IsSuccess reports whether StatusCode is in [200, 300).
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsRedirect reports whether StatusCode is in [300, 400).
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// GetLocation returns the Location header, if present.
func (r *Response) GetLocation() (string, bool) {
	return r.Headers.Get("Location")
}

// JSON decodes the body into target via the JSON collaborator.
func (r *Response) JSON(target interface{}) error {
	if r.Body == nil {
		return errors.NewEmptyResponseError()
	}
	reader, err := r.Body.Reader()
	if err != nil {
		return err
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return errors.NewIOError("read_body_for_json", err)
	}
	return jsoncodec.Decode(buf.Bytes(), target)
}

// ensureBody lazily allocates the owned body buffer.
func (r *Response) ensureBody() *buffer.Buffer {
	if r.Body == nil {
		r.Body = buffer.New(r.bodyMemoryLimit)
	}
	return r.Body
}

// ParseBody copies data into owned storage, idempotently replacing any
// prior body. Per the core spec's open question, repeated calls replace
// rather than accumulate — callers must not rely on idempotence across
// different inputs.
func (r *Response) ParseBody(data []byte) error {
	if r.Body != nil {
		if err := r.Body.Reset(); err != nil {
			return errors.NewIOError("reset_body", err)
		}
	} else {
		r.ensureBody()
	}
	if _, err := r.Body.Write(data); err != nil {
		return errors.NewIOError("write_body", err)
	}
	return nil
}

// Reader is the byte-source contract the body-framing strategies read
// from: one "read some bytes" call per invocation, mirroring
// httpconn.Connection.RecvSome/RecvAll so the orchestrator can feed either
// directly.
type Reader func(buf []byte) (int, error)

// ReadFixedLength reads exactly n bytes via read into the owned body.
// Underflow (the stream ends before n bytes are seen) is
// UnexpectedEndOfStream: partial responses are never surfaced.
func (r *Response) ReadFixedLength(read Reader, n int64) error {
	body := r.ensureBody()
	buf := make([]byte, 8192)
	var total int64
	for total < n {
		want := int64(len(buf))
		if remaining := n - total; remaining < want {
			want = remaining
		}
		read1, err := read(buf[:want])
		if read1 > 0 {
			if _, werr := body.Write(buf[:read1]); werr != nil {
				return errors.NewIOError("write_body", werr)
			}
			total += int64(read1)
		}
		if err != nil {
			if total < n {
				return errors.NewUnexpectedEndOfStreamError(n, total)
			}
			break
		}
	}
	return nil
}

// ReadChunked drives the chunked decoder against read until completion,
// writing decoded bytes into the owned body.
func (r *Response) ReadChunked(read Reader) error {
	body := r.ensureBody()
	dec := chunked.New()
	buf := make([]byte, 8192)
	var out bytes.Buffer

	for !dec.IsComplete() {
		n, err := read(buf)
		if n > 0 {
			if _, perr := dec.Parse(buf[:n], &out); perr != nil {
				return perr
			}
		}
		if out.Len() > 0 {
			if _, werr := body.Write(out.Bytes()); werr != nil {
				return errors.NewIOError("write_body", werr)
			}
			out.Reset()
		}
		if err != nil {
			if !dec.IsComplete() {
				return errors.NewUnexpectedEOFError("read_chunked_body")
			}
			break
		}
	}
	return nil
}

// ReadUntilClose drains read until it reports an error (expected to be the
// peer closing the connection), writing everything into the owned body.
// This is not itself an error condition: read_until_close terminates on
// the zero-return/closed signal by design.
func (r *Response) ReadUntilClose(read Reader) error {
	body := r.ensureBody()
	buf := make([]byte, 8192)
	for {
		n, err := read(buf)
		if n > 0 {
			if _, werr := body.Write(buf[:n]); werr != nil {
				return errors.NewIOError("write_body", werr)
			}
		}
		if err != nil {
			return nil
		}
	}
}
