package response

import (
	"errors"
	"strings"
	"testing"
)

func TestParseHeadersBasic(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nhello"
	r := New(0)
	offset, err := r.ParseHeaders([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.StatusCode != 200 || r.Reason != "OK" {
		t.Fatalf("unexpected status line: %d %q", r.StatusCode, r.Reason)
	}
	if ct, _ := r.GetHeader("content-type"); ct != "text/plain" {
		t.Fatalf("expected content-type header, got %q", ct)
	}
	if raw[offset:] != "hello" {
		t.Fatalf("expected offset to point at body, got %q", raw[offset:])
	}
	if r.TransferMode != FixedLength || r.ContentLength != 5 {
		t.Fatalf("expected fixed-length framing with length 5, got mode=%d len=%d", r.TransferMode, r.ContentLength)
	}
}

func TestParseHeadersBareLF(t *testing.T) {
	raw := "HTTP/1.1 204 No Content\nX-Test: 1\n\n"
	r := New(0)
	if _, err := r.ParseHeaders([]byte(raw)); err != nil {
		t.Fatalf("expected bare LF to be tolerated, got: %v", err)
	}
	if v, _ := r.GetHeader("X-Test"); v != "1" {
		t.Fatalf("expected header parsed across bare LF, got %q", v)
	}
}

func TestParseHeadersRejectsHTTP2(t *testing.T) {
	r := New(0)
	if _, err := r.ParseHeaders([]byte("HTTP/2.0 200 OK\r\n\r\n")); err == nil {
		t.Fatalf("expected HTTP/2 status line to be rejected")
	}
}

func TestParseHeadersRejectsHTTP09(t *testing.T) {
	r := New(0)
	if _, err := r.ParseHeaders([]byte("not a status line\r\n\r\n")); err == nil {
		t.Fatalf("expected malformed status line to error")
	}
}

func TestTransferModeChunked(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n"
	r := New(0)
	if _, err := r.ParseHeaders([]byte(raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TransferMode != Chunked {
		t.Fatalf("expected chunked transfer mode")
	}
}

func TestTransferModeSSE(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\n\r\n"
	r := New(0)
	if _, err := r.ParseHeaders([]byte(raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TransferMode != SSE {
		t.Fatalf("expected sse transfer mode")
	}
}

func TestTransferModeReadUntilClose(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n\r\n"
	r := New(0)
	if _, err := r.ParseHeaders([]byte(raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TransferMode != ReadUntilClose {
		t.Fatalf("expected read-until-close transfer mode")
	}
}

func TestIsSuccessIsRedirect(t *testing.T) {
	r := New(0)
	r.StatusCode = 204
	if !r.IsSuccess() || r.IsRedirect() {
		t.Fatalf("expected 204 to be success, not redirect")
	}
	r.StatusCode = 302
	if r.IsSuccess() || !r.IsRedirect() {
		t.Fatalf("expected 302 to be redirect, not success")
	}
}

func readerFrom(chunks ...string) Reader {
	i := 0
	return func(buf []byte) (int, error) {
		if i >= len(chunks) {
			return 0, errors.New("eof")
		}
		c := chunks[i]
		i++
		n := copy(buf, c)
		return n, nil
	}
}

func TestReadFixedLength(t *testing.T) {
	r := New(0)
	read := readerFrom("hel", "lo")
	if err := r.ReadFixedLength(read, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(r.Body.Bytes()) != "hello" {
		t.Fatalf("expected body 'hello', got %q", r.Body.Bytes())
	}
}

func TestReadFixedLengthUnderflow(t *testing.T) {
	r := New(0)
	read := readerFrom("hel")
	if err := r.ReadFixedLength(read, 10); err == nil {
		t.Fatalf("expected UnexpectedEndOfStream on underflow")
	}
}

func TestReadChunkedBody(t *testing.T) {
	r := New(0)
	raw := "5\r\nhello\r\n0\r\n\r\n"
	read := readerFrom(raw)
	if err := r.ReadChunked(read); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(r.Body.Bytes()) != "hello" {
		t.Fatalf("expected decoded body 'hello', got %q", r.Body.Bytes())
	}
}

func TestReadUntilCloseTerminatesOnClose(t *testing.T) {
	r := New(0)
	read := readerFrom("part1", "part2")
	if err := r.ReadUntilClose(read); err != nil {
		t.Fatalf("read-until-close termination must not be an error: %v", err)
	}
	if string(r.Body.Bytes()) != "part1part2" {
		t.Fatalf("expected accumulated body, got %q", r.Body.Bytes())
	}
}

func TestJSONDecode(t *testing.T) {
	r := New(0)
	if err := r.ParseBody([]byte(`{"ok":true}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var target struct {
		OK bool `json:"ok"`
	}
	if err := r.JSON(&target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !target.OK {
		t.Fatalf("expected ok=true")
	}
}

func TestGetLocation(t *testing.T) {
	raw := "HTTP/1.1 302 Found\r\nLocation: /new-path\r\n\r\n"
	r := New(0)
	if _, err := r.ParseHeaders([]byte(raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loc, ok := r.GetLocation()
	if !ok || loc != "/new-path" {
		t.Fatalf("expected location header, got %q ok=%v", loc, ok)
	}
}

func TestParseBodyReplacesNotAccumulates(t *testing.T) {
	r := New(0)
	if err := r.ParseBody([]byte("first")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.ParseBody([]byte("second")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(r.Body.Bytes()); got != "second" {
		t.Fatalf("expected replacement semantics, got %q", got)
	}
}

func TestParseHeadersMissingColon(t *testing.T) {
	r := New(0)
	raw := "HTTP/1.1 200 OK\r\nBadHeaderLine\r\n\r\n"
	if _, err := r.ParseHeaders([]byte(raw)); err == nil {
		t.Fatalf("expected error for header line without colon")
	}
}

func TestParseHeadersMultipleHeadersOrder(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nA: 1\r\nB: 2\r\nA: 3\r\n\r\n"
	r := New(0)
	if _, err := r.ParseHeaders([]byte(raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := r.GetHeader("A"); v != "3" {
		t.Fatalf("expected last value to win for repeated header, got %q", v)
	}
	var order []string
	r.Headers.Range(func(k, v string) bool {
		order = append(order, k)
		return true
	})
	if strings.Join(order, ",") != "A,B" {
		t.Fatalf("expected first-seen header order A,B, got %v", order)
	}
}
