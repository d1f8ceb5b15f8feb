// Package chunked implements the incremental RFC 7230 §4.1 chunked
// transfer-coding decoder as a pure state machine: parse(input) -> output,
// driven by repeated calls so the same decoder can be fed by either the
// orchestrator's header-read loop or a streaming consumer. It does not read
// from a socket itself; the caller supplies bytes and reads back decoded
// bytes. Grounded on the body-framing logic in the teacher's
// readChunkedBody (go-rawhttp's pkg/client/client.go), inverted from a
// blocking bufio.Reader loop into an incremental state machine so callback
// and iterator streaming can share it.
package chunked

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/oneopane/webhttp/pkg/errors"
)

// State is one of the five states the decoder can be in.
type State int

const (
	WaitingSize State = iota
	ReadingData
	ReadingDataTrailer
	ReadingTrailers
	Complete
)

// maxSizeLineLen bounds the partial chunk-size line buffered across calls.
// Must accept at least 16 bytes of hex plus extensions; chosen generously
// to tolerate verbose chunk-extension syntax without being unbounded.
const maxSizeLineLen = 1024

// Decoder is the incremental chunked-transfer decoder.
type Decoder struct {
	state State

	sizeBuf  []byte // partial chunk-size line, buffered across Parse calls
	expected int64  // bytes expected in the current chunk
	received int64  // bytes consumed from the current chunk so far

	trailerCRLF []byte // partial "\r\n" chunk-data-trailer seen so far
	trailerLine []byte // partial trailer line, for ReadingTrailers
}

// New creates a decoder in the WaitingSize state.
func New() *Decoder {
	return &Decoder{state: WaitingSize}
}

// State returns the decoder's current state.
func (d *Decoder) State() State {
	return d.state
}

// IsComplete reports whether the terminating empty line after trailers has
// been seen.
func (d *Decoder) IsComplete() bool {
	return d.state == Complete
}

// Parse consumes as much of input as the current state machine can use,
// appending decoded body bytes to output (a *bytes.Buffer), and returns the
// number of bytes appended to output. It may be called repeatedly with
// further input, including byte-by-byte, and must produce the same decoded
// output as a single call with the concatenation of all inputs.
func (d *Decoder) Parse(input []byte, output *bytes.Buffer) (int, error) {
	appended := 0
	for len(input) > 0 && d.state != Complete {
		var n int
		var err error
		switch d.state {
		case WaitingSize:
			n, input, err = d.parseSize(input)
		case ReadingData:
			n, input, err = d.parseData(input, output)
		case ReadingDataTrailer:
			n, input, err = d.parseDataTrailer(input)
		case ReadingTrailers:
			n, input, err = d.parseTrailerLine(input)
		}
		appended += n
		if err != nil {
			return appended, err
		}
	}
	return appended, nil
}

// parseSize scans for the line-ending '\n' of the chunk-size line,
// buffering a partial line across calls.
func (d *Decoder) parseSize(input []byte) (int, []byte, error) {
	idx := bytes.IndexByte(input, '\n')
	if idx < 0 {
		if len(d.sizeBuf)+len(input) > maxSizeLineLen {
			return 0, nil, errors.NewInvalidChunkSizeError(string(d.sizeBuf) + string(input))
		}
		d.sizeBuf = append(d.sizeBuf, input...)
		return 0, nil, nil
	}

	line := append(d.sizeBuf, input[:idx]...)
	d.sizeBuf = nil
	rest := input[idx+1:]

	line = bytes.TrimSuffix(line, []byte("\r"))
	hexPart := line
	if semi := bytes.IndexByte(line, ';'); semi >= 0 {
		hexPart = line[:semi]
	}
	hexPart = bytes.TrimSpace(hexPart)
	if len(hexPart) == 0 {
		return 0, nil, errors.NewInvalidChunkSizeError(string(line))
	}

	size, err := strconv.ParseInt(strings.TrimSpace(string(hexPart)), 16, 64)
	if err != nil || size < 0 {
		return 0, nil, errors.NewInvalidChunkSizeError(string(hexPart))
	}

	d.expected = size
	d.received = 0
	if size == 0 {
		d.state = ReadingTrailers
	} else {
		d.state = ReadingData
	}
	return 0, rest, nil
}

// parseData copies up to expected-received bytes into output.
func (d *Decoder) parseData(input []byte, output *bytes.Buffer) (int, []byte, error) {
	remaining := d.expected - d.received
	take := int64(len(input))
	if take > remaining {
		take = remaining
	}
	output.Write(input[:take])
	d.received += take
	rest := input[take:]
	if d.received == d.expected {
		d.state = ReadingDataTrailer
		d.trailerCRLF = nil
	}
	return int(take), rest, nil
}

// parseDataTrailer consumes exactly "\r\n" after chunk data, tolerating a
// split across calls.
func (d *Decoder) parseDataTrailer(input []byte) (int, []byte, error) {
	want := []byte("\r\n")
	for len(input) > 0 && len(d.trailerCRLF) < len(want) {
		b := input[0]
		if b != want[len(d.trailerCRLF)] {
			return 0, nil, errors.NewMalformedChunkError("expected CRLF after chunk data")
		}
		d.trailerCRLF = append(d.trailerCRLF, b)
		input = input[1:]
	}
	if len(d.trailerCRLF) == len(want) {
		d.trailerCRLF = nil
		d.state = WaitingSize
	}
	return 0, input, nil
}

// parseTrailerLine reads trailer lines until an empty line, ignoring their
// content: no trailer headers are surfaced by this decoder.
func (d *Decoder) parseTrailerLine(input []byte) (int, []byte, error) {
	idx := bytes.IndexByte(input, '\n')
	if idx < 0 {
		d.trailerLine = append(d.trailerLine, input...)
		return 0, nil, nil
	}
	line := append(d.trailerLine, input[:idx]...)
	d.trailerLine = nil
	rest := input[idx+1:]

	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		d.state = Complete
	}
	return 0, rest, nil
}
