// Package sse implements the incremental Server-Sent Events tokenizer
// conformant to the W3C EventSource algorithm: parse_chunk(bytes) emits
// zero or more fully assembled events, correctly across arbitrary chunk
// boundaries. Like chunked, this is a pure state machine with no teacher
// equivalent (go-rawhttp has no SSE support) — built directly from the
// event-source algorithm in the same incremental idiom as
// [[package chunked]].
package sse

import (
	"strconv"
	"strings"
)

// Event is one fully assembled Server-Sent Event.
type Event struct {
	ID    string
	Event string
	Data  string
	Retry int
	// HasRetry reports whether a valid "retry" field was present.
	HasRetry bool
}

// Tokenizer incrementally parses a byte stream into Events.
type Tokenizer struct {
	partialLine []byte // bytes after the last '\n' seen so far

	id       string
	event    string
	data     strings.Builder
	hasData  bool
	hasID    bool
	retry    int
	hasRetry bool

	lastEventID string
}

// New creates an empty tokenizer.
func New() *Tokenizer {
	return &Tokenizer{}
}

// LastEventID returns the most recently observed "id" field value across
// all events dispatched so far.
func (t *Tokenizer) LastEventID() string {
	return t.lastEventID
}

// PendingSize returns the number of bytes currently buffered toward the
// in-progress event (accumulated data plus any unterminated trailing
// line), letting a caller enforce a bounded arena before the next
// ParseChunk call would grow it further.
func (t *Tokenizer) PendingSize() int {
	return t.data.Len() + len(t.partialLine)
}

// ParseChunk feeds bytes into the tokenizer and returns every event
// dispatched as a result (possibly none, possibly several).
func (t *Tokenizer) ParseChunk(chunk []byte) []Event {
	var events []Event

	buf := append(t.partialLine, chunk...)
	t.partialLine = nil

	start := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] != '\n' {
			continue
		}
		line := buf[start:i]
		start = i + 1
		line = trimTrailingCR(line)
		if ev, ok := t.processLine(string(line)); ok {
			events = append(events, ev)
		}
	}

	if start < len(buf) {
		t.partialLine = append(t.partialLine, buf[start:]...)
	}

	return events
}

func trimTrailingCR(line []byte) []byte {
	if len(line) > 0 && line[len(line)-1] == '\r' {
		return line[:len(line)-1]
	}
	return line
}

// processLine handles one already-unescaped line (no trailing \r or \n).
// Returns the dispatched event and true if this line was an empty line
// that triggered dispatch.
func (t *Tokenizer) processLine(line string) (Event, bool) {
	if line == "" {
		return t.dispatch()
	}
	if strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	field := line
	value := ""
	if idx := strings.IndexByte(line, ':'); idx >= 0 {
		field = line[:idx]
		value = line[idx+1:]
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "id":
		t.id = value
		t.hasID = true
	case "event":
		t.event = value
	case "data":
		t.data.WriteString(value)
		t.data.WriteByte('\n')
		t.hasData = true
	case "retry":
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			t.retry = n
			t.hasRetry = true
		}
	default:
		// ignored
	}
	return Event{}, false
}

// dispatch emits the accumulated event iff data was observed, then resets
// the builder.
func (t *Tokenizer) dispatch() (Event, bool) {
	defer t.reset()

	if t.hasID {
		t.lastEventID = t.id
	}

	if !t.hasData {
		return Event{}, false
	}

	data := t.data.String()
	data = strings.TrimSuffix(data, "\n")

	ev := Event{
		Event: t.event,
		Data:  data,
	}
	if t.hasID {
		ev.ID = t.id
	}
	if t.hasRetry {
		ev.Retry = t.retry
		ev.HasRetry = true
	}
	return ev, true
}

func (t *Tokenizer) reset() {
	t.id = ""
	t.event = ""
	t.data.Reset()
	t.hasData = false
	t.hasID = false
	t.retry = 0
	t.hasRetry = false
}
