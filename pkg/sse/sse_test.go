package sse

import "testing"

func TestSSEMultiline(t *testing.T) {
	tok := New()
	events := tok.ParseChunk([]byte("data: Line 1\ndata: Line 2\ndata: Line 3\n\n"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Data != "Line 1\nLine 2\nLine 3" {
		t.Fatalf("unexpected data: %q", ev.Data)
	}
	if ev.ID != "" || ev.Event != "" {
		t.Fatalf("expected no id/event, got id=%q event=%q", ev.ID, ev.Event)
	}
}

func TestSSEWithIDAndEvent(t *testing.T) {
	tok := New()
	events := tok.ParseChunk([]byte("id: 42\nevent: ping\ndata: hi\n\n"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.ID != "42" || ev.Event != "ping" || ev.Data != "hi" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if tok.LastEventID() != "42" {
		t.Fatalf("expected last event id 42, got %s", tok.LastEventID())
	}
}

func TestSSENoDataNoEmit(t *testing.T) {
	tok := New()
	events := tok.ParseChunk([]byte("id: 7\nevent: ping\n\n"))
	if len(events) != 0 {
		t.Fatalf("expected no events without data field, got %d", len(events))
	}
	if tok.LastEventID() != "7" {
		t.Fatalf("expected last event id updated even without emit, got %s", tok.LastEventID())
	}
}

func TestSSECommentIgnored(t *testing.T) {
	tok := New()
	events := tok.ParseChunk([]byte(": this is a comment\ndata: hi\n\n"))
	if len(events) != 1 || events[0].Data != "hi" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestSSEFieldOnlyNoColon(t *testing.T) {
	tok := New()
	events := tok.ParseChunk([]byte("data\n\n"))
	if len(events) != 1 || events[0].Data != "" {
		t.Fatalf("expected single empty-data event, got %+v", events)
	}
}

func TestSSERetry(t *testing.T) {
	tok := New()
	events := tok.ParseChunk([]byte("retry: 5000\ndata: x\n\n"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event")
	}
	if !events[0].HasRetry || events[0].Retry != 5000 {
		t.Fatalf("expected retry 5000, got %+v", events[0])
	}
}

func TestSSERetryInvalidIgnored(t *testing.T) {
	tok := New()
	events := tok.ParseChunk([]byte("retry: notanumber\ndata: x\n\n"))
	if len(events) != 1 {
		t.Fatalf("expected 1 event")
	}
	if events[0].HasRetry {
		t.Fatalf("expected retry to be ignored on parse failure")
	}
}

func TestSSEAcrossChunkBoundaries(t *testing.T) {
	whole := "id: 1\nevent: msg\ndata: Line 1\ndata: Line 2\n\n"
	ref := New().ParseChunk([]byte(whole))

	for split := 1; split < len(whole); split++ {
		tok := New()
		var got []Event
		got = append(got, tok.ParseChunk([]byte(whole[:split]))...)
		got = append(got, tok.ParseChunk([]byte(whole[split:]))...)
		if len(got) != len(ref) {
			t.Fatalf("split=%d: expected %d events, got %d", split, len(ref), len(got))
		}
		for i := range ref {
			if got[i] != ref[i] {
				t.Fatalf("split=%d: event %d mismatch: expected %+v, got %+v", split, i, ref[i], got[i])
			}
		}
	}
}

func TestSSEByteByByte(t *testing.T) {
	whole := "id: 1\nevent: msg\ndata: Line 1\ndata: Line 2\n\n"
	ref := New().ParseChunk([]byte(whole))

	tok := New()
	var got []Event
	for i := 0; i < len(whole); i++ {
		got = append(got, tok.ParseChunk([]byte{whole[i]})...)
	}
	if len(got) != len(ref) {
		t.Fatalf("expected %d events, got %d", len(ref), len(got))
	}
}

func TestSSEMultipleEventsOneChunk(t *testing.T) {
	tok := New()
	events := tok.ParseChunk([]byte("data: first\n\ndata: second\n\n"))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Data != "first" || events[1].Data != "second" {
		t.Fatalf("unexpected events: %+v", events)
	}
}
