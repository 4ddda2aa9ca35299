package netlog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 || d.Enabled() {
		t.Fatal("nil dispatcher must be inert")
	}
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{RequestID: "r"})
	}
	d.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 events after drain, got %d", got)
	}
	d.Emit(context.Background(), Event{})
	if got := sink.count.Load(); got != 50 {
		t.Fatalf("emit after close must be ignored, got %d", got)
	}
}

func TestDropIfFullNeverBlocks(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Emit(context.Background(), Event{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked with DropIfFull")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events")
	}
	close(sink.gate)
	d.Close()
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{Direction: DirectionRequest, Method: "GET", URL: "http://x/users/my-profile"})
	sink.Emit(context.Background(), Event{Direction: DirectionResponse, Status: 200})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Method != "GET" || ev.Direction != DirectionRequest {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret-token")
	h.Set("X-Reset-Token", "reset")
	h.Set("Api-Version", "1")

	out := RedactHeaders(h)
	if strings.Contains(out["Authorization"], "secret") {
		t.Fatalf("bearer leaked: %q", out["Authorization"])
	}
	if out["X-Reset-Token"] != redacted {
		t.Fatalf("reset token leaked: %q", out["X-Reset-Token"])
	}
	if out["Api-Version"] != "1" {
		t.Fatalf("unexpected api version %q", out["Api-Version"])
	}
}

func TestTruncateBody(t *testing.T) {
	if s, tr := TruncateBody([]byte("abcdef"), 3); s != "abc" || !tr {
		t.Fatalf("got %q %v", s, tr)
	}
	if s, tr := TruncateBody([]byte("ab"), 3); s != "ab" || tr {
		t.Fatalf("got %q %v", s, tr)
	}
	if s, _ := TruncateBody([]byte("ab"), 0); s != "" {
		t.Fatalf("zero limit should log nothing, got %q", s)
	}
}
