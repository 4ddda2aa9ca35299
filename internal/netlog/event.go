package netlog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Direction tells whether an event describes the outgoing request or the
// received response.
type Direction string

const (
	DirectionRequest  Direction = "request"
	DirectionResponse Direction = "response"
)

const redacted = "[REDACTED]"

// Event is one logged HTTP exchange half.
type Event struct {
	Timestamp     time.Time         `json:"timestamp"`
	Direction     Direction         `json:"direction"`
	RequestID     string            `json:"request_id"`
	Method        string            `json:"method"`
	URL           string            `json:"url"`
	Status        int               `json:"status,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          string            `json:"body,omitempty"`
	BodyTruncated bool              `json:"body_truncated,omitempty"`
	Duration      time.Duration     `json:"duration_ns,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// Sink receives dispatched events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

// Emit discards the event.
func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink returns a sink that buffers up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

// Emit sends event, blocking until there is room or ctx ends.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events returns the channel events are delivered on.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink returns a sink writing one JSON line per event to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit writes event as one JSON line.
func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// SlogSink logs events at debug level.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink logging each event at debug level.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Emit logs event at debug level.
func (s *SlogSink) Emit(ctx context.Context, event Event) {
	attrs := []slog.Attr{
		slog.String("component", "httpclient"),
		slog.String("request_id", event.RequestID),
		slog.String("method", event.Method),
		slog.String("url", event.URL),
	}
	if event.Status != 0 {
		attrs = append(attrs, slog.Int("status", event.Status))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	if event.Body != "" {
		attrs = append(attrs, slog.String("body", event.Body))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "http "+string(event.Direction), attrs...)
}

// RedactHeaders flattens h and masks credentials.
func RedactHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(h))
	for _, k := range keys {
		switch http.CanonicalHeaderKey(k) {
		case "Authorization":
			if strings.HasPrefix(h.Get(k), "Bearer ") {
				out[k] = "Bearer " + redacted
			} else {
				out[k] = redacted
			}
		case "X-Registration-Token", "X-Reset-Token", "Cookie", "Set-Cookie":
			out[k] = redacted
		default:
			out[k] = strings.Join(h.Values(k), ", ")
		}
	}
	return out
}

// TruncateBody returns at most limit bytes of body. limit <= 0 logs no body.
func TruncateBody(body []byte, limit int) (string, bool) {
	if limit <= 0 || len(body) == 0 {
		return "", len(body) > 0
	}
	if len(body) <= limit {
		return string(body), false
	}
	return string(body[:limit]), true
}
