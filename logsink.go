package authcore

import (
	"io"
	"log/slog"

	"github.com/finflow/authcore/internal/netlog"
)

// LogEvent is one half of a logged HTTP exchange. Authorization and other
// secret headers are already redacted.
type LogEvent = netlog.Event

// LogSink receives request/response events from the core's dispatcher.
// Emit must not block for long; events are dropped or queued according to
// [RequestLogConfig].
type LogSink = netlog.Sink

// NoOpSink discards events.
type NoOpSink = netlog.NoOpSink

// ChannelSink forwards events to a buffered channel.
type ChannelSink = netlog.ChannelSink

// JSONWriterSink writes one JSON document per event.
type JSONWriterSink = netlog.JSONWriterSink

// SlogSink logs events at debug level.
type SlogSink = netlog.SlogSink

// NewChannelSink returns a sink that buffers up to buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	return netlog.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON line per event to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return netlog.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink logging each event at debug level.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return netlog.NewSlogSink(logger)
}
