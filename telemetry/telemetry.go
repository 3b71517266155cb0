// Package telemetry records the outcome of every API attempt. Sinks are
// fire-and-forget: Record must never block or fail in a way the caller can
// observe.
package telemetry

import (
	"time"

	"github.com/voicetra/pipeline/utils/logger"
)

// Event describes one attempt against the translation backend, successful
// or not.
type Event struct {
	Operation   string        // e.g. "translate"
	Attempt     int           // 1-based attempt number within one call
	Duration    time.Duration // wall time of the attempt
	PayloadSize int           // request body size in bytes
	StatusCode  int           // HTTP status, 0 when no response was received
	ErrorKind   string        // taxonomy kind, "" on success
	Timestamp   time.Time
}

// Sink receives attempt events. Implementations must be safe for concurrent
// use and must not block the caller.
type Sink interface {
	Record(event Event)
}

// NoopSink discards every event.
type NoopSink struct{}

var _ Sink = (*NoopSink)(nil)

// NewNoopSink creates a sink that discards all events.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) Record(event Event) {
}

// LoggerSink writes one line per event to a Logger.
type LoggerSink struct {
	log logger.Logger
}

var _ Sink = (*LoggerSink)(nil)

// NewLoggerSink creates a sink that logs each event.
func NewLoggerSink(log logger.Logger) *LoggerSink {
	return &LoggerSink{log: log}
}

func (s *LoggerSink) Record(event Event) {
	outcome := event.ErrorKind
	if outcome == "" {
		outcome = "ok"
	}
	s.log.Printf("telemetry: op=%s attempt=%d status=%d outcome=%s duration=%s payload=%dB",
		event.Operation, event.Attempt, event.StatusCode, outcome, event.Duration, event.PayloadSize)
}

// MultiSink fans events out to several sinks.
type MultiSink struct {
	sinks []Sink
}

var _ Sink = (*MultiSink)(nil)

// NewMultiSink creates a sink that records to every given sink.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Record(event Event) {
	for _, s := range m.sinks {
		s.Record(event)
	}
}
