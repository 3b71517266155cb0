// Package logger provides the small logging surface shared by all pipeline
// components. Components take a Logger by injection and default to noop, so
// hosts decide where diagnostics go (stdout in dev, a file in the app
// container, nothing in tests).
package logger

import (
	"io"
	"log"
	"os"
)

// Logger is the logging interface for pipeline components.
// All implementations must be safe for concurrent use across goroutines.
type Logger interface {
	// Type returns the type of the logger
	Type() LoggerType
	// Printf logs a formatted message
	Printf(format string, args ...any)
	// Println logs a message with a newline
	Println(message string)
	// Close closes the logger
	Close() error
}

type LoggerType string

const (
	LoggerTypeStdout LoggerType = "stdout"
	LoggerTypeFile   LoggerType = "file"
	LoggerTypeNoop   LoggerType = "noop"
	LoggerTypeWriter LoggerType = "writer"
	LoggerTypeMulti  LoggerType = "multi"
)

// StdoutLogger writes to stdout through the standard log package.
type StdoutLogger struct {
	logger *log.Logger
}

var _ Logger = (*StdoutLogger)(nil)

// NewStdoutLogger creates a logger that writes to stdout.
func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{logger: log.New(os.Stdout, "", log.LstdFlags)}
}

func (s *StdoutLogger) Type() LoggerType {
	return LoggerTypeStdout
}
func (s *StdoutLogger) Printf(format string, args ...any) {
	s.logger.Printf(format, args...)
}
func (s *StdoutLogger) Println(message string) {
	s.logger.Println(message)
}
func (s *StdoutLogger) Close() error {
	return nil
}

// NoopLogger discards all log messages. Useful for testing or when logging
// is disabled.
type NoopLogger struct{}

var _ Logger = (*NoopLogger)(nil)

// NewNoopLogger creates a logger that discards all output.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (n *NoopLogger) Type() LoggerType {
	return LoggerTypeNoop
}
func (n *NoopLogger) Printf(format string, args ...any) {
}
func (n *NoopLogger) Println(message string) {
}
func (n *NoopLogger) Close() error {
	return nil
}

// WriterLogger adapts any io.Writer to the Logger interface.
// Thread safety depends on the underlying writer.
type WriterLogger struct {
	logger *log.Logger
}

var _ Logger = (*WriterLogger)(nil)

// NewWriterLogger creates a logger from any io.Writer.
func NewWriterLogger(w io.Writer) *WriterLogger {
	return &WriterLogger{logger: log.New(w, "", log.LstdFlags)}
}

func (w *WriterLogger) Type() LoggerType {
	return LoggerTypeWriter
}
func (w *WriterLogger) Printf(format string, args ...any) {
	w.logger.Printf(format, args...)
}
func (w *WriterLogger) Println(message string) {
	w.logger.Println(message)
}
func (w *WriterLogger) Close() error {
	return nil
}

// MultiLogger writes to multiple loggers simultaneously.
// Safe for concurrent use if all underlying loggers are safe.
type MultiLogger struct {
	loggers []Logger
}

var _ Logger = (*MultiLogger)(nil)

// NewMultiLogger creates a logger that writes to multiple destinations.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

func (m *MultiLogger) Type() LoggerType {
	return LoggerTypeMulti
}

func (m *MultiLogger) Printf(format string, args ...any) {
	for _, l := range m.loggers {
		l.Printf(format, args...)
	}
}

func (m *MultiLogger) Println(message string) {
	for _, l := range m.loggers {
		l.Println(message)
	}
}

func (m *MultiLogger) Close() error {
	for _, l := range m.loggers {
		l.Close()
	}
	return nil
}
