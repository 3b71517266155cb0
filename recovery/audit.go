package recovery

import (
	"fmt"
	"sync"
	"time"

	"github.com/voicetra/pipeline/translation"
	"github.com/voicetra/pipeline/utils/logger"
)

// maxAuditRecords bounds the in-memory ring; the oldest record is dropped
// once full.
const maxAuditRecords = 1000

// auditLogBuffer bounds how many pending file writes can queue up before
// entries are dropped instead of blocking Classify.
const auditLogBuffer = 256

// Record is one retained classification.
type Record struct {
	Kind      string    `json:"kind"`
	Context   string    `json:"context,omitempty"`
	Strategy  string    `json:"strategy"`
	Trace     string    `json:"trace"`
	Timestamp time.Time `json:"timestamp"`
}

// auditLog is a bounded ring of classification records plus an optional
// best-effort file log fed through a bounded channel and a dedicated
// worker, so callers never wait on disk.
type auditLog struct {
	mu      sync.Mutex
	ring    []Record
	start   int // index of the oldest record
	full    bool
	fileLog logger.Logger
	lines   chan string
	quit    chan struct{}
	done    chan struct{}
}

func newAuditLog() *auditLog {
	return &auditLog{
		ring: make([]Record, 0, maxAuditRecords),
	}
}

// setFile starts the file-log worker. Called at most once.
func (a *auditLog) setFile(path string) error {
	fileLog, err := logger.NewFileLogger(path)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.fileLog = fileLog
	a.lines = make(chan string, auditLogBuffer)
	a.quit = make(chan struct{})
	a.done = make(chan struct{})
	a.mu.Unlock()

	go a.writeLoop()
	return nil
}

// append records one classification in the ring and, when enabled, queues a
// line for the file log. Never blocks, never fails.
func (a *auditLog) append(err error, strategy Strategy) {
	record := Record{
		Kind:      "unknown",
		Strategy:  string(strategy.Kind),
		Trace:     traceOf(err),
		Timestamp: time.Now(),
	}
	if perr, ok := translation.AsPipelineError(err); ok {
		record.Kind = string(perr.Kind)
		record.Context = perr.Context
	}

	a.mu.Lock()
	if len(a.ring) < maxAuditRecords {
		a.ring = append(a.ring, record)
	} else {
		a.ring[a.start] = record
		a.start = (a.start + 1) % maxAuditRecords
		a.full = true
	}
	lines := a.lines
	a.mu.Unlock()

	if lines != nil {
		line := fmt.Sprintf("classified kind=%s strategy=%s trace=%q", record.Kind, record.Strategy, record.Trace)
		select {
		case lines <- line:
		default:
			// Worker is behind; drop the line rather than block the caller.
		}
	}
}

// records returns a copy of retained records, oldest first.
func (a *auditLog) records() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Record, 0, len(a.ring))
	if a.full {
		out = append(out, a.ring[a.start:]...)
		out = append(out, a.ring[:a.start]...)
	} else {
		out = append(out, a.ring...)
	}
	return out
}

// close stops the worker and closes the file log.
func (a *auditLog) close() {
	a.mu.Lock()
	quit := a.quit
	a.mu.Unlock()

	if quit == nil {
		return
	}
	close(quit)
	<-a.done
}

// writeLoop drains queued lines into the file log.
func (a *auditLog) writeLoop() {
	defer close(a.done)
	defer a.fileLog.Close()

	for {
		select {
		case line := <-a.lines:
			a.fileLog.Println(line)
		case <-a.quit:
			// Flush whatever is still queued.
			for {
				select {
				case line := <-a.lines:
					a.fileLog.Println(line)
				default:
					return
				}
			}
		}
	}
}

// traceOf captures the diagnostic error chain for a record.
func traceOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
