package rate_limit

import (
	"sync"
	"time"

	"github.com/voicetra/pipeline/utils/logger"
)

// Config defines the admission budget for a sliding window.
type Config struct {
	Limit  int           // admissions allowed per window
	Window time.Duration // trailing window size
}

// DefaultConfig matches the backend's published quota: 60 requests per
// trailing 60 seconds.
func DefaultConfig() Config {
	return Config{
		Limit:  60,
		Window: 60 * time.Second,
	}
}

// Limiter is a sliding-window admission controller. It retains the timestamp
// of every admission inside the trailing window and refuses new admissions
// once the window is full. Safe for concurrent use.
type Limiter struct {
	cfg        Config
	admissions []time.Time
	mu         sync.Mutex
	now        func() time.Time
	logger     logger.Logger
}

// NewLimiter creates a limiter with the given config. Zero or negative
// config fields fall back to defaults.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}

	return &Limiter{
		cfg:        cfg,
		admissions: make([]time.Time, 0, cfg.Limit),
		now:        time.Now,
		logger:     logger.NewNoopLogger(),
	}
}

// SetLogger sets the logger for defensive-path diagnostics.
func (l *Limiter) SetLogger(log logger.Logger) *Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = log
	return l
}

// SetNowFuncForTests overrides the clock source (used primarily for testing).
func (l *Limiter) SetNowFuncForTests(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// CanAdmit prunes expired admissions and reports whether a new request may
// proceed now. The prune is a side effect: repeated checks keep the window
// tight even without new admissions.
func (l *Limiter) CanAdmit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune()
	return len(l.admissions) < l.cfg.Limit
}

// RecordAdmission appends the current time to the window. Callers invoke it
// after CanAdmit returned true and immediately before the outbound call.
func (l *Limiter) RecordAdmission() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune()
	l.admissions = append(l.admissions, l.now())
}

// TimeUntilNextSlot returns how long until the oldest admission ages out of
// the window, and true, when the limiter is saturated. When admission is
// currently possible it returns zero and false.
func (l *Limiter) TimeUntilNextSlot() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune()
	if len(l.admissions) >= l.cfg.Limit {
		if len(l.admissions) == 0 {
			// Saturated with an empty window can only mean the limit was
			// misconfigured to zero. Log and report no wait rather than crash.
			l.logger.Printf("rate_limit: saturated with empty window (limit=%d)", l.cfg.Limit)
			return 0, false
		}

		wait := l.admissions[0].Add(l.cfg.Window).Sub(l.now())
		if wait < 0 {
			wait = 0
		}
		return wait, true
	}

	return 0, false
}

// Size returns the number of admissions currently retained in the window.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune()
	return len(l.admissions)
}

// prune drops admissions older than the trailing window.
// Note: caller must hold the lock.
func (l *Limiter) prune() {
	cutoff := l.now().Add(-l.cfg.Window)
	i := 0
	for i < len(l.admissions) && !l.admissions[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.admissions = append(l.admissions[:0], l.admissions[i:]...)
	}
}
