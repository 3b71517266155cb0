// Package backoff computes jittered exponential retry delays for transient
// failures. A Generator is a small state machine: each NextDelay call
// consumes one retry slot and returns how long to wait before the attempt,
// until the configured ceiling is reached.
//
// The delay for retry n is min(BaseDelay * 2^n, MaxDelay), with symmetric
// jitter of ±JitterFraction applied so that concurrent clients do not retry
// in lockstep.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// Config tunes a Generator.
type Config struct {
	MaxRetries     int           // retries before NextDelay reports exhaustion
	BaseDelay      time.Duration // delay before the first retry
	MaxDelay       time.Duration // ceiling for the exponential growth
	JitterFraction float64       // symmetric jitter, e.g. 0.10 for ±10%
}

// DefaultConfig returns the pipeline-wide retry envelope defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		BaseDelay:      1 * time.Second,
		MaxDelay:       32 * time.Second,
		JitterFraction: 0.10,
	}
}

// Generator produces the delay sequence for one retry run. Safe for
// concurrent use, though a run is normally owned by a single caller.
type Generator struct {
	cfg        Config
	retryCount int
	mu         sync.Mutex
	rng        *rand.Rand
}

// NewGenerator creates a generator with the given config. Zero or negative
// fields fall back to defaults.
func NewGenerator(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.JitterFraction < 0 || cfg.JitterFraction >= 1 {
		cfg.JitterFraction = def.JitterFraction
	}

	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextDelay returns the delay to apply before the next retry and true, or
// zero and false once all retry slots are consumed. Each successful call
// increments the retry count.
func (g *Generator) NextDelay() (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.retryCount >= g.cfg.MaxRetries {
		return 0, false
	}

	delay := g.cfg.BaseDelay << uint(g.retryCount)
	if delay > g.cfg.MaxDelay || delay <= 0 {
		delay = g.cfg.MaxDelay
	}

	// Scale by a factor uniform in [1-jitter, 1+jitter].
	factor := 1 + g.cfg.JitterFraction*(2*g.rng.Float64()-1)
	delay = time.Duration(float64(delay) * factor)

	g.retryCount++
	return delay, true
}

// Reset zeroes the retry count so the generator can serve an independent
// retry sequence.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retryCount = 0
}

// RetryCount returns how many retry slots have been consumed.
func (g *Generator) RetryCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.retryCount
}
