package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// Config bounds a sliding window: at most MaxRequests hits per Window.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Result is the outcome of a limit check. ResetAt is when the oldest hit in
// the window ages out, i.e. the earliest moment a denied caller can retry.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Counter is the backing store for hit counts. The in-memory implementation
// below ships with the binary; a hosted cache can sit behind the same
// interface.
type Counter interface {
	// Add records a hit for key, drops hits older than cutoff, and returns
	// the count of hits inside the window plus the oldest remaining hit.
	Add(key string, now, cutoff time.Time) (count int, oldest time.Time, err error)
}

// Limiter applies sliding-window rate limits. On a counter failure it fails
// open: throttling is best-effort and never takes the product down with it.
type Limiter struct {
	counter Counter
	now     func() time.Time
	logger  *slog.Logger
}

func New(counter Counter, logger *slog.Logger) *Limiter {
	return &Limiter{counter: counter, now: time.Now, logger: logger}
}

// SetClock overrides the time source, for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// Check records a hit for key and reports whether it is allowed under cfg.
func (l *Limiter) Check(key string, cfg Config) Result {
	now := l.now()
	count, oldest, err := l.counter.Add(key, now, now.Add(-cfg.Window))
	if err != nil {
		l.logger.Warn("rate limit counter unavailable, failing open", "key", key, "error", err)
		return Result{Allowed: true, Remaining: cfg.MaxRequests, ResetAt: now}
	}

	remaining := cfg.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= cfg.MaxRequests,
		Remaining: remaining,
		ResetAt:   oldest.Add(cfg.Window),
	}
}

// MemoryCounter is the in-process Counter: a per-key log of hit timestamps.
type MemoryCounter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{hits: make(map[string][]time.Time)}
}

func (c *MemoryCounter) Add(key string, now, cutoff time.Time) (int, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.hits[key][:0]
	for _, h := range c.hits[key] {
		if h.After(cutoff) {
			kept = append(kept, h)
		}
	}
	kept = append(kept, now)
	c.hits[key] = kept

	return len(kept), kept[0], nil
}

// Cleanup drops keys whose entire hit log is older than cutoff.
func (c *MemoryCounter) Cleanup(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, hits := range c.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(c.hits, key)
		}
	}
}
