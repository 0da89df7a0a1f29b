package client

import (
	"math/rand"
	"sync"
	"time"
)

// Reconnection backoff constants. The first attempts use a fixed table;
// past the table the last entry doubles per attempt up to the cap.
const (
	// MaxReconnectDelay is the hard cap on the reconnection delay.
	MaxReconnectDelay = 60 * time.Second
)

// DefaultDelayTable holds the delays for the first reconnection attempts.
func DefaultDelayTable() []time.Duration {
	return []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		5 * time.Second,
	}
}

// Backoff computes reconnection delays. The attempt counter advances on
// Next and resets to zero after any successful handshake.
type Backoff struct {
	mu sync.Mutex

	table []time.Duration
	max   time.Duration

	// Optional jitter as a fraction of the base delay (0 disables).
	jitter float64

	attempts int
	rng      *rand.Rand
}

// NewBackoff creates a backoff calculator with the default schedule.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{})
}

// BackoffConfig allows customizing the schedule.
type BackoffConfig struct {
	Table  []time.Duration
	Max    time.Duration
	Jitter float64
}

// NewBackoffWithConfig creates a backoff calculator with custom settings.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if len(cfg.Table) == 0 {
		cfg.Table = DefaultDelayTable()
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxReconnectDelay
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Backoff{
		table:  cfg.Table,
		max:    cfg.Max,
		jitter: cfg.Jitter,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay for the current attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.delayFor(b.attempts))
	b.attempts++
	return delay
}

// Peek returns the delay the next Next call would produce.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addJitter(b.delayFor(b.attempts))
}

// Reset clears the attempt counter. Call after a successful handshake.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// delayFor computes the base delay for a zero-based attempt index.
func (b *Backoff) delayFor(attempt int) time.Duration {
	if attempt < len(b.table) {
		return b.table[attempt]
	}

	delay := b.table[len(b.table)-1]
	for i := len(b.table); i <= attempt; i++ {
		delay *= 2
		if delay >= b.max {
			return b.max
		}
	}
	return delay
}

// addJitter adds random jitter to a delay.
func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.jitter*b.rng.Float64())
}
