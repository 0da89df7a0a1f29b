package client

import (
	"testing"
	"time"
)

func TestBackoffSchedule(t *testing.T) {
	t.Run("follows the table then doubles to the cap", func(t *testing.T) {
		b := NewBackoff()

		want := []time.Duration{
			500 * time.Millisecond,
			1 * time.Second,
			2 * time.Second,
			5 * time.Second,
			10 * time.Second,
			20 * time.Second,
			40 * time.Second,
			60 * time.Second,
			60 * time.Second,
		}
		for i, w := range want {
			if got := b.Next(); got != w {
				t.Fatalf("attempt %d: delay = %v, want %v", i, got, w)
			}
		}
	})

	t.Run("reset restarts the schedule", func(t *testing.T) {
		b := NewBackoff()
		for i := 0; i < 6; i++ {
			b.Next()
		}
		b.Reset()

		if got := b.Next(); got != 500*time.Millisecond {
			t.Fatalf("delay after reset = %v, want 500ms", got)
		}
		if got := b.Attempts(); got != 1 {
			t.Fatalf("attempts after reset+next = %d, want 1", got)
		}
	})

	t.Run("peek does not advance", func(t *testing.T) {
		b := NewBackoff()
		if got := b.Peek(); got != 500*time.Millisecond {
			t.Fatalf("peek = %v, want 500ms", got)
		}
		if got := b.Peek(); got != 500*time.Millisecond {
			t.Fatalf("second peek = %v, want 500ms", got)
		}
		if got := b.Attempts(); got != 0 {
			t.Fatalf("attempts after peek = %d, want 0", got)
		}
	})

	t.Run("custom table and cap", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Table: []time.Duration{10 * time.Millisecond},
			Max:   25 * time.Millisecond,
		})

		want := []time.Duration{
			10 * time.Millisecond,
			20 * time.Millisecond,
			25 * time.Millisecond,
			25 * time.Millisecond,
		}
		for i, w := range want {
			if got := b.Next(); got != w {
				t.Fatalf("attempt %d: delay = %v, want %v", i, got, w)
			}
		}
	})

	t.Run("jitter stays within bounds", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Table:  []time.Duration{100 * time.Millisecond},
			Jitter: 0.5,
		})

		for i := 0; i < 20; i++ {
			b.Reset()
			d := b.Next()
			if d < 100*time.Millisecond || d > 150*time.Millisecond {
				t.Fatalf("jittered delay %v outside [100ms, 150ms]", d)
			}
		}
	})
}
