package stream

import "time"

// Backoff is a capped exponential reconnection schedule.
type Backoff struct {
	start   time.Duration
	ceiling time.Duration
	current time.Duration
}

// NewBackoff returns a Backoff starting at start and never exceeding ceiling.
func NewBackoff(start, ceiling time.Duration) *Backoff {
	if ceiling < start {
		ceiling = start
	}
	return &Backoff{start: start, ceiling: ceiling, current: start}
}

// Value returns the current delay.
func (b *Backoff) Value() time.Duration {
	return b.current
}

// Advance doubles the current delay, clamped to the ceiling.
func (b *Backoff) Advance() {
	next := b.current * 2
	if next > b.ceiling || next <= 0 {
		next = b.ceiling
	}
	b.current = next
}

// Reset restores the starting delay.
func (b *Backoff) Reset() {
	b.current = b.start
}

// ForceTo raises the current delay to v. Smaller values are ignored.
func (b *Backoff) ForceTo(v time.Duration) {
	if v > b.current {
		b.current = v
	}
}
