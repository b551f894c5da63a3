package fetch

import (
	"context"
	"sync"
	"time"
)

// manualClock is a simulated clock. Sleep advances the clock instantly
// and records the requested duration, so tests can assert the exact
// schedule of waits without real delays.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// Advance moves the clock forward without recording a sleep.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns a copy of all recorded sleep durations.
func (c *manualClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}
