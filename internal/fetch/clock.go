package fetch

import (
	"context"
	"time"
)

// Clock abstracts time so the rate limiter and retry schedule can be
// driven by a simulated clock in tests.
type Clock interface {
	Now() time.Time
	// Sleep suspends the calling goroutine for d, returning early with
	// the context error if ctx is cancelled first.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// NewClock returns the wall clock.
func NewClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
