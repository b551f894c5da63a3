package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RateLimiter bounds outbound requests to at most maxRequests within any
// trailing window. It is shared by every caller in the process: HTTP
// handlers, cron jobs and the planner all draw from the same quota.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	clock       Clock
	log         zerolog.Logger

	mu     sync.Mutex
	stamps []time.Time // timestamps of granted acquisitions, oldest first
}

// NewRateLimiter creates a sliding-window rate limiter.
func NewRateLimiter(maxRequests int, window time.Duration, log zerolog.Logger) *RateLimiter {
	return newRateLimiter(maxRequests, window, NewClock(), log)
}

func newRateLimiter(maxRequests int, window time.Duration, clock Clock, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		clock:       clock,
		log:         log.With().Str("component", "rate_limiter").Logger(),
	}
}

// Acquire blocks until a request slot is available, then records the
// acquisition. It suspends cooperatively between checks and never
// busy-waits. The only error outcome is context cancellation; a cancelled
// caller that never recorded an acquisition leaves no trace in the window.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.clock.Now()
		l.prune(now)

		if len(l.stamps) < l.maxRequests {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}

		// The window is full. Sleep until the oldest retained stamp ages
		// out, then re-check: other stamps may have expired meanwhile.
		wait := l.stamps[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait < 0 {
			wait = 0
		}

		l.log.Debug().
			Dur("sleep", wait).
			Msg("Rate limit reached, waiting for a slot")

		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops acquisition stamps older than the trailing window.
// Caller must hold l.mu.
func (l *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

// inWindow reports how many acquisitions fall inside the trailing window
// ending at now. Used by tests to verify the window invariant.
func (l *RateLimiter) inWindow(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	cutoff := now.Add(-l.window)
	for _, s := range l.stamps {
		if s.After(cutoff) {
			count++
		}
	}
	return count
}
