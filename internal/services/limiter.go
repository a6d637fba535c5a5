package services

import (
	"context"
	"sync"
	"time"
)

// Limiter gates outbound TIDAL calls. Acquire blocks until one call may be issued.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// NoopLimiter never delays.
type NoopLimiter struct{}

func (NoopLimiter) Acquire(context.Context) error { return nil }

// SlidingWindowLimiter allows at most maxCalls acquisitions in any trailing window of length period.
//
// The mutex is held across the window check and the wait so concurrent callers are admitted one at a time,
// each against an up-to-date window.
type SlidingWindowLimiter struct {
	mu       sync.Mutex
	maxCalls int
	period   time.Duration
	calls    []time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewSlidingWindowLimiter creates a limiter for maxCalls per period. Non-positive values fall back to 5 calls per second.
func NewSlidingWindowLimiter(maxCalls int, period time.Duration) *SlidingWindowLimiter {
	if maxCalls <= 0 {
		maxCalls = 5
	}
	if period <= 0 {
		period = time.Second
	}
	return &SlidingWindowLimiter{
		maxCalls: maxCalls,
		period:   period,
		calls:    make([]time.Time, 0, maxCalls),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// WithClock replaces the limiter's time source and sleep function.
func (l *SlidingWindowLimiter) WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) *SlidingWindowLimiter {
	l.now = now
	l.sleep = sleep
	return l
}

// Acquire records one call, first waiting for the oldest call in a full window to age out.
//
// The only error is ctx ending while waiting; no call is recorded in that case.
func (l *SlidingWindowLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := l.now()
		cutoff := now.Add(-l.period)

		expired := 0
		for expired < len(l.calls) && !l.calls[expired].After(cutoff) {
			expired++
		}
		l.calls = l.calls[expired:]

		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			return nil
		}

		wait := l.period - now.Sub(l.calls[0])
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
