package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tu "github.com/desertthunder/tidx/internal/testing"
)

func TestSlidingWindowLimiter(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("sixth call waits for the window", func(t *testing.T) {
		clock := tu.NewFakeClock(start)
		limiter := NewSlidingWindowLimiter(5, time.Second).WithClock(clock.Now, clock.Sleep)

		var stamps []time.Time
		for i := 0; i < 6; i++ {
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Fatalf("acquire %d failed: %v", i, err)
			}
			stamps = append(stamps, clock.Now())
		}

		for i := 0; i < 5; i++ {
			if !stamps[i].Equal(start) {
				t.Errorf("call %d should not wait, admitted at %v", i, stamps[i].Sub(start))
			}
		}
		if elapsed := stamps[5].Sub(stamps[0]); elapsed < time.Second {
			t.Errorf("6th call admitted after %v, want >= 1s", elapsed)
		}
	})

	t.Run("waits only for the remainder of the window", func(t *testing.T) {
		clock := tu.NewFakeClock(start)
		limiter := NewSlidingWindowLimiter(2, time.Second).WithClock(clock.Now, clock.Sleep)

		_ = limiter.Acquire(context.Background())
		clock.Advance(400 * time.Millisecond)
		_ = limiter.Acquire(context.Background())
		_ = limiter.Acquire(context.Background())

		sleeps := clock.Sleeps()
		if len(sleeps) != 1 || sleeps[0] != 600*time.Millisecond {
			t.Errorf("expected a single 600ms wait, got %v", sleeps)
		}
	})

	t.Run("calls spread over time never wait", func(t *testing.T) {
		clock := tu.NewFakeClock(start)
		limiter := NewSlidingWindowLimiter(1, time.Second).WithClock(clock.Now, clock.Sleep)

		for i := 0; i < 3; i++ {
			_ = limiter.Acquire(context.Background())
			clock.Advance(time.Second)
		}
		if sleeps := clock.Sleeps(); len(sleeps) != 0 {
			t.Errorf("expected no waits, got %v", sleeps)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		clock := tu.NewFakeClock(start)
		limiter := NewSlidingWindowLimiter(1, time.Second).WithClock(clock.Now, clock.Sleep)
		_ = limiter.Acquire(context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := limiter.Acquire(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("concurrent callers", func(t *testing.T) {
		limiter := NewSlidingWindowLimiter(3, 50*time.Millisecond)

		begin := time.Now()
		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := limiter.Acquire(context.Background()); err != nil {
					t.Errorf("acquire failed: %v", err)
				}
			}()
		}
		wg.Wait()

		if elapsed := time.Since(begin); elapsed < 50*time.Millisecond {
			t.Errorf("6 calls at 3 per 50ms finished in %v", elapsed)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		limiter := NewSlidingWindowLimiter(0, 0)
		if limiter.maxCalls != 5 || limiter.period != time.Second {
			t.Errorf("expected 5 calls per second, got %d per %v", limiter.maxCalls, limiter.period)
		}
	})
}
