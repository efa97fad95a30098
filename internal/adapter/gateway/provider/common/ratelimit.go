package common

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces outbound requests for one provider with an adaptive
// delay. All call sites of a provider share one instance; per-call limiters
// would make the adaptive backoff meaningless.
type RateLimiter struct {
	mu      sync.Mutex
	delay   time.Duration
	floor   time.Duration
	ceil    time.Duration
	last    time.Time
	streak  int // consecutive successes
	sleepFn func(context.Context, time.Duration) error
}

func NewRateLimiter(floor, ceil time.Duration) *RateLimiter {
	if floor <= 0 {
		floor = time.Second
	}
	if ceil < floor {
		ceil = 10 * floor
	}
	return &RateLimiter{delay: floor, floor: floor, ceil: ceil, sleepFn: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait blocks until the next request slot (previous request + delay).
func (l *RateLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	var wait time.Duration
	if !l.last.IsZero() {
		if next := l.last.Add(l.delay); next.After(now) {
			wait = next.Sub(now)
		}
	}
	l.last = now.Add(wait)
	sleep := l.sleepFn
	l.mu.Unlock()
	return sleep(ctx, wait)
}

// Penalize reacts to a rate-limit response: the delay grows ×1.5 up to the
// ceiling, and the caller must sleep twice the new delay before retrying.
func (l *RateLimiter) Penalize() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.streak = 0
	l.delay = l.delay * 3 / 2
	if l.delay > l.ceil {
		l.delay = l.ceil
	}
	return 2 * l.delay
}

// Reward relaxes the delay back toward the floor after two consecutive
// successes, so one rate-limit spike does not degrade throughput forever.
func (l *RateLimiter) Reward() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.streak++
	if l.streak < 2 || l.delay == l.floor {
		return
	}
	l.streak = 0
	l.delay = l.delay * 2 / 3
	if l.delay < l.floor {
		l.delay = l.floor
	}
}

func (l *RateLimiter) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delay
}
