// Package ratelimit enforces client-side throughput limits for one
// upstream API: a minimum interval between requests plus a rolling
// per-minute request quota.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window is the length of the rolling quota window.
const window = time.Minute

// Limiter paces outbound requests to a single upstream. Each upstream
// gets its own instance; the state is never shared between them.
type Limiter struct {
	minInterval time.Duration
	perMinute   int

	mu           sync.Mutex
	lastRequest  time.Time
	windowStart  time.Time
	requestCount int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter. perMinute <= 0 disables the quota;
// minInterval <= 0 disables the spacing check.
func New(minInterval time.Duration, perMinute int) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		perMinute:   perMinute,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Wait blocks until the next request may be issued, then records it.
// It returns early only when the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if l.minInterval > 0 && !l.lastRequest.IsZero() {
		if since := now.Sub(l.lastRequest); since < l.minInterval {
			if err := l.sleep(ctx, l.minInterval-since); err != nil {
				return err
			}
			now = l.now()
		}
	}

	if l.perMinute > 0 {
		if l.windowStart.IsZero() {
			l.windowStart = now
		}
		elapsed := now.Sub(l.windowStart)
		switch {
		case elapsed >= window:
			l.windowStart = now
			l.requestCount = 0
		case l.requestCount >= l.perMinute:
			if err := l.sleep(ctx, window-elapsed); err != nil {
				return err
			}
			l.windowStart = l.now()
			l.requestCount = 0
		}
	}

	l.requestCount++
	l.lastRequest = l.now()
	return nil
}

// sleepContext pauses for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
