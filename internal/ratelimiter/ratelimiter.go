package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Limiter spaces consecutive requests sharing the same key by at least
// interval. Keys are typically URL hosts.
type Limiter struct {
	interval time.Duration
	lastSent map[string]time.Time
	mu       sync.Mutex
	now      func() time.Time
	log      *slog.Logger
}

func New(interval time.Duration, log *slog.Logger) *Limiter {
	return &Limiter{
		interval: interval,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
		log:      log,
	}
}

// Wait blocks until a request for key may be sent and reserves the slot.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil || l.interval <= 0 {
		return ctx.Err()
	}

	delay := l.reserve(key)
	if delay <= 0 {
		return nil
	}

	l.log.DebugContext(ctx, "Rate limiting request",
		"key", key,
		"delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reserve books the next free slot for key and returns how long the caller
// has to wait for it.
func (l *Limiter) reserve(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	next := now

	if last, ok := l.lastSent[key]; ok {
		if n := last.Add(l.interval); n.After(now) {
			next = n
		}
	}

	l.lastSent[key] = next

	return getDelay(now, next)
}

func getDelay(now time.Time, next time.Time) time.Duration {
	return max(next.Sub(now), 0)
}
