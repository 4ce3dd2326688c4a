// Package ratelimit caps calls per key within a fixed one-minute window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	window     = time.Minute
	staleAfter = 10 * time.Minute
)

// Limiter tracks a request counter per key. Entries idle for ten minutes
// are dropped by CleanExpired.
type Limiter struct {
	mu      sync.Mutex
	keys    map[string]*keyInfo
	perMin  int
	now     func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) error
}

type keyInfo struct {
	windowStart time.Time
	lastRequest time.Time
	requests    int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleep replaces the context-aware sleep used by Wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) { l.sleepFn = sleep }
}

// New returns a limiter allowing requestsPerMinute calls per key. A
// non-positive value means 60.
func New(requestsPerMinute int, opts ...Option) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	l := &Limiter{
		keys:    make(map[string]*keyInfo),
		perMin:  requestsPerMinute,
		now:     time.Now,
		sleepFn: sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a request for key and reports whether it fits the window.
func (l *Limiter) Allow(key string) bool {
	_, ok := l.reserve(key)
	return ok
}

// Wait blocks until a request for key fits the window or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	for {
		delay, ok := l.reserve(key)
		if ok {
			return nil
		}
		if err := l.sleepFn(ctx, delay); err != nil {
			return err
		}
	}
}

// reserve takes a slot for key, or returns how long until the window resets.
func (l *Limiter) reserve(key string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k, exists := l.keys[key]
	if !exists || now.Sub(k.windowStart) >= window {
		l.keys[key] = &keyInfo{windowStart: now, lastRequest: now, requests: 1}
		return 0, true
	}
	k.lastRequest = now
	if k.requests >= l.perMin {
		return k.windowStart.Add(window).Sub(now), false
	}
	k.requests++
	return 0, true
}

// CleanExpired drops keys idle for more than ten minutes.
func (l *Limiter) CleanExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-staleAfter)
	removed := 0
	for key, k := range l.keys {
		if k.lastRequest.Before(cutoff) {
			delete(l.keys, key)
			removed++
		}
	}
	return removed
}

// ActiveKeys returns the number of tracked keys.
func (l *Limiter) ActiveKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
