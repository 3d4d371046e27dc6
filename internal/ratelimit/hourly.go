// Package ratelimit holds the per-origin limiters used by the public contact
// form and the admin surface, plus best-effort decision stats.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time so window arithmetic is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed bool
	// RetryAfter is whole seconds until a retry may succeed. Zero when allowed.
	RetryAfter time.Duration
}

// Entry is the per-key state of an HourlyLimiter.
type Entry struct {
	Count int
	First time.Time
	Last  time.Time
}

// HourlyLimiter admits at most MaxPerWindow submissions per key within a
// window anchored at the first admitted submission, with a mandatory cooldown
// between any two admitted submissions.
//
// Checks run in the order cooldown, window expiry, count cap. Denials never
// mutate state.
type HourlyLimiter struct {
	mu      sync.Mutex
	entries map[string]*Entry

	clock        Clock
	cooldown     time.Duration
	window       time.Duration
	maxPerWindow int
	sweepEvery   time.Duration
}

type HourlyOption func(*HourlyLimiter)

func WithClock(c Clock) HourlyOption {
	return func(l *HourlyLimiter) { l.clock = c }
}

func WithCooldown(d time.Duration) HourlyOption {
	return func(l *HourlyLimiter) { l.cooldown = d }
}

func WithWindow(d time.Duration) HourlyOption {
	return func(l *HourlyLimiter) { l.window = d }
}

func WithMaxPerWindow(n int) HourlyOption {
	return func(l *HourlyLimiter) { l.maxPerWindow = n }
}

func WithSweepEvery(d time.Duration) HourlyOption {
	return func(l *HourlyLimiter) { l.sweepEvery = d }
}

func NewHourlyLimiter(opts ...HourlyOption) *HourlyLimiter {
	l := &HourlyLimiter{
		entries:      make(map[string]*Entry),
		clock:        SystemClock{},
		cooldown:     60 * time.Second,
		window:       time.Hour,
		maxPerWindow: 5,
		sweepEvery:   10 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow checks and, when admitted, records a submission for key.
func (l *HourlyLimiter) Allow(key string) Decision {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	ent, ok := l.entries[key]
	if !ok {
		l.entries[key] = &Entry{Count: 1, First: now, Last: now}
		return Decision{Allowed: true}
	}

	if sinceLast := now.Sub(ent.Last); sinceLast < l.cooldown {
		return Decision{RetryAfter: ceilSeconds(l.cooldown - sinceLast)}
	}

	if now.Sub(ent.First) > l.window {
		*ent = Entry{Count: 1, First: now, Last: now}
		return Decision{Allowed: true}
	}

	if ent.Count >= l.maxPerWindow {
		return Decision{RetryAfter: l.window.Truncate(time.Second)}
	}

	ent.Count++
	ent.Last = now
	return Decision{Allowed: true}
}

// Peek returns a copy of the entry for key.
func (l *HourlyLimiter) Peek(key string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ent, ok := l.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *ent, true
}

// Len reports how many keys are tracked.
func (l *HourlyLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep drops entries whose last admission is older than the window. Such an
// entry would be reset in place by its next Allow, so removing it is invisible
// to callers.
func (l *HourlyLimiter) Sweep() int {
	cutoff := l.clock.Now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, ent := range l.entries {
		if ent.Last.Before(cutoff) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps periodically until ctx is done. The returned channel is
// closed once the goroutine has exited.
func (l *HourlyLimiter) StartJanitor(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if l.sweepEvery <= 0 {
		close(done)
		return done
	}

	t := time.NewTicker(l.sweepEvery)
	go func() {
		defer close(done)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Sweep()
			}
		}
	}()
	return done
}

func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return ((d + time.Second - 1) / time.Second) * time.Second
}
