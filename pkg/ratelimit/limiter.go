// Package ratelimit implements per-provider admission control across three
// fixed time windows (minute, hour, day). It decides whether the engine may
// place another outbound call against a provider's quota.
package ratelimit

import (
	"sync"
	"time"
)

// Window lengths, in ascending granularity.
const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
	dayWindow    = 24 * time.Hour
)

// Quota is the per-provider request budget. A zero field means the
// corresponding window is unlimited.
type Quota struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

// WindowUsage describes one window's state at the time of a Usage call.
type WindowUsage struct {
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Usage is a point-in-time snapshot of a provider's consumption.
type Usage struct {
	Provider string
	Minute   WindowUsage
	Hour     WindowUsage
	Day      WindowUsage
}

// counter tracks requests inside one window. The window is reset lazily:
// once now moves past windowStart+length the stale count is treated as zero.
type counter struct {
	count       int
	windowStart time.Time
}

// effective returns the count the window holds at now, without mutating.
func (c *counter) effective(length time.Duration, now time.Time) int {
	if now.Sub(c.windowStart) >= length {
		return 0
	}
	return c.count
}

// roll resets the window if it is stale, then returns the counter.
func (c *counter) roll(length time.Duration, now time.Time) *counter {
	if now.Sub(c.windowStart) >= length {
		c.count = 0
		c.windowStart = now
	}
	return c
}

type counters struct {
	minute counter
	hour   counter
	day    counter
}

// Limiter serializes check-and-increment sequences against per-provider
// counters. Providers absent from the quota map are unlimited.
type Limiter struct {
	mu       sync.Mutex
	quotas   map[string]Quota
	counters map[string]*counters
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock substitutes the time source, used by tests to advance windows.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New builds a limiter with the given per-provider quotas.
func New(quotas map[string]Quota, opts ...Option) *Limiter {
	l := &Limiter{
		quotas:   quotas,
		counters: make(map[string]*counters),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// lookup lazily creates the counter block for a provider. Caller holds mu.
func (l *Limiter) lookup(provider string) *counters {
	c, ok := l.counters[provider]
	if !ok {
		now := l.now()
		c = &counters{
			minute: counter{windowStart: now},
			hour:   counter{windowStart: now},
			day:    counter{windowStart: now},
		}
		l.counters[provider] = c
	}
	return c
}

// admissible evaluates every window against its limit without mutating
// counter state. Caller holds mu.
func (l *Limiter) admissible(provider string, now time.Time) bool {
	q, limited := l.quotas[provider]
	if !limited {
		return true
	}
	c := l.lookup(provider)
	if q.PerMinute > 0 && c.minute.effective(minuteWindow, now) >= q.PerMinute {
		return false
	}
	if q.PerHour > 0 && c.hour.effective(hourWindow, now) >= q.PerHour {
		return false
	}
	if q.PerDay > 0 && c.day.effective(dayWindow, now) >= q.PerDay {
		return false
	}
	return true
}

// CanMakeRequest reports whether a new outbound call to the provider is
// currently permitted. Pure check: stale windows are treated as empty but
// counter state is left untouched.
func (l *Limiter) CanMakeRequest(provider string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.admissible(provider, l.now())
}

// RecordRequest counts one outbound call against every window. It must be
// called exactly once per actual attempt, immediately before the call, so
// in-flight and failed calls still consume quota.
func (l *Limiter) RecordRequest(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(provider, l.now())
}

func (l *Limiter) record(provider string, now time.Time) {
	c := l.lookup(provider)
	c.minute.roll(minuteWindow, now).count++
	c.hour.roll(hourWindow, now).count++
	c.day.roll(dayWindow, now).count++
}

// Reserve atomically combines CanMakeRequest and RecordRequest under a
// single lock acquisition. Two concurrent callers can never both reserve
// when only one request's worth of quota remains.
func (l *Limiter) Reserve(provider string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if !l.admissible(provider, now) {
		return false
	}
	l.record(provider, now)
	return true
}

// Usage returns the provider's current consumption across all windows.
func (l *Limiter) Usage(provider string) Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	q := l.quotas[provider]
	c := l.lookup(provider)

	return Usage{
		Provider: provider,
		Minute:   windowUsage(&c.minute, minuteWindow, q.PerMinute, now),
		Hour:     windowUsage(&c.hour, hourWindow, q.PerHour, now),
		Day:      windowUsage(&c.day, dayWindow, q.PerDay, now),
	}
}

func windowUsage(c *counter, length time.Duration, limit int, now time.Time) WindowUsage {
	count := c.effective(length, now)
	resetAt := c.windowStart.Add(length)
	if count == 0 {
		resetAt = now.Add(length)
	}
	remaining := 0
	if limit > 0 {
		remaining = limit - count
		if remaining < 0 {
			remaining = 0
		}
	}
	return WindowUsage{Count: count, Limit: limit, Remaining: remaining, ResetAt: resetAt}
}

// RecommendedWait returns how long a caller should pause before the provider
// admits another request. Windows are checked in ascending granularity;
// false means no window is exhausted.
func (l *Limiter) RecommendedWait(provider string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	q, limited := l.quotas[provider]
	if !limited {
		return 0, false
	}
	c := l.lookup(provider)

	checks := []struct {
		ctr    *counter
		length time.Duration
		limit  int
	}{
		{&c.minute, minuteWindow, q.PerMinute},
		{&c.hour, hourWindow, q.PerHour},
		{&c.day, dayWindow, q.PerDay},
	}
	for _, w := range checks {
		if w.limit > 0 && w.ctr.effective(w.length, now) >= w.limit {
			wait := w.ctr.windowStart.Add(w.length).Sub(now)
			if wait < 0 {
				wait = 0
			}
			return wait, true
		}
	}
	return 0, false
}
