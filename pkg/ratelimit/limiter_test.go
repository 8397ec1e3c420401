package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCanMakeRequest_MinuteWindow(t *testing.T) {
	clock := newFakeClock()
	l := New(
		map[string]Quota{"fast": {PerMinute: 2}},
		WithClock(clock.Now),
	)

	assert.True(t, l.CanMakeRequest("fast"))
	l.RecordRequest("fast")
	assert.True(t, l.CanMakeRequest("fast"))
	l.RecordRequest("fast")
	assert.False(t, l.CanMakeRequest("fast"))

	// Advancing past the window opens it again.
	clock.Advance(61 * time.Second)
	assert.True(t, l.CanMakeRequest("fast"))
}

func TestCanMakeRequest_PureCheck(t *testing.T) {
	clock := newFakeClock()
	l := New(
		map[string]Quota{"p": {PerMinute: 1}},
		WithClock(clock.Now),
	)

	l.RecordRequest("p")
	require.False(t, l.CanMakeRequest("p"))

	// A stale window is treated as empty without being mutated: the
	// recorded count must survive repeated checks before the reset.
	clock.Advance(61 * time.Second)
	for i := 0; i < 5; i++ {
		assert.True(t, l.CanMakeRequest("p"))
	}
}

func TestUnconfiguredProviderIsUnlimited(t *testing.T) {
	l := New(map[string]Quota{"limited": {PerMinute: 1}})

	for i := 0; i < 100; i++ {
		require.True(t, l.CanMakeRequest("unlimited"))
		l.RecordRequest("unlimited")
	}
}

func TestAllWindowsChecked(t *testing.T) {
	clock := newFakeClock()
	l := New(
		map[string]Quota{"p": {PerMinute: 100, PerHour: 2}},
		WithClock(clock.Now),
	)

	l.RecordRequest("p")
	l.RecordRequest("p")

	// Minute quota has room, hour quota is exhausted.
	assert.False(t, l.CanMakeRequest("p"))
	clock.Advance(2 * time.Minute)
	assert.False(t, l.CanMakeRequest("p"))
	clock.Advance(time.Hour)
	assert.True(t, l.CanMakeRequest("p"))
}

func TestReserve_Atomicity(t *testing.T) {
	l := New(map[string]Quota{"p": {PerMinute: 10}})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Reserve("p") {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted, "exactly the quota must be granted under contention")
}

func TestUsage(t *testing.T) {
	clock := newFakeClock()
	l := New(
		map[string]Quota{"p": {PerMinute: 5, PerHour: 10, PerDay: 20}},
		WithClock(clock.Now),
	)

	for i := 0; i < 3; i++ {
		l.RecordRequest("p")
	}

	u := l.Usage("p")
	assert.Equal(t, 3, u.Minute.Count)
	assert.Equal(t, 2, u.Minute.Remaining)
	assert.Equal(t, 3, u.Hour.Count)
	assert.Equal(t, 7, u.Hour.Remaining)
	assert.Equal(t, 3, u.Day.Count)
	assert.Equal(t, 17, u.Day.Remaining)
	assert.Equal(t, clock.Now().Add(time.Minute), u.Minute.ResetAt)
}

func TestRecommendedWait(t *testing.T) {
	clock := newFakeClock()
	l := New(
		map[string]Quota{"p": {PerMinute: 1, PerHour: 2}},
		WithClock(clock.Now),
	)

	_, exhausted := l.RecommendedWait("p")
	assert.False(t, exhausted)

	l.RecordRequest("p")
	wait, exhausted := l.RecommendedWait("p")
	require.True(t, exhausted)
	assert.Equal(t, time.Minute, wait)

	// Burn the hour quota too; the minute window reports first.
	l.RecordRequest("p")
	clock.Advance(30 * time.Second)
	wait, exhausted = l.RecommendedWait("p")
	require.True(t, exhausted)
	assert.Equal(t, 30*time.Second, wait)

	// Once the minute window rolls, the hour window is the bottleneck.
	clock.Advance(31 * time.Second)
	wait, exhausted = l.RecommendedWait("p")
	require.True(t, exhausted)
	assert.Equal(t, 59*time.Minute-time.Second, wait)

	_, exhausted = l.RecommendedWait("unlimited")
	assert.False(t, exhausted)
}
