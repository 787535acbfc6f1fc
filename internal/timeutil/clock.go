// Package timeutil provides a testable abstraction over the clocks used to
// stamp and pace sensor samples.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides the time operations the sensor sources need.
type Clock interface {
	// Now returns the current wall time.
	Now() time.Time

	// Nanos returns a monotonic timestamp in nanoseconds, comparable only
	// with other values from the same clock (like a platform sensor event
	// timestamp counted from boot).
	Nanos() int64

	// NewTicker returns a Ticker delivering ticks every d.
	NewTicker(d time.Duration) Ticker
}

// Ticker holds a channel that delivers ticks at intervals.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock implements Clock with the time package. Nanos counts from the
// moment the clock value was created.
type RealClock struct {
	origin time.Time
}

// NewRealClock returns a RealClock whose Nanos start at zero now.
func NewRealClock() *RealClock {
	return &RealClock{origin: time.Now()}
}

func (c *RealClock) Now() time.Time { return time.Now() }

// Nanos uses the monotonic reading carried by time.Time, so wall clock
// adjustments never make it go backwards.
func (c *RealClock) Nanos() int64 {
	return int64(time.Since(c.origin))
}

func (c *RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.ticker.C }
func (t *realTicker) Stop()               { t.ticker.Stop() }

// MockClock is a manually advanced clock for tests.
type MockClock struct {
	mu      sync.Mutex
	origin  time.Time
	now     time.Time
	tickers []*MockTicker
}

// NewMockClock returns a MockClock at t with Nanos at zero.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{origin: t, now: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Nanos() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(c.now.Sub(c.origin))
}

// Advance moves the clock forward and fires every ticker whose next tick
// has been reached. A ticker fires at most once per Advance call, and the
// send never blocks: a tick the reader has not drained is dropped, as with
// time.Ticker.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*MockTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		t.fire(now)
	}
}

func (c *MockClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &MockTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		next:     c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// MockTicker is a ticker driven by MockClock.Advance.
type MockTicker struct {
	mu       sync.Mutex
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

func (t *MockTicker) C() <-chan time.Time { return t.ch }

func (t *MockTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *MockTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || now.Before(t.next) {
		return
	}
	select {
	case t.ch <- now:
	default:
	}
	t.next = now.Add(t.interval)
}
