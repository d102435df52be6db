// Package schedtest provides a hand-driven schedule.Clock for tests.
package schedtest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/spacenode/internal/schedule"
)

// fireTimeout bounds how long Fire waits for a task loop to take a tick.
const fireTimeout = time.Second

// Clock hands out Tickers that only tick when Fire is called.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*Ticker
}

// NewClock returns a clock frozen at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// NewTicker implements schedule.Clock.
func (c *Clock) NewTicker(d time.Duration) schedule.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &Ticker{period: d, c: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

// Now implements schedule.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Tickers returns every ticker created so far, oldest first.
func (c *Clock) Tickers() []*Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Ticker(nil), c.tickers...)
}

// Ticker is a manually fired schedule.Ticker.
type Ticker struct {
	period  time.Duration
	c       chan time.Time
	stopped atomic.Bool
}

// C implements schedule.Ticker.
func (t *Ticker) C() <-chan time.Time { return t.c }

// Stop implements schedule.Ticker.
func (t *Ticker) Stop() { t.stopped.Store(true) }

// Stopped reports whether Stop was called.
func (t *Ticker) Stopped() bool { return t.stopped.Load() }

// Period returns the interval the ticker was created with.
func (t *Ticker) Period() time.Duration { return t.period }

// Fire delivers a tick and reports whether a task loop received it.
func (t *Ticker) Fire(at time.Time) bool {
	if t.Stopped() {
		return false
	}
	select {
	case t.c <- at:
		return true
	case <-time.After(fireTimeout):
		return false
	}
}
