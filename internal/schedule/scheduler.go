// Package schedule runs fixed-rate repeating tasks on a single worker.
//
// Every task armed on one Scheduler shares the same worker lock, so two ticks
// never run at the same time even while an old task is being replaced.
// Ticks follow time.Ticker semantics: they are anchored to the time the task
// was armed, and ticks that fall due while a slow tick is still running are
// dropped rather than queued.
package schedule

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Handle identifies one armed task.
type Handle struct {
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// Interval returns the period the task was armed with.
func (h *Handle) Interval() time.Duration { return h.interval }

// Done is closed once the task's goroutine has exited after Cancel.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Scheduler arms and cancels repeating tasks.
type Scheduler struct {
	clock  Clock
	worker sync.Mutex
}

// New returns a scheduler driven by clock, or by the wall clock if nil.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = WallClock
	}
	return &Scheduler{clock: clock}
}

// Arm starts calling fn immediately and then every interval until the
// returned handle is cancelled. interval must be positive.
func (s *Scheduler) Arm(interval time.Duration, fn func(time.Time)) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	tk := s.clock.NewTicker(interval)
	start := s.clock.Now()
	go s.loop(ctx, h, tk, start, fn)
	return h
}

// Cancel stops future ticks of h. A tick already running is not interrupted;
// a tick still waiting for the worker is skipped.
func (s *Scheduler) Cancel(h *Handle) {
	if h == nil {
		return
	}
	h.cancel()
}

func (s *Scheduler) loop(ctx context.Context, h *Handle, tk Ticker, start time.Time, fn func(time.Time)) {
	defer close(h.done)
	defer tk.Stop()

	s.run(ctx, start, fn)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-tk.C():
			s.run(ctx, t, fn)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, t time.Time, fn func(time.Time)) {
	s.worker.Lock()
	defer s.worker.Unlock()

	if ctx.Err() != nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("schedule: tick at %s panicked: %v", t.Format(time.RFC3339), r)
		}
	}()
	fn(t)
}
