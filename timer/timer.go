// Package timer runs one-shot callbacks at or after a given instant. Each
// schedule is identified by a cancellable Handle; cancellation is best-effort,
// a callback that has already been dequeued still runs and callers are
// expected to re-check their own state when it does.
package timer

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"
)

const schedulerTick = time.Second

// Handle identifies one scheduled callback. The zero Handle is never issued.
type Handle uint64

// Scheduler owns a queue of pending one-shot callbacks. Callbacks execute on
// scheduler-spawned goroutines, never on the goroutine that called ScheduleAt
// or Cancel.
type Scheduler struct {
	logger *zap.SugaredLogger
	clk    clock.Clock

	mu      sync.Mutex
	queue   *dueQueue
	pending map[Handle]*entry
	lastID  uint64

	wake chan struct{}
}

type entry struct {
	handle    Handle
	at        time.Time
	fn        func(Handle)
	cancelled bool
}

func NewScheduler(clk clock.Clock, l *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		logger:  l,
		clk:     clk,
		queue:   newDueQueue(),
		pending: make(map[Handle]*entry),
		wake:    make(chan struct{}, 1),
	}
}

// ScheduleAt registers fn to run once at or after the given instant and
// returns the handle identifying the schedule. The handle is passed back to
// fn when it fires. Instants in the past are valid and fire on the next pass
// of the run loop.
func (s *Scheduler) ScheduleAt(at time.Time, fn func(Handle)) Handle {
	s.mu.Lock()
	s.lastID++
	e := &entry{handle: Handle(s.lastID), at: at, fn: fn}
	s.pending[e.handle] = e
	heap.Push(s.queue, e)
	due := !at.After(s.clk.Now())
	s.mu.Unlock()

	if due {
		s.notify()
	}

	return e.handle
}

// Cancel withdraws the schedule identified by h. Cancelling a handle that has
// already fired or was already cancelled has no effect.
func (s *Scheduler) Cancel(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[h]
	if !ok {
		return
	}

	e.cancelled = true
	delete(s.pending, h)
}

// Run drives the scheduler until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()

	s.logger.Info("scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.fireDue()
		case <-s.wake:
			s.fireDue()
		}
	}
}

// notify requests an immediate pass. Non-blocking if one is already pending.
func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) fireDue() {
	now := s.clk.Now()

	s.mu.Lock()
	var due []*entry
	for {
		e, ok := s.queue.Peek()
		if !ok || now.Before(e.at) {
			break
		}

		heap.Pop(s.queue)
		if e.cancelled {
			continue
		}

		delete(s.pending, e.handle)
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		go e.fn(e.handle)
	}
}
