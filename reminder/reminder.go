// Package reminder owns the per-user reminder lifecycle: a user arms a
// one-shot reminder, may re-arm it (replacing the pending schedule) or cancel
// it, and once the reminder fires the schedule is consumed until the user
// arms again.
package reminder

import (
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"bumpbot/timer"
)

// State of one user's reminder.
type State int

const (
	StateIdle State = iota
	StateScheduled
)

// shardCount must be a power of two; the shard is picked by the low bits of
// the user id so unrelated users don't contend on one lock.
const shardCount = 16

// Scheduler is the slice of the timer service the manager uses.
type Scheduler interface {
	ScheduleAt(at time.Time, fn func(timer.Handle)) timer.Handle
	Cancel(h timer.Handle)
}

// Manager is the sole writer of the reminder records. Operations on the same
// user are serialized through the record's shard mutex; delivery always
// happens outside any lock so one user's slow send can't stall another's
// arm or cancel.
type Manager struct {
	logger *zap.SugaredLogger
	clk    clock.Clock
	sched  Scheduler
	send   func(int64) error

	shards [shardCount]shard
}

type shard struct {
	mu      sync.Mutex
	records map[int64]*record
}

type record struct {
	state      State
	nextFireAt time.Time
	handle     timer.Handle
}

func NewManager(s Scheduler, clk clock.Clock, send func(int64) error, l *zap.SugaredLogger) *Manager {
	m := &Manager{
		logger: l,
		clk:    clk,
		sched:  s,
		send:   send,
	}
	for i := range m.shards {
		m.shards[i].records = make(map[int64]*record)
	}
	return m
}

func (m *Manager) shard(usr int64) *shard {
	return &m.shards[uint64(usr)&(shardCount-1)]
}

// Arm schedules the user's one-shot reminder to fire after delay, replacing
// any pending schedule, and returns the instant it will fire at.
func (m *Manager) Arm(usr int64, delay time.Duration) time.Time {
	at := m.clk.Now().Add(delay)

	sh := m.shard(usr)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r := sh.records[usr]
	if r == nil {
		r = &record{}
		sh.records[usr] = r
	}

	if r.state == StateScheduled {
		m.sched.Cancel(r.handle)
	}

	r.handle = m.sched.ScheduleAt(at, func(h timer.Handle) { m.fire(usr, h) })
	r.state = StateScheduled
	r.nextFireAt = at

	m.logger.Infow("reminder armed", "user", usr, "at", at)
	return at
}

// Cancel withdraws the user's pending reminder. Cancelling an idle user is a
// no-op.
func (m *Manager) Cancel(usr int64) {
	sh := m.shard(usr)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r := sh.records[usr]
	if r == nil || r.state != StateScheduled {
		return
	}

	m.sched.Cancel(r.handle)
	r.state = StateIdle
	r.nextFireAt = time.Time{}
	r.handle = 0

	m.logger.Infow("reminder cancelled", "user", usr)
}

// Status returns the user's current state and, when scheduled, the instant
// the reminder will fire at.
func (m *Manager) Status(usr int64) (State, time.Time) {
	sh := m.shard(usr)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r := sh.records[usr]
	if r == nil {
		return StateIdle, time.Time{}
	}
	return r.state, r.nextFireAt
}

// fire is the timer callback. Scheduler cancellation is best-effort, so the
// record is re-validated here: a fire whose handle is no longer the stored
// one was replaced or cancelled in the meantime and must not deliver
// anything. The schedule is consumed before delivery is attempted, whether
// delivery then succeeds or not.
func (m *Manager) fire(usr int64, h timer.Handle) {
	sh := m.shard(usr)
	sh.mu.Lock()

	r := sh.records[usr]
	if r == nil || r.state != StateScheduled || r.handle != h {
		sh.mu.Unlock()
		m.logger.Debugw("stale fire suppressed", "user", usr)
		return
	}

	r.state = StateIdle
	r.nextFireAt = time.Time{}
	r.handle = 0
	sh.mu.Unlock()

	if err := m.send(usr); err != nil {
		m.logger.Errorw("failed sending reminder; the user has to arm again", "user", usr, "err", err)
	}
}
