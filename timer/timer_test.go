package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler() (*Scheduler, clock.FakeClock) {
	clk := clock.NewFake()
	return NewScheduler(clk, zap.NewNop().Sugar()), clk
}

func waitFired(t *testing.T, ch <-chan Handle) Handle {
	t.Helper()
	select {
	case h := <-ch:
		return h
	case <-time.After(time.Second):
		t.Fatal("callback did not run")
		return 0
	}
}

func assertNotFired(t *testing.T, ch <-chan Handle) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("callback ran unexpectedly")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFiresAtDueInstant(t *testing.T) {
	s, clk := newTestScheduler()
	fired := make(chan Handle, 1)

	h := s.ScheduleAt(clk.Now().Add(time.Hour), func(h Handle) { fired <- h })
	require.NotZero(t, h)

	s.fireDue()
	assertNotFired(t, fired)

	clk.Add(time.Hour)
	s.fireDue()
	assert.Equal(t, h, waitFired(t, fired))
}

func TestFiresAllDueEntries(t *testing.T) {
	s, clk := newTestScheduler()
	fired := make(chan Handle, 3)

	s.ScheduleAt(clk.Now().Add(time.Minute), func(h Handle) { fired <- h })
	s.ScheduleAt(clk.Now().Add(2*time.Minute), func(h Handle) { fired <- h })
	s.ScheduleAt(clk.Now().Add(3*time.Hour), func(h Handle) { fired <- h })

	clk.Add(time.Hour)
	s.fireDue()

	waitFired(t, fired)
	waitFired(t, fired)
	assertNotFired(t, fired)
}

func TestCancelBeforeFire(t *testing.T) {
	s, clk := newTestScheduler()
	fired := make(chan Handle, 1)

	h := s.ScheduleAt(clk.Now().Add(time.Hour), func(h Handle) { fired <- h })
	s.Cancel(h)

	clk.Add(2 * time.Hour)
	s.fireDue()
	assertNotFired(t, fired)
}

func TestCancelAfterFireIsNoop(t *testing.T) {
	s, clk := newTestScheduler()
	fired := make(chan Handle, 1)

	h := s.ScheduleAt(clk.Now(), func(h Handle) { fired <- h })
	s.fireDue()
	waitFired(t, fired)

	s.Cancel(h)
	s.Cancel(h)
}

func TestHandlesAreUnique(t *testing.T) {
	s, clk := newTestScheduler()

	seen := make(map[Handle]bool)
	for i := 0; i < 100; i++ {
		h := s.ScheduleAt(clk.Now().Add(time.Hour), func(Handle) {})
		require.False(t, seen[h])
		seen[h] = true
	}
}

func TestPastInstantFiresWithoutTick(t *testing.T) {
	s, clk := newTestScheduler()
	fired := make(chan Handle, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Due already, the wake channel must get it fired well before the first
	// ticker pass.
	s.ScheduleAt(clk.Now().Add(-time.Minute), func(h Handle) { fired <- h })
	waitFired(t, fired)
}

func TestConcurrentScheduleAndCancel(t *testing.T) {
	s, clk := newTestScheduler()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := s.ScheduleAt(clk.Now().Add(time.Hour), func(Handle) {})
			s.Cancel(h)
		}()
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.pending)
}
