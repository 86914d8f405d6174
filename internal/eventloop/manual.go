package eventloop

import (
	"sync"
	"time"
)

// Manual is a deterministic Scheduler for tests. Nothing runs until the test
// calls Flush or Advance; time moves only through Advance.
//
// Post is safe from any goroutine. Flush and Advance must be called from the
// test goroutine only, and never from inside a posted callback.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	queue  []func()
	timers []*manualTimer
	seq    uint64
}

// NewManual returns a Manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

type manualTimer struct {
	owner    *Manual
	deadline time.Time
	seq      uint64
	fn       func()
	done     bool
}

// Post implements Scheduler.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fn)
}

// AfterFunc implements Scheduler. A non-positive delay fires on the next
// Flush.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{owner: m, deadline: m.now.Add(max(d, 0)), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Now implements Scheduler.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Flush runs queued callbacks and due timers until nothing is runnable at the
// current time.
func (m *Manual) Flush() {
	for {
		if fn := m.popQueued(); fn != nil {
			fn()
			continue
		}
		if t := m.popDue(m.Now()); t != nil {
			t.fn()
			continue
		}
		return
	}
}

// Advance moves the clock forward by d, firing timers in deadline order and
// flushing the queue after each one.
func (m *Manual) Advance(d time.Duration) {
	m.Flush()
	target := m.Now().Add(d)
	for {
		t := m.popDue(target)
		if t == nil {
			break
		}
		m.mu.Lock()
		if t.deadline.After(m.now) {
			m.now = t.deadline
		}
		m.mu.Unlock()
		t.fn()
		m.Flush()
	}
	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
	m.Flush()
}

// Pending reports the number of live timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.done {
			n++
		}
	}
	return n
}

func (m *Manual) popQueued() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	fn := m.queue[0]
	m.queue = m.queue[1:]
	return fn
}

// popDue removes and returns the earliest live timer due at or before limit.
func (m *Manual) popDue(limit time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *manualTimer
	live := m.timers[:0]
	for _, t := range m.timers {
		if t.done {
			continue
		}
		live = append(live, t)
		if t.deadline.After(limit) {
			continue
		}
		if best == nil || t.deadline.Before(best.deadline) ||
			(t.deadline.Equal(best.deadline) && t.seq < best.seq) {
			best = t
		}
	}
	m.timers = live
	if best != nil {
		best.done = true
	}
	return best
}
