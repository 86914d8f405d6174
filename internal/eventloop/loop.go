// Package eventloop provides the single control thread on which all call,
// signaling and negotiation state is mutated.
//
// Transports and the media engine run their I/O on their own goroutines and
// re-post every callback through a Scheduler before touching shared state.
// Timers scheduled through the same Scheduler run on the control thread, and
// a stopped timer never runs even if its expiry was already queued.
package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler serializes work onto one logical thread.
type Scheduler interface {
	// Post queues fn to run on the control thread after everything already
	// queued. Safe to call from any goroutine, including the control thread.
	Post(fn func())

	// AfterFunc runs fn on the control thread once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer

	// Now returns the scheduler's notion of the current time.
	Now() time.Time
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the callback was still
	// pending. Must be called on the control thread.
	Stop() bool
}

// Loop is the production Scheduler: a goroutine draining an unbounded queue.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// New creates a Loop. Call Run to start processing.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post implements Scheduler.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc implements Scheduler.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	return t
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time { return time.Now() }

// Run processes queued work until ctx is cancelled. Work still queued at
// cancellation is dropped.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Call runs fn on the control thread and waits for it to finish. It must not
// be called from the control thread itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

type loopTimer struct {
	timer   *time.Timer
	stopped atomic.Bool
}

func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return !t.stopped.Swap(true)
}
