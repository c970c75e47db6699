package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a scheduled callback. Once Cancel returns, the callback will not run.
type Task interface {
	Cancel()
}

// Executor runs callbacks on one logical event loop.
type Executor interface {
	// Post queues fn to run on the loop after the current callback.
	Post(fn func())
	// AfterFunc queues fn to run on the loop once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Task
	// Now returns the loop's notion of the current time.
	Now() time.Time
}

// DefaultLoopBuffer is the queue depth used when NewLoop is given zero.
const DefaultLoopBuffer = 256

// Loop is an Executor backed by a single goroutine draining a queue.
type Loop struct {
	queue chan func()
	done  chan struct{}
	stop  sync.Once
	clock func() time.Time
}

// NewLoop creates a loop with the given queue depth. Call Run to start it.
func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = DefaultLoopBuffer
	}
	return &Loop{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
		clock: time.Now,
	}
}

// Run drains the queue until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop.Do(func() { close(l.done) })
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Post queues fn. Posts after the loop has stopped are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Do runs fn on the loop and waits for it to finish. It returns false if the
// loop stopped before fn ran. Must not be called from the loop itself.
func (l *Loop) Do(fn func()) bool {
	finished := make(chan struct{})
	l.Post(func() {
		fn()
		close(finished)
	})
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// AfterFunc schedules fn on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Task {
	t := &loopTask{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.cancelled.Load() {
				return
			}
			fn()
		})
	})
	return t
}

// Now returns the wall clock time.
func (l *Loop) Now() time.Time {
	return l.clock()
}

// Done is closed once Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

type loopTask struct {
	timer     *time.Timer
	cancelled atomic.Bool
}

// Cancel stops the timer and, if it already fired, keeps the queued callback
// from running.
func (t *loopTask) Cancel() {
	t.cancelled.Store(true)
	t.timer.Stop()
}
