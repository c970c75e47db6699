// Package testing provides test doubles for the stream package.
package testing

import (
	"sort"
	"sync"
	"time"

	"github.com/rileyhilliard/statline/internal/stream"
)

// FakeExecutor is a manual stream.Executor. Posted callbacks queue until
// Drain; timers fire when Advance moves the fake clock past their deadline.
type FakeExecutor struct {
	mu     sync.Mutex
	now    time.Time
	queue  []func()
	timers []*fakeTask
	seq    int
}

type fakeTask struct {
	at        time.Time
	seq       int
	fn        func()
	cancelled bool
	fired     bool
}

func (t *fakeTask) Cancel() {
	t.cancelled = true
}

// NewFakeExecutor creates an executor whose clock starts at now.
func NewFakeExecutor(now time.Time) *FakeExecutor {
	return &FakeExecutor{now: now}
}

// Post queues fn until the next Drain.
func (f *FakeExecutor) Post(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fn)
}

// AfterFunc registers fn to run once the clock reaches now+d.
func (f *FakeExecutor) AfterFunc(d time.Duration, fn func()) stream.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTask{at: f.now.Add(d), seq: f.seq, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Now returns the fake clock.
func (f *FakeExecutor) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Drain runs queued callbacks, including ones queued while draining.
// Returns how many ran.
func (f *FakeExecutor) Drain() int {
	ran := 0
	for {
		f.mu.Lock()
		if len(f.queue) == 0 {
			f.mu.Unlock()
			return ran
		}
		fn := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()

		fn()
		ran++
	}
}

// Do runs fn then drains whatever it queued. It mirrors stream.Loop.Do for
// callers that drive a scheduler synchronously.
func (f *FakeExecutor) Do(fn func()) bool {
	fn()
	f.Drain()
	return true
}

// Advance moves the clock forward by d, firing due timers in deadline order
// and draining after each.
func (f *FakeExecutor) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.Drain()

		f.mu.Lock()
		next := f.nextDue(target)
		if next == nil {
			f.now = target
			f.mu.Unlock()
			f.Drain()
			return
		}
		f.now = next.at
		next.fired = true
		f.mu.Unlock()

		next.fn()
	}
}

// SetNow moves the clock without firing timers.
func (f *FakeExecutor) SetNow(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Pending returns how many timers are scheduled and neither fired nor
// cancelled.
func (f *FakeExecutor) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.cancelled && !t.fired {
			n++
		}
	}
	return n
}

// PendingDelays returns the remaining delay of each live timer, ascending.
func (f *FakeExecutor) PendingDelays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []time.Duration
	for _, t := range f.timers {
		if !t.cancelled && !t.fired {
			out = append(out, t.at.Sub(f.now))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// nextDue returns the earliest live timer due at or before target.
// Must be called with f.mu held.
func (f *FakeExecutor) nextDue(target time.Time) *fakeTask {
	var best *fakeTask
	for _, t := range f.timers {
		if t.cancelled || t.fired || t.at.After(target) {
			continue
		}
		if best == nil || t.at.Before(best.at) || (t.at.Equal(best.at) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}
