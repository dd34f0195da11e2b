// internal/application/checkout/deferred.go
package checkout

import (
	"sync"
	"time"
)

// RedirectDelay is how long SUCCESS (or a verified email link) is shown before moving on.
const RedirectDelay = 3 * time.Second

// Timer is a handle to a scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Tests substitute a manual scheduler.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler uses time.AfterFunc.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// deferredTask is a cancellable one-shot callback.
// Scheduling again replaces the previous callback; a cancelled callback never runs,
// even when its timer already fired and is waiting for the lock.
type deferredTask struct {
	mu    sync.Mutex
	sched Scheduler
	timer Timer
	seq   uint64
}

func newDeferredTask(s Scheduler) *deferredTask {
	if s == nil {
		s = RealScheduler{}
	}
	return &deferredTask{sched: s}
}

func (t *deferredTask) Schedule(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	seq := t.seq
	t.timer = t.sched.AfterFunc(d, func() {
		t.mu.Lock()
		if t.seq != seq {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.seq++
		t.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending callback, if any.
func (t *deferredTask) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Pending reports whether a callback is waiting to run.
func (t *deferredTask) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *deferredTask) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.seq++
}
