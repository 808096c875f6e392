package scheduler

import "time"

// Timer is the reusable, optionally self-retriggering timer primitive
// described in spec §3 alongside the lower-level timer queue: unlike
// Sleep, a Timer's callback runs directly on the scheduler's own call
// stack (no task is spawned or resumed for it), exactly as a
// cothread.Timer callback runs without a greenlet switch. Callbacks that
// need to block should Spawn a task themselves.
type Timer struct {
	sched     *Scheduler
	period    time.Duration
	retrigger bool
	callback  func()
	entry     *timerEntry
	stopped   bool
}

// NewTimer arms a timer that calls callback after timeout. If retrigger
// is true, the timer re-arms itself for another timeout after each call,
// until Stop is called; otherwise it fires once.
func NewTimer(sched *Scheduler, timeout time.Duration, retrigger bool, callback func()) *Timer {
	t := &Timer{sched: sched, period: timeout, retrigger: retrigger, callback: callback}
	t.arm(timeout)
	return t
}

func (t *Timer) arm(d time.Duration) {
	t.entry = t.sched.timers.schedule(time.Now().Add(d), t.onFire)
}

func (t *Timer) onFire() {
	if t.stopped {
		return
	}
	t.callback()
	if t.retrigger && !t.stopped {
		t.arm(t.period)
	}
}

// Reset cancels any pending firing and rearms the timer for d, allowing a
// single Timer value to be reused rather than discarded (the "reuse"
// behavior cothread.Timer exposes via its reset method).
func (t *Timer) Reset(d time.Duration) {
	if t.entry != nil {
		t.sched.timers.cancel(t.entry)
	}
	t.stopped = false
	t.period = d
	t.arm(d)
}

// Stop cancels the timer; its callback will not fire again.
func (t *Timer) Stop() {
	t.stopped = true
	if t.entry != nil {
		t.sched.timers.cancel(t.entry)
	}
}
