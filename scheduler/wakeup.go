package scheduler

import "sync/atomic"

// Reason is the cause reported to a task when its wakeup fires.
type Reason int

const (
	// ReasonNormal means the wakeup fired because whatever it was waiting
	// for actually happened (a signal, a broadcast, an I/O event).
	ReasonNormal Reason = iota
	// ReasonTimeout means the wakeup's timer-queue entry expired first.
	ReasonTimeout
	// ReasonCancelled means the caller's context was cancelled or hit its
	// deadline while the wakeup was pending. Always delivered via
	// PostCallback (see registerCtxTimeout) so it runs on the scheduler's
	// own goroutine like every other fire — never directly from the
	// context.AfterFunc goroutine that observed the cancellation.
	ReasonCancelled
	// ReasonException is not fired anywhere in this package, and fire
	// never enqueues a task onto the ready queue for it (see fire below).
	// Ctx cancellation uses ReasonCancelled instead.
	ReasonException
)

// wakeResult is what a resumed task receives: why it woke, and the error,
// if any, its wait returns (ctx.Err() for ReasonCancelled, ErrQueueClosed
// when an EventQueue is closed).
type wakeResult struct {
	reason Reason
	err    error
}

// wakeup is the one-shot arbiter described in spec §3/§4.2 (component C3).
// It ties a single task to at most one wait queue entry and at most one
// timer queue entry; whichever fires first wins, and the loser's queue
// entry becomes garbage, collected lazily by that queue's own bookkeeping.
//
// Grounded on eventloop/state.go's FastState: a single CAS-guarded flag
// that can only ever flip once, generalized from "loop state" to "has this
// particular wakeup been consumed".
type wakeup struct {
	task *taskState

	spent atomic.Bool

	// waitQueue/timerEntry are set by whichever queues this wakeup is
	// registered on, so fire() can tell its sibling queue to account for
	// the garbage it just created. Both may be nil.
	waitQueue  *waitQueue
	timerEntry *timerEntry
}

func newWakeup(t *taskState) *wakeup {
	return &wakeup{task: t}
}

// fire marks w spent (if not already) and, for reasons other than
// ReasonException, appends the owning task to the scheduler's ready queue.
// Returns false if w had already fired — waitQueue.popOne uses this to
// skip spent entries and report whether a live waiter was woken.
func (w *wakeup) fire(sched *Scheduler, reason Reason, err error) bool {
	if !w.spent.CompareAndSwap(false, true) {
		return false
	}

	// A wakeup leaves its wait queue/timer entry "the normal way" only
	// when that queue's own pop (ReasonNormal) or its own timer callback
	// (ReasonTimeout) fires it. Anything else — a ctx cancellation racing
	// in from outside, or the scheduler's exception path — abandons
	// whichever sibling entry still exists, leaving it as garbage for
	// that queue's own bookkeeping to find later.
	if reason != ReasonNormal && w.waitQueue != nil {
		w.waitQueue.noteGarbage()
	}
	if reason != ReasonTimeout && w.timerEntry != nil {
		w.timerEntry.markGarbage()
	}

	if reason != ReasonException {
		sched.enqueueReady(w.task, wakeResult{reason: reason, err: err})
	}
	return true
}

// isSpent reports whether the wakeup has already fired. Used by queues
// during their own garbage-collection/rebuild passes.
func (w *wakeup) isSpent() bool {
	return w.spent.Load()
}
