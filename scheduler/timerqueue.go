package scheduler

import (
	"container/heap"
	"time"
)

// timerEntry is one pending deadline in the timer queue (component C2).
// A timerEntry is shared with at most one wakeup (see wakeup.go); if that
// wakeup fires from its wait-queue side first, markGarbage flags this
// entry so the timer queue's next pop skips it instead of delivering a
// stale timeout.
type timerEntry struct {
	deadline time.Time
	index    int // heap.Interface bookkeeping
	garbage  bool
	fire     func() // invoked with the baton held, once deadline passes
}

func (t *timerEntry) markGarbage() { t.garbage = true }

// timerHeapImpl implements container/heap.Interface. Grounded on the same
// min-heap-by-deadline shape eventloop/loop.go's runTimers walks, generalized
// here into its own type so timerQueue can expose a narrower API.
type timerHeapImpl []*timerEntry

func (h timerHeapImpl) Len() int            { return len(h) }
func (h timerHeapImpl) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeapImpl) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeapImpl) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeapImpl) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timerQueue is the scheduler's min-heap of pending deadlines. garbage
// entries (timers whose wakeup already fired from elsewhere) are popped
// and discarded lazily rather than removed eagerly, mirroring how
// waitQueue handles the symmetric case — see waitqueue.go.
type timerQueue struct {
	h timerHeapImpl
}

func newTimerQueue() *timerQueue {
	return &timerQueue{}
}

// schedule inserts a new deadline and returns the entry so callers (e.g.
// a wakeup registering itself for a timeout) can later mark it garbage.
func (q *timerQueue) schedule(deadline time.Time, fire func()) *timerEntry {
	e := &timerEntry{deadline: deadline, fire: fire}
	heap.Push(&q.h, e)
	return e
}

// cancel removes e from the queue outright. Used when a caller cancels a
// timer explicitly (component "Timer" primitive) rather than letting it
// race a wait queue.
func (q *timerQueue) cancel(e *timerEntry) {
	if e.index < 0 || e.index >= len(q.h) || q.h[e.index] != e {
		return
	}
	heap.Remove(&q.h, e.index)
}

// nextDeadline reports the earliest non-garbage deadline, discarding
// garbage entries it encounters along the way. Returns false if the
// queue is empty after discarding.
func (q *timerQueue) nextDeadline() (time.Time, bool) {
	for len(q.h) > 0 {
		top := q.h[0]
		if top.garbage {
			heap.Pop(&q.h)
			continue
		}
		return top.deadline, true
	}
	return time.Time{}, false
}

// fireExpired pops and invokes every non-garbage entry whose deadline is
// <= now, in deadline order. Called once per scheduler tick.
func (q *timerQueue) fireExpired(now time.Time) {
	for len(q.h) > 0 {
		top := q.h[0]
		if top.garbage {
			heap.Pop(&q.h)
			continue
		}
		if top.deadline.After(now) {
			return
		}
		heap.Pop(&q.h)
		top.fire()
	}
}

func (q *timerQueue) len() int { return len(q.h) }
