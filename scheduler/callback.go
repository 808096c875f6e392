package scheduler

import (
	"context"
	"sync"
)

// callbackQueue is the cross-thread callback bridge (component C9): any
// goroutine, scheduler task or not, can hand it a func to run with the
// baton held. Posting wakes the scheduler via the same self-pipe/eventfd
// the poll registry already uses to interrupt a blocked wait, grounded
// on eventloop/wakeup_linux.go's wake-then-drain pattern.
type callbackQueue struct {
	sched   *Scheduler
	mu      sync.Mutex
	pending []func()
	maxLen  int
}

func newCallbackQueue(sched *Scheduler, maxLen int) *callbackQueue {
	return &callbackQueue{sched: sched, maxLen: maxLen}
}

// post enqueues fn and wakes the scheduler. Safe from any goroutine.
func (q *callbackQueue) post(fn func()) error {
	q.mu.Lock()
	if q.maxLen > 0 && len(q.pending) >= q.maxLen {
		q.mu.Unlock()
		return ErrCallbackQueueFull
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
	return q.sched.poll.backend.wake()
}

// drain runs every callback posted since the last drain, in order. Only
// ever called from the scheduler's own tick, with the baton free (no
// task is running while the tick loop itself executes).
func (q *callbackQueue) drain() {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, fn := range batch {
		fn()
	}
}

// PostCallback schedules fn to run on sched's own goroutine during its
// next tick, returning once fn has been enqueued (not once it has run).
// Use PostCallbackResult when the caller needs fn's return value.
func (s *Scheduler) PostCallback(fn func()) error {
	return s.callbacks.post(fn)
}

// CallbackResult is a handle to a value produced by a callback posted
// from another thread (component C9), for callers that need to block on
// the outcome rather than fire-and-forget.
type CallbackResult[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// PostCallbackResult posts fn to run on sched's goroutine and returns a
// handle for retrieving its result once it has run. Called from a task
// running on sched, it runs fn at once instead, so the returned handle is
// already complete.
func PostCallbackResult[T any](sched *Scheduler, fn func() (T, error)) *CallbackResult[T] {
	r := &CallbackResult[T]{done: make(chan struct{})}
	if _, onTask := sched.tasks.Load(getGoroutineID()); onTask {
		r.value, r.err = fn()
		close(r.done)
		return r
	}
	if err := sched.callbacks.post(func() {
		r.value, r.err = fn()
		close(r.done)
	}); err != nil {
		r.err = err
		close(r.done)
	}
	return r
}

// Wait blocks until fn has run (or ctx is cancelled) and returns its
// result. Safe to call from any goroutine except the goroutine running
// sched.Run itself (inside a posted callback), where a posted fn can
// never run and Wait returns only once ctx is done.
func (r *CallbackResult[T]) Wait(ctx context.Context) (T, error) {
	var doneCtx <-chan struct{}
	if ctx != nil {
		doneCtx = ctx.Done()
	}
	select {
	case <-r.done:
		return r.value, r.err
	case <-doneCtx:
		var zero T
		return zero, ctx.Err()
	}
}
