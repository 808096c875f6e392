package scheduler

import "context"

// ThreadedEventQueue is the bidirectional thread<->task bridge (component
// C10), the typed counterpart of cothread.ThreadedEventQueue. Values
// posted from an external OS thread via PutFromThread arrive at tasks
// via cooperative Get calls; values a task posts via PutToThread arrive
// at external threads via a plain blocking GetFromThread.
//
// The thread->task direction is pumped through PostCallback (component
// C9) into an internal EventQueue, so a task's Get participates in the
// baton like every other wait in this package. The task->thread
// direction uses a plain buffered channel, since the receiving side is a
// real OS thread for which blocking is unremarkable.
type ThreadedEventQueue[T any] struct {
	sched    *Scheduler
	fromThread *EventQueue[T]
	toThread   chan T
}

// NewThreadedEventQueue creates a queue bridging sched's tasks and
// external threads. toThreadBuf bounds the task->thread direction's
// buffer; 0 means synchronous (PutToThread blocks until a thread calls
// GetFromThread).
func NewThreadedEventQueue[T any](sched *Scheduler, toThreadBuf int) *ThreadedEventQueue[T] {
	return &ThreadedEventQueue[T]{
		sched:      sched,
		fromThread: NewEventQueue[T](sched),
		toThread:   make(chan T, toThreadBuf),
	}
}

// PutFromThread posts v for delivery to a task's Get call. Safe to call
// from any goroutine, including ones with no relation to the scheduler.
func (q *ThreadedEventQueue[T]) PutFromThread(v T) error {
	return q.sched.PostCallback(func() {
		q.fromThread.Put(v)
	})
}

// Get blocks the calling task until a value posted via PutFromThread is
// available, or ctx is cancelled.
func (q *ThreadedEventQueue[T]) Get(ctx context.Context) (T, error) {
	return q.fromThread.Wait(ctx)
}

// PutToThread hands v to whichever external thread next calls
// GetFromThread. Called from within a task, which holds the scheduler's
// baton while it runs: if toThreadBuf is 0 and no thread is currently
// waiting, the channel send blocks, and since the baton does not return
// until this call does, the entire reactor stalls — no other task runs
// and no tick occurs — until some external thread calls GetFromThread.
// Give toThreadBuf a real capacity unless every external consumer is
// guaranteed to already be waiting when a task calls this.
func (q *ThreadedEventQueue[T]) PutToThread(v T) {
	q.toThread <- v
}

// GetFromThread blocks the calling (external, non-scheduler) goroutine
// until a task posts a value via PutToThread, or ctx is cancelled.
func (q *ThreadedEventQueue[T]) GetFromThread(ctx context.Context) (T, error) {
	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}
	select {
	case v := <-q.toThread:
		return v, nil
	case <-done:
		var zero T
		return zero, ctx.Err()
	}
}
