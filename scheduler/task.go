package scheduler

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// taskState is the scheduler's bookkeeping for one coroutine (component
// C1). Unlike cothread's greenlet-backed Coroutine, a taskState does not
// own a stack: it identifies one goroutine, and carries exactly the state
// the scheduler needs to hand it the baton and collect its result.
//
// The goroutine <-> taskState association is tracked in Scheduler.tasks,
// keyed by goroutine id, the same trick eventloop/loop.go's
// getGoroutineID/isLoopThread uses to tell whether code is running on the
// loop's own goroutine.
type taskState struct {
	owner *Scheduler
	id    uint64 // this task's own goroutine id, once started
	name  string

	resume chan wakeResult // scheduler -> task: you have the baton

	done    chan struct{} // closed once the task's entry function returns
	result  error         // entry function's return value (nil on success)
	panicV  any           // non-nil if entry panicked instead of returning
	raiseOn bool          // RaiseOnWait: Wait() re-raises result/panicV

	waiters []*wakeup // tasks blocked in Wait(), woken on completion

	mu sync.Mutex
}

func newTaskState(owner *Scheduler, name string, raiseOnWait bool) *taskState {
	return &taskState{
		owner:   owner,
		name:    name,
		resume:  make(chan wakeResult),
		done:    make(chan struct{}),
		raiseOn: raiseOnWait,
	}
}

func (t *taskState) finish(result error, panicV any) {
	t.mu.Lock()
	t.result = result
	t.panicV = panicV
	waiters := t.waiters
	t.waiters = nil
	t.mu.Unlock()
	close(t.done)
	for _, w := range waiters {
		// The scheduler goroutine is the only caller of finish, so this
		// fire happens with the baton held; no further synchronization
		// needed beyond wakeup's own CAS.
		w.fire(t.owner, ReasonNormal, nil)
	}
}

// isFinished reports whether the task's entry function has returned.
func (t *taskState) isFinished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// getGoroutineID parses the calling goroutine's id out of runtime.Stack,
// exactly as eventloop/loop.go does. There is no supported API for this;
// it is the conventional workaround used throughout the Go ecosystem for
// associating state with "whichever goroutine is running right now".
func getGoroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	// "goroutine 123 [running]:"
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	idx := bytes.IndexByte(buf, ' ')
	if idx < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(buf[:idx]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
