package scheduler

import (
	"errors"
	"fmt"
)

// Standard scheduler errors.
var (
	// ErrTimeout is what the blocking primitives map a ReasonTimeout
	// wakeup to. Their deadlines come from a context, and an expired or
	// cancelled context is reported as ctx.Err() (context.DeadlineExceeded
	// or context.Canceled), not as ErrTimeout.
	ErrTimeout = errors.New("cothread: wait timed out")

	// ErrSchedulerRunning is returned when Run is called on a scheduler that
	// is already running.
	ErrSchedulerRunning = errors.New("cothread: scheduler already running")

	// ErrSchedulerClosed names a closed scheduler. No function in this
	// package returns it.
	ErrSchedulerClosed = errors.New("cothread: scheduler closed")

	// ErrReentrantRun is returned when Run is called from a task running on
	// the scheduler itself.
	ErrReentrantRun = errors.New("cothread: cannot call Run from a scheduler task")

	// ErrQueueClosed is returned by EventQueue.Wait once the queue has been
	// closed and drained.
	ErrQueueClosed = errors.New("cothread: event queue closed")

	// ErrNotOwner is returned by RLock.Release when called by a task that
	// does not hold the lock.
	ErrNotOwner = errors.New("cothread: release by non-owning task")

	// ErrSchedulerFailure is the cause recorded when a recovered panic
	// value is not itself an error, whether the panic came from a task's
	// entry function or from the scheduler's own tick loop. Run logs a
	// failed tick and keeps running; the failure is not delivered to any
	// task.
	ErrSchedulerFailure = errors.New("cothread: scheduler loop failed")

	// ErrCallbackQueueFull is returned by PostCallback/PostCallbackResult
	// when WithCallbackQueueSize bounds the queue and it is full.
	ErrCallbackQueueFull = errors.New("cothread: cross-thread callback queue full")
)

// TaskError is re-raised from Task.Wait when the task's entry function
// panicked or returned an error and RaiseOnWait was set.
type TaskError struct {
	Cause error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("cothread: task failed: %v", e.Cause)
}

func (e *TaskError) Unwrap() error { return e.Cause }

// WrapError wraps cause with a message, preserving it for errors.Is/As.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
