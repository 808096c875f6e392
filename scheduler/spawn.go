package scheduler

import "context"

// Task is a handle to a spawned coroutine (component C8), the Go
// counterpart of cothread.Spawn's return value. It can be waited on both
// from another task running on the same scheduler (cooperatively, via
// the baton) and from an ordinary goroutine outside the scheduler
// entirely (a plain blocking wait), since not every caller interested in
// a task's result is itself a task.
type Task struct {
	state *taskState
	sched *Scheduler
}

// Spawn starts entry on a new goroutine managed by sched and returns a
// handle to it. entry's return value (nil for success) becomes the
// result observed by Wait. If raiseOnWait is true, a non-nil result (or
// a recovered panic) is re-raised as a *TaskError from Wait; otherwise
// Wait returns that error (or the panic converted to an error) as it is,
// not wrapped in *TaskError. The failure is not logged in either case.
//
// Spawn may be called either before sched.Run starts, to seed initial
// work, or from within a task already running on sched. Calling it
// concurrently from outside those two contexts is not supported — see
// Scheduler.PostCallback (component C9) for posting work from another
// thread.
func Spawn(sched *Scheduler, name string, raiseOnWait bool, entry func() error) *Task {
	t := newTaskState(sched, name, raiseOnWait)
	sched.startTask(t, entry)
	sched.enqueueReady(t, wakeResult{reason: ReasonNormal})
	return &Task{state: t, sched: sched}
}

// Name returns the task's diagnostic name, as given to Spawn.
func (tk *Task) Name() string { return tk.state.name }

// Done reports whether the task's entry function has returned.
func (tk *Task) Done() bool { return tk.state.isFinished() }

// Wait blocks until the task finishes, or ctx is cancelled.
//
// If called from another task on the same scheduler, it cooperates with
// the baton like every other blocking primitive in this package. If
// called from outside the scheduler (a goroutine that never called
// Spawn and never runs inside sched.Run), it falls back to a plain
// channel wait, since there is no baton to hand back.
func (tk *Task) Wait(ctx context.Context) error {
	if _, onScheduler := tk.sched.tasks.Load(getGoroutineID()); onScheduler {
		return tk.waitCooperative(ctx)
	}
	return tk.waitExternal(ctx)
}

func (tk *Task) waitCooperative(ctx context.Context) error {
	t := tk.sched.currentTask()
	if tk.state.isFinished() {
		return tk.result()
	}
	w := newWakeup(t)
	tk.state.mu.Lock()
	if tk.state.isFinished() {
		tk.state.mu.Unlock()
		return tk.result()
	}
	tk.state.waiters = append(tk.state.waiters, w)
	tk.state.mu.Unlock()
	stop := registerCtxTimeout(tk.sched, w, ctx)

	res := tk.sched.parkCurrent()
	stop()
	if res.reason == ReasonTimeout {
		return ErrTimeout
	}
	if res.err != nil {
		return res.err
	}
	return tk.result()
}

func (tk *Task) waitExternal(ctx context.Context) error {
	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}
	select {
	case <-tk.state.done:
		return tk.result()
	case <-done:
		return ctx.Err()
	}
}

// result converts the task's stored outcome into an error, honoring
// raiseOnWait.
func (tk *Task) result() error {
	tk.state.mu.Lock()
	defer tk.state.mu.Unlock()
	if tk.state.panicV != nil {
		if tk.state.raiseOn {
			return &TaskError{Cause: panicToError(tk.state.panicV)}
		}
		return panicToError(tk.state.panicV)
	}
	if tk.state.result != nil {
		if tk.state.raiseOn {
			return &TaskError{Cause: tk.state.result}
		}
		return tk.state.result
	}
	return nil
}
