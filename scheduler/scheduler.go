// Package scheduler implements the cooperative task scheduler and I/O
// poller at the core of this module (components C1-C10 of the design):
// a goroutine-backed coroutine primitive, a timer queue, a one-shot
// wakeup arbiter, FIFO wait queues, a multi-listener poll registry, the
// scheduler tick loop itself, synchronization primitives (Event, Pulse,
// EventQueue, RLock), task handles, and a cross-thread callback bridge.
//
// Where cothread multiplexes stackful greenlets onto one OS thread via
// explicit context switches, this package hands that job to the Go
// runtime: every coroutine is a goroutine, and the scheduler becomes a
// policy layer deciding which goroutine holds the baton rather than a
// context-switch kernel. See eventloop/doc.go for the teacher's take on
// the same trade-off.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type readyItem struct {
	task   *taskState
	reason wakeResult
}

type controlMsg struct {
	task   *taskState
	done   bool
	err    error
	panicV any
}

// Scheduler is the cooperative reactor: one Scheduler owns one poll
// registry, one timer queue, and the baton that exactly one task holds
// at a time. Create one with New, register work with Spawn, and drive it
// with Run.
type Scheduler struct {
	opts *options

	tasks   sync.Map // goroutine id (uint64) -> *taskState
	control chan controlMsg

	ready  []readyItem
	timers *timerQueue
	poll   *pollRegistry

	callbacks *callbackQueue

	running atomic.Bool
	closed  atomic.Bool

	metrics metricsState
}

// New constructs a Scheduler. The returned Scheduler owns OS resources
// (an epoll or poll-based fd, an eventfd or pipe) that must be released
// by calling Close once Run has returned.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	backend, err := newPollerBackend()
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		opts:    cfg,
		control: make(chan controlMsg),
		timers:  newTimerQueue(),
		poll:    newPollRegistry(backend),
	}
	s.callbacks = newCallbackQueue(s, cfg.callbackQueueSize)
	return s, nil
}

// Close releases the scheduler's OS poll resources. Must be called after
// Run has returned.
func (s *Scheduler) Close() error {
	return s.poll.close()
}

func (s *Scheduler) currentTask() *taskState {
	id := getGoroutineID()
	v, ok := s.tasks.Load(id)
	if !ok {
		panic("cothread: scheduler primitive called from a goroutine that is not a scheduler task")
	}
	return v.(*taskState)
}

// enqueueReady appends a resumption to the ready queue. Only ever called
// with the baton held (directly by the currently-running task, or by the
// scheduler's own tick-loop goroutine during timer/poll/callback
// dispatch, which by construction never overlaps with a running task).
func (s *Scheduler) enqueueReady(t *taskState, r wakeResult) {
	s.ready = append(s.ready, readyItem{task: t, reason: r})
}

// runTask hands the baton to t with reason r, and blocks until t either
// suspends again or finishes.
func (s *Scheduler) runTask(t *taskState, r wakeResult) {
	t.resume <- r
	msg := <-s.control
	if msg.done {
		t.finish(msg.err, msg.panicV)
	}
}

// parkCurrent hands the baton back to the scheduler and blocks the
// calling task until it is resumed. Every blocking primitive in this
// package (Sleep, Event.Wait, RLock.Acquire, ...) bottoms out here.
func (s *Scheduler) parkCurrent() wakeResult {
	t := s.currentTask()
	s.control <- controlMsg{task: t}
	return <-t.resume
}

// startTask launches entry on a new goroutine, registers it in s.tasks
// once it has an id, and reports its completion back over s.control.
// The goroutine does not begin running entry until the scheduler first
// resumes it via runTask, keeping the "newly spawned task joins the
// ready queue like any other wakeup" invariant from spec §6.
func (s *Scheduler) startTask(t *taskState, entry func() error) {
	s.metrics.tasksSpawned.Add(1)
	go func() {
		t.id = getGoroutineID()
		s.tasks.Store(t.id, t)
		<-t.resume

		var result error
		var panicV any
		func() {
			defer func() {
				if r := recover(); r != nil {
					panicV = r
				}
			}()
			result = entry()
		}()

		s.tasks.Delete(t.id)
		s.metrics.tasksFinished.Add(1)
		s.control <- controlMsg{task: t, done: true, err: result, panicV: panicV}
	}()
}

// Run drives the scheduler until ctx is cancelled or Shutdown is called.
// It must not be called from a task running on this scheduler (use
// Spawn and Task.Wait from within a task instead).
func (s *Scheduler) Run(ctx context.Context) error {
	if _, onTask := s.tasks.Load(getGoroutineID()); onTask {
		return ErrReentrantRun
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrSchedulerRunning
	}
	defer s.running.Store(false)

	stopWatch := s.watchContext(ctx)
	defer stopWatch()

	for {
		if s.closed.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.tickGuarded(); err != nil {
			if l := s.opts.logger.Err(); l != nil {
				l.Str("error", err.Error()).Log("scheduler tick failed, resuming")
			}
		}
	}
}

// watchContext spawns a goroutine that calls s.poll's wake() once ctx is
// done, so a blocked poll wait doesn't keep Run from noticing
// cancellation. Mirrors eventloop/loop.go's context-watcher goroutine.
func (s *Scheduler) watchContext(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = s.poll.backend.wake()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Shutdown requests the reactor stop after the current tick completes.
func (s *Scheduler) Shutdown() {
	if s.closed.CompareAndSwap(false, true) {
		_ = s.poll.backend.wake()
	}
}

// tickGuarded wraps tick in a panic recovery matching spec §4.1: a
// failure in the scheduler's own bookkeeping (not task code, which is
// already isolated in startTask) is logged and the reactor continues,
// rather than crashing the whole process.
func (s *Scheduler) tickGuarded() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = WrapError("scheduler tick panicked", panicToError(r))
		}
	}()
	return s.tick()
}

func panicToError(r any) error {
	if e, ok := r.(error); ok {
		return e
	}
	return WrapError("panic", ErrSchedulerFailure)
}

func (s *Scheduler) tick() error {
	s.metrics.ticks.Add(1)
	now := time.Now()
	s.timers.fireExpired(now)
	s.drainReady()

	timeout := s.calculateTimeout()
	if err := s.poll.wait(s, timeout); err != nil {
		return err
	}
	s.drainReady()

	s.callbacks.drain()
	s.drainReady()
	return nil
}

func (s *Scheduler) drainReady() {
	for len(s.ready) > 0 {
		item := s.ready[0]
		s.ready = s.ready[1:]
		s.runTask(item.task, item.reason)
	}
}

// calculateTimeout picks how long poll.wait may block: zero if there is
// ready work (there never is here, drainReady already ran), otherwise
// time until the nearest timer deadline, or -1 (block indefinitely) if
// there are no pending timers at all.
func (s *Scheduler) calculateTimeout() time.Duration {
	deadline, ok := s.timers.nextDeadline()
	if !ok {
		return -1
	}
	d := time.Until(deadline)
	if d < 0 {
		return 0
	}
	return d
}

// Sleep suspends the calling task for d, or until ctx is cancelled,
// whichever comes first. Must be called from within a task.
func (s *Scheduler) Sleep(ctx context.Context, d time.Duration) error {
	t := s.currentTask()
	w := newWakeup(t)
	w.timerEntry = s.timers.schedule(time.Now().Add(d), func() {
		w.fire(s, ReasonTimeout, nil)
	})

	if ctx != nil && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			_ = s.PostCallback(func() {
				w.fire(s, ReasonCancelled, ctx.Err())
			})
		})
		defer stop()
	}

	res := s.parkCurrent()
	return res.err
}

// Yield moves the calling task to the back of the ready queue: every task
// that is already ready runs first, then the caller resumes within the
// same drain pass, with no poll or callback drain in between.
func (s *Scheduler) Yield() {
	t := s.currentTask()
	s.enqueueReady(t, wakeResult{reason: ReasonNormal})
	s.parkCurrent()
}

// WaitFd blocks the calling task until fd becomes ready for any of the
// conditions in mask, ctx is cancelled, or both. This is the public
// entry point for component C5 (the poll registry): application code
// holding a raw file descriptor — a socket a transport layer opened
// outside the scheduler, a pipe shared with another process — registers
// its interest here instead of managing its own select/epoll loop.
// Several tasks may wait on the same fd at once; the poll registry
// shares each event among them as described on pollRegistry.
//
// Must be called from within a task. The fd is unregistered from the
// poll registry before WaitFd returns, whatever the reason.
func (s *Scheduler) WaitFd(ctx context.Context, fd int, mask IOEvent) error {
	t := s.currentTask()
	w := newWakeup(t)
	if err := s.poll.register(fd, mask, w); err != nil {
		return err
	}
	stop := registerCtxTimeout(s, w, ctx)
	res := s.parkCurrent()
	stop()
	s.poll.unregister(fd, w)
	if res.reason == ReasonTimeout {
		return ErrTimeout
	}
	return res.err
}
