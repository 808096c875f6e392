package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// These exercise the ctx-cancellation path on every C7 primitive: a
// context cancelled or timed out while a task is parked must actually
// resume that task (not hang forever), since the fire that reports it
// now travels through PostCallback and ReasonCancelled rather than
// being dropped as a never-enqueued ReasonException.

func TestEventWaitCancelledByContext(t *testing.T) {
	s := newTestScheduler(t)
	ev := NewEvent(s)

	task := Spawn(s, "waiter", false, func() error {
		defer s.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		return ev.Wait(ctx)
	})

	runUntilShutdown(t, s, time.Second)
	err := task.Wait(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPulseWaitCancelledByContext(t *testing.T) {
	s := newTestScheduler(t)
	p := NewPulse(s)

	task := Spawn(s, "waiter", false, func() error {
		defer s.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		return p.Wait(ctx)
	})

	runUntilShutdown(t, s, time.Second)
	err := task.Wait(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEventQueueWaitCancelledByContext(t *testing.T) {
	s := newTestScheduler(t)
	q := NewEventQueue[int](s)

	task := Spawn(s, "waiter", false, func() error {
		defer s.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		_, err := q.Wait(ctx)
		return err
	})

	runUntilShutdown(t, s, time.Second)
	err := task.Wait(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRLockAcquireCancelledByContext(t *testing.T) {
	s := newTestScheduler(t)
	lock := NewRLock(s)

	Spawn(s, "holder", true, func() error {
		require.NoError(t, lock.Acquire(context.Background()))
		s.Sleep(context.Background(), time.Hour)
		return nil
	})

	task := Spawn(s, "blocked", false, func() error {
		defer s.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		return lock.Acquire(ctx)
	})

	runUntilShutdown(t, s, time.Second)
	err := task.Wait(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTaskWaitCooperativeCancelledByContext(t *testing.T) {
	s := newTestScheduler(t)

	slow := Spawn(s, "slow", true, func() error {
		return s.Sleep(context.Background(), time.Hour)
	})

	task := Spawn(s, "waiter", false, func() error {
		defer s.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		return slow.waitCooperative(ctx)
	})

	runUntilShutdown(t, s, time.Second)
	err := task.Wait(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
