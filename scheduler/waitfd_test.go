package scheduler

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Exercises component C5 (the poll registry) as a real application would:
// a raw OS pipe, not a fake backend, registered and waited on through the
// scheduler's own tick loop and epoll/kqueue/poll backend.

func TestWaitFdWakesOnPipeReadiness(t *testing.T) {
	s := newTestScheduler(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(); _ = w.Close() })

	task := Spawn(s, "reader", false, func() error {
		defer s.Shutdown()
		return s.WaitFd(context.Background(), int(r.Fd()), EventRead)
	})

	Spawn(s, "writer", true, func() error {
		require.NoError(t, s.Sleep(context.Background(), 10*time.Millisecond))
		_, err := w.Write([]byte("x"))
		return err
	})

	runUntilShutdown(t, s, time.Second)
	require.NoError(t, task.Wait(context.Background()))
}

func TestWaitFdCancelledByContext(t *testing.T) {
	s := newTestScheduler(t)
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(); _ = w.Close() })

	task := Spawn(s, "reader", false, func() error {
		defer s.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		return s.WaitFd(ctx, int(r.Fd()), EventRead)
	})

	runUntilShutdown(t, s, time.Second)
	err = task.Wait(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
