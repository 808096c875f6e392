package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func runUntilShutdown(t *testing.T, s *Scheduler, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := s.Run(ctx)
	require.NoError(t, err)
}

func TestPingPong(t *testing.T) {
	s := newTestScheduler(t)

	var trace []string
	ping := NewPulse(s)
	pong := NewPulse(s)

	Spawn(s, "pinger", true, func() error {
		for i := 0; i < 3; i++ {
			trace = append(trace, "ping")
			pong.Broadcast()
			require.NoError(t, ping.Wait(context.Background()))
		}
		return nil
	})

	done := Spawn(s, "ponger", true, func() error {
		for i := 0; i < 3; i++ {
			require.NoError(t, pong.Wait(context.Background()))
			trace = append(trace, "pong")
			ping.Broadcast()
		}
		s.Shutdown()
		return nil
	})

	runUntilShutdown(t, s, time.Second)
	require.NoError(t, done.Wait(context.Background()))
	require.Equal(t, []string{"ping", "pong", "ping", "pong", "ping", "pong"}, trace)
}

func TestSleepHonorsTimeout(t *testing.T) {
	s := newTestScheduler(t)

	start := time.Now()
	var elapsed time.Duration
	task := Spawn(s, "sleeper", true, func() error {
		defer s.Shutdown()
		err := s.Sleep(context.Background(), 20*time.Millisecond)
		elapsed = time.Since(start)
		return err
	})

	runUntilShutdown(t, s, time.Second)
	require.NoError(t, task.Wait(context.Background()))
	require.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestSleepCancelledByContext(t *testing.T) {
	s := newTestScheduler(t)

	task := Spawn(s, "sleeper", false, func() error {
		defer s.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		return s.Sleep(ctx, time.Hour)
	})

	runUntilShutdown(t, s, time.Second)
	err := task.Wait(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEventSignalWakesAllWaiters(t *testing.T) {
	s := newTestScheduler(t)
	ev := NewEvent(s)

	woken := make(chan string, 2)
	Spawn(s, "waiter-a", true, func() error {
		require.NoError(t, ev.Wait(context.Background()))
		woken <- "a"
		return nil
	})
	done := Spawn(s, "waiter-b", true, func() error {
		require.NoError(t, ev.Wait(context.Background()))
		woken <- "b"
		return nil
	})
	Spawn(s, "signaler", true, func() error {
		ev.Signal()
		s.Shutdown()
		return nil
	})

	runUntilShutdown(t, s, time.Second)
	require.NoError(t, done.Wait(context.Background()))
	close(woken)
	var got []string
	for v := range woken {
		got = append(got, v)
	}
	require.ElementsMatch(t, []string{"a", "b"}, got)
}

func TestEventQueueFIFO(t *testing.T) {
	s := newTestScheduler(t)
	q := NewEventQueue[int](s)

	var got []int
	done := Spawn(s, "consumer", true, func() error {
		for i := 0; i < 3; i++ {
			v, err := q.Wait(context.Background())
			require.NoError(t, err)
			got = append(got, v)
		}
		s.Shutdown()
		return nil
	})
	Spawn(s, "producer", true, func() error {
		q.Put(1)
		q.Put(2)
		q.Put(3)
		return nil
	})

	runUntilShutdown(t, s, time.Second)
	require.NoError(t, done.Wait(context.Background()))
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestRLockSerializesAcquirers(t *testing.T) {
	s := newTestScheduler(t)
	lock := NewRLock(s)

	var order []int
	var wg []*Task
	for i := 0; i < 3; i++ {
		i := i
		wg = append(wg, Spawn(s, "locker", true, func() error {
			require.NoError(t, lock.Acquire(context.Background()))
			order = append(order, i)
			s.Yield()
			require.NoError(t, lock.Release())
			return nil
		}))
	}
	Spawn(s, "closer", false, func() error {
		for _, tk := range wg {
			_ = tk.Wait(context.Background())
		}
		s.Shutdown()
		return nil
	})

	runUntilShutdown(t, s, time.Second)
	require.Len(t, order, 3)
}

func TestTaskErrorPropagatesOnRaiseOnWait(t *testing.T) {
	s := newTestScheduler(t)

	boom := Spawn(s, "boomer", true, func() error {
		defer s.Shutdown()
		return errBoom
	})

	runUntilShutdown(t, s, time.Second)
	err := boom.Wait(context.Background())
	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	require.ErrorIs(t, taskErr, errBoom)
}

var errBoom = simpleErr("boom")

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func TestTimerRetrigger(t *testing.T) {
	s := newTestScheduler(t)
	count := 0

	task := Spawn(s, "waiter", true, func() error {
		defer s.Shutdown()
		timer := NewTimer(s, 5*time.Millisecond, true, func() { count++ })
		require.NoError(t, s.Sleep(context.Background(), 25*time.Millisecond))
		timer.Stop()
		return nil
	})

	runUntilShutdown(t, s, time.Second)
	require.NoError(t, task.Wait(context.Background()))
	require.GreaterOrEqual(t, count, 2)
}

func TestTimerCancelBeforeFire(t *testing.T) {
	s := newTestScheduler(t)
	fired := false

	task := Spawn(s, "waiter", true, func() error {
		defer s.Shutdown()
		timer := NewTimer(s, 50*time.Millisecond, false, func() { fired = true })
		timer.Stop()
		require.NoError(t, s.Sleep(context.Background(), 60*time.Millisecond))
		return nil
	})

	runUntilShutdown(t, s, time.Second)
	require.NoError(t, task.Wait(context.Background()))
	require.False(t, fired)
}

func TestPostCallbackCrossesFromExternalGoroutine(t *testing.T) {
	s := newTestScheduler(t)
	result := make(chan int, 1)

	go func() {
		_ = s.PostCallback(func() {
			result <- 42
			s.Shutdown()
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	select {
	case v := <-result:
		require.Equal(t, 42, v)
	default:
		t.Fatal("callback never ran")
	}
}

func TestPostCallbackResultDeliversValue(t *testing.T) {
	s := newTestScheduler(t)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r := PostCallbackResult(s, func() (int, error) { return 7, nil })
		v, err := r.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, 7, v)
		s.Shutdown()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))
}

func TestWaitForAllJoinsEveryTaskAndReportsFirstError(t *testing.T) {
	s := newTestScheduler(t)

	var tasks []*Task
	Spawn(s, "driver", true, func() error {
		defer s.Shutdown()
		var order []int
		tasks = []*Task{
			Spawn(s, "a", false, func() error { order = append(order, 1); return nil }),
			Spawn(s, "b", false, func() error { order = append(order, 2); return errBoom }),
			Spawn(s, "c", false, func() error { order = append(order, 3); return nil }),
		}
		err := WaitForAll(context.Background(), tasks)
		require.ErrorIs(t, err, errBoom)
		require.Len(t, order, 3)
		return nil
	})

	runUntilShutdown(t, s, time.Second)
	for _, tk := range tasks {
		require.True(t, tk.Done())
	}
}

func TestQuitIsShutdown(t *testing.T) {
	s := newTestScheduler(t)

	Spawn(s, "quitter", false, func() error {
		s.Quit()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))
}

func TestWaitForQuitStopsOnShutdown(t *testing.T) {
	s := newTestScheduler(t)

	Spawn(s, "quitter", false, func() error {
		s.Shutdown()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.WaitForQuit(ctx, false))
}
