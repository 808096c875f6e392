package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWaitQueuePopOneSkipsSpent(t *testing.T) {
	q := newWaitQueue()

	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	t1 := newTaskState(s, "t1", false)
	t2 := newTaskState(s, "t2", false)

	w1 := newWakeup(t1)
	w2 := newWakeup(t2)
	q.push(w1)
	q.push(w2)

	// simulate w1 already having fired via a timeout elsewhere
	w1.spent.Store(true)

	woke := q.popOne(s, nil)
	require.True(t, woke)
	require.Len(t, s.ready, 1)
	require.Equal(t, t2, s.ready[0].task)
}

func TestWaitQueuePopAllFiresEveryLiveEntry(t *testing.T) {
	q := newWaitQueue()

	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	t1 := newTaskState(s, "t1", false)
	t2 := newTaskState(s, "t2", false)
	q.push(newWakeup(t1))
	q.push(newWakeup(t2))

	q.popAll(s, nil)
	require.Len(t, s.ready, 2)
	require.Equal(t, 0, q.len())
}
