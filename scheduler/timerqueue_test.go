package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerQueueFiresInDeadlineOrder(t *testing.T) {
	q := newTimerQueue()
	now := time.Now()

	var order []int
	q.schedule(now.Add(30*time.Millisecond), func() { order = append(order, 3) })
	q.schedule(now.Add(10*time.Millisecond), func() { order = append(order, 1) })
	q.schedule(now.Add(20*time.Millisecond), func() { order = append(order, 2) })

	q.fireExpired(now.Add(25 * time.Millisecond))
	require.Equal(t, []int{1, 2}, order)

	q.fireExpired(now.Add(100 * time.Millisecond))
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestTimerQueueCancelSkipsGarbage(t *testing.T) {
	q := newTimerQueue()
	now := time.Now()

	fired := false
	entry := q.schedule(now.Add(time.Millisecond), func() { fired = true })
	q.cancel(entry)

	q.fireExpired(now.Add(time.Hour))
	require.False(t, fired)
	require.Equal(t, 0, q.len())
}

func TestTimerQueueMarkGarbageIsSkippedOnFire(t *testing.T) {
	q := newTimerQueue()
	now := time.Now()

	fired := false
	entry := q.schedule(now.Add(time.Millisecond), func() { fired = true })
	entry.markGarbage()

	q.fireExpired(now.Add(time.Hour))
	require.False(t, fired)
}
