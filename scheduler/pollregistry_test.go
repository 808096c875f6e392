package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeBackend is a pollerBackend stub that hands back a canned batch of
// events from wait() once, then blocks (returning empty) until close.
type fakeBackend struct {
	queued []polledEvent
	added  map[int]IOEvent
}

func newFakeBackend() *fakeBackend { return &fakeBackend{added: make(map[int]IOEvent)} }

func (b *fakeBackend) add(fd int, mask IOEvent) error    { b.added[fd] = mask; return nil }
func (b *fakeBackend) modify(fd int, mask IOEvent) error { b.added[fd] = mask; return nil }
func (b *fakeBackend) remove(fd int) error               { delete(b.added, fd); return nil }
func (b *fakeBackend) wake() error                       { return nil }
func (b *fakeBackend) close() error                      { return nil }

func (b *fakeBackend) wait(time.Duration) ([]polledEvent, error) {
	out := b.queued
	b.queued = nil
	return out, nil
}

func TestPollRegistryStickyBitsDeliveredToAllListeners(t *testing.T) {
	s := newTestScheduler(t)
	backend := newFakeBackend()
	r := newPollRegistry(backend)

	tA := newTaskState(s, "a", false)
	tB := newTaskState(s, "b", false)
	wA := newWakeup(tA)
	wB := newWakeup(tB)

	require.NoError(t, r.register(7, EventRead, wA))
	require.NoError(t, r.register(7, EventRead, wB))

	backend.queued = []polledEvent{{fd: 7, events: EventHangup}}
	require.NoError(t, r.wait(s, 0))

	require.True(t, wA.isSpent())
	require.True(t, wB.isSpent())
	require.Len(t, s.ready, 2)
}

func TestPollRegistryNonStickyBitsConsumedByFirstListenerOnly(t *testing.T) {
	s := newTestScheduler(t)
	backend := newFakeBackend()
	r := newPollRegistry(backend)

	tA := newTaskState(s, "a", false)
	tB := newTaskState(s, "b", false)
	wA := newWakeup(tA)
	wB := newWakeup(tB)

	require.NoError(t, r.register(9, EventRead, wA))
	require.NoError(t, r.register(9, EventRead, wB))

	backend.queued = []polledEvent{{fd: 9, events: EventRead}}
	require.NoError(t, r.wait(s, 0))

	require.True(t, wA.isSpent())
	require.False(t, wB.isSpent())
	require.Len(t, s.ready, 1)
	require.Equal(t, tA, s.ready[0].task)

	// the second listener is still registered and can be woken by a
	// later, independent readiness event.
	backend.queued = []polledEvent{{fd: 9, events: EventRead}}
	require.NoError(t, r.wait(s, 0))
	require.True(t, wB.isSpent())
	require.Len(t, s.ready, 2)
}

func TestPollRegistryUnregisterRemovesListenerAndDropsFd(t *testing.T) {
	s := newTestScheduler(t)
	backend := newFakeBackend()
	r := newPollRegistry(backend)

	tA := newTaskState(s, "a", false)
	wA := newWakeup(tA)
	require.NoError(t, r.register(3, EventWrite, wA))
	require.Contains(t, backend.added, 3)

	r.unregister(3, wA)
	require.NotContains(t, backend.added, 3)
	require.NotContains(t, r.entries, 3)
}
