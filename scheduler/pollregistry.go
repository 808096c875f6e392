package scheduler

import "time"

// IOEvent is a bitmask of pollable conditions, the Go analogue of
// cothread's read/write/exception poll flags. Grounded on
// eventloop/poller_linux.go's IOEvents type, generalized to support
// multiple independent listeners per fd (the teacher's FastPoller allows
// only one callback per fd; component C5 requires more than one, e.g. a
// channel's read-ready listener and a timeout-driven listener racing on
// the same socket).
type IOEvent uint32

const (
	EventRead IOEvent = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// pollerBackend is the OS-specific half of component C5: edge/level
// triggered readiness notification plus a way to interrupt a blocked
// wait call from another goroutine. poller_linux.go implements this with
// epoll, poller_darwin.go with kqueue, and poller_other.go portably with
// unix.Poll for every other platform golang.org/x/sys/unix supports.
type pollerBackend interface {
	add(fd int, mask IOEvent) error
	modify(fd int, mask IOEvent) error
	remove(fd int) error
	wait(timeout time.Duration) ([]polledEvent, error)
	wake() error
	close() error
}

type polledEvent struct {
	fd     int
	events IOEvent
}

type pollListener struct {
	mask IOEvent
	w    *wakeup
}

type fdEntry struct {
	fd        int
	listeners []*pollListener
	mask      IOEvent // union currently registered with the backend
}

// pollRegistry is the scheduler-owned half of C5: it tracks, per fd, the
// set of tasks waiting on it and applies the consumption rule from spec
// §5 — once a listener's interest bits are satisfied by an event, those
// bits are not offered to later listeners on the same fd in the same
// dispatch pass, except for EventError/EventHangup, which are delivered
// to every listener regardless of what earlier listeners consumed.
type pollRegistry struct {
	backend pollerBackend
	entries map[int]*fdEntry
}

func newPollRegistry(backend pollerBackend) *pollRegistry {
	return &pollRegistry{backend: backend, entries: make(map[int]*fdEntry)}
}

// register adds w as a listener for mask on fd, updating the OS
// registration's union mask as needed.
func (r *pollRegistry) register(fd int, mask IOEvent, w *wakeup) error {
	e, ok := r.entries[fd]
	if !ok {
		e = &fdEntry{fd: fd}
		r.entries[fd] = e
	}
	e.listeners = append(e.listeners, &pollListener{mask: mask, w: w})
	newMask := e.mask | mask
	if newMask == e.mask && ok {
		return nil
	}
	e.mask = newMask
	if !ok {
		return r.backend.add(fd, e.mask)
	}
	return r.backend.modify(fd, e.mask)
}

// unregister removes w from fd's listener list, e.g. when a waiting task
// is woken by a timeout instead of by I/O readiness.
func (r *pollRegistry) unregister(fd int, w *wakeup) {
	e, ok := r.entries[fd]
	if !ok {
		return
	}
	kept := e.listeners[:0]
	for _, l := range e.listeners {
		if l.w != w {
			kept = append(kept, l)
		}
	}
	e.listeners = kept
	r.recompute(e)
}

func (r *pollRegistry) recompute(e *fdEntry) {
	if len(e.listeners) == 0 {
		delete(r.entries, e.fd)
		_ = r.backend.remove(e.fd)
		return
	}
	var mask IOEvent
	for _, l := range e.listeners {
		mask |= l.mask
	}
	if mask != e.mask {
		e.mask = mask
		_ = r.backend.modify(e.fd, mask)
	}
}

// wait blocks for I/O readiness (or the given timeout, or an external
// wake() call) and dispatches the results, firing wakeups per the
// consumption rule described on pollRegistry.
func (r *pollRegistry) wait(sched *Scheduler, timeout time.Duration) error {
	events, err := r.backend.wait(timeout)
	if err != nil {
		return err
	}
	for _, ev := range events {
		r.dispatch(sched, ev)
	}
	return nil
}

func (r *pollRegistry) dispatch(sched *Scheduler, ev polledEvent) {
	e, ok := r.entries[ev.fd]
	if !ok {
		return
	}
	const stickyBits = EventError | EventHangup
	var consumed IOEvent
	remaining := e.listeners[:0]
	for _, l := range e.listeners {
		sticky := ev.events & stickyBits
		fresh := l.mask & ev.events &^ stickyBits &^ consumed
		deliver := sticky | fresh
		if deliver == 0 {
			remaining = append(remaining, l)
			continue
		}
		consumed |= fresh
		l.w.fire(sched, ReasonNormal, nil)
		// a fired listener is one-shot, same as a wait-queue entry.
	}
	e.listeners = remaining
	r.recompute(e)
}

func (r *pollRegistry) close() error {
	return r.backend.close()
}
