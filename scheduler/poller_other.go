//go:build !linux && !darwin

package scheduler

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// pollBackend implements pollerBackend with unix.Poll, the portable
// subset golang.org/x/sys/unix offers across every platform it supports.
// It trades epoll's O(1) readiness reporting for O(n) rebuild-per-wait,
// acceptable here since the registry already batches fds by listener
// count rather than by raw poll volume. Wake interruption uses a
// self-pipe, the same technique eventloop/fd_unix.go uses for its
// non-eventfd platforms.
type pollBackend struct {
	mu       sync.Mutex
	masks    map[int]IOEvent
	wakeR    int
	wakeW    int
}

func newPollerBackend() (pollerBackend, error) {
	fds, err := unixPipe2()
	if err != nil {
		return nil, err
	}
	return &pollBackend{
		masks: make(map[int]IOEvent),
		wakeR: fds[0],
		wakeW: fds[1],
	}, nil
}

func unixPipe2() ([2]int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return fds, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			return fds, err
		}
	}
	return fds, nil
}

func (b *pollBackend) add(fd int, mask IOEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.masks[fd] = mask
	return nil
}

func (b *pollBackend) modify(fd int, mask IOEvent) error {
	return b.add(fd, mask)
}

func (b *pollBackend) remove(fd int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.masks, fd)
	return nil
}

func eventsToPollEvents(m IOEvent) int16 {
	var e int16
	if m&EventRead != 0 {
		e |= unix.POLLIN
	}
	if m&EventWrite != 0 {
		e |= unix.POLLOUT
	}
	return e
}

func pollEventsToEvents(e int16) IOEvent {
	var m IOEvent
	if e&unix.POLLIN != 0 {
		m |= EventRead
	}
	if e&unix.POLLOUT != 0 {
		m |= EventWrite
	}
	if e&unix.POLLERR != 0 {
		m |= EventError
	}
	if e&(unix.POLLHUP|unix.POLLNVAL) != 0 {
		m |= EventHangup
	}
	return m
}

func (b *pollBackend) wait(timeout time.Duration) ([]polledEvent, error) {
	b.mu.Lock()
	fds := make([]unix.PollFd, 0, len(b.masks)+1)
	fds = append(fds, unix.PollFd{Fd: int32(b.wakeR), Events: unix.POLLIN})
	order := make([]int, 0, len(b.masks))
	for fd, mask := range b.masks {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: eventsToPollEvents(mask)})
		order = append(order, fd)
	}
	b.mu.Unlock()

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.Poll(fds, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]polledEvent, 0, n)
	if fds[0].Revents != 0 {
		b.drainWake()
	}
	for i, fd := range order {
		re := fds[i+1].Revents
		if re == 0 {
			continue
		}
		out = append(out, polledEvent{fd: fd, events: pollEventsToEvents(re)})
	}
	return out, nil
}

func (b *pollBackend) drainWake() {
	var buf [64]byte
	for {
		_, err := unix.Read(b.wakeR, buf[:])
		if err != nil {
			return
		}
	}
}

func (b *pollBackend) wake() error {
	var buf [1]byte
	_, err := unix.Write(b.wakeW, buf[:])
	return err
}

func (b *pollBackend) close() error {
	_ = unix.Close(b.wakeR)
	return unix.Close(b.wakeW)
}
