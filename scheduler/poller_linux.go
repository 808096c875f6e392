//go:build linux

package scheduler

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollBackend implements pollerBackend using epoll plus an eventfd used
// to interrupt a blocked EpollWait, grounded directly on
// eventloop/poller_linux.go's FastPoller and eventloop/wakeup_linux.go's
// createWakeFd/drainWakeUpPipe.
type epollBackend struct {
	epfd   int
	wakeFd int
}

func newPollerBackend() (pollerBackend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	b := &epollBackend{epfd: epfd, wakeFd: wakeFd}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFd),
	}); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFd)
		return nil, err
	}
	return b, nil
}

func eventsToEpoll(m IOEvent) uint32 {
	var e uint32
	if m&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if m&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvent {
	var m IOEvent
	if e&unix.EPOLLIN != 0 {
		m |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		m |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		m |= EventError
	}
	if e&unix.EPOLLHUP != 0 || e&unix.EPOLLRDHUP != 0 {
		m |= EventHangup
	}
	return m
}

func (b *epollBackend) add(fd int, mask IOEvent) error {
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: eventsToEpoll(mask) | unix.EPOLLERR | unix.EPOLLHUP,
		Fd:     int32(fd),
	})
}

func (b *epollBackend) modify(fd int, mask IOEvent) error {
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: eventsToEpoll(mask) | unix.EPOLLERR | unix.EPOLLHUP,
		Fd:     int32(fd),
	})
}

func (b *epollBackend) remove(fd int) error {
	err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (b *epollBackend) wait(timeout time.Duration) ([]polledEvent, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	var raw [128]unix.EpollEvent
	n, err := unix.EpollWait(b.epfd, raw[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]polledEvent, 0, n)
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == b.wakeFd {
			b.drainWake()
			continue
		}
		out = append(out, polledEvent{fd: fd, events: epollToEvents(raw[i].Events)})
	}
	return out, nil
}

func (b *epollBackend) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(b.wakeFd, buf[:])
		if err != nil {
			return
		}
	}
}

func (b *epollBackend) wake() error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(b.wakeFd, buf[:])
	return err
}

func (b *epollBackend) close() error {
	_ = unix.Close(b.wakeFd)
	return unix.Close(b.epfd)
}
