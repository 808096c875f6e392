//go:build darwin

package scheduler

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueueBackend implements pollerBackend using kqueue, grounded on
// eventloop's darwin poller in the same package family as
// poller_linux.go's epoll backend. Wake interruption uses an EVFILT_USER
// event rather than an eventfd, since macOS has no eventfd.
type kqueueBackend struct {
	kq int
}

const wakeIdent = 1

func newPollerBackend() (pollerBackend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	b := &kqueueBackend{kq: kq}
	_, err = unix.Kevent(kq, []unix.Kevent_t{{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil)
	if err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	return b, nil
}

func (b *kqueueBackend) add(fd int, mask IOEvent) error {
	return b.apply(fd, mask, unix.EV_ADD|unix.EV_CLEAR)
}

func (b *kqueueBackend) modify(fd int, mask IOEvent) error {
	// kqueue has no atomic "modify"; re-adding with the current mask and
	// deleting the opposite filter achieves the same effect.
	if mask&EventRead != 0 {
		if err := b.kevent(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR); err != nil {
			return err
		}
	} else {
		_ = b.kevent(fd, unix.EVFILT_READ, unix.EV_DELETE)
	}
	if mask&EventWrite != 0 {
		if err := b.kevent(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_CLEAR); err != nil {
			return err
		}
	} else {
		_ = b.kevent(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	}
	return nil
}

func (b *kqueueBackend) apply(fd int, mask IOEvent, flags uint16) error {
	var changes []unix.Kevent_t
	if mask&EventRead != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if mask&EventWrite != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(b.kq, changes, nil, nil)
	return err
}

func (b *kqueueBackend) kevent(fd int, filter int16, flags uint16) error {
	_, err := unix.Kevent(b.kq, []unix.Kevent_t{{Ident: uint64(fd), Filter: filter, Flags: flags}}, nil, nil)
	return err
}

func (b *kqueueBackend) remove(fd int) error {
	_ = b.kevent(fd, unix.EVFILT_READ, unix.EV_DELETE)
	_ = b.kevent(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	return nil
}

func (b *kqueueBackend) wait(timeout time.Duration) ([]polledEvent, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	var raw [128]unix.Kevent_t
	n, err := unix.Kevent(b.kq, nil, raw[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]polledEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := raw[i]
		if ev.Filter == unix.EVFILT_USER && ev.Ident == wakeIdent {
			continue
		}
		fd := int(ev.Ident)
		var m IOEvent
		switch ev.Filter {
		case unix.EVFILT_READ:
			m |= EventRead
		case unix.EVFILT_WRITE:
			m |= EventWrite
		}
		if ev.Flags&unix.EV_EOF != 0 {
			m |= EventHangup
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			m |= EventError
		}
		out = append(out, polledEvent{fd: fd, events: m})
	}
	return out, nil
}

func (b *kqueueBackend) wake() error {
	_, err := unix.Kevent(b.kq, []unix.Kevent_t{{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}, nil, nil)
	return err
}

func (b *kqueueBackend) close() error {
	return unix.Close(b.kq)
}
