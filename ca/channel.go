package ca

import (
	"context"

	"github.com/joeycumines/go-cothread/scheduler"
)

// Channel is a cached connection to one PV (component C11), the Go
// counterpart of cothread.catools.Channel. It is never constructed
// directly; obtain one via Client.Connect or implicitly via Get/Put/
// Monitor, which all route through the shared Cache.
type Channel struct {
	client *Client
	name   string

	handle       uintptr
	connectToken uintptr

	state ConnState
	pulse *scheduler.Pulse

	subs map[*Subscription]struct{}

	// generation is bumped by purge; a completion context captures the
	// generation it was issued under so a late callback arriving after
	// purge can be told apart from one for the channel's current
	// incarnation (Open Question decision #1, see DESIGN.md).
	generation uint64
}

func newChannel(c *Client, name string) *Channel {
	ch := &Channel{
		client: c,
		name:   name,
		pulse:  scheduler.NewPulse(c.sched),
		subs:   make(map[*Subscription]struct{}),
		state:  StateNeverConnected,
	}
	ch.connectToken = c.contexts.alloc(ch)
	handle, err := c.native.CreateChannel(context.Background(), name, ch.connectToken, c.onNativeConnect)
	if err != nil {
		ch.state = StateDisconnected
		return ch
	}
	ch.handle = handle
	c.requestFlush()
	return ch
}

// onNativeConnect is the ConnectCallback passed to NativeCA.CreateChannel.
// It may be invoked on any goroutine, so it immediately marshals onto
// the scheduler via PostCallback before touching ch.
func (c *Client) onNativeConnect(token uintptr, connected bool) {
	_ = c.sched.PostCallback(func() {
		v, ok := c.contexts.entries[token]
		if !ok {
			return
		}
		ch, ok := v.(*Channel)
		if !ok {
			return
		}
		if connected {
			ch.state = StateConnected
		} else if ch.state != StateClosed {
			ch.state = StateDisconnected
			ch.pulse.Broadcast()
			for sub := range ch.subs {
				sub.notifyDisconnected()
			}
			return
		}
		ch.pulse.Broadcast()
	})
}

// Name returns the channel's PV name.
func (ch *Channel) Name() string { return ch.name }

// State returns the channel's current connection state.
func (ch *Channel) State() ConnState { return ch.state }

// WaitConnected blocks the calling task until the channel reaches
// StateConnected, or ctx is cancelled, or the channel is closed.
func (ch *Channel) WaitConnected(ctx context.Context) error {
	for ch.state != StateConnected {
		if ch.state == StateClosed {
			return &DisconnectedError{PV: ch.name}
		}
		if err := ch.pulse.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// close releases the channel's native handle and marks it closed. Called
// only by Cache.purgeAll.
func (ch *Channel) close() {
	if ch.state == StateClosed {
		return
	}
	ch.generation++
	ch.state = StateClosed
	for sub := range ch.subs {
		sub.close()
	}
	_, _ = ch.client.contexts.take(ch.connectToken)
	_ = ch.client.native.ClearChannel(ch.handle)
	ch.pulse.Broadcast()
}
