package ca

import (
	"context"
	"errors"
	"time"

	"github.com/joeycumines/go-cothread/scheduler"
)

// errSubAborted is returned internally by Subscription.waitLoop when the
// subscription was closed, or its channel was closed, while the helper
// task was still waiting for the initial connection.
var errSubAborted = errors.New("cothread/ca: subscription aborted before connecting")

// Subscription is an open monitor on a channel (component C12). Created
// via Client.Monitor, it starts in the opening state (spec §4.7): a
// helper task waits for the channel to connect before registering the
// native subscription, so Monitor itself never blocks the caller.
type Subscription struct {
	client *Client
	ch     *Channel

	ft         FieldType
	fmtGroup   Format
	count      int
	allUpdates bool
	callback   func(Value)

	notifyDisconnect bool
	connectTimeout   time.Duration

	nativeHandle uintptr
	token        uintptr
	registered   bool // true once the native subscription exists
	closed       bool

	// Coalescing dispatch state (used only when !allUpdates): pending
	// holds the most recent undelivered value, and dispatching tracks
	// whether a helper task is already draining it. A new update arriving
	// while dispatching just replaces pending rather than queuing
	// another task — the debounce shape credited to eventloop/metrics.go
	// in DESIGN.md.
	pending      *Value
	pendingCount int
	dispatching  bool
}

// MonitorOption configures a single Client.Monitor call, the per-call
// counterpart of Option (spec §6 camonitor's all_updates/
// notify_disconnect/connect_timeout parameters).
type MonitorOption func(*Subscription)

// WithNotifyDisconnect makes the subscription surface one synthetic
// Disconnected value whenever its channel goes down (including an
// initial connect timeout, if WithConnectTimeout is also set), instead
// of silently waiting.
func WithNotifyDisconnect() MonitorOption {
	return func(s *Subscription) { s.notifyDisconnect = true }
}

// WithConnectTimeout bounds how long the subscription's helper task
// waits for the initial connection before surfacing a disconnect
// notification (if WithNotifyDisconnect is set) and continuing to wait
// indefinitely. Zero (the default) means wait forever without notifying.
func WithConnectTimeout(d time.Duration) MonitorOption {
	return func(s *Subscription) { s.connectTimeout = d }
}

// Monitor opens a subscription on pv, decoding updates as ft/count in
// fmtGroup and delivering them to callback. If allUpdates is false,
// callback invocations that fall behind are coalesced to the latest
// value rather than queued (spec §4.7); if true, every update is
// delivered in order with no coalescing. Monitor returns immediately;
// the subscription connects and registers with the native library on a
// spawned helper task.
func (c *Client) Monitor(pv string, ft FieldType, fmtGroup Format, count int, allUpdates bool, callback func(Value), opts ...MonitorOption) (*Subscription, error) {
	ch := c.cache.lookup(pv)
	sub := &Subscription{
		client:     c,
		ch:         ch,
		ft:         ft,
		fmtGroup:   fmtGroup,
		count:      count,
		allUpdates: allUpdates,
		callback:   callback,
	}
	for _, o := range opts {
		o(sub)
	}
	ch.subs[sub] = struct{}{}
	scheduler.Spawn(c.sched, "ca.Monitor:"+pv, false, func() error {
		sub.openHelper()
		return nil
	})
	return sub, nil
}

// openHelper is the helper task body from spec §4.7: wait for the
// channel to connect (optionally notifying once on a connect timeout),
// then register the native subscription.
func (sub *Subscription) openHelper() {
	if !sub.waitConnectedOrNotify() {
		return
	}
	if sub.closed {
		return
	}
	sub.token = sub.client.contexts.alloc(sub)
	handle, err := sub.client.native.CreateSubscription(sub.ch.handle, sub.ft, sub.fmtGroup, sub.count, sub.token, sub.client.onNativeSubUpdate)
	if err != nil {
		_, _ = sub.client.contexts.take(sub.token)
		if l := sub.client.opts.logger.Err(); l != nil {
			l.Str("pv", sub.ch.name).Str("error", err.Error()).Log("failed to register native subscription")
		}
		return
	}
	sub.nativeHandle = handle
	sub.registered = true
}

// waitConnectedOrNotify blocks the helper task until the channel
// connects. If connectTimeout is set and elapses first, it delivers one
// synthetic disconnected value (when notifyDisconnect is set) and then
// keeps waiting indefinitely. Returns false if the subscription or its
// channel was closed before a connection ever happened.
func (sub *Subscription) waitConnectedOrNotify() bool {
	if sub.connectTimeout > 0 {
		cctx, cancel := context.WithTimeout(context.Background(), sub.connectTimeout)
		err := sub.waitLoop(cctx)
		cancel()
		if err == nil {
			return true
		}
		if sub.closed || errors.Is(err, errSubAborted) {
			return false
		}
		if sub.notifyDisconnect {
			sub.deliver(Value{Type: sub.ft, Disconnected: true})
		}
	}
	return sub.waitLoop(context.Background()) == nil
}

// waitLoop blocks until the channel reaches StateConnected, ctx is
// cancelled, or the subscription/channel is closed.
func (sub *Subscription) waitLoop(ctx context.Context) error {
	for sub.ch.state != StateConnected {
		if sub.closed || sub.ch.state == StateClosed {
			return errSubAborted
		}
		if err := sub.ch.pulse.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// notifyDisconnected is called by Channel when it observes its
// connection drop; it surfaces a synthetic Disconnected value to every
// still-open subscription that asked for one (spec §4.7).
func (sub *Subscription) notifyDisconnected() {
	if sub.closed || !sub.notifyDisconnect {
		return
	}
	sub.deliver(Value{Type: sub.ft, Disconnected: true})
}

// onNativeSubUpdate is the SubscriptionCallback passed to
// NativeCA.CreateSubscription; it marshals onto the scheduler before
// decoding or dispatching, since it may run on any goroutine.
func (c *Client) onNativeSubUpdate(token uintptr, status StatusCode, raw []byte) {
	_ = c.sched.PostCallback(func() {
		v, ok := c.contexts.entries[token]
		if !ok {
			return
		}
		sub, ok := v.(*Subscription)
		if !ok || sub.closed {
			return
		}
		if status != StatusNormal {
			if l := c.opts.logger.Warning(); l != nil {
				l.Str("pv", sub.ch.name).Log("subscription update reported non-normal status")
			}
			return
		}
		val, err := Decode(sub.ft, sub.fmtGroup, sub.count, raw)
		if err != nil {
			if l := c.opts.logger.Err(); l != nil {
				l.Str("pv", sub.ch.name).Str("error", err.Error()).Log("failed to decode subscription update")
			}
			return
		}
		sub.deliver(val)
	})
}

func (sub *Subscription) deliver(v Value) {
	if sub.allUpdates {
		v.UpdateCount = 1
		sub.safeCallback(v)
		return
	}
	cp := v
	cp.UpdateCount = 0
	sub.pending = &cp
	sub.pendingCount++
	if sub.dispatching {
		return
	}
	sub.dispatching = true
	scheduler.Spawn(sub.client.sched, "ca.Subscription:"+sub.ch.name, false, func() error {
		for {
			next := sub.pending
			n := sub.pendingCount
			sub.pending = nil
			sub.pendingCount = 0
			if next == nil {
				sub.dispatching = false
				return nil
			}
			next.UpdateCount = n
			sub.safeCallback(*next)
		}
	})
}

func (sub *Subscription) safeCallback(v Value) {
	defer func() {
		if r := recover(); r != nil {
			if l := sub.client.opts.logger.Err(); l != nil {
				l.Str("pv", sub.ch.name).Log("subscription callback panicked")
			}
			if sub.client.opts.panicPolicy == PanicPolicyClose {
				sub.close()
			}
		}
	}()
	sub.callback(v)
}

// close cancels the subscription. Safe to call more than once, and safe
// to call while the subscription is still opening (spec §4.7: "opening
// -> poke the channel's Pulse to wake the helper").
func (sub *Subscription) close() {
	if sub.closed {
		return
	}
	sub.closed = true
	delete(sub.ch.subs, sub)
	if sub.registered {
		_, _ = sub.client.contexts.take(sub.token)
		_ = sub.client.native.ClearSubscription(sub.nativeHandle)
	}
	sub.ch.pulse.Broadcast()
}

// Close cancels the subscription. Must be called from within a task
// running on the Client's scheduler.
func (sub *Subscription) Close() {
	sub.close()
}
