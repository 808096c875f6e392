package ca

import (
	"context"

	"github.com/joeycumines/go-cothread/scheduler"
)

// completionFn is what contextTable entries hold for one-shot get/put
// requests: a closure capturing everything needed to turn a raw
// (status, payload) pair into a decoded result and deliver it.
type completionFn func(status StatusCode, raw []byte)

// onNativeCompletion is shared by Get and Put; it is the GetCallback/
// PutCallback NativeCA invokes, on any goroutine, so it immediately
// marshals onto the scheduler before resolving the completion context.
func (c *Client) onNativeCompletion(token uintptr, status StatusCode, raw []byte) {
	_ = c.sched.PostCallback(func() {
		v, ok := c.contexts.take(token)
		if !ok {
			return
		}
		fn, ok := v.(completionFn)
		if !ok {
			return
		}
		fn(status, raw)
	})
}

func (c *Client) onNativeGet(token uintptr, status StatusCode, raw []byte) {
	c.onNativeCompletion(token, status, raw)
}

func (c *Client) onNativePut(token uintptr, status StatusCode) {
	c.onNativeCompletion(token, status, nil)
}

// Get connects to pv if necessary and performs a one-shot read, blocking
// the calling task until the value arrives or ctx is cancelled.
func (c *Client) Get(ctx context.Context, pv string, ft FieldType, fmtGroup Format, count int) (Value, error) {
	ch, err := c.Connect(ctx, pv)
	if err != nil {
		return Value{}, err
	}

	type outcome struct {
		val Value
		err error
	}
	q := scheduler.NewEventQueue[outcome](c.sched)
	gen := ch.generation

	token := c.contexts.alloc(completionFn(func(status StatusCode, raw []byte) {
		if ch.generation != gen {
			if l := c.opts.logger.Debug(); l != nil {
				l.Str("pv", pv).Log("discarding stale get completion after channel purge")
			}
			return
		}
		if status != StatusNormal {
			q.Put(outcome{err: &CAError{Func: "Get", Status: status}})
			return
		}
		v, err := Decode(ft, fmtGroup, count, raw)
		q.Put(outcome{val: v, err: err})
	}))

	if err := c.native.ArrayGetCallback(ch.handle, ft, fmtGroup, count, token, c.onNativeGet); err != nil {
		_, _ = c.contexts.take(token)
		return Value{}, &CAError{Func: "ArrayGetCallback", Status: StatusInternal}
	}
	c.requestFlush()

	o, err := q.Wait(ctx)
	if err != nil {
		_, _ = c.contexts.take(token)
		return Value{}, err
	}
	return o.val, o.err
}

// Put connects to pv if necessary, encodes data as ft/count, and writes
// it, blocking the calling task until the write completes or ctx is
// cancelled.
func (c *Client) Put(ctx context.Context, pv string, ft FieldType, count int, data any) error {
	ch, err := c.Connect(ctx, pv)
	if err != nil {
		return err
	}
	raw, err := Encode(ft, data)
	if err != nil {
		return err
	}

	q := scheduler.NewEventQueue[error](c.sched)
	gen := ch.generation

	token := c.contexts.alloc(completionFn(func(status StatusCode, _ []byte) {
		if ch.generation != gen {
			if l := c.opts.logger.Debug(); l != nil {
				l.Str("pv", pv).Log("discarding stale put completion after channel purge")
			}
			return
		}
		if status != StatusNormal {
			q.Put(&CAError{Func: "Put", Status: status})
			return
		}
		q.Put(nil)
	}))

	if err := c.native.ArrayPutCallback(ch.handle, ft, count, raw, token, func(_ uintptr, status StatusCode) {
		c.onNativePut(token, status)
	}); err != nil {
		_, _ = c.contexts.take(token)
		return &CAError{Func: "ArrayPutCallback", Status: StatusInternal}
	}
	c.requestFlush()

	putErr, err := q.Wait(ctx)
	if err != nil {
		_, _ = c.contexts.take(token)
		return err
	}
	return putErr
}

// PutNoWait issues a write without waiting for completion, the Go
// counterpart of cothread's caput(..., wait=False).
func (c *Client) PutNoWait(ctx context.Context, pv string, ft FieldType, count int, data any) error {
	ch, err := c.Connect(ctx, pv)
	if err != nil {
		return err
	}
	raw, err := Encode(ft, data)
	if err != nil {
		return err
	}
	if err := c.native.ArrayPutCallback(ch.handle, ft, count, raw, 0, nil); err != nil {
		return &CAError{Func: "ArrayPutCallback", Status: StatusInternal}
	}
	c.requestFlush()
	return nil
}

// GetAll fetches every PV in pvs concurrently (one spawned task per PV),
// returning a Result per PV instead of failing the whole call on the
// first error — spec §7's throw=false array form.
func (c *Client) GetAll(ctx context.Context, pvs []string, ft FieldType, fmtGroup Format, count int) []Result[Value] {
	results := make([]Result[Value], len(pvs))
	tasks := make([]*scheduler.Task, len(pvs))
	for i, pv := range pvs {
		i, pv := i, pv
		tasks[i] = scheduler.Spawn(c.sched, "ca.GetAll:"+pv, false, func() error {
			v, err := c.Get(ctx, pv, ft, fmtGroup, count)
			results[i] = Result[Value]{Value: v, OK: err == nil, Err: err}
			return nil
		})
	}
	_ = scheduler.WaitForAll(ctx, tasks)
	return results
}

// PutAll writes every (pv, value) pair concurrently, same throw=false
// shape as GetAll.
func (c *Client) PutAll(ctx context.Context, pvs []string, ft FieldType, count int, data []any) []Result[struct{}] {
	results := make([]Result[struct{}], len(pvs))
	tasks := make([]*scheduler.Task, len(pvs))
	for i, pv := range pvs {
		i, pv, v := i, pv, data[i]
		tasks[i] = scheduler.Spawn(c.sched, "ca.PutAll:"+pv, false, func() error {
			err := c.Put(ctx, pv, ft, count, v)
			results[i] = Result[struct{}]{OK: err == nil, Err: err}
			return nil
		})
	}
	_ = scheduler.WaitForAll(ctx, tasks)
	return results
}

// requestFlush coalesces FlushIO calls: any number of Get/Put/Connect
// requests issued within the same tick share a single flush, performed
// by a helper task that yields once (letting the rest of the batch
// enqueue its own native calls) before actually flushing. Grounded on
// the same "pending flag, one in-flight dispatcher" shape as
// Subscription.deliver's coalescing.
func (c *Client) requestFlush() {
	if c.flushPending {
		return
	}
	c.flushPending = true
	scheduler.Spawn(c.sched, "ca.flush", false, func() error {
		c.sched.Yield()
		c.flushPending = false
		return c.native.FlushIO()
	})
}
