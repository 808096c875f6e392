// Package ca implements a Channel Access client (components C11-C13) on
// top of package scheduler: channel connection management and caching,
// value subscriptions, and one-shot get/put, all driven by a pluggable
// NativeCA boundary rather than a linked EPICS library (spec §1/§6).
package ca

import (
	"github.com/joeycumines/go-cothread/scheduler"
)

// Client ties a scheduler, a NativeCA implementation, the channel cache,
// and the completion-context handle table together. One Client should be
// constructed per Scheduler; all of its methods that touch channel or
// subscription state must be called from a task running on that
// scheduler, consistent with spec §5's "only the scheduler thread
// touches scheduler state" invariant, here extended to cover the channel
// cache as well (see SPEC_FULL.md §3).
type Client struct {
	sched  *scheduler.Scheduler
	native NativeCA
	opts   *options

	cache    *Cache
	contexts *contextTable

	flushPending bool
}

// NewClient constructs a Client bound to sched. WithNativeCA is required
// among opts; every other option has a usable default.
func NewClient(sched *scheduler.Scheduler, opts ...Option) (*Client, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if cfg.native == nil {
		return nil, errClientMissingNativeCA
	}
	c := &Client{
		sched:    sched,
		native:   cfg.native,
		opts:     cfg,
		contexts: newContextTable(),
	}
	c.cache = newCache(c)
	return c, nil
}

// Close tears down every cached channel and the underlying NativeCA
// implementation. Must be called from within a scheduler task, after
// which the Client must not be used again.
func (c *Client) Close() error {
	c.cache.purgeAll()
	return c.native.Close()
}

var errClientMissingNativeCA = clientError("WithNativeCA is required")

type clientError string

func (e clientError) Error() string { return "ca: " + string(e) }
