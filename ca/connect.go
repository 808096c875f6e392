package ca

import (
	"context"

	"github.com/joeycumines/go-cothread/scheduler"
)

// Connect returns the cached Channel for pv, creating and starting
// connection to it if necessary, and blocks until it connects or ctx is
// cancelled. Must be called from within a task running on the Client's
// scheduler.
func (c *Client) Connect(ctx context.Context, pv string) (*Channel, error) {
	ch := c.cache.lookup(pv)
	if err := ch.WaitConnected(ctx); err != nil {
		return nil, err
	}
	return ch, nil
}

// ConnectAll connects to every name in pvs concurrently, one spawned
// task per PV, and returns a Result per PV rather than failing the whole
// call on the first disconnected channel — the array "throw=false"
// idiom from spec §7, here applied to connect rather than get/put.
func (c *Client) ConnectAll(ctx context.Context, pvs []string) []Result[*Channel] {
	results := make([]Result[*Channel], len(pvs))
	tasks := make([]*scheduler.Task, len(pvs))
	for i, pv := range pvs {
		i, pv := i, pv
		tasks[i] = scheduler.Spawn(c.sched, "ca.ConnectAll:"+pv, false, func() error {
			ch, err := c.Connect(ctx, pv)
			results[i] = Result[*Channel]{Value: ch, OK: err == nil, Err: err}
			return nil
		})
	}
	_ = scheduler.WaitForAll(ctx, tasks)
	return results
}
