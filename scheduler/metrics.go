package scheduler

import "sync/atomic"

// Metrics exposes a handful of gauges useful for diagnosing a running
// scheduler, mirroring the counters eventloop/options.go's WithMetrics
// toggle exposes for the teacher's loop (tasks spawned, ticks run,
// timers pending). There is no interface to implement here: Metrics is a
// concrete snapshot, not a sink, since cothread programs typically poll
// these rather than stream them.
type Metrics struct {
	TasksSpawned uint64
	TasksFinished uint64
	Ticks        uint64
	ReadyLen     int
	TimersPending int
}

// metricsState holds the live atomics Scheduler updates as it runs;
// Snapshot copies them into a Metrics value.
type metricsState struct {
	tasksSpawned  atomic.Uint64
	tasksFinished atomic.Uint64
	ticks         atomic.Uint64
}

// Snapshot returns the scheduler's current metrics. The three counters are
// atomics and may be read from any goroutine; ReadyLen and TimersPending
// read scheduler-owned state without synchronization, so they are exact
// only when Snapshot is called from a task on this scheduler or while Run
// is not running.
func (s *Scheduler) Snapshot() Metrics {
	return Metrics{
		TasksSpawned:  s.metrics.tasksSpawned.Load(),
		TasksFinished: s.metrics.tasksFinished.Load(),
		Ticks:         s.metrics.ticks.Load(),
		ReadyLen:      len(s.ready),
		TimersPending: s.timers.len(),
	}
}
