package scheduler

import (
	"context"
	"os"
	"os/signal"
)

// WaitForAll blocks until every task in tasks has finished, returning
// the first non-nil error observed (if any) only after every task has
// been waited on — so a failing task never strands its siblings
// unjoined. The spec §6 counterpart of cothread's WaitForAll. Must be
// called from within a task running on sched, or from an external
// goroutine per Task.Wait's own rules.
func WaitForAll(ctx context.Context, tasks []*Task) error {
	var first error
	for _, t := range tasks {
		if err := t.Wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WaitForQuit drives the scheduler (equivalent to Run) until ctx is
// cancelled, Shutdown/Quit is called, or — when catchInterrupt is true —
// the process receives an interrupt signal (SIGINT), the spec §6
// counterpart of cothread's WaitForQuit(catch_interrupt=True). It is the
// top-level call a command-line program makes instead of Run, and must
// not be called from a task running on this scheduler.
func (s *Scheduler) WaitForQuit(ctx context.Context, catchInterrupt bool) error {
	if !catchInterrupt {
		return s.Run(ctx)
	}
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return s.Run(sigCtx)
}

// Quit requests the scheduler stop after the current tick, the spec §6
// counterpart of cothread's module-level Quit(). Equivalent to Shutdown;
// kept as a distinctly named entry point because spec §6 names Quit and
// Shutdown is this package's existing, already-wired spelling of the
// same request.
func (s *Scheduler) Quit() { s.Shutdown() }
