// logging.go wires Client diagnostics through the same logiface facade
// scheduler/logging.go uses, so an application shares one logger
// instance and one structured log stream across both packages.
package ca

import (
	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// Logger is the structured logging facade used by Client for connection
// state changes, subscription callback panics, and stale-completion
// discards.
type Logger interface {
	Debug() *logiface.Builder[*islog.Event]
	Info() *logiface.Builder[*islog.Event]
	Warning() *logiface.Builder[*islog.Event]
	Err() *logiface.Builder[*islog.Event]
}

type noopLogger struct{}

func (noopLogger) Debug() *logiface.Builder[*islog.Event]   { return nil }
func (noopLogger) Info() *logiface.Builder[*islog.Event]    { return nil }
func (noopLogger) Warning() *logiface.Builder[*islog.Event] { return nil }
func (noopLogger) Err() *logiface.Builder[*islog.Event]     { return nil }
