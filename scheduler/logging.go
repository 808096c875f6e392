// logging.go wires the scheduler's diagnostics through the logiface
// structured-logging facade, the way eventloop/logging.go wires eventloop's
// diagnostics through its own (hand-rolled) Logger interface. We use the
// real ecosystem logger instead: github.com/joeycumines/logiface, written
// via the slog adapter github.com/joeycumines/logiface-slog.
package scheduler

import (
	"log/slog"
	"os"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// Logger is the structured logging facade used throughout the scheduler and
// ca packages. It is satisfied by *logiface.Logger[*islog.Event], which is
// what NewDefaultLogger returns, but any *logiface.Logger[E] wrapper that
// implements this narrow subset can be substituted via WithLogger.
type Logger interface {
	Debug() *logiface.Builder[*islog.Event]
	Info() *logiface.Builder[*islog.Event]
	Warning() *logiface.Builder[*islog.Event]
	Err() *logiface.Builder[*islog.Event]
}

// noopLogger discards everything. It is the zero-value default, mirroring
// eventloop.NewNoOpLogger's role as the package's silent-by-default logger.
type noopLogger struct{}

func (noopLogger) Debug() *logiface.Builder[*islog.Event]   { return nil }
func (noopLogger) Info() *logiface.Builder[*islog.Event]    { return nil }
func (noopLogger) Warning() *logiface.Builder[*islog.Event] { return nil }
func (noopLogger) Err() *logiface.Builder[*islog.Event]     { return nil }

// NewDefaultLogger builds a logiface.Logger writing JSON to w via
// log/slog.NewJSONHandler, at the given minimum level. Pass os.Stderr and
// slog.LevelInfo for a reasonable default.
func NewDefaultLogger(w *os.File, level slog.Level) *logiface.Logger[*islog.Event] {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return islog.L.New(islog.L.WithSlogHandler(handler))
}
