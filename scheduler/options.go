package scheduler

// options holds configuration resolved from a slice of Option values.
type options struct {
	strictScheduling  bool
	callbackQueueSize int
	logger            Logger
}

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*options) error
}

type optionFunc func(*options) error

func (f optionFunc) applyScheduler(o *options) error { return f(o) }

// WithStrictScheduling sets the strict-scheduling flag, the slot this
// package gives to cothread's "check stack" toggle. The scheduler stores
// the flag but never reads it: enabling it adds no assertions and changes
// no behaviour.
func WithStrictScheduling(enabled bool) Option {
	return optionFunc(func(o *options) error {
		o.strictScheduling = enabled
		return nil
	})
}

// WithCallbackQueueSize bounds the cross-thread callback FIFO (C9). Zero
// means unbounded (the default, matching cothread's unbounded callback
// queue). This is the nearest Go-meaningful analogue of cothread's
// "stack size for cross-thread callback dispatch" environment knob —
// goroutines have no caller-settable stack size, so the bounded resource
// that actually matters here is queue depth.
func WithCallbackQueueSize(n int) Option {
	return optionFunc(func(o *options) error {
		o.callbackQueueSize = n
		return nil
	})
}

// WithLogger installs a structured logger used for scheduler diagnostics:
// Run logs, at Error level, every tick that fails or panics (poll errors
// included). Task errors and panics are not logged; they reach the caller
// through Task.Wait. The default is a no-op logger; see logging.go.
func WithLogger(l Logger) Option {
	return optionFunc(func(o *options) error {
		o.logger = l
		return nil
	})
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{logger: noopLogger{}}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
