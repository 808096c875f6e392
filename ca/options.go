package ca

import "time"

type options struct {
	native         NativeCA
	defaultTimeout time.Duration
	panicPolicy    SubscriptionPanicPolicy
	logger         Logger
}

// Option configures a Client.
type Option interface {
	applyClient(*options) error
}

type optionFunc func(*options) error

func (f optionFunc) applyClient(o *options) error { return f(o) }

// WithNativeCA installs the NativeCA implementation the Client talks to.
// Required: there is no usable default, since linking a real CA library
// is explicitly out of scope (spec §1) and ca.InProcessServer must be
// constructed and passed explicitly by callers who want one.
func WithNativeCA(n NativeCA) Option {
	return optionFunc(func(o *options) error {
		o.native = n
		return nil
	})
}

// WithDefaultTimeout records a default timeout on the Client, the slot
// for cothread's module-level default caget/caput timeout. Get, Put and
// Connect do not apply it: they wait only as long as the ctx passed to
// them allows.
func WithDefaultTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) error {
		o.defaultTimeout = d
		return nil
	})
}

// SubscriptionPanicPolicy controls what happens when a monitor callback
// panics (spec §4.7, Design Notes §9 "may prefer a configurable
// policy").
type SubscriptionPanicPolicy int

const (
	// PanicPolicyClose closes the subscription after logging the panic —
	// the spec's default behavior.
	PanicPolicyClose SubscriptionPanicPolicy = iota
	// PanicPolicyIgnore logs the panic and keeps the subscription open.
	PanicPolicyIgnore
)

// WithSubscriptionPanicPolicy overrides the default close-on-panic
// behavior for monitor callbacks.
func WithSubscriptionPanicPolicy(p SubscriptionPanicPolicy) Option {
	return optionFunc(func(o *options) error {
		o.panicPolicy = p
		return nil
	})
}

// WithLogger installs a structured logger for connection/subscription
// diagnostics, the ca-package counterpart of scheduler.WithLogger.
func WithLogger(l Logger) Option {
	return optionFunc(func(o *options) error {
		o.logger = l
		return nil
	})
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{defaultTimeout: 5 * time.Second, logger: noopLogger{}}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyClient(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
