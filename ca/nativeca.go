package ca

import "context"

// StatusCode is the native CA library's completion status, the Go
// analogue of cothread's ECA_* integer constants (cadef.h).
type StatusCode int

const (
	StatusNormal StatusCode = iota
	StatusTimeout
	StatusDisconnected
	StatusBadType
	StatusBadCount
	StatusInternal
)

func (s StatusCode) String() string {
	switch s {
	case StatusNormal:
		return "ECA_NORMAL"
	case StatusTimeout:
		return "ECA_TIMEOUT"
	case StatusDisconnected:
		return "ECA_DISCONN"
	case StatusBadType:
		return "ECA_BADTYPE"
	case StatusBadCount:
		return "ECA_BADCOUNT"
	default:
		return "ECA_INTERNAL"
	}
}

// ConnState mirrors the connection states spec §4.6 requires a Channel
// to expose.
type ConnState int

const (
	StateNeverConnected ConnState = iota
	StateConnected
	StateDisconnected
	StateClosed
)

// ConnectCallback is invoked by the native library (on a library thread,
// never the scheduler goroutine) whenever a channel's connection state
// changes.
type ConnectCallback func(userToken uintptr, connected bool)

// GetCallback delivers the result of an array_get_callback completion.
type GetCallback func(userToken uintptr, status StatusCode, raw []byte)

// PutCallback delivers the result of an array_put_callback completion.
type PutCallback func(userToken uintptr, status StatusCode)

// SubscriptionCallback delivers one monitor update.
type SubscriptionCallback func(userToken uintptr, status StatusCode, raw []byte)

// NativeCA is the boundary interface standing in for a linked EPICS CA
// client library (spec §1/§6: "a native library boundary, explicitly
// out of scope — specify the contract, not an implementation"). All
// methods may deliver their corresponding callback from any goroutine;
// callers are required to cross back into the scheduler via
// Scheduler.PostCallback before touching any scheduler- or cache-owned
// state, exactly as cothread's SWIG boundary crosses from a CA library
// thread into cothread's C9.
type NativeCA interface {
	// CreateChannel begins connecting to pv. userToken is an opaque value
	// the implementation must echo back on every callback concerning this
	// channel. Returns a native handle used to address the channel in
	// subsequent calls.
	CreateChannel(ctx context.Context, pv string, userToken uintptr, onConnect ConnectCallback) (handle uintptr, err error)

	// ClearChannel releases a channel created by CreateChannel.
	ClearChannel(handle uintptr) error

	// ArrayGetCallback requests count elements of type ft in format
	// fmtGroup, delivering the result via onGet.
	ArrayGetCallback(handle uintptr, ft FieldType, fmtGroup Format, count int, userToken uintptr, onGet GetCallback) error

	// ArrayPutCallback writes raw (already DBR-encoded) to the channel,
	// delivering completion via onPut. If onPut is nil, this is a
	// fire-and-forget put (no completion is awaited).
	ArrayPutCallback(handle uintptr, ft FieldType, count int, raw []byte, userToken uintptr, onPut PutCallback) error

	// CreateSubscription opens a monitor, delivering updates via onUpdate
	// until ClearSubscription is called.
	CreateSubscription(handle uintptr, ft FieldType, fmtGroup Format, count int, userToken uintptr, onUpdate SubscriptionCallback) (subHandle uintptr, err error)

	// ClearSubscription cancels a monitor opened by CreateSubscription.
	ClearSubscription(subHandle uintptr) error

	// FlushIO flushes any buffered outgoing requests, the Go analogue of
	// ca_flush_io.
	FlushIO() error

	// Close releases all resources the implementation owns. Called once,
	// by Client.Close.
	Close() error
}
