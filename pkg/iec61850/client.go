// Package iec61850 specifies the interface the gateway consumes from the
// native IEC 61850 MMS client library. The wire implementation is an
// external collaborator: a concrete binding (typically a cgo wrapper over
// libiec61850) plugs in through ClientFactory. None of the calls below are
// safe for concurrent use; the owning supervisor serializes them behind
// its mutex.
package iec61850

import "errors"

// ConnState mirrors the native connection state sentinels of the client
// library. Only StateConnected counts as live.
type ConnState int

const (
	// StateUnknown marks libraries that do not expose a state query; the
	// supervisor substitutes a heartbeat read for the liveness probe.
	StateUnknown ConnState = iota - 1
	StateNotConnected
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateUnknown:
		return "UNKNOWN"
	case StateNotConnected:
		return "NOT_CONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "INVALID"
	}
}

// ReportFunc receives a data point from the native client. key is either
// the registered URI or a bare MMS path, depending on the library.
type ReportFunc func(key string, value Value)

// Callbacks carries the two inbound data paths of the native client:
// unsolicited reports and values surfaced by Poll. Both feed the same
// translation pipeline; the distinction is kept for logging only.
type Callbacks struct {
	OnReport ReportFunc
	OnPoll   ReportFunc
}

// Client is the consumed surface of the native MMS client. Connect,
// RegisterReadValue, Poll, Read, Select and Operate block on network I/O.
type Client interface {
	// Connect establishes the association and discovers the IED model.
	Connect(host string, port int) error

	// RegisterReadValue subscribes a data object URI for reporting and
	// polling. Returns an error when the object does not resolve.
	RegisterReadValue(uri string) error

	// Poll reads every registered value once, delivering results through
	// Callbacks.OnPoll.
	Poll() error

	// Read fetches a single object value synchronously. Used for the
	// heartbeat probe when the library exposes no connection state.
	Read(uri string) (Value, error)

	// State reports the native connection state, or StateUnknown when the
	// library cannot tell.
	State() ConnState

	// Select runs the select phase of a two-step control sequence.
	// The result follows the native convention: 0 accepted, non-zero refused.
	Select(uri, value string) int

	// Operate executes a control. Same result convention as Select.
	Operate(uri, value string) int

	// Close releases the association. Safe to call in any state.
	Close()
}

// ClientFactory creates one client instance per connection attempt.
type ClientFactory func(cb Callbacks) Client

// ErrNoBinding is returned by the fallback factory when no native binding
// was compiled into the gateway.
var ErrNoBinding = errors.New("iec61850: no native MMS client binding available")

// DefaultFactory is the factory used by the gateway binary. A concrete
// binding overrides it from an init function; the fallback produces
// clients that fail every connection attempt with ErrNoBinding, which
// leaves the supervisors cycling in FAULTED without taking the rest of
// the gateway down.
var DefaultFactory ClientFactory = func(cb Callbacks) Client {
	return unavailableClient{}
}

type unavailableClient struct{}

func (unavailableClient) Connect(host string, port int) error { return ErrNoBinding }
func (unavailableClient) RegisterReadValue(uri string) error  { return ErrNoBinding }
func (unavailableClient) Poll() error                         { return ErrNoBinding }
func (unavailableClient) Read(uri string) (Value, error)      { return nil, ErrNoBinding }
func (unavailableClient) State() ConnState                    { return StateNotConnected }
func (unavailableClient) Select(uri, value string) int        { return -1 }
func (unavailableClient) Operate(uri, value string) int       { return -1 }
func (unavailableClient) Close()                              {}
