// Package runner defines the Runner SPI: the capability record an
// execution endpoint (local in-process sandbox, or an external runner
// fleet) must implement to receive bundled suites and emit packets.
package runner

import "context"

// EmitFunc is called by a Runner's Connect implementation exactly once per
// complete packet frame it receives from the remote end.
type EmitFunc func(frame []byte)

// Runner is the capability record of §3: a single execution endpoint.
//
// Connect and Dispatch are expected to be wrapped by the caller in
// connection/dispatch timeouts; Runner implementations need not enforce
// their own.
type Runner interface {
	// ID returns the runner's identifier. It may be empty before Connect
	// assigns one.
	ID() string
	// Name is a human-readable label shown by reporters.
	Name() string
	// ConnectionTimeoutMS is the configured connect() timeout, or 0 to use
	// the caller's default.
	ConnectionTimeoutMS() int
	// DispatchTimeoutMS is the configured dispatch() timeout, or 0 to use
	// the caller's default.
	DispatchTimeoutMS() int
	// Connect establishes the runner's connection. emit must be called
	// exactly once per complete packet frame received from the remote end.
	// argv carries the parsed user-defined CLI options.
	Connect(ctx context.Context, emit EmitFunc, runnerID string, argv map[string]interface{}) error
	// Dispatch sends bundle bytes for execution under suiteID. The call
	// must guarantee an eventual EndSuite or Error packet for suiteID,
	// emitted via the EmitFunc passed to Connect.
	Dispatch(ctx context.Context, bundle []byte, suiteID string) error
	// Disconnect tears the connection down. Optional: a Runner that has no
	// teardown work may implement it as a no-op.
	Disconnect(ctx context.Context) error
}
