package zk

import "errors"

// Communication-level errors reported to callers through Future.Wait. Server
// errors for round-tripped requests ride inside Reply instead.
var (
	// ErrSessionClosed is returned for requests submitted after the session
	// ended.
	ErrSessionClosed = errors.New("zk: session closed")
	// ErrConnectionLost is returned when the session died after accepting a
	// request but before resolving its reply.
	ErrConnectionLost = errors.New("zk: connection lost before reply")
)

// errTransportLost is the recoverable loss signal the connection's poll
// returns while not exiting. The state layer converts it into a reconnect
// when a dialer is configured; otherwise it surfaces as the session's fatal
// error.
var errTransportLost = errors.New("zk: transport lost")
