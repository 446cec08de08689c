package tldk

import "errors"

// Validation and capacity errors returned directly by control-surface calls.
var (
	ErrInvalidArgument = errors.New("tldk: invalid argument")
	ErrPoolExhausted   = errors.New("tldk: no free stream in pool")
	ErrAlreadyInvoked  = errors.New("tldk: operation already invoked")
	ErrNotConnected    = errors.New("tldk: stream not connected")
	ErrWouldBlock      = errors.New("tldk: operation would block")
	ErrBufferExhausted = errors.New("tldk: no buffer space available")
)

// Packet-level errors, surfaced via rc[] alongside the returned packet in
// rp[] from RxBulk; they never tear down a stream.
var (
	ErrNoSuchStream  = errors.New("tldk: no stream matches this packet")
	ErrBufferFull    = errors.New("tldk: stream receive buffer is full")
	ErrInvalidPacket = errors.New("tldk: malformed segment")
)

// Protocol-terminal errors: the stream transitions to PhaseClosed, the
// corresponding remote-event bit is set, and the error sink is raised.
var (
	ErrConnectionReset   = errors.New("tldk: connection reset by peer")
	ErrConnectionRefused = errors.New("tldk: connection refused")
	ErrConnectionAborted = errors.New("tldk: connection aborted locally")
	ErrRetriesExceeded   = errors.New("tldk: retransmission retries exceeded")
	ErrTimeout           = errors.New("tldk: connection timed out before it was established")
)
