package tldk

// Phase is one of the eleven TCP connection states a Stream can occupy.
type Phase uint8

const (
	PhaseClosed Phase = iota
	PhaseListen
	PhaseSynSent
	PhaseSynRcvd
	PhaseEstablished
	PhaseFinWait1
	PhaseFinWait2
	PhaseCloseWait
	PhaseClosing
	PhaseLastAck
	PhaseTimeWait
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "CLOSED"
	case PhaseListen:
		return "LISTEN"
	case PhaseSynSent:
		return "SYN_SENT"
	case PhaseSynRcvd:
		return "SYN_RCVD"
	case PhaseEstablished:
		return "ESTABLISHED"
	case PhaseFinWait1:
		return "FIN_WAIT_1"
	case PhaseFinWait2:
		return "FIN_WAIT_2"
	case PhaseCloseWait:
		return "CLOSE_WAIT"
	case PhaseClosing:
		return "CLOSING"
	case PhaseLastAck:
		return "LAST_ACK"
	case PhaseTimeWait:
		return "TIME_WAIT"
	default:
		return "UNKNOWN"
	}
}

// UserOp is the bitmask of control operations a caller has issued against a
// stream; a bit already set makes the matching call fail with
// ErrAlreadyInvoked rather than re-entering the same transition.
type UserOp uint16

const (
	OpListen UserOp = 1 << iota
	OpAccept
	OpConnect
	OpEstablish
	OpShutdown
	OpClose
	OpAbort
)

// OpCloseAbort is the combination close() checks against when deciding
// whether the stream is already committed to teardown.
const OpCloseAbort = OpClose | OpAbort

// RemoteEvent is the bitmask of terminal conditions the peer (or a local
// timer) has raised against a stream.
type RemoteEvent uint8

const (
	EventFIN RemoteEvent = 1 << iota
	EventRST
	EventRTO
)

// StreamFlags are per-stream configuration bits fixed at open time.
type StreamFlags uint8

// FlagPrivate marks a stream that is never inserted into the context's
// stream table; it is reachable only through Context.StreamRxBulk, matching the
// "private" establish flag of the original control API.
const FlagPrivate StreamFlags = 1 << iota

// defaultRetries is the default ContextConfig.MaxRetries: the
// retransmission attempt cap before a stream is declared dead
// (ErrRetriesExceeded, or ErrTimeout before the handshake completes).
const defaultRetries = 3
