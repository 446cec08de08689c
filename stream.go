package tldk

import (
	"time"

	"github.com/rs/xid"
)

// sendBlock is the send-side control variables of RFC 793 §3.2, renamed
// from the SND.* mnemonics into Go fields.
type sendBlock struct {
	una Value // oldest unacknowledged sequence number
	nxt Value // next sequence number to send
	wnd Size  // peer's last advertised window, unscaled storage, scaled on use
	wl1 Value // seq number used for the last window update
	wl2 Value // ack number used for the last window update
	iss Value // initial send sequence number
}

// recvBlock is the receive-side control variables of RFC 793 §3.2.
type recvBlock struct {
	nxt Value // next sequence number expected
	wnd Size  // window this endpoint advertises, unscaled
	irs Value // initial receive sequence number
}

// optionState is the per-connection negotiated option state: MSS, window
// scaling, and timestamps.
type optionState struct {
	peerMSS    uint16
	mss        uint16 // negotiated (min of local and peer) MSS
	localWS    uint8
	peerWS     uint8
	wsNegotiated bool
	tsNegotiated bool
	lastTS     tsOpt
	lastTSTick time.Time
}

// listenExt is the extra state a Stream carries only while phase==PhaseListen:
// a backlog of half-open SYN_RCVD shadow streams keyed by four-tuple, and a
// ready queue of fully established streams awaiting Accept.
type listenExt struct {
	backlog      map[FourTuple]*Stream
	backlogLimit int
	ready        []*Stream
}

// Stream is one TCP endpoint: a four-tuple identity plus phase, control
// blocks, buffers, and sinks. A Stream is never safe for concurrent
// use; all access must be serialized through its owning Context exactly as
// Context.Process/RxBulk/TxBulk and the control surface already require.
type Stream struct {
	ctx   *Context
	four  FourTuple
	phase Phase
	flags StreamFlags

	userOps      UserOp
	remoteEvents RemoteEvent

	snd sendBlock
	rcv recvBlock
	opt optionState

	cc  *congestionControl
	rtt *rttEstimator

	retxCount int
	retryCap  int

	sendBuf *sendBuffer
	oooBuf  *recvBuffer
	recvQ   [][]byte // delivered, in-order, not yet drained by Recv

	listen *listenExt

	udata any
	sinks sinkSet

	trace xid.ID

	closeCommitted bool // close() was called: destroy once CLOSED/TIME_WAIT
	device         int  // index into Context.devices chosen for egress

	pooled bool // counts against Context.poolUsed; false for an unpromoted backlog shadow

	lastErr error // cause behind the most recent error-sink raise, if any
}

// newStream allocates a Stream in PhaseClosed, ready to be driven into
// LISTEN, SYN_SENT, or directly ESTABLISHED by the control surface.
func newStream(ctx *Context, four FourTuple, flags StreamFlags) *Stream {
	return &Stream{
		ctx:      ctx,
		four:     four,
		flags:    flags,
		phase:    PhaseClosed,
		retryCap: ctx.cfg.MaxRetries,
		sendBuf:  newSendBuffer(ctx.cfg.SendBufferBytes),
		oooBuf:   newRecvBuffer(ctx.cfg.MaxOOOSegments),
		rtt:      newRTTEstimator(),
		trace:    xid.New(),
	}
}

// isPrivate reports whether this stream is excluded from the context's
// stream table, per FlagPrivate.
func (s *Stream) isPrivate() bool { return s.flags&FlagPrivate != 0 }

// Phase returns the stream's current TCP state.
func (s *Stream) Phase() Phase { return s.phase }

// FourTuple returns the stream's (local, remote) address pair.
func (s *Stream) FourTuple() FourTuple { return s.four }

// UserData returns the opaque word the caller attached to this stream.
func (s *Stream) UserData() any { return s.udata }

// SetUserData attaches an opaque caller value to the stream.
func (s *Stream) SetUserData(v any) { s.udata = v }

// advertisedWindow computes the window this endpoint offers the peer:
// free receive-buffer capacity, shifted right by the local window-scale
// shift and clamped to 16 bits.
func (s *Stream) advertisedWindow() uint16 {
	free := s.ctx.cfg.RecvBufferBytes - s.pendingRecvBytes()
	if free < 0 {
		free = 0
	}
	w := Size(free) >> s.opt.localWS
	return uint16(clampWindow(w))
}

func (s *Stream) pendingRecvBytes() int {
	n := 0
	for _, b := range s.recvQ {
		n += len(b)
	}
	return n
}

// peerWindow returns the peer's last advertised window, scaled by the
// negotiated peer window-scale shift.
func (s *Stream) peerWindow() uint32 {
	return uint32(s.snd.wnd) << s.opt.peerWS
}

// inTerminalTeardown reports whether the stream is past ESTABLISHED on a
// local-close path (used to decide whether new user data may still be
// queued).
func (s *Stream) inTerminalTeardown() bool {
	switch s.phase {
	case PhaseFinWait1, PhaseFinWait2, PhaseClosing, PhaseLastAck, PhaseTimeWait, PhaseClosed:
		return true
	default:
		return false
	}
}

// setPhase records the stream's new phase. It does not change stream table
// membership; the callers that insert or free the stream do that.
func (s *Stream) setPhase(p Phase) {
	s.phase = p
}

// armRetransmit (re)arms the retransmission timer for RTO ticks from now,
// if the send buffer holds unacknowledged data.
func (s *Stream) armRetransmit(now time.Time) {
	if s.sendBuf.len() == 0 {
		s.ctx.timers.disarm(s.four, timerRetransmit)
		return
	}
	s.ctx.timers.arm(s.four, timerRetransmit, now.Add(s.rtt.getRTO()))
}

// disarmAll cancels every timer this stream may hold, on destruction.
func (s *Stream) disarmAll() {
	for _, k := range [...]timerKind{timerRetransmit, timerPersist, timerDelayedACK, timerKeepalive, timerTimeWait} {
		s.ctx.timers.disarm(s.four, k)
	}
}
