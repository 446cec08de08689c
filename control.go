package tldk

import (
	"io"
	"time"
)

// OpenParams are the caller-supplied parameters for Open: the local bind
// address (and, for an active opener, the eventual remote, supplied later
// via Connect) plus the sink configuration.
type OpenParams struct {
	Local Addr
	Flags StreamFlags
	Err   *EventSink
	Recv  *EventSink
	Send  *EventSink
	ErrCB  *CallbackSink
	RecvCB *CallbackSink
	SendCB *CallbackSink
}

// Open allocates a stream from the context's pool in PhaseClosed, ready for
// Listen or Connect. It validates that at most one sink form (event or
// callback) is configured per condition.
func (c *Context) Open(p OpenParams) (*Stream, error) {
	if err := validateSinkPair(p.Err, p.ErrCB); err != nil {
		return nil, err
	}
	if err := validateSinkPair(p.Recv, p.RecvCB); err != nil {
		return nil, err
	}
	if err := validateSinkPair(p.Send, p.SendCB); err != nil {
		return nil, err
	}
	four := FourTuple{Local: p.Local}
	s, err := c.allocStream(four, p.Flags)
	if err != nil {
		return nil, err
	}
	s.device = c.selectDevice(p.Local.IP)
	s.sinks = sinkSet{}
	if p.Err != nil {
		s.sinks.err = p.Err
	} else if p.ErrCB != nil {
		s.sinks.err = p.ErrCB
	}
	if p.Recv != nil {
		s.sinks.recv = p.Recv
	} else if p.RecvCB != nil {
		s.sinks.recv = p.RecvCB
	}
	if p.Send != nil {
		s.sinks.send = p.Send
	} else if p.SendCB != nil {
		s.sinks.send = p.SendCB
	}
	return s, nil
}

// Close requests a graceful shutdown: a FIN is sent right away, after the
// data already transmitted (which stays in the send buffer until
// acknowledged), and the stream is destroyed once it reaches CLOSED (or
// TIME_WAIT expiry). Repeated calls fail with
// ErrAlreadyInvoked.
func (c *Context) Close(s *Stream, now time.Time) error {
	if s.userOps&OpCloseAbort != 0 {
		return ErrAlreadyInvoked
	}
	s.userOps |= OpClose
	s.closeCommitted = true
	return c.shutdown(s, now)
}

// Shutdown enqueues a FIN after all queued data: ESTABLISHED -> FIN_WAIT_1,
// CLOSE_WAIT -> LAST_ACK. It does not commit to destroying the stream (use
// Close for that).
func (c *Context) Shutdown(s *Stream, now time.Time) error {
	if s.userOps&OpShutdown != 0 {
		return ErrAlreadyInvoked
	}
	s.userOps |= OpShutdown
	return c.shutdown(s, now)
}

func (c *Context) shutdown(s *Stream, now time.Time) error {
	switch s.phase {
	case PhaseEstablished:
		s.setPhase(PhaseFinWait1)
		c.emitControlWithOptions(s, FlagFIN|FlagACK, buildDataOptions(s.currentTSOpt(now)), now)
		s.snd.nxt = s.snd.nxt.Add(1)
		s.armRetransmit(now)
	case PhaseCloseWait:
		s.setPhase(PhaseLastAck)
		c.emitControlWithOptions(s, FlagFIN|FlagACK, buildDataOptions(s.currentTSOpt(now)), now)
		s.snd.nxt = s.snd.nxt.Add(1)
		s.armRetransmit(now)
	case PhaseClosed, PhaseListen, PhaseSynSent:
		s.setPhase(PhaseClosed)
		c.destroyStream(s)
	default:
		// SYN_RCVD, or already in a close path; nothing further to do
	}
	return nil
}

// Abort emits RST, wipes both buffers, and transitions to CLOSED
// immediately regardless of prior phase.
func (c *Context) Abort(s *Stream, now time.Time) error {
	if s.userOps&OpAbort != 0 {
		return ErrAlreadyInvoked
	}
	s.userOps |= OpAbort
	if s.phase != PhaseClosed && s.phase != PhaseListen {
		c.sendControlSegment(s, FlagRST, now)
	}
	s.sendBuf.clear()
	s.oooBuf.clear()
	s.lastErr = ErrConnectionAborted
	s.setPhase(PhaseClosed)
	c.destroyStream(s)
	return nil
}

// CloseBulk calls Close on up to n streams from streams, returning the
// count that succeeded.
func (c *Context) CloseBulk(streams []*Stream, n int, now time.Time) int {
	count := 0
	for i := 0; i < n && i < len(streams); i++ {
		if streams[i] == nil {
			continue
		}
		if err := c.Close(streams[i], now); err == nil {
			count++
		}
	}
	return count
}

// GetAddr returns the stream's four-tuple.
func (c *Context) GetAddr(s *Stream) FourTuple { return s.four }

// GetMSS returns the negotiated MSS, or the context default if the
// handshake has not completed.
func (c *Context) GetMSS(s *Stream) int {
	if s.opt.mss != 0 {
		return int(s.opt.mss)
	}
	return int(c.cfg.DefaultMSS)
}

// GetState fills out a snapshot of the stream's externally visible state
// (see tcpinfo.go's Info for the shape).
func (c *Context) GetState(s *Stream) Info {
	return snapshotInfo(s)
}

// Listen exposes Context.Listen as a method-style control-surface call,
// already defined in handshake.go.

// Accept drains up to n fully established streams from a listener's ready
// queue.
func (c *Context) Accept(listener *Stream, out []*Stream, n int) int {
	if listener.listen == nil {
		return 0
	}
	count := 0
	for count < n && count < len(out) && len(listener.listen.ready) > 0 {
		out[count] = listener.listen.ready[0]
		listener.listen.ready = listener.listen.ready[1:]
		count++
	}
	return count
}

// Recv drains up to n buffered, in-order byte slices into out, returning
// the count of slices copied (not bytes — see Readv for a byte-oriented
// drain). It never blocks: an empty receive queue returns 0, not
// ErrWouldBlock, since 0 is itself informative for a poll loop.
func (c *Context) Recv(s *Stream, out [][]byte, n int) (int, error) {
	if s.phase == PhaseClosed && s.remoteEvents != 0 {
		return 0, ErrNotConnected
	}
	count := 0
	for count < n && count < len(out) && len(s.recvQ) > 0 {
		out[count] = s.recvQ[0]
		s.recvQ = s.recvQ[1:]
		count++
	}
	return count, nil
}

// Readv drains the receive queue into a single io.Writer, returning the
// total bytes written, for callers that prefer a vectored-style byte
// stream over per-segment slices.
func (c *Context) Readv(s *Stream, w io.Writer) (int64, error) {
	if s.phase == PhaseClosed && s.remoteEvents != 0 {
		return 0, ErrNotConnected
	}
	var total int64
	for len(s.recvQ) > 0 {
		n, err := w.Write(s.recvQ[0])
		total += int64(n)
		s.recvQ = s.recvQ[1:]
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Send transmits as much of payload as the congestion/flow-control budget
// allows and returns the number of bytes accepted; the rest is not queued,
// and ErrWouldBlock is returned when no byte fits. A terminal-teardown or
// not-yet-established stream rejects with ErrNotConnected.
func (c *Context) Send(s *Stream, payload []byte, now time.Time) (int, error) {
	if s.phase != PhaseEstablished && s.phase != PhaseCloseWait {
		return 0, ErrNotConnected
	}
	if s.inTerminalTeardown() {
		return 0, ErrNotConnected
	}
	remaining := c.drainSendQueue(s, payload, now)
	accepted := len(payload) - len(remaining)
	if accepted == 0 && len(payload) > 0 {
		return 0, ErrWouldBlock
	}
	return accepted, nil
}

// Writev is Send's vectored form, concatenating iov before sending. It
// exists as a convenience wrapper named per the original control API; the
// core accepts a single contiguous payload either way.
func (c *Context) Writev(s *Stream, iov [][]byte, now time.Time) (int64, error) {
	var buf []byte
	for _, v := range iov {
		buf = append(buf, v...)
	}
	n, err := c.Send(s, buf, now)
	return int64(n), err
}

// UpdateCfg applies a new retry cap to each stream in streams, returning
// the count updated. Other parameters (MSS, buffer sizes) are fixed at
// open time in this implementation and are not mutable post-open.
func (c *Context) UpdateCfg(streams []*Stream, retryCaps []int, n int) int {
	count := 0
	for i := 0; i < n && i < len(streams) && i < len(retryCaps); i++ {
		if streams[i] == nil {
			continue
		}
		streams[i].retryCap = retryCaps[i]
		count++
	}
	return count
}
