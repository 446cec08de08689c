package tldk

import "time"

// EstablishParams carries the caller-supplied connection state for the
// establish() shortcut: injecting a stream directly into ESTABLISHED
// without running the three-way handshake, used when a connection's state
// was already negotiated elsewhere (e.g. migrated from another stack).
type EstablishParams struct {
	Four       FourTuple
	ISS, IRS   Value
	SndWnd     Size
	RcvWnd     Size
	MSS        uint16
	PeerMSS    uint16
	WindowScaleLocal uint8
	WindowScalePeer  uint8
	Timestamps bool
	Flags      StreamFlags
}

// Establish injects a stream directly into PhaseEstablished with
// caller-provided sequence state, without running the three-way handshake.
// The stream is inserted into the context's table unless Flags carries
// FlagPrivate, in which case it is reachable only via Context.StreamRxBulk.
func (c *Context) Establish(p EstablishParams) (*Stream, error) {
	if p.MSS == 0 {
		return nil, ErrInvalidArgument
	}
	s, err := c.allocStream(p.Four, p.Flags)
	if err != nil {
		return nil, err
	}
	s.device = c.selectDevice(p.Four.Local.IP)
	s.snd.iss = p.ISS
	s.snd.una = p.ISS.Add(1)
	s.snd.nxt = p.ISS.Add(1)
	s.snd.wnd = p.SndWnd
	s.rcv.irs = p.IRS
	s.rcv.nxt = p.IRS.Add(1)
	s.rcv.wnd = p.RcvWnd
	s.opt.mss = p.MSS
	s.opt.peerMSS = p.PeerMSS
	s.opt.localWS = p.WindowScaleLocal
	s.opt.peerWS = p.WindowScalePeer
	s.opt.wsNegotiated = p.WindowScalePeer != 0 || p.WindowScaleLocal != 0
	s.opt.tsNegotiated = p.Timestamps
	s.cc = newCongestionControl(s.opt.mss)
	s.userOps |= OpEstablish
	s.setPhase(PhaseEstablished)

	if !s.isPrivate() {
		c.table.insert(s)
	}
	return s, nil
}

// Listen transitions a freshly opened stream into PhaseListen and registers
// it in the listen map, ready to accept inbound SYNs.
func (c *Context) Listen(s *Stream) error {
	if s.userOps&OpListen != 0 {
		return ErrAlreadyInvoked
	}
	if s.phase != PhaseClosed {
		return ErrInvalidArgument
	}
	s.userOps |= OpListen
	s.setPhase(PhaseListen)
	s.listen = &listenExt{
		backlog:      make(map[FourTuple]*Stream),
		backlogLimit: c.cfg.ListenBacklog,
	}
	c.table.insertListen(s)
	return nil
}

// Connect transitions a freshly opened stream into SYN_SENT, emits the
// initial SYN, and arms the retransmission timer. A stream opened with a
// wildcard local address takes the first address of its device.
func (c *Context) Connect(s *Stream, remote Addr, now time.Time) error {
	if s.userOps&OpConnect != 0 {
		return ErrAlreadyInvoked
	}
	if s.phase != PhaseClosed {
		return ErrInvalidArgument
	}
	s.userOps |= OpConnect
	if !s.four.Local.IP.IsValid() || s.four.Local.IP.IsUnspecified() {
		if len(c.devices) > 0 {
			if ips := c.devices[s.device%len(c.devices)].LocalAddrs(); len(ips) > 0 {
				s.four.Local.IP = AddrFromIP(ips[0], 0).IP
			}
		}
	}
	s.four.Remote = remote
	s.snd.iss = newISS()
	s.snd.una = s.snd.iss
	s.snd.nxt = s.snd.iss.Add(1)
	s.rcv.wnd = Size(c.cfg.RecvBufferBytes)
	s.opt.localWS = findWndScale(s.rcv.wnd)
	s.setPhase(PhaseSynSent)
	if !s.isPrivate() {
		c.table.insert(s)
	}
	c.emitSyn(s, now)
	s.ctx.timers.arm(s.four, timerRetransmit, now.Add(s.rtt.getRTO()))
	return nil
}

// handlePassiveSyn processes an inbound SYN against a LISTEN stream: it
// allocates a SYN_RCVD shadow entry in the listen backlog and sends
// SYN+ACK. The shadow is lightweight and does not draw from the stream
// pool — only backlogLimit bounds it — so it cannot starve Open() callers;
// it is accounted against the pool only once promoteFromBacklog promotes
// it. A full backlog silently drops the SYN, matching hardened behavior
// rather than an explicit RST.
func (c *Context) handlePassiveSyn(listener *Stream, seg *segment, now time.Time) {
	if listener.listen == nil {
		return
	}
	if _, dup := listener.listen.backlog[seg.four]; dup {
		return
	}
	if len(listener.listen.backlog) >= listener.listen.backlogLimit {
		return
	}

	shadow := c.newShadowStream(seg.four, listener.flags)
	shadow.device = c.selectDevice(seg.four.Local.IP)
	shadow.rcv.irs = seg.seq
	shadow.rcv.nxt = seg.seq.Add(1)
	shadow.rcv.wnd = Size(c.cfg.RecvBufferBytes)
	shadow.opt.localWS = findWndScale(shadow.rcv.wnd)
	shadow.opt.peerMSS = defaultMSS
	if seg.opts.hasMSS {
		shadow.opt.peerMSS = seg.opts.mss
	}
	shadow.opt.mss = minUint16(shadow.opt.peerMSS, c.cfg.DefaultMSS)
	if seg.opts.hasWS {
		shadow.opt.peerWS = seg.opts.wscale
		shadow.opt.wsNegotiated = true
	}
	shadow.snd.wnd = Size(seg.window)
	shadow.snd.iss = newISS()
	shadow.snd.una = shadow.snd.iss
	shadow.snd.nxt = shadow.snd.iss.Add(1)
	shadow.setPhase(PhaseSynRcvd)
	shadow.udata = listener // back-reference for promotion

	listener.listen.backlog[seg.four] = shadow
	c.table.insert(shadow)
	c.sendSynAck(shadow, now)
	shadow.armRetransmit(now)
}

// sendSynAck emits a SYN+ACK carrying negotiated options.
func (c *Context) sendSynAck(s *Stream, now time.Time) {
	c.emitControlWithOptions(s, FlagSYN|FlagACK, buildSynOptions(s.opt.mss, s.opt.localWS, s.opt.wsNegotiated, nil), now)
}

// emitSyn emits the initial SYN of an active open.
func (c *Context) emitSyn(s *Stream, now time.Time) {
	localWS := findWndScale(s.rcv.wnd)
	s.opt.localWS = localWS
	c.emitControlWithOptions(s, FlagSYN, buildSynOptions(c.cfg.DefaultMSS, localWS, true, nil), now)
}

// promoteFromBacklog is invoked once a SYN_RCVD shadow entry's handshake
// ACK arrives: it reserves the shadow a real pool slot (it held none while
// merely half-open), promotes it to ESTABLISHED, moves it from the
// listener's backlog into its ready queue, and signals the listener. If the
// pool is full the connection is dropped rather than established, matching
// the backlog's own silent-drop-under-pressure behavior.
func (c *Context) promoteFromBacklog(shadow *Stream, now time.Time) {
	listener, ok := shadow.udata.(*Stream)
	if !ok || listener.listen == nil {
		// A stream already in the pool (e.g. a simultaneous-open Connect
		// that passed through SYN_RCVD) never went through the backlog and
		// already holds its slot; only a genuine shadow needs one reserved.
		if !shadow.pooled {
			if err := c.reserveSlot(shadow); err != nil {
				shadow.disarmAll()
				c.table.remove(shadow.four)
				return
			}
		}
		shadow.setPhase(PhaseEstablished)
		shadow.cc = newCongestionControl(shadow.opt.mss)
		shadow.udata = nil
		return
	}
	if err := c.reserveSlot(shadow); err != nil {
		delete(listener.listen.backlog, shadow.four)
		shadow.disarmAll()
		c.table.remove(shadow.four)
		return
	}
	delete(listener.listen.backlog, shadow.four)
	shadow.setPhase(PhaseEstablished)
	shadow.cc = newCongestionControl(shadow.opt.mss)
	shadow.udata = nil
	listener.listen.ready = append(listener.listen.ready, shadow)
	listener.sinks.raiseRecv()
}

// newISS picks an initial sequence number. A production stack derives this
// from a monotonic clock plus per-connection hash (RFC 6528); this stack
// uses the low 32 bits of a timestamp, adequate for the closed, trusted
// links this implementation targets and consistent with its lineage's
// preference for simple, auditable state over cryptographic ISS generation.
func newISS() Value {
	return Value(uint32(time.Now().UnixNano()))
}
