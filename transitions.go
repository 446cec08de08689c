package tldk

import "time"

// acceptable reports whether an inbound segment's sequence window overlaps
// [rcv.nxt, rcv.nxt+rcv.wnd), per RFC 793 §3.3's segment receive test.
func (s *Stream) acceptable(seg *segment) bool {
	segLen := seg.logicalLen()
	winEnd := s.rcv.nxt.Add(s.rcv.wnd)
	if segLen == 0 {
		if s.rcv.wnd == 0 {
			return seg.seq == s.rcv.nxt
		}
		return seg.seq.InWindow(s.rcv.nxt, s.rcv.wnd)
	}
	if s.rcv.wnd == 0 {
		return false
	}
	return overlaps(seg.seq, seg.seq.Add(segLen), s.rcv.nxt, winEnd)
}

// processSegment is the single entry point for an inbound, already
// four-tuple-matched segment: it applies the acceptability check, RST/SYN
// handling, ACK processing, and data acceptance, in the order RFC 793
// §3.9 prescribes.
func (c *Context) processSegment(s *Stream, seg *segment, now time.Time) error {
	if s.phase == PhaseClosed || s.phase == PhaseListen {
		return ErrNoSuchStream
	}

	if s.phase == PhaseSynSent {
		return c.processSynSent(s, seg, now)
	}

	if !s.acceptable(seg) {
		if !seg.flags.Has(FlagRST) {
			c.sendControlSegment(s, FlagACK, now)
		}
		return nil
	}

	if seg.flags.Has(FlagRST) {
		c.resetStream(s, now)
		return nil
	}

	if seg.flags.Has(FlagSYN) {
		// A SYN inside the receive window after the handshake indicates a
		// peer restart; RFC 793 calls for a challenge ACK and local reset.
		c.sendControlSegment(s, FlagACK, now)
		c.resetStream(s, now)
		return nil
	}

	if seg.flags.Has(FlagACK) {
		c.processACK(s, seg, now)
	}

	if len(seg.payload) > 0 {
		c.acceptData(s, seg, now)
	}

	if seg.flags.Has(FlagFIN) {
		c.processFIN(s, seg, now)
	}

	return nil
}

// processSynSent handles the handshake-completion cases (plain SYN+ACK, or
// simultaneous-open bare SYN) while a stream is still in SYN_SENT.
func (c *Context) processSynSent(s *Stream, seg *segment, now time.Time) error {
	if seg.flags.Has(FlagACK) {
		if seg.ack.Less(s.snd.una) || s.snd.nxt.Less(seg.ack) {
			if !seg.flags.Has(FlagRST) {
				c.sendControlSegment(s, FlagRST, now)
			}
			return nil
		}
	}
	if seg.flags.Has(FlagRST) {
		if seg.flags.Has(FlagACK) {
			c.resetStream(s, now)
		}
		return nil
	}
	if !seg.flags.Has(FlagSYN) {
		return nil
	}

	s.rcv.irs = seg.seq
	s.rcv.nxt = seg.seq.Add(1)
	s.opt.peerMSS = defaultMSS
	if seg.opts.hasMSS {
		s.opt.peerMSS = seg.opts.mss
	}
	s.opt.mss = minUint16(s.opt.peerMSS, s.ctx.cfg.DefaultMSS)
	if seg.opts.hasWS {
		s.opt.peerWS = seg.opts.wscale
		s.opt.wsNegotiated = true
	}
	s.cc = newCongestionControl(s.opt.mss)
	s.snd.wnd = Size(seg.window)

	if seg.flags.Has(FlagACK) {
		s.snd.una = seg.ack
		s.setPhase(PhaseEstablished)
		c.sendControlSegment(s, FlagACK, now)
		s.armRetransmit(now)
		s.sinks.raiseSend()
	} else {
		// Simultaneous open: both sides sent SYN before seeing the peer's.
		s.setPhase(PhaseSynRcvd)
		c.sendSynAck(s, now)
	}
	return nil
}

// processACK applies RFC 5681 congestion control to an inbound ACK: new
// data advances snd.una and grows cwnd; a duplicate ACK may trigger fast
// retransmit.
func (c *Context) processACK(s *Stream, seg *segment, now time.Time) {
	if s.phase == PhaseSynRcvd {
		if seg.ack == s.snd.iss.Add(1) {
			s.snd.una = seg.ack
			c.promoteFromBacklog(s, now)
		}
		return
	}

	isDup := seg.ack == s.snd.una && len(seg.payload) == 0 &&
		Size(seg.window) == s.snd.wnd && s.sendBuf.len() > 0

	newACK := s.snd.una.Less(seg.ack) && !s.snd.nxt.Less(seg.ack)
	if newACK {
		bytesAcked, rttSample, hasRTT := s.sendBuf.ack(seg.ack)
		_ = bytesAcked
		s.snd.una = seg.ack
		if hasRTT {
			s.rtt.update(rttSample)
			s.rtt.resetBackoff()
		}
		wasFastRetransmit := s.cc != nil && s.cc.dupAcks >= fastRetransmitThreshold
		if s.cc != nil {
			if wasFastRetransmit {
				s.cc.onNewAckAfterFastRetransmit()
			} else {
				s.cc.onAck(bytesAcked)
			}
		}
		s.retxCount = 0
		c.updateSendWindow(s, seg, now)
		s.armRetransmit(now)
		if s.sendBuf.len() == 0 {
			c.advanceCloseAfterSendDrain(s, now)
		}
		s.sinks.raiseSend()
	} else if isDup {
		if s.cc != nil && s.cc.onDupAck() {
			c.fastRetransmit(s, now)
		}
	} else if !seg.ack.Less(s.snd.una) {
		c.updateSendWindow(s, seg, now)
	}
}

// updateSendWindow applies the window-update rule of RFC 793 §3.3: only
// accept a peer window update if it's from a segment newer than the last
// one that updated the window (or carries equal seq but a newer ack).
func (c *Context) updateSendWindow(s *Stream, seg *segment, now time.Time) {
	if s.snd.wl1.Less(seg.seq) || (seg.seq == s.snd.wl1 && !seg.ack.Less(s.snd.wl2)) {
		s.snd.wnd = Size(seg.window)
		s.snd.wl1 = seg.seq
		s.snd.wl2 = seg.ack
		if s.snd.wnd == 0 && s.sendBuf.len() > 0 {
			c.armPersist(s, now)
		} else {
			s.ctx.timers.disarm(s.four, timerPersist)
		}
	}
}

// fastRetransmit resends snd.una's oldest unacked segment, per RFC 5681's
// three-duplicate-ACK rule already evaluated by the caller.
func (c *Context) fastRetransmit(s *Stream, now time.Time) {
	seg, ok := s.sendBuf.oldest()
	if !ok {
		return
	}
	c.emitDataSegment(s, seg.seqStart, seg.payload, now)
	s.sendBuf.markRetransmittedN(1)
}

// acceptData folds an in-order or out-of-order payload into the receive
// path: in-order data is delivered immediately (and merged with any now-
// contiguous out-of-order segments); out-of-order data is queued.
func (c *Context) acceptData(s *Stream, seg *segment, now time.Time) {
	if seg.seq == s.rcv.nxt {
		s.recvQ = append(s.recvQ, append([]byte(nil), seg.payload...))
		s.rcv.nxt = s.rcv.nxt.Add(Size(len(seg.payload)))
		for _, extra := range s.oooBuf.collectContiguous(&s.rcv.nxt) {
			s.recvQ = append(s.recvQ, extra)
		}
		s.sinks.raiseRecv()
		c.scheduleACK(s, now, false)
	} else if seg.seq.InWindow(s.rcv.nxt, s.rcv.wnd) {
		s.oooBuf.insert(oooSegment{
			seqStart: seg.seq,
			seqEnd:   seg.seq.Add(Size(len(seg.payload))),
			payload:  append([]byte(nil), seg.payload...),
		})
		c.sendControlSegment(s, FlagACK, now) // immediate ACK for out-of-order
	}
}

// scheduleACK arms the delayed-ACK timer for in-order data, unless
// immediate is requested (full window, FIN, or out-of-order already sent
// one from the caller).
func (c *Context) scheduleACK(s *Stream, now time.Time, immediate bool) {
	if immediate {
		c.sendControlSegment(s, FlagACK, now)
		return
	}
	s.ctx.timers.arm(s.four, timerDelayedACK, now.Add(s.ctx.cfg.DelayedACK))
}

// processFIN advances the receive sequence past a FIN, delivers the
// end-of-stream, ACKs it, and drives the phase transition appropriate to
// the side of the close this is.
func (c *Context) processFIN(s *Stream, seg *segment, now time.Time) {
	s.rcv.nxt = s.rcv.nxt.Add(1)
	s.remoteEvents |= EventFIN
	c.sendControlSegment(s, FlagACK, now)
	s.sinks.raiseRecv()

	switch s.phase {
	case PhaseEstablished:
		s.setPhase(PhaseCloseWait)
	case PhaseFinWait1:
		s.setPhase(PhaseClosing)
	case PhaseFinWait2:
		c.enterTimeWait(s, now)
	case PhaseCloseWait, PhaseClosing, PhaseLastAck:
		// duplicate FIN after one already processed; ACK already sent.
	}
}

// advanceCloseAfterSendDrain checks whether a fully-acknowledged send
// buffer unblocks a pending local-close transition (FIN_WAIT_1 -> FIN_WAIT_2
// once our FIN itself is acked, CLOSING -> TIME_WAIT, LAST_ACK -> CLOSED).
func (c *Context) advanceCloseAfterSendDrain(s *Stream, now time.Time) {
	switch s.phase {
	case PhaseFinWait1:
		s.setPhase(PhaseFinWait2)
	case PhaseClosing:
		c.enterTimeWait(s, now)
	case PhaseLastAck:
		s.setPhase(PhaseClosed)
		c.destroyStream(s)
	}
}

// enterTimeWait transitions to TIME_WAIT and arms its 2*MSL expiry timer.
func (c *Context) enterTimeWait(s *Stream, now time.Time) {
	s.setPhase(PhaseTimeWait)
	s.ctx.timers.disarm(s.four, timerRetransmit)
	s.ctx.timers.disarm(s.four, timerKeepalive)
	s.ctx.timers.arm(s.four, timerTimeWait, now.Add(2*s.ctx.cfg.MSL))
}

// resetStream drops the connection to CLOSED on an acceptable RST, wiping
// both buffers and raising the error sink.
func (c *Context) resetStream(s *Stream, now time.Time) {
	if s.phase == PhaseSynSent || s.phase == PhaseSynRcvd {
		s.lastErr = ErrConnectionRefused
	} else {
		s.lastErr = ErrConnectionReset
	}
	s.remoteEvents |= EventRST
	s.sendBuf.clear()
	s.oooBuf.clear()
	s.setPhase(PhaseClosed)
	s.sinks.raiseErr()
	c.destroyStream(s)
}

// destroyStream frees a stream once it has reached a terminal phase and
// has no segments outstanding on the device egress ring.
func (c *Context) destroyStream(s *Stream) {
	c.freeStream(s)
}

// onRetransmitTimeout is the retransmission-timer firing handler: rewind
// snd.nxt to snd.una, halve the congestion window behavior per RFC 5681,
// resend one segment, and double (here, 1.5x) the RTO, giving up once
// retryCap attempts are exhausted.
func (c *Context) onRetransmitTimeout(s *Stream, now time.Time) {
	s.retxCount++
	if s.retxCount > s.retryCap {
		s.remoteEvents |= EventRTO
		if s.phase == PhaseSynSent || s.phase == PhaseSynRcvd {
			s.lastErr = ErrTimeout
		} else {
			s.lastErr = ErrRetriesExceeded
		}
		s.setPhase(PhaseClosed)
		s.sinks.raiseErr()
		c.destroyStream(s)
		return
	}
	if s.cc != nil {
		s.cc.onTimeout()
	}
	s.rtt.backoff()
	seg, n, ok := s.sendBuf.oldestCoalesced(int(s.opt.mss))
	if ok {
		s.snd.nxt = seg.seqStart.Add(Size(len(seg.payload)))
		c.emitDataSegment(s, seg.seqStart, seg.payload, now)
		s.sendBuf.markRetransmittedN(n)
	}
	s.armRetransmit(now)
}

// onPersistTimeout fires a zero-window probe (the first byte of the oldest
// unacknowledged segment) and rearms itself one RTO later.
func (c *Context) onPersistTimeout(s *Stream, now time.Time) {
	if s.snd.wnd != 0 || s.sendBuf.len() == 0 {
		return
	}
	seg, ok := s.sendBuf.oldest()
	if ok && len(seg.payload) > 0 {
		c.emitDataSegment(s, seg.seqStart, seg.payload[:1], now)
	}
	s.ctx.timers.arm(s.four, timerPersist, now.Add(s.rtt.getRTO()))
}

// onDelayedACKTimeout sends the ACK a delayed-ACK timer was holding back.
func (c *Context) onDelayedACKTimeout(s *Stream, now time.Time) {
	c.sendControlSegment(s, FlagACK, now)
}

// onKeepaliveTimeout sends a zero-byte keep-alive probe and rearms.
func (c *Context) onKeepaliveTimeout(s *Stream, now time.Time) {
	if s.phase != PhaseEstablished {
		return
	}
	c.sendControlSegment(s, FlagACK, now)
	s.ctx.timers.arm(s.four, timerKeepalive, now.Add(s.ctx.cfg.KeepaliveIdle))
}

// onTimeWaitExpiry destroys a TIME_WAIT stream once 2*MSL has elapsed.
func (c *Context) onTimeWaitExpiry(s *Stream) {
	c.destroyStream(s)
}

// armPersist arms the persist timer, used once the peer advertises a zero
// window while data is queued to send.
func (c *Context) armPersist(s *Stream, now time.Time) {
	s.ctx.timers.arm(s.four, timerPersist, now.Add(s.rtt.getRTO()))
}

func minUint16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}
