package tldk

import "time"

// sendControlSegment emits a flags-only segment (ACK, RST, pure probe)
// carrying the stream's current sequence/ack/window, bypassing the byte
// ring entirely.
func (c *Context) sendControlSegment(s *Stream, flags Flags, now time.Time) {
	c.emitControlWithOptions(s, flags, buildDataOptions(s.currentTSOpt(now)), now)
}

// emitControlWithOptions is the common path for every flags-carrying,
// zero-payload segment: SYN, SYN+ACK, FIN, RST, pure ACK.
func (c *Context) emitControlWithOptions(s *Stream, flags Flags, opts []byte, now time.Time) {
	seq := s.snd.nxt
	if flags.Has(FlagSYN) {
		seq = s.snd.iss
	} else if flags.Has(FlagFIN) {
		seq = s.snd.nxt
	}
	c.transmit(s, seq, flags, nil, opts, now)
}

// emitDataSegment sends (or resends) a payload-carrying segment starting at
// seq, with ACK always set once past the handshake.
func (c *Context) emitDataSegment(s *Stream, seq Value, payload []byte, now time.Time) {
	flags := FlagACK
	opts := buildDataOptions(s.currentTSOpt(now))
	c.transmit(s, seq, flags, payload, opts, now)
}

// currentTSOpt returns the timestamp option to attach to an outbound
// segment, or nil if timestamps were not negotiated on this connection.
func (s *Stream) currentTSOpt(now time.Time) *tsOpt {
	if !s.opt.tsNegotiated {
		return nil
	}
	ts := tsOpt{val: uint32(now.UnixMilli()), ecr: s.opt.lastTS.val}
	return &ts
}

// transmit assembles one TCP segment (header, options, payload; no IP
// header) and pushes it to the stream's device, annotating the trace sink
// if one is configured.
func (c *Context) transmit(s *Stream, seq Value, flags Flags, payload, opts []byte, now time.Time) {
	if len(c.devices) == 0 {
		return
	}
	dev := c.devices[s.device%len(c.devices)]

	buf := NewPoolBuffer()
	buf.Append(payload)
	hdrLen := tcpHeaderLen + len(opts)
	hdr := buf.Reserve(hdrLen)

	wh := wireHeader{
		srcPort: s.four.Local.Port,
		dstPort: s.four.Remote.Port,
		seq:     uint32(seq),
		ack:     uint32(s.rcv.nxt),
		flags:   flags,
		window:  s.advertisedWindow(),
	}
	encodeTCPHeader(hdr, wh, opts)

	segBytes := buf.Bytes()
	if dev.Offloads()&OffloadTxChecksum == 0 {
		cksum := tcpChecksum(s.four.Local.IP, s.four.Remote.IP, segBytes)
		putChecksum(segBytes, cksum)
	}

	if c.trace != nil {
		c.trace.recordEgress(s.four, seq, flags, len(payload))
	}
	c.recordCapture(segBytes, now)

	if err := dev.Push(buf); err != nil {
		buf.Release()
	}

	if flags.Has(FlagSYN) || flags.Has(FlagFIN) {
		adv := Size(1)
		if s.snd.nxt == seq {
			s.snd.nxt = seq.Add(adv)
		}
	}
}

// putChecksum writes the computed checksum into a fully assembled TCP
// segment's checksum field (bytes 16:18).
func putChecksum(seg []byte, cksum uint16) {
	seg[16] = byte(cksum >> 8)
	seg[17] = byte(cksum)
}

// txBudget computes the send budget for one stream: min(cwnd, peer_wnd)
// minus bytes already in flight.
func (s *Stream) txBudget() int {
	if s.cc == nil {
		return 0
	}
	eff := s.cc.effectiveWindow(s.peerWindow())
	budget := int(eff) - s.sendBuf.inFlight()
	if budget < 0 {
		return 0
	}
	return budget
}

// drainSendQueue carves as many MSS-sized segments out of unsent as the
// send budget allows, records each in the send buffer, and transmits it.
// It returns the part of unsent that did not fit, which it does not keep.
// Send (and Writev through it) calls it with the caller's payload; it is
// safe to call with nothing to send.
func (c *Context) drainSendQueue(s *Stream, unsent []byte, now time.Time) []byte {
	if s.phase != PhaseEstablished && s.phase != PhaseCloseWait {
		return unsent
	}
	budget := s.txBudget()
	mss := int(s.opt.mss)
	if mss == 0 {
		mss = int(defaultMSS)
	}
	for budget > 0 && len(unsent) > 0 {
		n := mss
		if n > len(unsent) {
			n = len(unsent)
		}
		if n > budget {
			n = budget
		}
		if n == 0 {
			break
		}
		chunk := unsent[:n]
		seq := s.snd.nxt
		if !s.sendBuf.append(pendingSegment{seqStart: seq, seqEnd: seq.Add(Size(n)), payload: append([]byte(nil), chunk...), sentAt: now}) {
			break
		}
		c.emitDataSegment(s, seq, chunk, now)
		s.snd.nxt = seq.Add(Size(n))
		unsent = unsent[n:]
		budget -= n
	}
	if s.sendBuf.len() > 0 {
		s.armRetransmit(now)
	}
	return unsent
}

// TxBulk always returns 0: every Device this package drives pushes
// synchronously out of transmit (tx.go) rather than staging packets on a
// ring for a separate drain call, so there is never anything queued here to
// hand back. It is kept, alongside RxBulk, for the three-entry-point
// (RxBulk/TxBulk/Process) shape callers expect from this stack's lineage.
func (c *Context) TxBulk(dev Device, out [][]byte, n int) int {
	return 0
}
