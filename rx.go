package tldk

import "time"

// RxBulk demultiplexes up to n inbound TCP segments from dev, each without
// its IP header (the addresses it arrived with are passed in local[i] and
// remote[i]): for each, it parses the TCP header, locates the owning stream via a full four-tuple
// lookup falling back to the listen map, and hands the segment to that
// stream's receive path. Packets that match no stream, or that a stream
// rejects, are written back into rp/rc so the caller can inspect them; they
// never kill a stream. It returns the count actually delivered.
func (c *Context) RxBulk(dev Device, pkts [][]byte, local, remote []Addr, rp [][]byte, rc []error, n int) int {
	delivered := 0
	now := time.Now()
	for i := 0; i < n && i < len(pkts); i++ {
		data := pkts[i]
		wh, err := parseTCPHeader(data)
		if err != nil {
			if i < len(rp) {
				rp[i] = data
			}
			if i < len(rc) {
				rc[i] = err
			}
			continue
		}
		four := FourTuple{
			Local:  Addr{IP: local[i].IP, Port: wh.dstPort},
			Remote: Addr{IP: remote[i].IP, Port: wh.srcPort},
		}
		seg := &segment{
			four:    four,
			seq:     Value(wh.seq),
			ack:     Value(wh.ack),
			flags:   wh.flags,
			window:  wh.window,
			opts:    parseOptions(wh.options),
			payload: wh.payload,
		}
		if seg.opts.malformed {
			if i < len(rp) {
				rp[i] = data
			}
			if i < len(rc) {
				rc[i] = ErrInvalidPacket
			}
			continue
		}

		if c.trace != nil {
			c.trace.recordIngress(four, seg.seq, seg.flags, len(seg.payload))
		}
		c.recordCapture(data, now)

		s, ok := c.table.lookup(four)
		if !ok {
			if i < len(rp) {
				rp[i] = data
			}
			if i < len(rc) {
				rc[i] = ErrNoSuchStream
			}
			continue
		}

		if s.phase == PhaseListen {
			if seg.flags.Has(FlagSYN) && !seg.flags.Has(FlagACK) {
				c.handlePassiveSyn(s, seg, now)
				delivered++
				continue
			}
			if i < len(rp) {
				rp[i] = data
			}
			if i < len(rc) {
				rc[i] = ErrNoSuchStream
			}
			continue
		}

		if err := c.processSegment(s, seg, now); err != nil {
			if i < len(rp) {
				rp[i] = data
			}
			if i < len(rc) {
				rc[i] = err
			}
			continue
		}
		delivered++
	}
	return delivered
}

// StreamRxBulk is the per-stream receive entry point for private streams
// (FlagPrivate), which are never reachable through the shared stream table
// and so must be driven by feeding their packets directly.
func (c *Context) StreamRxBulk(s *Stream, pkts [][]byte, rp [][]byte, rc []error, n int) int {
	delivered := 0
	now := time.Now()
	for i := 0; i < n && i < len(pkts); i++ {
		wh, err := parseTCPHeader(pkts[i])
		if err != nil {
			if i < len(rp) {
				rp[i] = pkts[i]
			}
			if i < len(rc) {
				rc[i] = err
			}
			continue
		}
		seg := &segment{
			four:    s.four,
			seq:     Value(wh.seq),
			ack:     Value(wh.ack),
			flags:   wh.flags,
			window:  wh.window,
			opts:    parseOptions(wh.options),
			payload: wh.payload,
		}
		if err := c.processSegment(s, seg, now); err != nil {
			if i < len(rp) {
				rp[i] = pkts[i]
			}
			if i < len(rc) {
				rc[i] = err
			}
			continue
		}
		delivered++
	}
	return delivered
}
