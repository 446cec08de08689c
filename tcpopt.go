package tldk

import "encoding/binary"

// TCP option kinds this stack understands (RFC 793, RFC 1323). Anything
// else is skipped by its length byte.
const (
	optKindEnd       = 0
	optKindNOP       = 1
	optKindMSS       = 2
	optKindWndScale  = 3
	optKindSACKOK    = 4
	optKindTimestamp = 8
)

// maxWndScale is the largest window-scale shift RFC 1323 allows.
const maxWndScale = 14

// defaultMSS is used per RFC 1122 §4.2.2.6 when a SYN carries no MSS option.
const defaultMSS = 536

// tsOpt is the value/echo-reply pair carried by a timestamp option.
type tsOpt struct {
	val uint32
	ecr uint32
}

// segOptions holds the parsed options of one inbound segment.
type segOptions struct {
	mss      uint16
	hasMSS   bool
	wscale   uint8
	hasWS    bool
	sackOK   bool
	ts       tsOpt
	hasTS    bool
	malformed bool
}

// parseOptions walks a TCP option block. Unknown options are skipped by
// their length byte; a truncated or self-contradicting option marks the
// result malformed so the caller can drop the segment.
func parseOptions(opts []byte) segOptions {
	var o segOptions
	i := 0
	for i < len(opts) {
		kind := opts[i]
		switch kind {
		case optKindEnd:
			return o
		case optKindNOP:
			i++
		case optKindMSS:
			if i+4 > len(opts) || opts[i+1] != 4 {
				o.malformed = true
				return o
			}
			o.mss = binary.BigEndian.Uint16(opts[i+2 : i+4])
			o.hasMSS = o.mss != 0
			if o.mss == 0 {
				o.malformed = true
				return o
			}
			i += 4
		case optKindWndScale:
			if i+3 > len(opts) || opts[i+1] != 3 {
				o.malformed = true
				return o
			}
			ws := opts[i+2]
			if ws > maxWndScale {
				ws = maxWndScale
			}
			o.wscale = ws
			o.hasWS = true
			i += 3
		case optKindSACKOK:
			if i+2 > len(opts) || opts[i+1] != 2 {
				o.malformed = true
				return o
			}
			o.sackOK = true
			i += 2
		case optKindTimestamp:
			if i+10 > len(opts) || opts[i+1] != 10 {
				o.malformed = true
				return o
			}
			o.ts.val = binary.BigEndian.Uint32(opts[i+2 : i+6])
			o.ts.ecr = binary.BigEndian.Uint32(opts[i+6 : i+10])
			o.hasTS = true
			i += 10
		default:
			if i+2 > len(opts) {
				o.malformed = true
				return o
			}
			l := int(opts[i+1])
			if l < 2 || i+l > len(opts) {
				o.malformed = true
				return o
			}
			i += l
		}
	}
	return o
}

// buildSynOptions serializes the options carried on a SYN or SYN+ACK: MSS
// always, window scale when the peer (or, for the initial SYN, the local
// stream) supports it, and a timestamp when negotiated. Options are padded
// to a 4-byte boundary with NOPs, matching conventional TCP stacks.
func buildSynOptions(mss uint16, wscale uint8, withWS bool, ts *tsOpt) []byte {
	buf := make([]byte, 0, 20)
	buf = append(buf, optKindMSS, 4, byte(mss>>8), byte(mss))
	if ts != nil {
		buf = append(buf, optKindNOP, optKindNOP)
		buf = append(buf, optKindTimestamp, 10)
		var tsb [8]byte
		binary.BigEndian.PutUint32(tsb[0:4], ts.val)
		binary.BigEndian.PutUint32(tsb[4:8], ts.ecr)
		buf = append(buf, tsb[:]...)
	}
	if withWS {
		buf = append(buf, optKindNOP, optKindWndScale, 3, wscale)
	}
	for len(buf)%4 != 0 {
		buf = append(buf, optKindNOP)
	}
	return buf
}

// buildDataOptions serializes the options carried on a non-SYN segment:
// only a timestamp, and only when the stream has negotiated one.
func buildDataOptions(ts *tsOpt) []byte {
	if ts == nil {
		return nil
	}
	buf := make([]byte, 0, 12)
	buf = append(buf, optKindNOP, optKindNOP, optKindTimestamp, 10)
	var tsb [8]byte
	binary.BigEndian.PutUint32(tsb[0:4], ts.val)
	binary.BigEndian.PutUint32(tsb[4:8], ts.ecr)
	buf = append(buf, tsb[:]...)
	return buf
}

// findWndScale picks the smallest window scale shift such that
// (0xffff << shift) >= wnd, capped at maxWndScale.
func findWndScale(wnd Size) uint8 {
	if wnd < 0x10000 {
		return 0
	}
	max := Size(0xffff)
	var s uint8
	for wnd > max && s < maxWndScale {
		s++
		max <<= 1
	}
	return s
}
