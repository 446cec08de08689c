package tldk

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// tcpHeaderLen is the fixed portion of a TCP header, without options.
const tcpHeaderLen = 20

// wireHeader is the parsed fixed fields of a TCP header, plus the raw option
// and payload slices, as read off (or about to be written to) the wire.
type wireHeader struct {
	srcPort, dstPort uint16
	seq, ack         uint32
	flags            Flags
	window           uint16
	checksum         uint16
	options          []byte
	payload          []byte
}

// parseTCPHeader parses a TCP segment's fixed header and locates its options
// and payload within data. It returns ErrInvalidPacket if the header is
// truncated or its data-offset field is inconsistent with len(data).
func parseTCPHeader(data []byte) (wireHeader, error) {
	if len(data) < tcpHeaderLen {
		return wireHeader{}, fmt.Errorf("%w: tcp header too short (%d bytes)", ErrInvalidPacket, len(data))
	}
	hdrLen := int(data[12]>>4) * 4
	if hdrLen < tcpHeaderLen || hdrLen > len(data) {
		return wireHeader{}, fmt.Errorf("%w: tcp data offset %d inconsistent with length %d", ErrInvalidPacket, hdrLen, len(data))
	}
	h := wireHeader{
		srcPort:  binary.BigEndian.Uint16(data[0:2]),
		dstPort:  binary.BigEndian.Uint16(data[2:4]),
		seq:      binary.BigEndian.Uint32(data[4:8]),
		ack:      binary.BigEndian.Uint32(data[8:12]),
		flags:    Flags(data[13]),
		window:   binary.BigEndian.Uint16(data[14:16]),
		checksum: binary.BigEndian.Uint16(data[16:18]),
		payload:  data[hdrLen:],
	}
	if hdrLen > tcpHeaderLen {
		h.options = data[tcpHeaderLen:hdrLen]
	}
	return h, nil
}

// encodeTCPHeader writes a segment's fixed header plus options into dst,
// which must be at least tcpHeaderLen+len(opts) bytes. The checksum field is
// left zero; the caller fills it in once the whole segment (and, for
// checksumming, the pseudo-header) is assembled.
func encodeTCPHeader(dst []byte, h wireHeader, opts []byte) {
	dataOff := byte((tcpHeaderLen + len(opts)) / 4)
	binary.BigEndian.PutUint16(dst[0:2], h.srcPort)
	binary.BigEndian.PutUint16(dst[2:4], h.dstPort)
	binary.BigEndian.PutUint32(dst[4:8], h.seq)
	binary.BigEndian.PutUint32(dst[8:12], h.ack)
	dst[12] = dataOff << 4
	dst[13] = byte(h.flags)
	binary.BigEndian.PutUint16(dst[14:16], h.window)
	dst[16] = 0
	dst[17] = 0
	binary.BigEndian.PutUint16(dst[18:20], 0)
	copy(dst[tcpHeaderLen:], opts)
}

// inetChecksum computes the Internet checksum (RFC 1071) over data, folding
// an optional initial value (typically a pseudo-header partial sum).
func inetChecksum(data []byte, initial uint32) uint16 {
	sum := initial
	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// pseudoHeaderSum computes the partial checksum of the IPv4 or IPv6
// pseudo-header (RFC 793 §3.1, RFC 2460 §8.1) covering src, dst, the
// protocol number, and the TCP segment length.
func pseudoHeaderSum(src, dst netip.Addr, tcpLen int) uint32 {
	var sum uint32
	if src.Is4() && dst.Is4() {
		v4src, v4dst := src.As4(), dst.As4()
		sum += uint32(binary.BigEndian.Uint16(v4src[0:2]))
		sum += uint32(binary.BigEndian.Uint16(v4src[2:4]))
		sum += uint32(binary.BigEndian.Uint16(v4dst[0:2]))
		sum += uint32(binary.BigEndian.Uint16(v4dst[2:4]))
	} else {
		v6src, v6dst := src.As16(), dst.As16()
		for i := 0; i < 16; i += 2 {
			sum += uint32(binary.BigEndian.Uint16(v6src[i : i+2]))
			sum += uint32(binary.BigEndian.Uint16(v6dst[i : i+2]))
		}
	}
	sum += uint32(tcpProtocolNumber)
	sum += uint32(tcpLen)
	return sum
}

const tcpProtocolNumber = 6

// tcpChecksum computes the TCP checksum of a fully assembled segment
// (header plus options plus payload), given the endpoints it travels
// between.
func tcpChecksum(src, dst netip.Addr, segment []byte) uint16 {
	return inetChecksum(segment, pseudoHeaderSum(src, dst, len(segment)))
}

// segment is an internal reference to an inbound packet buffer, annotated
// with the parsed sequence number, ack, flags, window, and options needed by
// the state machine.
type segment struct {
	buf     Buffer
	four    FourTuple
	seq     Value
	ack     Value
	flags   Flags
	window  uint16
	opts    segOptions
	payload []byte
}

// logicalLen returns the number of sequence numbers the segment occupies,
// i.e. payload length plus one each for SYN and FIN.
func (s *segment) logicalLen() Size {
	n := Size(len(s.payload))
	if s.flags.Has(FlagSYN) {
		n++
	}
	if s.flags.Has(FlagFIN) {
		n++
	}
	return n
}

// last returns the sequence number of the final octet occupied by the
// segment (SEQ itself for a zero-length, flagless segment).
func (s *segment) last() Value {
	l := s.logicalLen()
	if l == 0 {
		return s.seq
	}
	return s.seq.Add(l - 1)
}
