package tldk

import (
	"net"
	"net/netip"
	"time"

	"golang.org/x/time/rate"
)

// Offload describes the checksum and segmentation work a Device is willing
// to do on the host's behalf, mirroring the DPDK offload flags the stream
// parameter struct in the original control API carried alongside an MTU.
type Offload uint8

const (
	OffloadTxChecksum Offload = 1 << iota
	OffloadRxChecksum
)

// Device is the external collaborator a Context drives packets through. It
// owns addressing, routing, and the physical/virtual link; the Context only
// ever reads its MTU/offload capabilities and its LocalAddrs for device
// selection, and hands it fully-assembled segments to Push. Unlike its
// DPDK-backed ancestor, which stages transmits on an explicit egress ring a
// separate tx_bulk() call later drains, every Device this package ships
// pushes synchronously out of transmit (tx.go); Push's own blocking/backlog
// contract is therefore the whole egress story, not half of one shared with
// a ring-drain call.
type Device interface {
	// MTU returns the largest IP datagram the device can carry.
	MTU() int

	// Offloads returns the checksum/segmentation work the device performs
	// in hardware or in its own software path, so the Context can skip it.
	Offloads() Offload

	// LocalAddrs returns the addresses a stream may bind to on this
	// device. Context.selectDevice uses it to route an Open/Establish call
	// with an explicit (non-wildcard) local address to the right device
	// slot; a wildcard bind or a bind matching no device falls back to
	// device 0.
	LocalAddrs() []net.IP

	// Push stages one fully-formed TCP segment (header, options and
	// payload, with no IP header), assembled by transmit (tx.go), for
	// egress; any IP framing is the Device's own. The Device takes
	// ownership of buf and must Release it once done. Push must not block;
	// if it cannot accept the segment right now it returns ErrBufferFull
	// and transmit drops the segment, leaving the stream's own retransmit
	// timer to recover it.
	Push(buf Buffer) error
}

// selectDevice returns the index into c.devices whose LocalAddrs contains
// local, defaulting to device 0 for a wildcard bind, a bind matching no
// device, or when only one device is configured.
func (c *Context) selectDevice(local netip.Addr) int {
	if len(c.devices) <= 1 || !local.IsValid() || local.IsUnspecified() {
		return 0
	}
	for i, d := range c.devices {
		for _, ip := range d.LocalAddrs() {
			a, ok := netip.AddrFromSlice(ip)
			if ok && a.Unmap() == local {
				return i
			}
		}
	}
	return 0
}

// egressPacer rate-limits a Device's Push calls, standing in for a NIC's
// hardware egress scheduler when the Device below is a software or virtual
// link. It is optional: a nil *egressPacer imposes no limit.
type egressPacer struct {
	limiter *rate.Limiter
}

// newEgressPacer builds a pacer capped at bytesPerSec with a burst allowance
// of burstBytes. A non-positive bytesPerSec disables pacing.
func newEgressPacer(bytesPerSec, burstBytes int) *egressPacer {
	if bytesPerSec <= 0 {
		return nil
	}
	return &egressPacer{limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burstBytes)}
}

// allow reports whether n bytes may be pushed right now, consuming the
// tokens if so. It never blocks; the caller is expected to retry on a later
// Process call rather than stall the poll loop.
func (p *egressPacer) allow(n int) bool {
	if p == nil {
		return true
	}
	return p.limiter.AllowN(time.Now(), n)
}

// pacedDevice wraps a Device with an egressPacer, used when a Context is
// configured with a rate limit for a given device slot.
type pacedDevice struct {
	Device
	pacer *egressPacer
}

func (d *pacedDevice) Push(buf Buffer) error {
	if d.pacer != nil && !d.pacer.allow(len(buf.Bytes())) {
		return ErrBufferFull
	}
	return d.Device.Push(buf)
}
