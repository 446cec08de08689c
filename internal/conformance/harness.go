// Package conformance differentially tests this module's stream state
// machine against gvisor.dev/gvisor's independent TCP implementation. It
// drives gVisor's stack against this module's raw-IP Device model (no
// Ethernet/ARP layer: Device exchanges bare IP datagrams with addressing
// carried out of band, not frames).
package conformance

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/Trinity-Cyber-Inc/tldk"

	"gvisor.dev/gvisor/pkg/buffer"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/adapters/gonet"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
	"gvisor.dev/gvisor/pkg/tcpip/transport/tcp"
)

const gvisorNICID tcpip.NICID = 1

var (
	hostIP  = net.IPv4(10, 77, 0, 1)
	guestIP = net.IPv4(10, 77, 0, 2)
)

func mustAddrFrom4(ip net.IP) tcpip.Address {
	ip4 := ip.To4()
	var b [4]byte
	copy(b[:], ip4)
	return tcpip.AddrFrom4(b)
}

// rawDevice implements tldk.Device by wrapping each outbound TCP segment in
// a minimal IPv4 header and injecting it directly into a gVisor channel
// endpoint, and by stripping the IPv4 header off everything gVisor emits
// before handing the TCP segment to Context.RxBulk. It has no link layer at
// all, matching the point-to-point, pre-resolved link this module assumes
// a Device provides.
type rawDevice struct {
	ch    *channel.Endpoint
	local net.IP
	peer  net.IP
}

func (d *rawDevice) MTU() int             { return 1460 }
func (d *rawDevice) Offloads() tldk.Offload { return 0 }
func (d *rawDevice) LocalAddrs() []net.IP { return []net.IP{d.local} }

func (d *rawDevice) Push(buf tldk.Buffer) error {
	tcpSeg := buf.Bytes()
	ip := encodeIPv4Header(d.local, d.peer, tcpSeg)
	full := append(ip, tcpSeg...)
	pkt := stack.NewPacketBuffer(stack.PacketBufferOptions{
		Payload: buffer.MakeWithData(full),
	})
	d.ch.InjectInbound(ipv4.ProtocolNumber, pkt)
	pkt.DecRef()
	buf.Release()
	return nil
}

func encodeIPv4Header(src, dst net.IP, payload []byte) []byte {
	hdr := make([]byte, 20)
	totalLen := 20 + len(payload)
	hdr[0] = 0x45
	binary.BigEndian.PutUint16(hdr[2:4], uint16(totalLen))
	hdr[8] = 64 // TTL
	hdr[9] = 6  // protocol: TCP
	copy(hdr[12:16], src.To4())
	copy(hdr[16:20], dst.To4())
	var sum uint32
	for i := 0; i < 20; i += 2 {
		if i == 10 {
			continue
		}
		sum += uint32(hdr[i])<<8 | uint32(hdr[i+1])
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	binary.BigEndian.PutUint16(hdr[10:12], ^uint16(sum))
	return hdr
}

func decodeIPv4Header(pkt []byte) (src, dst net.IP, payload []byte) {
	ihl := int(pkt[0]&0x0f) * 4
	totalLen := int(binary.BigEndian.Uint16(pkt[2:4]))
	return net.IP(append([]byte(nil), pkt[12:16]...)),
		net.IP(append([]byte(nil), pkt[16:20]...)),
		pkt[ihl:totalLen]
}

// Harness pairs one tldk.Context (host side) against one gVisor userspace
// stack (guest side), joined by a rawDevice on the tldk side and a gVisor
// channel endpoint on the guest side.
type Harness struct {
	TB  testing.TB
	Ctx *tldk.Context
	GS  *stack.Stack

	dev *rawDevice
	ch  *channel.Endpoint
}

// NewHarness builds both stacks and starts the background pump that
// delivers gVisor's outbound packets into the Context's RxBulk.
func NewHarness(tb testing.TB, cfg tldk.ContextConfig) *Harness {
	tb.Helper()

	ch := channel.New(256, 1500, "")
	gs := stack.New(stack.Options{
		NetworkProtocols:   []stack.NetworkProtocolFactory{ipv4.NewProtocol},
		TransportProtocols: []stack.TransportProtocolFactory{tcp.NewProtocol},
	})
	if err := gs.CreateNIC(gvisorNICID, ch); err != nil {
		tb.Fatalf("gvisor CreateNIC: %v", err)
	}
	if err := gs.AddProtocolAddress(gvisorNICID, tcpip.ProtocolAddress{
		Protocol: ipv4.ProtocolNumber,
		AddressWithPrefix: tcpip.AddressWithPrefix{
			Address:   mustAddrFrom4(guestIP),
			PrefixLen: 24,
		},
	}, stack.AddressProperties{}); err != nil {
		tb.Fatalf("gvisor AddProtocolAddress: %v", err)
	}

	dev := &rawDevice{ch: ch, local: hostIP, peer: guestIP}
	ctx, err := tldk.NewContext(cfg, []tldk.Device{dev}, time.Now())
	if err != nil {
		tb.Fatalf("new context: %v", err)
	}

	h := &Harness{TB: tb, Ctx: ctx, GS: gs, dev: dev, ch: ch}

	done := make(chan struct{})
	go h.pump(done)
	tb.Cleanup(func() {
		ch.Close()
		<-done
	})
	return h
}

// pump forwards every packet gVisor emits into the Context's RxBulk, until
// the channel endpoint is closed.
func (h *Harness) pump(done chan struct{}) {
	defer close(done)
	for {
		pkt := h.ch.ReadContext(context.Background())
		if pkt == nil {
			return
		}
		raw := append([]byte(nil), pkt.ToView().AsSlice()...)
		pkt.DecRef()

		src, dst, tcpSeg := decodeIPv4Header(raw)
		local := []tldk.Addr{tldk.AddrFromIP(dst, 0)}
		remote := []tldk.Addr{tldk.AddrFromIP(src, 0)}
		rp := make([][]byte, 1)
		rc := make([]error, 1)
		h.Ctx.RxBulk(h.dev, [][]byte{tcpSeg}, local, remote, rp, rc, 1)
	}
}

// DialFromGuest opens a gonet connection from the gVisor side to the host
// Context's listening port, the mirror of a real client connecting in.
func (h *Harness) DialFromGuest(tb testing.TB, port uint16) net.Conn {
	tb.Helper()
	conn, err := gonet.DialTCP(h.GS, tcpip.FullAddress{
		NIC:  gvisorNICID,
		Addr: mustAddrFrom4(hostIP),
		Port: port,
	}, ipv4.ProtocolNumber)
	if err != nil {
		tb.Fatalf("gvisor dial tcp: %v", err)
	}
	tb.Cleanup(func() { _ = conn.Close() })
	return conn
}
