package tldk

import (
	"net"
	"time"
)

// loopDevice bridges two Contexts directly in memory, each Push call
// re-entering the peer Context's RxBulk synchronously. It exists only for
// same-process control-flow tests that don't need a real link; see
// internal/conformance for a differential test against an independent
// stack.
type loopDevice struct {
	peer    *Context
	peerDev Device
	local   net.IP
	remote  net.IP
}

func (d *loopDevice) MTU() int             { return 1460 }
func (d *loopDevice) Offloads() Offload    { return 0 }
func (d *loopDevice) LocalAddrs() []net.IP { return []net.IP{d.local} }

func (d *loopDevice) Push(buf Buffer) error {
	data := append([]byte(nil), buf.Bytes()...)
	buf.Release()
	local := []Addr{AddrFromIP(d.remote, 0)}
	remote := []Addr{AddrFromIP(d.local, 0)}
	rp := make([][]byte, 1)
	rc := make([]error, 1)
	d.peer.RxBulk(d.peerDev, [][]byte{data}, local, remote, rp, rc, 1)
	return nil
}

// newLoopedContexts builds two Contexts wired directly to each other,
// standing in for a point-to-point link between two TCP endpoints.
func newLoopedContexts(tb interface{ Fatalf(string, ...any) }) (a, b *Context, aIP, bIP net.IP) {
	aIP = net.IPv4(10, 0, 0, 1)
	bIP = net.IPv4(10, 0, 0, 2)

	devA := &loopDevice{local: aIP, remote: bIP}
	devB := &loopDevice{local: bIP, remote: aIP}
	devA.peerDev = devB
	devB.peerDev = devA

	cfg := DefaultContextConfig()
	var err error
	a, err = NewContext(cfg, []Device{devA}, time.Now())
	if err != nil {
		tb.Fatalf("new context a: %v", err)
	}
	b, err = NewContext(cfg, []Device{devB}, time.Now())
	if err != nil {
		tb.Fatalf("new context b: %v", err)
	}
	devA.peer = b
	devB.peer = a
	return a, b, aIP, bIP
}
