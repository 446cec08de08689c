package tldk

import (
	"net"
	"net/netip"
	"testing"
	"time"
)

func TestNewEgressPacerDisabledForNonPositiveRate(t *testing.T) {
	if p := newEgressPacer(0, 1000); p != nil {
		t.Fatalf("newEgressPacer(0, ...) should return nil (no pacing)")
	}
	if p := newEgressPacer(-1, 1000); p != nil {
		t.Fatalf("newEgressPacer(-1, ...) should return nil (no pacing)")
	}
}

func TestNilPacerAlwaysAllows(t *testing.T) {
	var p *egressPacer
	if !p.allow(1 << 20) {
		t.Fatalf("a nil pacer must never throttle")
	}
}

func TestEgressPacerEnforcesBurstLimit(t *testing.T) {
	p := newEgressPacer(1, 100)
	if !p.allow(100) {
		t.Fatalf("first push within the burst allowance should be allowed")
	}
	if p.allow(100) {
		t.Fatalf("second push exceeding the burst allowance should be throttled")
	}
}

type stubDevice struct {
	pushed     [][]byte
	err        error
	localAddrs []net.IP
}

func (d *stubDevice) MTU() int              { return 1460 }
func (d *stubDevice) Offloads() Offload     { return 0 }
func (d *stubDevice) LocalAddrs() []net.IP { return d.localAddrs }

func (d *stubDevice) Push(buf Buffer) error {
	if d.err != nil {
		buf.Release()
		return d.err
	}
	d.pushed = append(d.pushed, append([]byte(nil), buf.Bytes()...))
	buf.Release()
	return nil
}

func TestPacedDeviceRejectsPushBeyondBurst(t *testing.T) {
	stub := &stubDevice{}
	pd := &pacedDevice{Device: stub, pacer: newEgressPacer(1, 10)}
	ok := NewBufferWithPayload(make([]byte, 10))
	if err := pd.Push(ok); err != nil {
		t.Fatalf("first push within burst: %v", err)
	}
	tooBig := NewBufferWithPayload(make([]byte, 10))
	if err := pd.Push(tooBig); err != ErrBufferFull {
		t.Fatalf("push beyond burst = %v, want ErrBufferFull", err)
	}
	if len(stub.pushed) != 1 {
		t.Fatalf("underlying device should have received exactly one push, got %d", len(stub.pushed))
	}
}

func TestPacedDeviceWithoutPacerForwardsEveryPush(t *testing.T) {
	stub := &stubDevice{}
	pd := &pacedDevice{Device: stub}
	for i := 0; i < 3; i++ {
		if err := pd.Push(NewBufferWithPayload(make([]byte, 1500))); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if len(stub.pushed) != 3 {
		t.Fatalf("underlying device should have received 3 pushes, got %d", len(stub.pushed))
	}
}

func TestOpenRoutesAnExplicitBindToItsMatchingDevice(t *testing.T) {
	devA := &stubDevice{localAddrs: []net.IP{net.ParseIP("10.0.0.1")}}
	devB := &stubDevice{localAddrs: []net.IP{net.ParseIP("10.0.0.2")}}

	cfg := DefaultContextConfig()
	c, err := NewContext(cfg, []Device{devA, devB}, time.Now())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	sB, err := c.Open(OpenParams{Local: Addr{IP: netip.MustParseAddr("10.0.0.2"), Port: 9000}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if sB.device != 1 {
		t.Fatalf("device = %d, want 1 (matches devB's LocalAddrs)", sB.device)
	}

	sWild, err := c.Open(OpenParams{Local: Addr{IP: netip.IPv4Unspecified(), Port: 9001}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if sWild.device != 0 {
		t.Fatalf("device = %d, want 0 for a wildcard bind", sWild.device)
	}
}
