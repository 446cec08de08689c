package conformance

import (
	"io"
	"testing"
	"time"

	"github.com/Trinity-Cyber-Inc/tldk"
)

// TestPassiveEstablishAndEcho exercises the handshake in the direction most
// likely to catch a divergence from a real stack: gVisor, playing the
// active opener, drives a full three-way handshake and a short data
// exchange against this module's passive-open path.
func TestPassiveEstablishAndEcho(t *testing.T) {
	cfg := tldk.DefaultContextConfig()
	h := NewHarness(t, cfg)

	listener, err := h.Ctx.Open(tldk.OpenParams{Local: tldk.AddrFromIP(hostIP, 7000)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := h.Ctx.Listen(listener); err != nil {
		t.Fatalf("listen: %v", err)
	}

	conn := h.DialFromGuest(t, 7000)

	var accepted [1]*tldk.Stream
	deadline := time.Now().Add(2 * time.Second)
	for h.Ctx.Accept(listener, accepted[:], 1) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for accept")
		}
		time.Sleep(time.Millisecond)
	}
	s := accepted[0]
	if s.Phase() != tldk.PhaseEstablished {
		t.Fatalf("accepted stream phase = %v, want Established", s.Phase())
	}

	payload := []byte("hello from gvisor")
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("guest write: %v", err)
	}

	var got [][]byte
	deadline = time.Now().Add(2 * time.Second)
	for len(got) == 0 {
		buf := make([][]byte, 4)
		n, _ := h.Ctx.Recv(s, buf, len(buf))
		got = append(got, buf[:n]...)
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for data")
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	if string(got[0]) != string(payload) {
		t.Fatalf("received %q, want %q", got[0], payload)
	}
}

// TestGracefulCloseFromGuest confirms a guest-initiated close (gVisor
// closing its side) drives this module's stream through CLOSE_WAIT into a
// locally-closed terminal state once Close is called in response.
func TestGracefulCloseFromGuest(t *testing.T) {
	cfg := tldk.DefaultContextConfig()
	h := NewHarness(t, cfg)

	listener, err := h.Ctx.Open(tldk.OpenParams{Local: tldk.AddrFromIP(hostIP, 7001)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := h.Ctx.Listen(listener); err != nil {
		t.Fatalf("listen: %v", err)
	}

	conn := h.DialFromGuest(t, 7001)

	var accepted [1]*tldk.Stream
	deadline := time.Now().Add(2 * time.Second)
	for h.Ctx.Accept(listener, accepted[:], 1) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for accept")
		}
		time.Sleep(time.Millisecond)
	}
	s := accepted[0]

	if err := conn.Close(); err != nil {
		t.Fatalf("guest close: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for s.Phase() != tldk.PhaseCloseWait {
		if time.Now().After(deadline) {
			t.Fatalf("stream never reached CloseWait, stuck in %v", s.Phase())
		}
		time.Sleep(time.Millisecond)
	}

	if err := h.Ctx.Close(s, time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for s.Phase() != tldk.PhaseClosed {
		if err := h.Ctx.Process(0); err != nil {
			t.Fatalf("process: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatalf("stream never reached Closed, stuck in %v", s.Phase())
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := io.ReadAll(conn); err != nil {
		t.Fatalf("guest read after close: %v", err)
	}
}
