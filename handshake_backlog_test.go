package tldk

import (
	"net/netip"
	"testing"
	"time"
)

func TestBacklogShadowsDoNotDrawFromTheStreamPool(t *testing.T) {
	cfg := DefaultContextConfig()
	cfg.StreamPoolSize = 1
	cfg.ListenBacklog = 4
	c, err := NewContext(cfg, nil, time.Now())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	local := Addr{IP: netip.AddrFrom4([4]byte{10, 0, 0, 1}), Port: 7000}
	listener, err := c.Open(OpenParams{Local: local})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Listen(listener); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if c.poolUsed != 1 {
		t.Fatalf("poolUsed = %d, want 1 for the listener itself", c.poolUsed)
	}

	now := time.Now()
	for i := uint16(0); i < 3; i++ {
		remote := Addr{IP: netip.AddrFrom4([4]byte{10, 0, 0, 2}), Port: 20000 + i}
		seg := &segment{
			four:   FourTuple{Local: local, Remote: remote},
			seq:    1,
			flags:  FlagSYN,
			window: 4096,
		}
		c.handlePassiveSyn(listener, seg, now)
	}

	if c.poolUsed != 1 {
		t.Fatalf("poolUsed = %d after 3 backlog SYNs, want 1 (still just the listener) since the pool is already exhausted", c.poolUsed)
	}
	if len(listener.listen.backlog) != 3 {
		t.Fatalf("backlog len = %d, want 3", len(listener.listen.backlog))
	}
}

func TestPromoteFromBacklogDropsTheConnectionWhenThePoolIsFull(t *testing.T) {
	cfg := DefaultContextConfig()
	cfg.StreamPoolSize = 1
	cfg.ListenBacklog = 4
	c, err := NewContext(cfg, nil, time.Now())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	local := Addr{IP: netip.AddrFrom4([4]byte{10, 0, 0, 1}), Port: 7000}
	listener, err := c.Open(OpenParams{Local: local})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Listen(listener); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	now := time.Now()
	remote := Addr{IP: netip.AddrFrom4([4]byte{10, 0, 0, 2}), Port: 20000}
	four := FourTuple{Local: local, Remote: remote}
	c.handlePassiveSyn(listener, &segment{four: four, seq: 1, flags: FlagSYN, window: 4096}, now)

	shadow, ok := c.table.lookup(four)
	if !ok {
		t.Fatalf("expected the backlog shadow to be reachable via the stream table")
	}

	c.promoteFromBacklog(shadow, now)

	if c.poolUsed != 1 {
		t.Fatalf("poolUsed = %d, want 1 (promotion should have been refused, pool stays at just the listener)", c.poolUsed)
	}
	if shadow.Phase() == PhaseEstablished {
		t.Fatalf("a connection should not be established when the pool has no free slot")
	}
	if _, ok := c.table.lookup(four); ok {
		t.Fatalf("the dropped shadow should no longer be reachable via the stream table")
	}
}

func TestPromoteFromBacklogSucceedsWhenThePoolHasRoom(t *testing.T) {
	cfg := DefaultContextConfig()
	cfg.StreamPoolSize = 2
	cfg.ListenBacklog = 4
	c, err := NewContext(cfg, nil, time.Now())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	local := Addr{IP: netip.AddrFrom4([4]byte{10, 0, 0, 1}), Port: 7000}
	listener, err := c.Open(OpenParams{Local: local})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Listen(listener); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	now := time.Now()
	remote := Addr{IP: netip.AddrFrom4([4]byte{10, 0, 0, 2}), Port: 20000}
	four := FourTuple{Local: local, Remote: remote}
	c.handlePassiveSyn(listener, &segment{four: four, seq: 1, flags: FlagSYN, window: 4096}, now)
	if c.poolUsed != 1 {
		t.Fatalf("poolUsed = %d after one backlog SYN, want 1 (still just the listener)", c.poolUsed)
	}

	shadow, ok := c.table.lookup(four)
	if !ok {
		t.Fatalf("expected the backlog shadow to be reachable via the stream table")
	}
	c.promoteFromBacklog(shadow, now)

	if c.poolUsed != 2 {
		t.Fatalf("poolUsed = %d after promotion, want 2", c.poolUsed)
	}
	if shadow.Phase() != PhaseEstablished {
		t.Fatalf("phase = %v, want Established", shadow.Phase())
	}
	if len(listener.listen.ready) != 1 {
		t.Fatalf("listener ready queue len = %d, want 1", len(listener.listen.ready))
	}
}
