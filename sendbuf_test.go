package tldk

import (
	"testing"
	"time"
)

func TestSendBufferAppendRespectsCapacity(t *testing.T) {
	sb := newSendBuffer(10)
	if !sb.append(pendingSegment{seqStart: 0, seqEnd: 5, payload: make([]byte, 5)}) {
		t.Fatalf("append within capacity should succeed")
	}
	if sb.append(pendingSegment{seqStart: 5, seqEnd: 11, payload: make([]byte, 6)}) {
		t.Fatalf("append exceeding capacity should fail")
	}
	if sb.inFlight() != 5 {
		t.Fatalf("inFlight = %d, want 5", sb.inFlight())
	}
}

func TestSendBufferAckDiscardsCoveredSegments(t *testing.T) {
	sb := newSendBuffer(1000)
	sb.append(pendingSegment{seqStart: 0, seqEnd: 10, payload: make([]byte, 10), sentAt: time.Now()})
	sb.append(pendingSegment{seqStart: 10, seqEnd: 20, payload: make([]byte, 10), sentAt: time.Now()})

	acked, _, hasRTT := sb.ack(10)
	if acked != 10 {
		t.Fatalf("bytesAcked = %d, want 10", acked)
	}
	if !hasRTT {
		t.Fatalf("expected an RTT sample from the un-retransmitted first segment")
	}
	if sb.len() != 1 {
		t.Fatalf("sendBuffer.len() = %d, want 1 remaining segment", sb.len())
	}
}

func TestSendBufferAckSkipsRetransmittedForRTT(t *testing.T) {
	sb := newSendBuffer(1000)
	sb.append(pendingSegment{seqStart: 0, seqEnd: 10, payload: make([]byte, 10), sentAt: time.Now(), retxCount: 1})

	_, _, hasRTT := sb.ack(10)
	if hasRTT {
		t.Fatalf("Karn's algorithm: a retransmitted segment must not yield an RTT sample")
	}
}

func TestSendBufferOldestCoalesced(t *testing.T) {
	sb := newSendBuffer(1000)
	sb.append(pendingSegment{seqStart: 0, seqEnd: 5, payload: make([]byte, 5)})
	sb.append(pendingSegment{seqStart: 5, seqEnd: 10, payload: make([]byte, 5)})
	sb.append(pendingSegment{seqStart: 20, seqEnd: 25, payload: make([]byte, 5)}) // gap, not contiguous

	merged, n, ok := sb.oldestCoalesced(100)
	if !ok {
		t.Fatalf("expected a coalesced segment")
	}
	if n != 2 {
		t.Fatalf("coalesced %d segments, want 2 (stopping at the gap)", n)
	}
	if len(merged.payload) != 10 {
		t.Fatalf("coalesced payload length = %d, want 10", len(merged.payload))
	}
}

func TestSendBufferOldestCoalescedRespectsMaxSize(t *testing.T) {
	sb := newSendBuffer(1000)
	sb.append(pendingSegment{seqStart: 0, seqEnd: 5, payload: make([]byte, 5)})
	sb.append(pendingSegment{seqStart: 5, seqEnd: 10, payload: make([]byte, 5)})

	_, n, ok := sb.oldestCoalesced(7)
	if !ok {
		t.Fatalf("expected at least the first segment")
	}
	if n != 1 {
		t.Fatalf("coalesced %d segments under a 7-byte cap, want 1", n)
	}
}

func TestSendBufferClear(t *testing.T) {
	sb := newSendBuffer(1000)
	sb.append(pendingSegment{seqStart: 0, seqEnd: 5, payload: make([]byte, 5)})
	sb.clear()
	if sb.len() != 0 || sb.inFlight() != 0 {
		t.Fatalf("clear() left len=%d inFlight=%d, want 0,0", sb.len(), sb.inFlight())
	}
}
