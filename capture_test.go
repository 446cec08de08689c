package tldk

import (
	"bytes"
	"testing"
	"time"
)

func TestOpenPacketCaptureWritesFileHeader(t *testing.T) {
	a, _, _, _ := newLoopedContexts(t)
	var buf bytes.Buffer
	if err := a.OpenPacketCapture(&buf); err != nil {
		t.Fatalf("OpenPacketCapture: %v", err)
	}
	if buf.Len() != 24 {
		t.Fatalf("buf.Len() = %d, want 24-byte pcap global header", buf.Len())
	}
}

func TestRecordCaptureIsNoopWithoutAnOpenCapture(t *testing.T) {
	a, _, _, _ := newLoopedContexts(t)
	a.recordCapture([]byte("hello"), time.Now())
}

func TestRecordCaptureAppendsAPacketRecord(t *testing.T) {
	a, _, _, _ := newLoopedContexts(t)
	var buf bytes.Buffer
	if err := a.OpenPacketCapture(&buf); err != nil {
		t.Fatalf("OpenPacketCapture: %v", err)
	}
	before := buf.Len()
	a.recordCapture([]byte("hello"), time.Now())
	if buf.Len() <= before {
		t.Fatalf("recordCapture should append a packet record once a capture is open")
	}
}

func TestCloseCaptureStopsRecording(t *testing.T) {
	a, _, _, _ := newLoopedContexts(t)
	var buf bytes.Buffer
	if err := a.OpenPacketCapture(&buf); err != nil {
		t.Fatalf("OpenPacketCapture: %v", err)
	}
	a.CloseCapture()
	before := buf.Len()
	a.recordCapture([]byte("hello"), time.Now())
	if buf.Len() != before {
		t.Fatalf("recordCapture should be a no-op once the capture is closed")
	}
}
