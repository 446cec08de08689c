package tldk

import (
	"fmt"
	"io"
	"time"

	"github.com/Trinity-Cyber-Inc/tldk/internal/pcap"
)

// packetCapture records every IP datagram this context transmits or
// receives to a libpcap-formatted stream, for inspection with standard
// tooling (tcpdump/Wireshark opening a raw-IP capture).
type packetCapture struct {
	w *pcap.Writer
}

// OpenPacketCapture begins writing a raw-IP pcap stream to out. It must be
// called before any traffic the caller wants captured is processed.
func (c *Context) OpenPacketCapture(out io.Writer) error {
	w := pcap.NewWriter(out)
	if err := w.WriteFileHeader(65535, pcap.LinkTypeRaw); err != nil {
		return fmt.Errorf("open packet capture: %w", err)
	}
	c.capture = &packetCapture{w: w}
	return nil
}

// CloseCapture stops recording. Any data already written to the underlying
// io.Writer is left intact; the caller owns closing that writer itself.
func (c *Context) CloseCapture() {
	c.capture = nil
}

func (c *Context) recordCapture(data []byte, now time.Time) {
	if c.capture == nil {
		return
	}
	_ = c.capture.w.WritePacket(pcap.CaptureInfo{
		Timestamp:     now,
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
}
