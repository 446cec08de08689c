package tldk

import (
	"github.com/Trinity-Cyber-Inc/tldk/internal/debug"
)

// traceSink records every segment this stack emits or receives into a
// binary structured log, for offline replay and debugging. It is a thin
// wrapper over internal/debug's source-tagged writer; a Context with no
// traceSink configured pays nothing for tracing.
type traceSink struct {
	egress  debug.Debug
	ingress debug.Debug
}

// newTraceSink builds a trace sink over internal/debug's process-wide
// writer, which must already be set up via
// debug.Open/debug.OpenFile/debug.OpenMemory.
func newTraceSink() *traceSink {
	return &traceSink{
		egress:  debug.WithSource("tldk.tx"),
		ingress: debug.WithSource("tldk.rx"),
	}
}

func (t *traceSink) recordEgress(four FourTuple, seq Value, flags Flags, payloadLen int) {
	if t == nil {
		return
	}
	t.egress.Writef("%s seq=%d flags=%s len=%d", four.String(), uint32(seq), flags, payloadLen)
}

func (t *traceSink) recordIngress(four FourTuple, seq Value, flags Flags, payloadLen int) {
	if t == nil {
		return
	}
	t.ingress.Writef("%s seq=%d flags=%s len=%d", four.String(), uint32(seq), flags, payloadLen)
}

func (f FourTuple) String() string {
	return f.Local.String() + "->" + f.Remote.String()
}
