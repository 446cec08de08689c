package tldk

import (
	"testing"

	"github.com/Trinity-Cyber-Inc/tldk/internal/debug"
)

func TestTraceSinkNilReceiverIsInert(t *testing.T) {
	var tr *traceSink
	tr.recordEgress(testFourTuple(1), 0, FlagSYN, 0)
	tr.recordIngress(testFourTuple(1), 0, FlagACK, 0)
}

func TestFourTupleStringJoinsLocalAndRemote(t *testing.T) {
	four := testFourTuple(1)
	got := four.String()
	want := four.Local.String() + "->" + four.Remote.String()
	if got != want {
		t.Fatalf("FourTuple.String() = %q, want %q", got, want)
	}
}

func TestNewTraceSinkRecordsThroughTheGlobalDebugWriter(t *testing.T) {
	mem, err := debug.OpenMemory()
	if err != nil {
		t.Fatalf("debug.OpenMemory: %v", err)
	}
	defer debug.Close()

	tr := newTraceSink()
	tr.recordEgress(testFourTuple(1), 1000, FlagSYN, 0)
	tr.recordIngress(testFourTuple(1), 2000, FlagSYN|FlagACK, 0)

	var compiled []byte
	compiled, err = compileMemoryWriter(mem)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(compiled) == 0 {
		t.Fatalf("expected the trace sink to have written at least one entry")
	}
}

func compileMemoryWriter(w debug.WriterTo) ([]byte, error) {
	buf := make(memWriterAt, 0)
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

type memWriterAt []byte

func (b *memWriterAt) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(*b)) {
		grown := make([]byte, end)
		copy(grown, *b)
		*b = grown
	}
	copy((*b)[off:end], p)
	return len(p), nil
}
