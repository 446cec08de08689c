package tldk

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestStreamInfoCollectorDescribeEmitsAllDescs(t *testing.T) {
	a, _, _, _ := newLoopedContexts(t)
	coll := NewStreamInfoCollector(a, nil)

	descs := make(chan *prometheus.Desc, 16)
	coll.Describe(descs)
	close(descs)

	n := 0
	for range descs {
		n++
	}
	if n != 7 {
		t.Fatalf("Describe emitted %d descriptors, want 7", n)
	}
}

func TestStreamInfoCollectorCollectsOneSamplePerStream(t *testing.T) {
	a, b, _, bIP := newLoopedContexts(t)

	listener, _ := b.Open(OpenParams{Local: AddrFromIP(bIP, 83)})
	_ = b.Listen(listener)
	client, _ := a.Open(OpenParams{})
	if err := a.Connect(client, AddrFromIP(bIP, 83), time.Now()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	coll := NewStreamInfoCollector(a, nil)
	metrics := make(chan prometheus.Metric, 64)
	coll.Collect(metrics)
	close(metrics)

	n := 0
	for m := range metrics {
		n++
		var pb dto.Metric
		if err := m.Write(&pb); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	// one established stream on context a, seven gauges per stream
	if n != 7 {
		t.Fatalf("Collect emitted %d metrics, want 7 (one stream x seven gauges)", n)
	}
}
