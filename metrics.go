package tldk

import "github.com/prometheus/client_golang/prometheus"

// StreamInfoCollector is a prometheus.Collector that reports live
// per-stream TCP state (RTT, congestion window, in-flight bytes) as
// gauges, one sample per scrape per tracked stream.
type StreamInfoCollector struct {
	ctx    *Context
	labels []string

	rtt       *prometheus.Desc
	rto       *prometheus.Desc
	cwnd      *prometheus.Desc
	ssthresh  *prometheus.Desc
	inFlight  *prometheus.Desc
	ooo       *prometheus.Desc
	retxCount *prometheus.Desc
}

// NewStreamInfoCollector builds a collector over ctx, labeling every
// emitted metric with the stream's local address, remote address, and
// state, plus the fixed constLabels.
func NewStreamInfoCollector(ctx *Context, constLabels prometheus.Labels) *StreamInfoCollector {
	labels := []string{"local_addr", "remote_addr", "state"}
	mk := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("tldk_stream_"+name, help, labels, constLabels)
	}
	return &StreamInfoCollector{
		ctx:       ctx,
		labels:    labels,
		rtt:       mk("rtt_seconds", "Smoothed round-trip time estimate."),
		rto:       mk("rto_seconds", "Current retransmission timeout."),
		cwnd:      mk("cwnd_bytes", "Congestion window."),
		ssthresh:  mk("ssthresh_bytes", "Slow-start threshold."),
		inFlight:  mk("in_flight_bytes", "Bytes sent but not yet acknowledged."),
		ooo:       mk("ooo_segments", "Out-of-order segments held pending reassembly."),
		retxCount: mk("retransmit_count", "Consecutive retransmission timer fires since the last new ACK."),
	}
}

func (c *StreamInfoCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.rtt
	descs <- c.rto
	descs <- c.cwnd
	descs <- c.ssthresh
	descs <- c.inFlight
	descs <- c.ooo
	descs <- c.retxCount
}

func (c *StreamInfoCollector) Collect(metrics chan<- prometheus.Metric) {
	for _, s := range c.ctx.streams {
		info := snapshotInfo(s)
		labelValues := []string{info.LocalAddr, info.RemoteAddr, info.State}
		metrics <- prometheus.MustNewConstMetric(c.rtt, prometheus.GaugeValue, info.RTT.Seconds(), labelValues...)
		metrics <- prometheus.MustNewConstMetric(c.rto, prometheus.GaugeValue, info.RTO.Seconds(), labelValues...)
		metrics <- prometheus.MustNewConstMetric(c.cwnd, prometheus.GaugeValue, float64(info.CongestionWindow), labelValues...)
		metrics <- prometheus.MustNewConstMetric(c.ssthresh, prometheus.GaugeValue, float64(info.SlowStartThreshold), labelValues...)
		metrics <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(info.InFlight), labelValues...)
		metrics <- prometheus.MustNewConstMetric(c.ooo, prometheus.GaugeValue, float64(info.OOOSegments), labelValues...)
		metrics <- prometheus.MustNewConstMetric(c.retxCount, prometheus.GaugeValue, float64(info.RetxCount), labelValues...)
	}
}

var _ prometheus.Collector = (*StreamInfoCollector)(nil)
