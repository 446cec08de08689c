package tldk

import "time"

// RTT bounds and defaults (RFC 6298 §2), loosened at the low end for the
// sub-millisecond round trips typical of a host-local or virtual link.
const (
	minRTO     = 50 * time.Millisecond
	maxRTO     = 60 * time.Second
	initialRTO = 1 * time.Second
)

// maxBackoffCount caps the number of consecutive exponential (here, 1.5x)
// backoffs applied to the RTO before giving up on growing it further; the
// stream itself enforces the overall retry limit independently.
const maxBackoffCount = 5

// rttEstimator implements the RFC 6298 SRTT/RTTVAR/RTO algorithm. A Stream
// owns exactly one, updated only through its Context's serialized entry
// points (RxBulk, Process, the control surface), so it carries no locking
// of its own.
type rttEstimator struct {
	srtt         time.Duration
	rttVar       time.Duration
	rto          time.Duration
	hasInitial   bool
	backoffCount int
}

func newRTTEstimator() *rttEstimator {
	return &rttEstimator{rto: initialRTO}
}

// update folds in one RTT sample per RFC 6298 §2.2/§2.3. Samples taken on
// retransmitted segments must not be passed here (Karn's algorithm); the
// caller enforces that by only sourcing samples from the send buffer's
// un-retransmitted segments.
func (r *rttEstimator) update(rtt time.Duration) {
	if !r.hasInitial {
		r.srtt = rtt
		r.rttVar = rtt / 2
		r.hasInitial = true
	} else {
		delta := r.srtt - rtt
		if delta < 0 {
			delta = -delta
		}
		r.rttVar = (3*r.rttVar + delta) / 4
		r.srtt = (7*r.srtt + rtt) / 8
	}
	r.rto = r.srtt + 4*r.rttVar
	r.clampRTO()
}

func (r *rttEstimator) clampRTO() {
	if r.rto < minRTO {
		r.rto = minRTO
	}
	if r.rto > maxRTO {
		r.rto = maxRTO
	}
}

// backoff grows the RTO by 1.5x, up to maxBackoffCount times, on a
// retransmission timeout (RFC 6298 §5.5 specifies doubling; this stack
// uses a gentler multiplier tuned for low-RTT links, capped at maxRTO).
func (r *rttEstimator) backoff() {
	if r.backoffCount < maxBackoffCount {
		r.rto = (r.rto * 3) / 2
		r.backoffCount++
	}
	r.clampRTO()
}

// resetBackoff clears the backoff counter after a non-retransmitted
// segment is newly acknowledged.
func (r *rttEstimator) resetBackoff() {
	r.backoffCount = 0
}

func (r *rttEstimator) getRTO() time.Duration {
	return r.rto
}
