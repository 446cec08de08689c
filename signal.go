package tldk

import "sync/atomic"

// Sink is how a Stream notifies its owner of a condition becoming true:
// data arrived, the peer acknowledged sent data (or the connection became
// established), or an error terminated the connection. A Stream holds up
// to three sinks (receive, send, error), each independently optional.
//
// Configuring both an EventSink and a CallbackSink on the same condition is
// rejected at open time (ErrInvalidArgument): a caller picks one dispatch
// style per condition, matching the original control API's mutually exclusive
// "recv" event/callback union.
type Sink interface {
	// raise signals the condition. It must not block and must be safe to
	// call from within Context.Process.
	raise()

	// configured reports whether this sink was actually set up, so the
	// owning code can skip raising unconfigured sinks.
	configured() bool
}

// EventSink is a latching flag, set each time the condition fires, that a
// poller can check with Armed and clear with Reset, for callers that prefer polling many streams from one
// goroutine over a callback per event.
type EventSink struct {
	armed atomic.Bool
}

func (s *EventSink) raise()          { s.armed.Store(true) }
func (s *EventSink) configured() bool { return s != nil }

// Armed reports whether the condition has fired since the last Reset.
func (s *EventSink) Armed() bool {
	if s == nil {
		return false
	}
	return s.armed.Load()
}

// Reset clears the armed flag.
func (s *EventSink) Reset() {
	if s == nil {
		return
	}
	s.armed.Store(false)
}

// CallbackSink invokes Func(Data, stream identity) when raised. Func must
// not block and must not call back into the Context synchronously, as it
// runs from within the Context call that raised it (RxBulk, Process, or a
// control-surface call).
type CallbackSink struct {
	Func func(data any, four FourTuple)
	Data any
	four FourTuple
}

func (s *CallbackSink) raise() {
	if s == nil || s.Func == nil {
		return
	}
	s.Func(s.Data, s.four)
}

func (s *CallbackSink) configured() bool { return s != nil && s.Func != nil }

// sinkSet bundles the three independently configurable sinks a Stream
// reports through, plus the bookkeeping to reject configuring both an
// event and a callback sink for the same slot.
type sinkSet struct {
	recv Sink
	send Sink
	err  Sink
}

func (s *sinkSet) raiseRecv() {
	if s.recv != nil && s.recv.configured() {
		s.recv.raise()
	}
}

func (s *sinkSet) raiseSend() {
	if s.send != nil && s.send.configured() {
		s.send.raise()
	}
}

func (s *sinkSet) raiseErr() {
	if s.err != nil && s.err.configured() {
		s.err.raise()
	}
}

// validateSinkPair returns ErrInvalidArgument if both an event and a
// callback sink are supplied for the same condition.
func validateSinkPair(ev *EventSink, cb *CallbackSink) error {
	if ev != nil && cb != nil {
		return ErrInvalidArgument
	}
	return nil
}
