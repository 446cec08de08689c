package tldk

import (
	"log/slog"
	"time"
)

// Context owns a fixed-capacity pool of streams, the stream table, the
// timer wheel, and the device array they transmit through. The three
// back-end entry points — RxBulk, TxBulk, Process — and every control
// surface call must be invoked by a single caller goroutine, or the caller
// must externally serialize them; nothing in Context takes a lock.
type Context struct {
	cfg ContextConfig
	log *slog.Logger

	streams    map[FourTuple]*Stream
	poolUsed   int
	streamPool int

	table  *streamTable
	timers *timerWheel

	devices []*pacedDevice

	trace   *traceSink
	capture *packetCapture
}

// NewContext builds a Context from cfg and the devices it will drive
// traffic through. now seeds the timer wheel's clock; callers typically
// pass time.Now().
func NewContext(cfg ContextConfig, devices []Device, now time.Time) (*Context, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	paced := make([]*pacedDevice, len(devices))
	for i, d := range devices {
		paced[i] = &pacedDevice{Device: d, pacer: newEgressPacer(cfg.EgressBytesPerSec, cfg.EgressBurstBytes)}
	}
	ctx := &Context{
		cfg:        cfg,
		log:        slog.Default().With("component", "tldk.context"),
		streams:    make(map[FourTuple]*Stream, cfg.StreamPoolSize),
		streamPool: cfg.StreamPoolSize,
		table:      newStreamTable(),
		timers:     newTimerWheel(cfg.TickInterval, now),
		devices:    paced,
	}
	return ctx, nil
}

// SetLogger replaces the Context's stored structured logger; a nil logger
// is ignored. The default, from NewContext, is slog.Default() tagged with
// component=tldk.context. No code in this package writes records through it.
func (c *Context) SetLogger(l *slog.Logger) {
	if l != nil {
		c.log = l
	}
}

// allocStream reserves one stream from the pool, returning ErrPoolExhausted
// once StreamPoolSize entries are live.
func (c *Context) allocStream(four FourTuple, flags StreamFlags) (*Stream, error) {
	if c.poolUsed >= c.streamPool {
		return nil, ErrPoolExhausted
	}
	s := newStream(c, four, flags)
	c.poolUsed++
	s.pooled = true
	c.streams[four] = s
	return s, nil
}

// newShadowStream builds a half-open SYN_RCVD backlog entry without
// touching the stream pool: it is cheap and bounded only by the listener's
// own backlogLimit, not StreamPoolSize. It becomes a real, pool-accounted
// stream only if and when reserveSlot succeeds at promotion.
func (c *Context) newShadowStream(four FourTuple, flags StreamFlags) *Stream {
	return newStream(c, four, flags)
}

// reserveSlot accounts an already-constructed stream (a promoted backlog
// shadow) against the pool, returning ErrPoolExhausted if the pool is full.
func (c *Context) reserveSlot(s *Stream) error {
	if c.poolUsed >= c.streamPool {
		return ErrPoolExhausted
	}
	c.poolUsed++
	s.pooled = true
	c.streams[s.four] = s
	return nil
}

// freeStream releases a stream's slot back to the pool and disarms its
// timers. It must only be called once a stream reaches CLOSED with no
// remaining device-ring references, or on TIME_WAIT expiry.
func (c *Context) freeStream(s *Stream) {
	s.disarmAll()
	if !s.isPrivate() {
		c.table.remove(s.four)
		c.table.removeListen(s)
	}
	if s.pooled {
		delete(c.streams, s.four)
		if c.poolUsed > 0 {
			c.poolUsed--
		}
	}
}

// Process advances the timer wheel and drains up to n streams' worth of
// deferred work (timer firings, retry-exhaustion teardown); n == 0 places
// no limit. Expired timers of streams beyond the limit stay armed and fire
// on a later call. It never blocks.
func (c *Context) Process(n int) error {
	if n < 0 {
		return ErrInvalidArgument
	}
	now := time.Now()
	handled := make(map[FourTuple]bool)
	c.timers.advance(now, func(four FourTuple, kind timerKind) {
		if n != 0 && !handled[four] && len(handled) >= n {
			c.timers.arm(four, kind, now)
			return
		}
		s, ok := c.table.lookup(four)
		if !ok {
			s, ok = c.streams[four]
			if !ok {
				return
			}
		}
		handled[four] = true
		c.fireTimer(s, kind, now)
	})
	return nil
}

// fireTimer dispatches one expired timer to the transition logic that owns
// its semantics.
func (c *Context) fireTimer(s *Stream, kind timerKind, now time.Time) {
	switch kind {
	case timerRetransmit:
		c.onRetransmitTimeout(s, now)
	case timerPersist:
		c.onPersistTimeout(s, now)
	case timerDelayedACK:
		c.onDelayedACKTimeout(s, now)
	case timerKeepalive:
		c.onKeepaliveTimeout(s, now)
	case timerTimeWait:
		c.onTimeWaitExpiry(s)
	}
}

// EnableTrace wires a binary segment tracer (see trace.go) into the
// context so every emitted and received segment is recorded for later
// offline inspection. The caller must have already pointed the underlying
// log at a destination via debug.Open/OpenFile/OpenMemory.
func (c *Context) EnableTrace() {
	c.trace = newTraceSink()
}

// DisableTrace stops recording segment trace entries.
func (c *Context) DisableTrace() {
	c.trace = nil
}
