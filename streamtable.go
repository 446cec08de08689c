package tldk

// streamTable maps four-tuples to fully specified streams and
// (local address, local port) to listening streams, with a wildcard
// fallback on lookup miss. It is mutated only by the control surface and by
// state transitions (SYN_RCVD shadow allocation, promotion to
// ESTABLISHED, CLOSED destruction); rx demux only reads it.
type streamTable struct {
	full   map[FourTuple]*Stream
	listen map[listenKey]*Stream
}

func newStreamTable() *streamTable {
	return &streamTable{
		full:   make(map[FourTuple]*Stream),
		listen: make(map[listenKey]*Stream),
	}
}

// insert registers a fully specified stream under its four-tuple. Private
// streams (FlagPrivate) are never inserted; the caller is expected to check
// that before calling.
func (t *streamTable) insert(s *Stream) {
	t.full[s.four] = s
}

func (t *streamTable) remove(four FourTuple) {
	delete(t.full, four)
}

// lookup finds the stream for an inbound segment's four-tuple, falling back
// to the listen map keyed by local address and port, then to the
// wildcard-address listen entry.
func (t *streamTable) lookup(four FourTuple) (*Stream, bool) {
	if s, ok := t.full[four]; ok {
		return s, true
	}
	if s, ok := t.listen[newListenKey(four.Local)]; ok {
		return s, true
	}
	if s, ok := t.listen[wildcardListenKey(four.Local, four.Local.Port)]; ok {
		return s, true
	}
	return nil, false
}

func (t *streamTable) insertListen(s *Stream) {
	t.listen[newListenKey(s.four.Local)] = s
}

func (t *streamTable) removeListen(s *Stream) {
	delete(t.listen, newListenKey(s.four.Local))
}
