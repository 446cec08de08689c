package tldk

import "sync"

// Buffer is a packet buffer handed across the Context/Device boundary. It
// carries headroom for prepending headers (transmit reserves the TCP header
// and options in it). It is not reference-counted: Clone returns an
// independent copy, and Release returns the buffer to its pool.
type Buffer interface {
	// Bytes returns the buffer's current data, excluding headroom.
	Bytes() []byte

	// Reserve grows the buffer by n bytes at its front, returning the new
	// leading slice for the caller to fill in (e.g. a header). It panics
	// if fewer than n bytes of headroom remain.
	Reserve(n int) []byte

	// Append grows the buffer by len(p) bytes at its end and copies p in.
	Append(p []byte)

	// Clone returns an independent Buffer with a private copy of Bytes(),
	// safe to retain past the point the original is released.
	Clone() Buffer

	// Release returns the buffer to its owning pool. Callers must not use
	// a Buffer after releasing it.
	Release()
}

// maxSegmentBufferCap bounds the pooled buffer size; payloads larger than
// this (there should be none, given MSS clamping) allocate directly instead
// of going through the pool.
const maxSegmentBufferCap = 256*1024 + tcpHeaderLen + 40

const defaultHeadroom = 14 + 40 + tcpHeaderLen + 40 // link + IPv6 + TCP + options

var poolBufferPool = sync.Pool{
	New: func() any {
		return &PoolBuffer{raw: make([]byte, 0, defaultHeadroom+2048)}
	},
}

// PoolBuffer is the default Buffer implementation, backed by a sync.Pool of
// slices to keep steady-state traffic allocation-free, the same strategy
// the packet pools in this stack's ancestor use for TCP/IPv4/Ethernet
// frames.
type PoolBuffer struct {
	raw    []byte // full backing slice, headroom + data
	offset int    // start of data within raw
}

// NewPoolBuffer returns a Buffer from the shared pool with at least
// defaultHeadroom bytes of free space before its data.
func NewPoolBuffer() *PoolBuffer {
	b := poolBufferPool.Get().(*PoolBuffer)
	if cap(b.raw) < defaultHeadroom {
		b.raw = make([]byte, defaultHeadroom, defaultHeadroom+2048)
	} else {
		b.raw = b.raw[:defaultHeadroom]
	}
	b.offset = defaultHeadroom
	return b
}

func (b *PoolBuffer) Bytes() []byte { return b.raw[b.offset:] }

func (b *PoolBuffer) Reserve(n int) []byte {
	if n > b.offset {
		panic("tldk: PoolBuffer.Reserve: insufficient headroom")
	}
	b.offset -= n
	return b.raw[b.offset : b.offset+n]
}

func (b *PoolBuffer) Append(p []byte) {
	b.raw = append(b.raw, p...)
}

func (b *PoolBuffer) Clone() Buffer {
	cp := &PoolBuffer{raw: make([]byte, len(b.raw))}
	copy(cp.raw, b.raw)
	cp.offset = b.offset
	return cp
}

func (b *PoolBuffer) Release() {
	if cap(b.raw) > maxSegmentBufferCap {
		return
	}
	b.raw = b.raw[:0]
	b.offset = 0
	poolBufferPool.Put(b)
}

// NewBufferWithPayload copies p into a fresh PoolBuffer, leaving room ahead
// of it for headers. Used by the send path to stage outbound data.
func NewBufferWithPayload(p []byte) *PoolBuffer {
	b := NewPoolBuffer()
	b.Append(p)
	return b
}
