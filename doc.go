// Package tldk implements a userspace TCP endpoint library intended to sit
// directly above a raw L2/L3 packet-I/O substrate: a NIC abstraction that
// delivers and accepts raw frames in bursts, in the style of a DPDK poll-mode
// driver. It provides connection establishment, reliable byte-stream
// transport, congestion-aware transmission, and orderly/abortive teardown,
// without relying on the host kernel's TCP stack.
//
// A Context owns a fixed-capacity pool of Streams and a set of Devices. A
// Stream is a TCP endpoint (four-tuple plus protocol state). A Device
// represents one outbound interface with its MTU, offload flags, and the
// local addresses a Stream may bind to; it takes a fully-assembled segment
// via Push and transmits it synchronously, rather than staging it on a ring
// for a later drain.
//
// Three back-end entry points drive everything: Context.RxBulk demultiplexes
// an inbound packet burst to the owning streams, Context.TxBulk is an
// always-empty pass-through kept for shape parity with RxBulk (every Device
// here pushes synchronously, so there is never anything queued to drain),
// and Context.Process advances timers and deferred work for up to N streams.
// All three, along with the control surface
// (Open, Listen, Connect, Send, Recv, Shutdown, Close, Abort, ...), are
// single-threaded per Context: callers must serialize access to a given
// Context themselves. Multiple Contexts may run in parallel on disjoint
// goroutines; streams never migrate between contexts.
//
// Routing, ARP/neighbor resolution, L2 header synthesis, checksum offload
// negotiation, the event dispatch primitive, and packet buffer pooling
// policy are all external collaborators — see Device, Sink, and Buffer.
package tldk
