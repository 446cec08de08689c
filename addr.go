package tldk

import (
	"net"
	"net/netip"
	"strconv"
)

// Addr is a TCP socket address: an IPv4 or IPv6 address plus a port. IP is a
// netip.Addr rather than a net.IP so that Addr, and FourTuple built from it,
// stay comparable and usable directly as map keys — the same reason the
// stream table this module descends from keys its connections on a fixed-size
// address array rather than a slice.
type Addr struct {
	IP   netip.Addr
	Port uint16
}

// AddrFromIP builds an Addr from a standard library net.IP, normalizing IPv4
// addresses (including v4-in-v6) to their 4-byte form.
func AddrFromIP(ip net.IP, port uint16) Addr {
	a, _ := netip.AddrFromSlice(ip)
	return Addr{IP: a.Unmap(), Port: port}
}

func (a Addr) String() string {
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
}

func (a Addr) isIPv6() bool {
	return a.IP.Is6() && !a.IP.Is4In6()
}

// FourTuple is the (local, remote) address pair that identifies one TCP
// connection, as used by the stream table.
type FourTuple struct {
	Local  Addr
	Remote Addr
}

// listenKey is the (local address, local port) pair a passive-open stream
// is registered under, with a wildcard-address fallback on lookup.
type listenKey struct {
	ip   netip.Addr
	port uint16
}

func newListenKey(a Addr) listenKey {
	return listenKey{ip: a.IP, port: a.Port}
}

func wildcardListenKey(a Addr, port uint16) listenKey {
	if a.isIPv6() {
		return listenKey{ip: netip.IPv6Unspecified(), port: port}
	}
	return listenKey{ip: netip.IPv4Unspecified(), port: port}
}
