package protoio

import "net"

// addrEqual compares two UDP addresses by IP and port, ignoring the
// zone, since loopback and test binds rarely set one.
func addrEqual(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
