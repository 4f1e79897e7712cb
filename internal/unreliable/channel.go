// Package unreliable binds a UDP socket and applies tunable packet
// loss, single-bit corruption, and duplication to every outgoing
// datagram. It is the only place in this module that injects faults;
// the FSMs see a clean "may reorder/drop/duplicate" substrate.
//
// Grounded on original_source/src/sock.rs's udt_send/rdt_recv. The RNG
// is parameterized behind an injectable Source so fault injection is
// deterministic and testable, instead of reaching for the
// process-global math/rand as the Rust source does.
package unreliable

import (
	"math/rand/v2"
	"net"
	"time"

	"abpudp/internal/pck"
	"abpudp/internal/xerr"
)

// Source supplies the randomness behind fault injection. The default
// Source wraps math/rand/v2; tests substitute a scripted Source to
// make loss/error/duplication deterministic.
type Source interface {
	// Bool reports a Bernoulli(p) trial.
	Bool(p float64) bool
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

type defaultSource struct{}

func (defaultSource) Bool(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rand.Float64() < p
}

func (defaultSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource is the process-wide math/rand/v2-backed Source.
var DefaultSource Source = defaultSource{}

// FaultParams configures the three independent Bernoulli trials applied
// to every outgoing datagram.
type FaultParams struct {
	LossP  float64
	ErrorP float64
	DupP   float64
}

// Channel is a thin, fault-injecting wrapper around a bound *net.UDPConn.
type Channel struct {
	conn   *net.UDPConn
	rng    Source
	faults FaultParams
}

// Bind opens a UDP socket at addr.
func Bind(addr string) (*Channel, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, xerr.IO("resolve local address", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, xerr.IO("bind", err)
	}
	return &Channel{conn: conn, rng: DefaultSource}, nil
}

// SetSource overrides the fault-injection RNG, e.g. for deterministic tests.
func (c *Channel) SetSource(s Source) { c.rng = s }

// SetFaultParams configures loss/error/duplication probabilities.
func (c *Channel) SetFaultParams(p FaultParams) { c.faults = p }

// LocalAddr reports the bound local address.
func (c *Channel) LocalAddr() *net.UDPAddr { return c.conn.LocalAddr().(*net.UDPAddr) }

// Close releases the underlying socket.
func (c *Channel) Close() error { return c.conn.Close() }

// Send applies loss, then single-bit error, then duplication (each an
// independent Bernoulli(p) trial, in that order) and delivers the
// resulting datagram(s) to peer. A lost datagram is dropped without
// being written, and Send still returns nil.
func (c *Channel) Send(p *pck.Packet, peer *net.UDPAddr) error {
	if c.rng.Bool(c.faults.LossP) {
		return nil
	}

	buf := p.Encode()
	if c.rng.Bool(c.faults.ErrorP) {
		bitPos := c.rng.IntN(8)
		bytePos := c.rng.IntN(len(buf))
		buf[bytePos] ^= 1 << uint(bitPos)
	}

	if c.rng.Bool(c.faults.DupP) {
		if _, err := c.conn.WriteToUDP(buf, peer); err != nil {
			return xerr.IO("duplicate send", err)
		}
	}

	if _, err := c.conn.WriteToUDP(buf, peer); err != nil {
		return xerr.IO("send", err)
	}
	return nil
}

// RecvResult is the outcome of one Recv call.
type RecvResult struct {
	Peer    *net.UDPAddr
	Packet  *pck.Packet // nil when bytes arrived but failed to decode
	Timeout bool
}

// Recv waits for one datagram up to the configured read timeout (see
// SetReadTimeout). A decode failure is reported as RecvResult{Packet:
// nil} rather than an error: the session must continue despite the
// drop — bytes arrived but decode failed.
func (c *Channel) Recv() (RecvResult, error) {
	buf := make([]byte, pck.MaxTotalSize)
	n, peer, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return RecvResult{Timeout: true}, nil
		}
		return RecvResult{}, xerr.IO("recv", err)
	}

	decoded, decodeErr := pck.Decode(buf[:n])
	if decodeErr != nil {
		return RecvResult{Peer: peer}, nil
	}
	return RecvResult{Peer: peer, Packet: decoded}, nil
}

// SetReadTimeout configures the next Recv's maximum wait. A zero
// duration blocks indefinitely.
func (c *Channel) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		return xerr.IO("set read timeout", c.conn.SetReadDeadline(time.Time{}))
	}
	return xerr.IO("set read timeout", c.conn.SetReadDeadline(time.Now().Add(d)))
}
