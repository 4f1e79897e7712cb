// Package protoio implements the sender and receiver I/O contexts that
// drive internal/fsmsend and internal/fsmrecv: event acquisition over an
// internal/unreliable.Channel, file reading/writing, timer bookkeeping,
// and peer-address latching/filtering.
//
// Grounded on original_source/src/sock.rs (SockHandler's send_file/
// recv_file loops) and original_source/src/fsm_send, fsm_recv contexts;
// adapted to the narrow ProtocolIoContext interfaces the FSM packages
// expect rather than the Rust source's single monolithic handler.
package protoio

import (
	"bufio"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"abpudp/internal/fsmsend"
	"abpudp/internal/pck"
	"abpudp/internal/unreliable"
	"abpudp/internal/xerr"
)

// SendContext implements fsmsend.ProtocolIoContext, reading a local file
// and pushing it to a single fixed peer over ch.
type SendContext struct {
	ch       *unreliable.Channel
	peer     *net.UDPAddr
	reader   *bufio.Reader
	file     *os.File
	basename string

	timeout  time.Duration
	origin   time.Time
	hasTimer bool

	dataCounter int
}

// NewSendContext opens path for reading and builds a context that will
// transmit it to peer over ch, using timeout as the protocol's
// retransmit timer.
func NewSendContext(ch *unreliable.Channel, peer *net.UDPAddr, path string, timeout time.Duration) (*SendContext, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerr.IO("open source file", err)
	}
	return &SendContext{
		ch:       ch,
		peer:     peer,
		reader:   bufio.NewReader(f),
		file:     f,
		basename: filepath.Base(path),
		timeout:  timeout,
	}, nil
}

// Close releases the underlying file handle.
func (c *SendContext) Close() error {
	if c.file == nil {
		return nil
	}
	return xerr.IO("close source file", c.file.Close())
}

// DataAvailable peeks the buffered reader without consuming bytes
// (a peek-and-fill read ahead of the actual DATA frame).
func (c *SendContext) DataAvailable() (bool, error) {
	_, err := c.reader.Peek(1)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, xerr.IO("peek source file", err)
	}
	return true, nil
}

// MakePacket builds the packet appropriate to kind: SYN carries the
// source file's basename, DATA consumes up to fsmsend.PayloadMax bytes
// from the reader, FIN carries no payload.
func (c *SendContext) MakePacket(n bool, kind pck.Kind) (*pck.Packet, error) {
	switch kind {
	case pck.KindSYN:
		return pck.Build(n, kind, []byte(c.basename))
	case pck.KindData:
		buf := make([]byte, fsmsend.PayloadMax)
		read, err := c.reader.Read(buf)
		if err != nil && err != io.EOF {
			return nil, xerr.IO("read source file", err)
		}
		return pck.Build(n, kind, buf[:read])
	case pck.KindFIN:
		return pck.Build(n, kind, nil)
	default:
		return nil, xerr.Input("kind", "sender does not build this frame kind")
	}
}

// StartTimer captures the retransmit timer's origin.
func (c *SendContext) StartTimer() error {
	c.origin = time.Now()
	c.hasTimer = true
	return nil
}

// StopTimer clears the retransmit timer.
func (c *SendContext) StopTimer() error {
	c.hasTimer = false
	return nil
}

// Send transmits p to the fixed peer over the unreliable channel.
func (c *SendContext) Send(p *pck.Packet) error {
	return c.ch.Send(p, c.peer)
}

// WaitForAckOrTimeout computes the remaining budget until the timer
// expires and performs one (or more, on a stray peer) receive bounded by
// it.
func (c *SendContext) WaitForAckOrTimeout() (fsmsend.Event, error) {
	for {
		remaining := c.timeout - time.Since(c.origin)
		if remaining <= 0 {
			return fsmsend.EventTimeout(), nil
		}
		if err := c.ch.SetReadTimeout(remaining); err != nil {
			return fsmsend.Event{}, err
		}
		res, err := c.ch.Recv()
		if err != nil {
			return fsmsend.Event{}, err
		}
		if res.Timeout {
			return fsmsend.EventTimeout(), nil
		}
		if !addrEqual(res.Peer, c.peer) {
			continue
		}
		return fsmsend.EventRecvPck(res.Packet), nil
	}
}

func (c *SendContext) DataCounter() int          { return c.dataCounter }
func (c *SendContext) IncreaseDataCounter(n int) { c.dataCounter += n }
