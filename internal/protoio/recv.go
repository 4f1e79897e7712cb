package protoio

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"time"

	"abpudp/internal/fsmrecv"
	"abpudp/internal/pck"
	"abpudp/internal/unreliable"
	"abpudp/internal/xerr"
)

// RecvContext implements fsmrecv.ProtocolIoContext: it accepts a single
// session at a time over ch, writing the transferred file under
// targetDir and filtering out datagrams from any address other than the
// latched sender once a session is open.
type RecvContext struct {
	ch        *unreliable.Channel
	targetDir string
	timeout   time.Duration

	origin   time.Time
	hasTimer bool

	peer       *net.UDPAddr
	hasLatched bool

	file   *os.File
	writer *bufio.Writer

	dataCounter int
}

// NewRecvContext binds a context that writes received files under
// targetDir (created if missing by the caller), using timeout as the
// per-session connection timer.
func NewRecvContext(ch *unreliable.Channel, targetDir string, timeout time.Duration) *RecvContext {
	return &RecvContext{ch: ch, targetDir: targetDir, timeout: timeout}
}

// WaitForPacketOrTimeout blocks for the next in-session packet, bounded
// by the connection timer once one is running, or indefinitely while
// WaitForConnection has no session open. Datagrams from a peer other
// than the latched sender are silently dropped rather than surfaced as
// events before they ever reach the FSM.
func (c *RecvContext) WaitForPacketOrTimeout() (fsmrecv.Event, error) {
	for {
		if c.hasTimer {
			remaining := c.timeout - time.Since(c.origin)
			if remaining <= 0 {
				return fsmrecv.EventConnectionTimeout(), nil
			}
			if err := c.ch.SetReadTimeout(remaining); err != nil {
				return fsmrecv.Event{}, err
			}
		} else if err := c.ch.SetReadTimeout(0); err != nil {
			return fsmrecv.Event{}, err
		}

		res, err := c.ch.Recv()
		if err != nil {
			return fsmrecv.Event{}, err
		}
		if res.Timeout {
			if c.hasTimer {
				return fsmrecv.EventConnectionTimeout(), nil
			}
			continue
		}
		if c.hasLatched && !addrEqual(res.Peer, c.peer) {
			continue
		}
		return fsmrecv.EventRecvPck(res.Packet, res.Peer), nil
	}
}

// MakePacket builds the ACK/FINACK frames the receiver sends; both carry
// no payload.
func (c *RecvContext) MakePacket(n bool, kind pck.Kind) (*pck.Packet, error) {
	return pck.Build(n, kind, nil)
}

// Send transmits p to the latched peer.
func (c *RecvContext) Send(p *pck.Packet) error {
	return c.ch.Send(p, c.peer)
}

func (c *RecvContext) StartTimer() error {
	c.origin = time.Now()
	c.hasTimer = true
	return nil
}

func (c *RecvContext) RestartTimer() error { return c.StartTimer() }

func (c *RecvContext) StopTimer() error {
	c.hasTimer = false
	return nil
}

// LatchPeer records src as the sole sender for the session and resets
// the data counter.
func (c *RecvContext) LatchPeer(src fsmrecv.PeerAddr) {
	addr, _ := src.(*net.UDPAddr)
	c.peer = addr
	c.hasLatched = true
	c.dataCounter = 0
}

// OpenFile validates payload as a basename and creates the destination
// file inside targetDir.
func (c *RecvContext) OpenFile(payload []byte) error {
	name, err := safeBasename(payload)
	if err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(c.targetDir, name))
	if err != nil {
		return xerr.IO("create destination file", err)
	}
	c.file = f
	c.writer = bufio.NewWriter(f)
	return nil
}

// AppendFile writes payload to the currently open file, if any.
func (c *RecvContext) AppendFile(payload []byte) error {
	if c.writer == nil {
		return nil
	}
	if _, err := c.writer.Write(payload); err != nil {
		return xerr.IO("append destination file", err)
	}
	return nil
}

func (c *RecvContext) IncreaseDataCounter(n int) { c.dataCounter += n }

// DataCounter reports bytes written so far in the current/last session.
func (c *RecvContext) DataCounter() int { return c.dataCounter }

// CloseFile flushes and drops the writer, then resets session state so
// the context is ready for the next connection (teardown edges
// 11/12).
func (c *RecvContext) CloseFile() error {
	c.hasLatched = false
	c.peer = nil
	if c.writer == nil {
		return nil
	}
	flushErr := c.writer.Flush()
	closeErr := c.file.Close()
	c.writer = nil
	c.file = nil
	if flushErr != nil {
		return xerr.IO("flush destination file", flushErr)
	}
	if closeErr != nil {
		return xerr.IO("close destination file", closeErr)
	}
	return nil
}
