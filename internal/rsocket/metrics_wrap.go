package rsocket

import (
	"abpudp/internal/fsmrecv"
	"abpudp/internal/logger"
	"abpudp/internal/metrics"
	"abpudp/internal/pck"
	"abpudp/internal/protoio"
)

// countingSendCtx decorates *protoio.SendContext with metrics
// collection, so fsmsend.Run can stay ignorant of metrics entirely.
type countingSendCtx struct {
	*protoio.SendContext
	m *metrics.Transfer
}

func (c *countingSendCtx) Send(p *pck.Packet) error {
	c.m.AddFrameSent()
	c.m.AddBytesSent(uint64(len(p.Encode())))
	return c.SendContext.Send(p)
}

func (c *countingSendCtx) NoteRetransmit()    { c.m.AddRetransmission() }
func (c *countingSendCtx) NoteCorruptFrame()  { c.m.AddCorruptFrame() }
func (c *countingSendCtx) NoteFrameReceived() { c.m.AddFrameReceived() }

// countingRecvCtx decorates *protoio.RecvContext the same way, plus a
// logger for a DEBUG line per frame sent (ACK/FINACK) and a WARN line
// per connection timeout.
type countingRecvCtx struct {
	*protoio.RecvContext
	m   *metrics.Transfer
	log *logger.Logger
}

func (c *countingRecvCtx) Send(p *pck.Packet) error {
	c.m.AddFrameSent()
	c.m.AddBytesSent(uint64(len(p.Encode())))
	c.log.Debug("send %s n=%v", p.Kind(), p.N())
	return c.RecvContext.Send(p)
}

func (c *countingRecvCtx) AppendFile(payload []byte) error {
	c.m.AddBytesReceived(uint64(len(payload)))
	return c.RecvContext.AppendFile(payload)
}

func (c *countingRecvCtx) NoteDuplicateFrame() { c.m.AddDuplicateFrame() }
func (c *countingRecvCtx) NoteCorruptFrame()   { c.m.AddCorruptFrame() }
func (c *countingRecvCtx) NoteFrameReceived()  { c.m.AddFrameReceived() }

// WaitForPacketOrTimeout wraps the embedded context's wait so a session
// that times out on edge 11 is logged at WARN before the FSM closes the
// file and drops back to WaitForConnection.
func (c *countingRecvCtx) WaitForPacketOrTimeout() (fsmrecv.Event, error) {
	ev, err := c.RecvContext.WaitForPacketOrTimeout()
	if err != nil {
		return ev, err
	}
	if ev == fsmrecv.EventConnectionTimeout() {
		c.m.AddTimeout()
		c.log.Warn("connection timed out waiting for next packet")
	}
	return ev, nil
}

