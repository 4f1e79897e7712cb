// Package fsmrecv implements the receiver side of the Alternating-Bit
// Protocol: SYN accept, ordered DATA writes with duplicate-ACK replay,
// and FIN/FINACK teardown.
//
// Grounded on original_source/src/fsm_recv/{fsm,wait_for_connection,
// wait_for_pkt}.rs: one tagged state value per FSM state, with a pure
// transition function per state driven by an injected ProtocolIoContext,
// mirroring internal/fsmsend's shape.
package fsmrecv

import (
	"abpudp/internal/pck"
	"abpudp/internal/xerr"
)

// Event is the set of inputs the driver feeds into the current state's
// transition function.
type Event struct {
	recv      bool
	recvPck   *pck.Packet // nil means RecvPck(None)
	peer      PeerAddr
	connTimeout bool
}

// PeerAddr is an opaque comparable handle for the datagram's source
// address; the driver compares it to the latched sender with ==.
type PeerAddr interface{}

func EventRecvPck(p *pck.Packet, peer PeerAddr) Event { return Event{recv: true, recvPck: p, peer: peer} }
func EventConnectionTimeout() Event                   { return Event{connTimeout: true} }

// ProtocolIoContext is the narrow interface the receiver FSM uses to
// touch the outside world.
type ProtocolIoContext interface {
	WaitForPacketOrTimeout() (Event, error)
	MakePacket(n bool, kind pck.Kind) (*pck.Packet, error)
	Send(p *pck.Packet) error
	StartTimer() error
	RestartTimer() error
	StopTimer() error

	// LatchPeer records src as the sole sender for the session and
	// resets the data counter.
	LatchPeer(src PeerAddr)
	// OpenFile interprets payload as a UTF-8 basename, validates it,
	// and creates the destination file. Returns BadInput on an unsafe
	// or non-UTF-8 name.
	OpenFile(payload []byte) error
	// AppendFile appends payload to the currently open file, if any.
	AppendFile(payload []byte) error
	IncreaseDataCounter(n int)
	// CloseFile flushes and drops the writer. Safe to call with no
	// file open.
	CloseFile() error

	// NoteDuplicateFrame records a replayed ACK for an already-acked
	// frame (edge 9).
	NoteDuplicateFrame()
	// NoteCorruptFrame records a corrupt datagram absorbed in
	// WaitForPkt (edge 8).
	NoteCorruptFrame()
	// NoteFrameReceived records any non-nil packet handed to
	// WaitForPkt, corrupt or not.
	NoteFrameReceived()
}

// State is a tagged value for exactly one of WaitForConnection,
// WaitForPkt.
type State struct {
	kind    State_
	lastAck *pck.Packet
}

type State_ int

const (
	StateWaitForConnection State_ = iota
	StateWaitForPkt
)

func (s State) Kind() State_          { return s.kind }
func (s State) LastAck() *pck.Packet  { return s.lastAck }

// Start returns the FSM's initial state.
func Start() State { return State{kind: StateWaitForConnection} }

func toWaitForPkt(lastAck *pck.Packet) State {
	return State{kind: StateWaitForPkt, lastAck: lastAck}
}

func toWaitForConnection() State { return State{kind: StateWaitForConnection} }

func debugAssert(cond bool, msg string) {
	if !cond {
		panic("fsmrecv: " + msg)
	}
}

// Transition applies event e to state s.
func Transition(s State, e Event, ctx ProtocolIoContext) (State, error) {
	switch s.kind {
	case StateWaitForConnection:
		return transitionWaitForConnection(s, e, ctx)
	case StateWaitForPkt:
		return transitionWaitForPkt(s, e, ctx)
	default:
		debugAssert(false, "Transition called on unknown receiver state")
		return s, nil
	}
}

func transitionWaitForConnection(s State, e Event, ctx ProtocolIoContext) (State, error) {
	if !e.recv {
		debugAssert(false, "undefined transition from WaitForConnection")
		return s, nil
	}
	p := e.recvPck
	if p == nil {
		// RecvPck(None): stay
		return s, nil
	}

	switch {
	case p.Corrupt() || p.N() || p.Kind() != pck.KindSYN:
		if p.NotCorrupt() && p.Kind() == pck.KindFIN {
			// edge 13: stray FIN from a prior session. Echo FINACK but
			// do not write anything — no file is open in this state.
			// The FIN's source is latched only so the FINACK has an
			// address; CloseFile releases it again (no file to flush).
			ctx.LatchPeer(e.peer)
			finack, err := ctx.MakePacket(p.N(), pck.KindFINACK)
			if err != nil {
				return s, err
			}
			if err := ctx.Send(finack); err != nil {
				return s, err
			}
			if err := ctx.CloseFile(); err != nil {
				return s, err
			}
			return s, nil
		}
		// edges 1a/1b/1c: stay.
		return s, nil

	default:
		// edge 2
		if err := ctx.OpenFile(p.Payload()); err != nil {
			if xerr.IsBadInput(err) {
				// Reject: not a valid basename. Stay and wait for
				// another connection attempt rather than aborting the
				// whole receive loop over one bad SYN.
				return s, nil
			}
			return s, err
		}
		ctx.LatchPeer(e.peer)
		ack, err := ctx.MakePacket(false, pck.KindACK)
		if err != nil {
			return s, err
		}
		if err := ctx.Send(ack); err != nil {
			return s, err
		}
		if err := ctx.StartTimer(); err != nil {
			return s, err
		}
		return toWaitForPkt(ack), nil
	}
}

func transitionWaitForPkt(s State, e Event, ctx ProtocolIoContext) (State, error) {
	if e.connTimeout {
		// edge 11
		if err := ctx.CloseFile(); err != nil {
			return s, err
		}
		return toWaitForConnection(), nil
	}

	if !e.recv {
		debugAssert(false, "undefined transition from WaitForPkt")
		return s, nil
	}
	p := e.recvPck
	if p == nil {
		// RecvPck(None): stay
		return s, nil
	}

	lastN := s.lastAck.N()
	ctx.NoteFrameReceived()

	switch {
	case p.Corrupt() || p.Kind() == pck.KindSYN:
		// edge 8
		if p.Corrupt() {
			ctx.NoteCorruptFrame()
		}
		return s, nil

	case p.N() == lastN && p.Kind() != pck.KindSYN:
		// edge 9: duplicate of an already-acked frame.
		ctx.NoteDuplicateFrame()
		if err := ctx.Send(s.lastAck); err != nil {
			return s, err
		}
		if err := ctx.RestartTimer(); err != nil {
			return s, err
		}
		return s, nil

	case p.Kind() == pck.KindData && p.N() != lastN:
		// edge 10
		if err := ctx.AppendFile(p.Payload()); err != nil {
			return s, err
		}
		ctx.IncreaseDataCounter(len(p.Payload()))
		ack, err := ctx.MakePacket(p.N(), pck.KindACK)
		if err != nil {
			return s, err
		}
		if err := ctx.Send(ack); err != nil {
			return s, err
		}
		if err := ctx.RestartTimer(); err != nil {
			return s, err
		}
		return toWaitForPkt(ack), nil

	case p.Kind() == pck.KindFIN && p.N() != lastN:
		// edge 12
		finack, err := ctx.MakePacket(p.N(), pck.KindFINACK)
		if err != nil {
			return s, err
		}
		if err := ctx.Send(finack); err != nil {
			return s, err
		}
		if err := ctx.StopTimer(); err != nil {
			return s, err
		}
		if err := ctx.CloseFile(); err != nil {
			return s, err
		}
		return toWaitForConnection(), nil

	default:
		debugAssert(false, "undefined transition from WaitForPkt")
		return s, nil
	}
}
