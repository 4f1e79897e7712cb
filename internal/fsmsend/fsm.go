// Package fsmsend implements the sender side of the Alternating-Bit
// Protocol: SYN handshake, stop-and-wait DATA transmission, FIN
// teardown, and retransmit-on-timeout.
//
// Grounded on original_source/src/fsm_send/{fsm,start,send,wait}.rs:
// one tagged state value per FSM state (preferred here over
// the Rust source's generic-parameterized state type), with a pure
// transition function per state driven by an injected ProtocolIoContext.
package fsmsend

import (
	"abpudp/internal/pck"
)

// PayloadMax is the maximum DATA payload size per frame.
const PayloadMax = pck.MaxPayload

// DefaultMaxRetransmits and DefaultTimeoutMs mirror
// original_source/src/sock.rs's DEFAULT_MAX_RETRANSMITS /
// DEFAULT_SND_TIMEOUT_MS.
const (
	DefaultMaxRetransmits = 100
	DefaultTimeoutMs      = 10
)

// Event is the set of inputs the driver feeds into the current state's
// transition function.
type Event struct {
	initSYN      bool
	timeout      bool
	recvPck      *pck.Packet // nil RecvPck(None); absent entirely unless recv is set
	recv         bool
	dataAvail    bool
	dataAvailSet bool
}

func EventInitSYN() Event               { return Event{initSYN: true} }
func EventTimeout() Event               { return Event{timeout: true} }
func EventRecvPck(p *pck.Packet) Event  { return Event{recv: true, recvPck: p} }
func EventDataAvailable(yes bool) Event { return Event{dataAvailSet: true, dataAvail: yes} }

// ProtocolIoContext is the narrow interface the sender FSM uses to
// touch the outside world.
type ProtocolIoContext interface {
	WaitForAckOrTimeout() (Event, error)
	DataAvailable() (bool, error)
	MakePacket(n bool, kind pck.Kind) (*pck.Packet, error)
	StartTimer() error
	StopTimer() error
	Send(p *pck.Packet) error
	DataCounter() int
	IncreaseDataCounter(n int)

	// NoteRetransmit records a Wait-state retransmit (edge 2a).
	NoteRetransmit()
	// NoteCorruptFrame records a corrupt or wrong-sequence ACK absorbed
	// in Wait (edge 8).
	NoteCorruptFrame()
	// NoteFrameReceived records any non-nil packet handed to Wait,
	// corrupt or not.
	NoteFrameReceived()
}

// State is a tagged value for exactly one of Start, Send, Wait, End. It
// also carries the retransmit budget configured at FSM entry (the
// Config, attached to the FSM rather than the context so the same
// context can drive FSMs with different budgets across tests).
type State struct {
	kind           State_
	n              bool
	maxRetransmits int

	// Wait-only fields.
	retransmitCount int
	lastSent        *pck.Packet
}

type State_ int

const (
	StateStart State_ = iota
	StateSend
	StateWait
	StateEnd
)

// Start returns the FSM's initial state, N=0, with the given retransmit
// budget (use DefaultMaxRetransmits when unsure).
func Start(maxRetransmits int) State {
	return State{kind: StateStart, n: false, maxRetransmits: maxRetransmits}
}

func (s State) Kind() State_          { return s.kind }
func (s State) N() bool               { return s.n }
func (s State) RetransmitCount() int  { return s.retransmitCount }
func (s State) LastSent() *pck.Packet { return s.lastSent }

func (s State) toSend(n bool) State {
	return State{kind: StateSend, n: n, maxRetransmits: s.maxRetransmits}
}
func (s State) toWait(n bool, last *pck.Packet) State {
	return State{kind: StateWait, n: n, maxRetransmits: s.maxRetransmits, retransmitCount: 0, lastSent: last}
}
func (s State) toEnd() State { return State{kind: StateEnd, maxRetransmits: s.maxRetransmits} }

// debugAssert panics on a transition that should be logic-impossible
// (no first-class debug/release split in Go, so this always runs —
// logic-impossible transitions are always bugs worth surfacing loudly).
func debugAssert(cond bool, msg string) {
	if !cond {
		panic("fsmsend: " + msg)
	}
}

// Transition applies event e to state s.
func Transition(s State, e Event, ctx ProtocolIoContext) (State, error) {
	switch s.kind {
	case StateStart:
		return transitionStart(s, e, ctx)
	case StateSend:
		return transitionSend(s, e, ctx)
	case StateWait:
		return transitionWait(s, e, ctx)
	default:
		debugAssert(false, "Transition called on End state")
		return s, nil
	}
}

func transitionStart(s State, e Event, ctx ProtocolIoContext) (State, error) {
	debugAssert(s.n == false, "Start state must have n=0")
	if !e.initSYN {
		debugAssert(false, "undefined transition from Start")
		return s, nil
	}
	// edge 1
	sndpkt, err := ctx.MakePacket(s.n, pck.KindSYN)
	if err != nil {
		return s, err
	}
	if err := ctx.Send(sndpkt); err != nil {
		return s, err
	}
	if err := ctx.StartTimer(); err != nil {
		return s, err
	}
	return s.toWait(s.n, sndpkt), nil
}

func transitionSend(s State, e Event, ctx ProtocolIoContext) (State, error) {
	switch {
	case e.recv:
		// edge 6: any incoming packet while in Send is ignored.
		return s, nil
	case e.dataAvailSet && e.dataAvail:
		// edge 4
		sndpkt, err := ctx.MakePacket(s.n, pck.KindData)
		if err != nil {
			return s, err
		}
		ctx.IncreaseDataCounter(len(sndpkt.Payload()))
		if err := ctx.Send(sndpkt); err != nil {
			return s, err
		}
		if err := ctx.StartTimer(); err != nil {
			return s, err
		}
		return s.toWait(s.n, sndpkt), nil
	case e.dataAvailSet && !e.dataAvail:
		// edge 5
		sndpkt, err := ctx.MakePacket(s.n, pck.KindFIN)
		if err != nil {
			return s, err
		}
		if err := ctx.Send(sndpkt); err != nil {
			return s, err
		}
		if err := ctx.StartTimer(); err != nil {
			return s, err
		}
		return s.toWait(s.n, sndpkt), nil
	default:
		debugAssert(false, "undefined transition from Send")
		return s, nil
	}
}

func transitionWait(s State, e Event, ctx ProtocolIoContext) (State, error) {
	n := s.n
	if e.recv && e.recvPck != nil {
		ctx.NoteFrameReceived()
	}

	if e.timeout && s.retransmitCount < s.maxRetransmits {
		// edge 2a
		ctx.NoteRetransmit()
		if err := ctx.Send(s.lastSent); err != nil {
			return s, err
		}
		if err := ctx.StartTimer(); err != nil {
			return s, err
		}
		next := s
		next.retransmitCount++
		return next, nil
	}
	if e.timeout {
		// edge 2b
		return s.toEnd(), nil
	}
	if e.recv && e.recvPck == nil {
		// RecvPck(None): stay
		return s, nil
	}
	if e.recv && e.recvPck.NotCorrupt() && e.recvPck.Kind() == pck.KindACK && e.recvPck.N() == n {
		// edge 3
		if err := ctx.StopTimer(); err != nil {
			return s, err
		}
		return s.toSend(pck.OtherN(n)), nil
	}
	if e.recv && e.recvPck.NotCorrupt() && e.recvPck.Kind() == pck.KindFINACK && e.recvPck.N() == n {
		avail, err := ctx.DataAvailable()
		if err != nil {
			return s, err
		}
		if !avail {
			// edge 7
			return s.toEnd(), nil
		}
		// A FINACK while more data remains is not spec-enumerated; fall
		// through to the undefined-transition trap below rather than
		// silently absorbing it.
	} else if e.recv && (e.recvPck.Corrupt() || (e.recvPck.Kind() == pck.KindACK && e.recvPck.N() != n)) {
		// edge 8: corrupt or wrong-n ACK, absorbed; driver will
		// eventually synthesize Timeout.
		ctx.NoteCorruptFrame()
		return s, nil
	}

	debugAssert(false, "undefined transition from Wait")
	return s, nil
}
