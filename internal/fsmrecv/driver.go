package fsmrecv

import "abpudp/internal/xerr"

// Run drives the receiver FSM forever: only one
// in-flight session at a time; termination is external (the caller
// cancels by closing the underlying channel, or the process is killed).
// It returns only on a fatal I/O error from the context.
func Run(ctx ProtocolIoContext) error {
	s := Start()
	for {
		e, err := ctx.WaitForPacketOrTimeout()
		if err != nil {
			return xerr.IO("wait for packet or timeout", err)
		}

		s, err = Transition(s, e, ctx)
		if err != nil {
			return xerr.IO("receiver fsm transition", err)
		}
	}
}
