package fsmsend

import (
	"time"

	"abpudp/internal/xerr"
)

// Run drives the sender FSM from Start to End, following the driver
// loop: compute the current event for the state, apply Transition, repeat
// until End. It returns the number of bytes pushed as DATA payload and the
// wall-clock elapsed since the first InitSYN.
func Run(maxRetransmits int, ctx ProtocolIoContext) (bytesSent int, elapsed time.Duration, err error) {
	start := time.Now()
	s := Start(maxRetransmits)

	e := EventInitSYN()
	for {
		s, err = Transition(s, e, ctx)
		if err != nil {
			return ctx.DataCounter(), time.Since(start), xerr.IO("sender fsm transition", err)
		}
		if s.Kind() == StateEnd {
			return ctx.DataCounter(), time.Since(start), nil
		}

		e, err = nextEvent(s, ctx)
		if err != nil {
			return ctx.DataCounter(), time.Since(start), err
		}
	}
}

func nextEvent(s State, ctx ProtocolIoContext) (Event, error) {
	switch s.Kind() {
	case StateSend:
		avail, err := ctx.DataAvailable()
		if err != nil {
			return Event{}, xerr.IO("probe file reader", err)
		}
		return EventDataAvailable(avail), nil
	case StateWait:
		ev, err := ctx.WaitForAckOrTimeout()
		if err != nil {
			return Event{}, xerr.IO("wait for ack or timeout", err)
		}
		return ev, nil
	default:
		debugAssert(false, "nextEvent called on Start/End state")
		return Event{}, nil
	}
}
