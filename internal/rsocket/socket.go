// Package rsocket is the public socket facade over the ABP engine:
// bind a UDP endpoint, tune fault injection and timers, and run one
// blocking send or receive at a time.
//
// Grounded on the teacher's internal/clientudp/internal/serverudp split
// (adapted, not copied verbatim, into one facade type since the protocol
// gives sender and receiver the same Socket type rather than separate
// client/server types) and on original_source/src/sock.rs's SockHandler.
package rsocket

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"abpudp/internal/config"
	"abpudp/internal/fsmrecv"
	"abpudp/internal/fsmsend"
	"abpudp/internal/logger"
	"abpudp/internal/metrics"
	"abpudp/internal/protoio"
	"abpudp/internal/unreliable"
	"abpudp/internal/xerr"
)

// DefaultPort is the protocol's well-known UDP port.
const DefaultPort = config.DefaultPort

// Socket binds one local UDP endpoint and runs at most one transfer at
// a time over it: only one in-flight session at a time.
type Socket struct {
	ch *unreliable.Channel

	faults unreliable.FaultParams

	sndTimeout      time.Duration
	rcvTimeout      time.Duration
	sndMaxRetransmits int

	metrics *metrics.Transfer
	// OnLog, if set, receives the progress lines of both blocking
	// operations (send started, send complete, receive loop listening),
	// mirroring the teacher's Callbacks.OnLog hook. Per-session events
	// (connection accepted, session closed, retransmit) are not passed
	// to it.
	OnLog func(string)

	log *logger.Logger
}

// Bind opens a UDP socket at localAddr (use ":0" for an ephemeral port,
// or fmt.Sprintf(":%d", DefaultPort) to listen on the well-known port).
func Bind(localAddr string) (*Socket, error) {
	ch, err := unreliable.Bind(localAddr)
	if err != nil {
		return nil, err
	}
	return &Socket{
		ch:                ch,
		sndTimeout:        config.DefaultTimeout,
		rcvTimeout:        config.DefaultTimeout,
		sndMaxRetransmits: config.DefaultMaxRetransmits,
		log:               logger.Default.WithField("Component", "rsocket"),
	}, nil
}

// Close releases the underlying UDP socket.
func (s *Socket) Close() error { return s.ch.Close() }

// LocalAddr reports the bound local address.
func (s *Socket) LocalAddr() *net.UDPAddr { return s.ch.LocalAddr() }

// SetUnreliableTransmitParameters configures the three independent
// Bernoulli fault probabilities applied to every outgoing datagram
// (each must be in [0.0, 1.0]).
func (s *Socket) SetUnreliableTransmitParameters(lossP, errorP, dupP float64) error {
	for field, p := range map[string]float64{"loss_p": lossP, "error_p": errorP, "dup_p": dupP} {
		if err := config.ValidateProbability(field, p); err != nil {
			return err
		}
	}
	s.faults = unreliable.FaultParams{LossP: lossP, ErrorP: errorP, DupP: dupP}
	s.ch.SetFaultParams(s.faults)
	return nil
}

func (s *Socket) SetSndFileTimeoutMs(ms int) { s.sndTimeout = time.Duration(ms) * time.Millisecond }
func (s *Socket) SetRcvFileTimeoutMs(ms int) { s.rcvTimeout = time.Duration(ms) * time.Millisecond }
func (s *Socket) SetSndFileMaxRetransmits(n int) { s.sndMaxRetransmits = n }

// Metrics returns a snapshot of the most recent transfer's counters, or
// a zero value if none has run yet.
func (s *Socket) Metrics() metrics.Transfer {
	if s.metrics == nil {
		return metrics.Transfer{}
	}
	return s.metrics.Snapshot()
}

func (s *Socket) logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	s.log.Info("%s", line)
	if s.OnLog != nil {
		s.OnLog(line)
	}
}

// SendFileBlocking pushes path to recvAddr over the ABP protocol,
// blocking until the transfer reaches End.
func (s *Socket) SendFileBlocking(path string, recvAddr *net.UDPAddr) (bytesSent int, elapsed time.Duration, err error) {
	s.metrics = metrics.New()
	defer s.metrics.Finish()

	ctx, err := protoio.NewSendContext(s.ch, recvAddr, path, s.sndTimeout)
	if err != nil {
		return 0, 0, err
	}
	defer ctx.Close()

	s.logf("sending %s to %s", filepath.Base(path), recvAddr)
	bytesSent, elapsed, err = fsmsend.Run(s.sndMaxRetransmits, &countingSendCtx{ctx, s.metrics})
	if err != nil {
		return bytesSent, elapsed, err
	}
	s.logf("send complete: %d bytes in %s", bytesSent, elapsed)
	return bytesSent, elapsed, nil
}

// RecvFileBlocking runs the receiver FSM indefinitely, writing accepted
// transfers under targetDir. It returns only on a fatal
// I/O error; ConnectionTimeout is absorbed internally and logged at
// WARN rather than returned.
func (s *Socket) RecvFileBlocking(targetDir string) error {
	if info, err := os.Stat(targetDir); err == nil && !info.IsDir() {
		return xerr.Input("target_dir", "exists as a regular file")
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return xerr.IO("create target directory", err)
	}

	s.metrics = metrics.New()
	ctx := protoio.NewRecvContext(s.ch, targetDir, s.rcvTimeout)
	s.logf("listening on %s, writing into %s", s.ch.LocalAddr(), targetDir)
	return fsmrecv.Run(&countingRecvCtx{ctx, s.metrics, s.log})
}
