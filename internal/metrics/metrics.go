// Package metrics collects per-transfer counters for the ABP engine:
// goodput, retransmissions, and duplicate/corrupt frame counts, adapted
// from the teacher's internal/metrics.TransferMetrics (which tracked the
// same shape of counters for its own REQ/META/NACK chunk protocol).
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Transfer collects counters for one send_file_blocking or
// recv_file_blocking call.
type Transfer struct {
	BytesSent       uint64 `json:"bytes_sent"`
	BytesReceived   uint64 `json:"bytes_received"`
	FramesSent      uint64 `json:"frames_sent"`
	FramesReceived  uint64 `json:"frames_received"`
	Retransmissions uint64 `json:"retransmissions"`
	DuplicateFrames uint64 `json:"duplicate_frames"`
	CorruptFrames   uint64 `json:"corrupt_frames"`
	Timeouts        uint64 `json:"timeouts"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Goodput   float64       `json:"goodput"` // bytes/second over Duration

	mu sync.RWMutex
}

// New starts a fresh set of counters.
func New() *Transfer {
	return &Transfer{StartTime: time.Now()}
}

func (m *Transfer) AddBytesSent(n uint64)     { atomic.AddUint64(&m.BytesSent, n) }
func (m *Transfer) AddBytesReceived(n uint64) { atomic.AddUint64(&m.BytesReceived, n) }
func (m *Transfer) AddFrameSent()             { atomic.AddUint64(&m.FramesSent, 1) }
func (m *Transfer) AddFrameReceived()         { atomic.AddUint64(&m.FramesReceived, 1) }
func (m *Transfer) AddRetransmission()        { atomic.AddUint64(&m.Retransmissions, 1) }
func (m *Transfer) AddDuplicateFrame()        { atomic.AddUint64(&m.DuplicateFrames, 1) }
func (m *Transfer) AddCorruptFrame()          { atomic.AddUint64(&m.CorruptFrames, 1) }
func (m *Transfer) AddTimeout()               { atomic.AddUint64(&m.Timeouts, 1) }

// Finish stamps EndTime/Duration and computes goodput from
// BytesReceived (the receiver side) or BytesSent (the sender side,
// whichever is nonzero) over the elapsed wall time.
func (m *Transfer) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	if m.Duration <= 0 {
		return
	}
	useful := atomic.LoadUint64(&m.BytesReceived)
	if useful == 0 {
		useful = atomic.LoadUint64(&m.BytesSent)
	}
	m.Goodput = float64(useful) / m.Duration.Seconds()
}

// Snapshot returns a copy of the current counters, safe to read
// concurrently with further updates.
func (m *Transfer) Snapshot() Transfer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Transfer{
		BytesSent:       atomic.LoadUint64(&m.BytesSent),
		BytesReceived:   atomic.LoadUint64(&m.BytesReceived),
		FramesSent:      atomic.LoadUint64(&m.FramesSent),
		FramesReceived:  atomic.LoadUint64(&m.FramesReceived),
		Retransmissions: atomic.LoadUint64(&m.Retransmissions),
		DuplicateFrames: atomic.LoadUint64(&m.DuplicateFrames),
		CorruptFrames:   atomic.LoadUint64(&m.CorruptFrames),
		Timeouts:        atomic.LoadUint64(&m.Timeouts),
		StartTime:       m.StartTime,
		EndTime:         m.EndTime,
		Duration:        m.Duration,
		Goodput:         m.Goodput,
	}
}
