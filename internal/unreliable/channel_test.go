package unreliable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"abpudp/internal/pck"
)

// scriptedSource returns canned answers so fault injection is
// deterministic in tests.
type scriptedSource struct {
	bools []bool
	ints  []int
}

func (s *scriptedSource) Bool(float64) bool {
	if len(s.bools) == 0 {
		return false
	}
	v := s.bools[0]
	s.bools = s.bools[1:]
	return v
}

func (s *scriptedSource) IntN(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

func mustChannel(t *testing.T) *Channel {
	t.Helper()
	ch, err := Bind("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func TestSendRecvRoundTrip(t *testing.T) {
	sender := mustChannel(t)
	receiver := mustChannel(t)

	pkt, err := pck.Build(false, pck.KindData, []byte("hello"))
	require.NoError(t, err)

	require.NoError(t, sender.Send(pkt, receiver.LocalAddr()))

	require.NoError(t, receiver.SetReadTimeout(time.Second))
	res, err := receiver.Recv()
	require.NoError(t, err)
	require.False(t, res.Timeout)
	require.NotNil(t, res.Packet)
	require.Equal(t, []byte("hello"), res.Packet.Payload())
}

func TestSendDropsOnLoss(t *testing.T) {
	sender := mustChannel(t)
	receiver := mustChannel(t)
	sender.SetSource(&scriptedSource{bools: []bool{true}}) // loss trial fires

	pkt, _ := pck.Build(false, pck.KindData, []byte("x"))
	require.NoError(t, sender.Send(pkt, receiver.LocalAddr()))

	require.NoError(t, receiver.SetReadTimeout(50*time.Millisecond))
	res, err := receiver.Recv()
	require.NoError(t, err)
	require.True(t, res.Timeout)
}

func TestSendDuplicatesDatagram(t *testing.T) {
	sender := mustChannel(t)
	receiver := mustChannel(t)
	// loss=false, error=false, dup=true
	sender.SetSource(&scriptedSource{bools: []bool{false, false, true}})

	pkt, _ := pck.Build(false, pck.KindACK, nil)
	require.NoError(t, sender.Send(pkt, receiver.LocalAddr()))

	require.NoError(t, receiver.SetReadTimeout(time.Second))
	first, err := receiver.Recv()
	require.NoError(t, err)
	require.False(t, first.Timeout)

	require.NoError(t, receiver.SetReadTimeout(200*time.Millisecond))
	second, err := receiver.Recv()
	require.NoError(t, err)
	require.False(t, second.Timeout)
}

func TestSendCorruptsOnError(t *testing.T) {
	sender := mustChannel(t)
	receiver := mustChannel(t)
	// loss=false, error=true; pick byte 0, bit 0 (flips a reserved bit
	// to guarantee decode rejects it).
	sender.SetSource(&scriptedSource{bools: []bool{false, true}, ints: []int{0, 0}})

	pkt, _ := pck.Build(false, pck.KindData, []byte("payload"))
	require.NoError(t, sender.Send(pkt, receiver.LocalAddr()))

	require.NoError(t, receiver.SetReadTimeout(time.Second))
	res, err := receiver.Recv()
	require.NoError(t, err)
	require.False(t, res.Timeout)
	require.Nil(t, res.Packet) // reserved-bit flip => decode rejects it
}

func TestRecvTimeout(t *testing.T) {
	receiver := mustChannel(t)
	require.NoError(t, receiver.SetReadTimeout(50*time.Millisecond))
	res, err := receiver.Recv()
	require.NoError(t, err)
	require.True(t, res.Timeout)
}
