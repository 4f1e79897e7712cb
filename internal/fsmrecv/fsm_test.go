package fsmrecv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"abpudp/internal/pck"
	"abpudp/internal/xerr"
)

type fakeCtx struct {
	events       []Event
	sent         []*pck.Packet
	latched      PeerAddr
	openErr      error
	openedWith   []byte
	appended     [][]byte
	counter      int
	closed       int
	timerStarts  int
	timerRestarts int
	timerStops   int

	duplicateFrames int
	corruptFrames   int
	framesReceived  int
}

func (f *fakeCtx) WaitForPacketOrTimeout() (Event, error) {
	if len(f.events) == 0 {
		return EventConnectionTimeout(), nil
	}
	e := f.events[0]
	f.events = f.events[1:]
	return e, nil
}

func (f *fakeCtx) MakePacket(n bool, kind pck.Kind) (*pck.Packet, error) {
	return pck.Build(n, kind, nil)
}

func (f *fakeCtx) Send(p *pck.Packet) error { f.sent = append(f.sent, p); return nil }
func (f *fakeCtx) StartTimer() error        { f.timerStarts++; return nil }
func (f *fakeCtx) RestartTimer() error      { f.timerRestarts++; return nil }
func (f *fakeCtx) StopTimer() error         { f.timerStops++; return nil }

func (f *fakeCtx) LatchPeer(src PeerAddr) { f.latched = src }

func (f *fakeCtx) OpenFile(payload []byte) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.openedWith = payload
	return nil
}

func (f *fakeCtx) AppendFile(payload []byte) error {
	f.appended = append(f.appended, payload)
	return nil
}

func (f *fakeCtx) IncreaseDataCounter(n int) { f.counter += n }
func (f *fakeCtx) CloseFile() error          { f.closed++; return nil }

func (f *fakeCtx) NoteDuplicateFrame() { f.duplicateFrames++ }
func (f *fakeCtx) NoteCorruptFrame()   { f.corruptFrames++ }
func (f *fakeCtx) NoteFrameReceived()  { f.framesReceived++ }

func TestTransitionWaitForConnectionAcceptsSYN(t *testing.T) {
	ctx := &fakeCtx{}
	syn, _ := pck.Build(false, pck.KindSYN, []byte("report.txt"))

	s, err := Transition(Start(), EventRecvPck(syn, "peer1"), ctx)
	require.NoError(t, err)
	require.Equal(t, StateWaitForPkt, s.Kind())
	require.Equal(t, "peer1", ctx.latched)
	require.Equal(t, []byte("report.txt"), ctx.openedWith)
	require.Len(t, ctx.sent, 1)
	require.Equal(t, pck.KindACK, ctx.sent[0].Kind())
	require.False(t, ctx.sent[0].N())
}

func TestTransitionWaitForConnectionIgnoresNonSYN(t *testing.T) {
	ctx := &fakeCtx{}
	data, _ := pck.Build(false, pck.KindData, []byte("x"))

	s, err := Transition(Start(), EventRecvPck(data, "peer1"), ctx)
	require.NoError(t, err)
	require.Equal(t, StateWaitForConnection, s.Kind())
	require.Empty(t, ctx.sent)
}

func TestTransitionWaitForConnectionHandlesStrayFinWithoutWriting(t *testing.T) {
	ctx := &fakeCtx{}
	fin, _ := pck.Build(true, pck.KindFIN, []byte("leftover"))

	s, err := Transition(Start(), EventRecvPck(fin, "peer1"), ctx)
	require.NoError(t, err)
	require.Equal(t, StateWaitForConnection, s.Kind())
	require.Len(t, ctx.sent, 1)
	require.Equal(t, pck.KindFINACK, ctx.sent[0].Kind())
	require.True(t, ctx.sent[0].N())
	require.Empty(t, ctx.appended)
	require.Nil(t, ctx.openedWith)
}

func TestTransitionWaitForConnectionRejectsBadBasename(t *testing.T) {
	ctx := &fakeCtx{openErr: xerr.Input("file_name", "contains path separator")}
	syn, _ := pck.Build(false, pck.KindSYN, []byte("../etc/passwd"))

	s, err := Transition(Start(), EventRecvPck(syn, "peer1"), ctx)
	require.NoError(t, err)
	require.Equal(t, StateWaitForConnection, s.Kind())
	require.Empty(t, ctx.sent)
}

func synAccepted(t *testing.T) (State, *fakeCtx) {
	t.Helper()
	ctx := &fakeCtx{}
	syn, _ := pck.Build(false, pck.KindSYN, []byte("f"))
	s, err := Transition(Start(), EventRecvPck(syn, "peer1"), ctx)
	require.NoError(t, err)
	return s, ctx
}

func TestTransitionWaitForPktAppendsNewData(t *testing.T) {
	s, ctx := synAccepted(t)
	data, _ := pck.Build(true, pck.KindData, []byte("chunk"))

	s, err := Transition(s, EventRecvPck(data, "peer1"), ctx)
	require.NoError(t, err)
	require.Equal(t, StateWaitForPkt, s.Kind())
	require.Equal(t, [][]byte{[]byte("chunk")}, ctx.appended)
	require.Equal(t, 5, ctx.counter)
	require.Equal(t, pck.KindACK, s.LastAck().Kind())
	require.True(t, s.LastAck().N())
	require.Equal(t, 1, ctx.framesReceived)
}

func TestTransitionWaitForPktReplaysOnDuplicate(t *testing.T) {
	s, ctx := synAccepted(t)
	dup, _ := pck.Build(false, pck.KindData, []byte("resent"))

	s2, err := Transition(s, EventRecvPck(dup, "peer1"), ctx)
	require.NoError(t, err)
	require.Equal(t, s, s2)
	require.Empty(t, ctx.appended)
	require.Len(t, ctx.sent, 2) // SYN's ACK, then the replayed ACK
	require.Equal(t, 1, ctx.timerRestarts)
	require.Equal(t, 1, ctx.duplicateFrames)
	require.Equal(t, 1, ctx.framesReceived)
}

func TestTransitionWaitForPktClosesOnFin(t *testing.T) {
	s, ctx := synAccepted(t)
	fin, _ := pck.Build(true, pck.KindFIN, nil)

	s, err := Transition(s, EventRecvPck(fin, "peer1"), ctx)
	require.NoError(t, err)
	require.Equal(t, StateWaitForConnection, s.Kind())
	require.Equal(t, 1, ctx.closed)
	require.Equal(t, pck.KindFINACK, ctx.sent[len(ctx.sent)-1].Kind())
}

func TestTransitionWaitForPktClosesOnConnectionTimeout(t *testing.T) {
	s, ctx := synAccepted(t)

	s, err := Transition(s, EventConnectionTimeout(), ctx)
	require.NoError(t, err)
	require.Equal(t, StateWaitForConnection, s.Kind())
	require.Equal(t, 1, ctx.closed)
}

func TestTransitionWaitForPktIgnoresCorruptOrSYN(t *testing.T) {
	s, ctx := synAccepted(t)
	syn, _ := pck.Build(false, pck.KindSYN, []byte("again"))

	s2, err := Transition(s, EventRecvPck(syn, "peer1"), ctx)
	require.NoError(t, err)
	require.Equal(t, s, s2)
}

func TestTransitionWaitForPktCountsCorruptFrame(t *testing.T) {
	s, ctx := synAccepted(t)
	good, _ := pck.Build(true, pck.KindData, []byte("x"))
	raw := good.Encode()
	raw[1] ^= 0xFF // flip the checksum byte so Corrupt() reports true
	bad, err := pck.Decode(raw)
	require.NoError(t, err)
	require.True(t, bad.Corrupt())

	s2, err := Transition(s, EventRecvPck(bad, "peer1"), ctx)
	require.NoError(t, err)
	require.Equal(t, s, s2)
	require.Equal(t, 1, ctx.corruptFrames)
}

func TestRunStopsOnFatalError(t *testing.T) {
	ctx := &errCtx{}
	err := Run(ctx)
	require.Error(t, err)
}

type errCtx struct{ fakeCtx }

func (e *errCtx) WaitForPacketOrTimeout() (Event, error) {
	return Event{}, assertIOErr
}

var assertIOErr = xerr.Input("socket", "boom")
