package peer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlekit/huddle/internal/client/media"
)

type fakeTrack struct {
	id   string
	kind media.Kind
}

func (t fakeTrack) ID() string       { return t.id }
func (t fakeTrack) Kind() media.Kind { return t.kind }

type fakeTransport struct {
	peerID    string
	signals   []json.RawMessage
	closed    bool
	signalErr error
}

func (f *fakeTransport) Signal(payload json.RawMessage) error {
	if f.signalErr != nil {
		return f.signalErr
	}
	f.signals = append(f.signals, payload)
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

type replacingTransport struct {
	*fakeTransport
	replaced []media.Track
}

func (f *replacingTransport) ReplaceTrack(t media.Track) error {
	f.replaced = append(f.replaced, t)
	return nil
}

type created struct {
	peerID    string
	initiator bool
}

// fakeFactory records every creation and keeps the transports addressable
// by peer id. Multiple creations for one id overwrite; lastFor returns the
// most recent.
type fakeFactory struct {
	order      []created
	transports map[string][]*fakeTransport
	replacers  map[string]*replacingTransport
	err        error
	replacing  bool
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		transports: make(map[string][]*fakeTransport),
		replacers:  make(map[string]*replacingTransport),
	}
}

func (f *fakeFactory) New(peerID string, initiator bool, stream *media.Stream) (Transport, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.order = append(f.order, created{peerID: peerID, initiator: initiator})
	ft := &fakeTransport{peerID: peerID}
	f.transports[peerID] = append(f.transports[peerID], ft)
	if f.replacing {
		rt := &replacingTransport{fakeTransport: ft}
		f.replacers[peerID] = rt
		return rt, nil
	}
	return ft, nil
}

func (f *fakeFactory) lastFor(peerID string) *fakeTransport {
	ts := f.transports[peerID]
	if len(ts) == 0 {
		return nil
	}
	return ts[len(ts)-1]
}

func testStream() *media.Stream {
	return &media.Stream{
		Audio: fakeTrack{id: "a0", kind: media.KindAudio},
		Video: fakeTrack{id: "v0", kind: media.KindVideo},
	}
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestSignalBeforeStartQueues(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f.New, nil)

	m.HandleSignal("bob", raw(`{"n":1}`))
	m.HandleSignal("bob", raw(`{"n":2}`))

	assert.Empty(t, f.order, "no connection before the local stream exists")
	assert.Equal(t, 2, m.PendingCount("bob"))
}

func TestStartReplaysJoinsThenQueues(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f.New, nil)

	m.HandleRemoteJoin("bob")
	m.HandleSignal("cara", raw(`{"n":1}`))
	m.HandleSignal("cara", raw(`{"n":2}`))
	m.HandleSignal("cara", raw(`{"n":3}`))

	m.Start(testStream())

	require.Len(t, f.order, 2)
	roles := map[string]bool{}
	for _, c := range f.order {
		roles[c.peerID] = c.initiator
	}
	assert.True(t, roles["bob"], "observed joiner gets an initiator connection")
	assert.False(t, roles["cara"], "signal-only peer gets a responder connection")

	ct := f.lastFor("cara")
	require.NotNil(t, ct)
	require.Len(t, ct.signals, 3, "queue drained on creation")
	assert.JSONEq(t, `{"n":1}`, string(ct.signals[0]))
	assert.JSONEq(t, `{"n":3}`, string(ct.signals[2]))
	assert.Equal(t, 0, m.PendingCount("cara"))
}

func TestRemoteJoinAfterStartInitiates(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f.New, nil)
	m.Start(testStream())

	m.HandleRemoteJoin("bob")

	require.Len(t, f.order, 1)
	assert.True(t, f.order[0].initiator)

	st, ok := m.ConnectionState("bob")
	require.True(t, ok)
	assert.Equal(t, StateConnecting, st)
}

func TestSignalForUnknownPeerCreatesResponder(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f.New, nil)
	m.Start(testStream())

	m.HandleSignal("bob", raw(`{"type":"offer"}`))

	require.Len(t, f.order, 1)
	assert.False(t, f.order[0].initiator, "a queued signal means the other side initiated")

	bt := f.lastFor("bob")
	require.Len(t, bt.signals, 1)
	assert.Equal(t, 0, m.PendingCount("bob"))
}

func TestLiveConnectionGetsSignalsDirectly(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f.New, nil)
	m.Start(testStream())
	m.HandleRemoteJoin("bob")

	m.HandleSignal("bob", raw(`{"n":1}`))
	m.HandleSignal("bob", raw(`{"n":2}`))

	require.Len(t, f.order, 1, "no second connection for a live peer")
	assert.Len(t, f.lastFor("bob").signals, 2)
	assert.Equal(t, 0, m.PendingCount("bob"))
}

func TestTerminalEntryCountsAsAbsent(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f.New, nil)
	m.Start(testStream())
	m.HandleRemoteJoin("bob")

	bt := f.lastFor("bob")
	m.SetState("bob", bt, StateConnected)
	m.SetState("bob", bt, StateErrored)

	_, ok := m.ConnectionState("bob")
	assert.False(t, ok, "terminal entries are purged")

	// A fresh signal for the purged id builds a new responder connection.
	m.HandleSignal("bob", raw(`{"type":"offer"}`))
	require.Len(t, f.order, 2)
	assert.False(t, f.order[1].initiator)
}

func TestSetStateAfterPurgeIsNoop(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f.New, nil)
	m.Start(testStream())
	m.HandleRemoteJoin("bob")
	bt := f.lastFor("bob")
	m.HandlePeerLeft("bob")

	m.SetState("bob", bt, StateConnected)

	_, ok := m.ConnectionState("bob")
	assert.False(t, ok)
	assert.Empty(t, m.Peers())
}

func TestPeerLeftClosesTransportAndClearsQueue(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f.New, nil)
	m.Start(testStream())
	m.HandleRemoteJoin("bob")
	bt := f.lastFor("bob")

	m.HandlePeerLeft("bob")

	assert.True(t, bt.closed)
	assert.Empty(t, m.Peers())
	assert.Equal(t, 0, m.PendingCount("bob"))
}

func TestCloseAllTearsDownEverything(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f.New, nil)
	m.Start(testStream())
	m.HandleRemoteJoin("bob")
	m.HandleRemoteJoin("cara")
	bt, ct := f.lastFor("bob"), f.lastFor("cara")

	m.CloseAll()

	assert.True(t, bt.closed)
	assert.True(t, ct.closed)
	assert.Empty(t, m.Peers())

	// The manager is back to its pre-Start state: new signals queue only.
	m.HandleSignal("bob", raw(`{"n":1}`))
	assert.Len(t, f.order, 2, "no connection created after CloseAll")
	assert.Equal(t, 1, m.PendingCount("bob"))
	assert.Len(t, bt.signals, 0, "old transport never sees new traffic")
}

func TestReplaceVideoTrackInPlace(t *testing.T) {
	f := newFakeFactory()
	f.replacing = true
	m := NewManager(f.New, nil)
	stream := testStream()
	m.Start(stream)
	m.HandleRemoteJoin("bob")

	screen := fakeTrack{id: "s0", kind: media.KindScreen}
	m.ReplaceVideoTrack(screen)

	require.Len(t, f.order, 1, "capable transports are not recreated")
	assert.Equal(t, screen, stream.Video)

	rt := f.replacers["bob"]
	require.NotNil(t, rt)
	require.Len(t, rt.replaced, 1)
	assert.Equal(t, media.KindScreen, rt.replaced[0].Kind())

	st, ok := m.ConnectionState("bob")
	require.True(t, ok)
	assert.Equal(t, StateConnecting, st)
}

func TestReplaceVideoTrackFallbackRecreates(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f.New, nil)
	m.Start(testStream())
	m.HandleRemoteJoin("bob")
	m.HandleSignal("cara", raw(`{}`))
	oldBob, oldCara := f.lastFor("bob"), f.lastFor("cara")

	m.ReplaceVideoTrack(fakeTrack{id: "s0", kind: media.KindScreen})

	assert.True(t, oldBob.closed)
	assert.True(t, oldCara.closed)
	require.Len(t, f.transports["bob"], 2, "replacement connection created")
	require.Len(t, f.transports["cara"], 2)

	// Roles survive the reconnect.
	roles := map[string]bool{}
	for _, c := range f.order[len(f.order)-2:] {
		roles[c.peerID] = c.initiator
	}
	assert.True(t, roles["bob"])
	assert.False(t, roles["cara"])
}

func TestNegotiationFailureIsIsolated(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f.New, nil)
	m.Start(testStream())
	m.HandleRemoteJoin("bob")
	m.HandleRemoteJoin("cara")

	bt := f.lastFor("bob")
	bt.signalErr = errors.New("bad sdp")

	m.HandleSignal("bob", raw(`{"type":"answer"}`))

	assert.True(t, bt.closed, "failed peer is torn down")
	_, ok := m.ConnectionState("bob")
	assert.False(t, ok)

	st, ok := m.ConnectionState("cara")
	require.True(t, ok, "other peers are untouched")
	assert.Equal(t, StateConnecting, st)
}

// reentrantTransport reports a terminal state back into the manager from
// inside Close, the way a transport with synchronous callbacks would.
type reentrantTransport struct {
	fakeTransport
	m *Manager
}

func (f *reentrantTransport) Close() error {
	f.m.SetState(f.peerID, f, StateClosed)
	f.closed = true
	return nil
}

func TestReentrantCloseOnNegotiationFailure(t *testing.T) {
	var m *Manager
	transports := map[string]*reentrantTransport{}
	factory := func(peerID string, initiator bool, stream *media.Stream) (Transport, error) {
		rt := &reentrantTransport{fakeTransport: fakeTransport{peerID: peerID}, m: m}
		transports[peerID] = rt
		return rt, nil
	}
	m = NewManager(factory, nil)
	m.Start(testStream())
	m.HandleRemoteJoin("bob")

	transports["bob"].signalErr = errors.New("bad sdp")
	m.HandleSignal("bob", raw(`{"type":"answer"}`))

	assert.True(t, transports["bob"].closed)
	_, ok := m.ConnectionState("bob")
	assert.False(t, ok)
}

func TestReentrantCloseOnTrackFallback(t *testing.T) {
	var m *Manager
	transports := map[string][]*reentrantTransport{}
	factory := func(peerID string, initiator bool, stream *media.Stream) (Transport, error) {
		rt := &reentrantTransport{fakeTransport: fakeTransport{peerID: peerID}, m: m}
		transports[peerID] = append(transports[peerID], rt)
		return rt, nil
	}
	m = NewManager(factory, nil)
	m.Start(testStream())
	m.HandleRemoteJoin("bob")

	m.ReplaceVideoTrack(fakeTrack{id: "s0", kind: media.KindScreen})

	require.Len(t, transports["bob"], 2)
	assert.True(t, transports["bob"][0].closed, "superseded transport is closed")

	st, ok := m.ConnectionState("bob")
	require.True(t, ok, "replacement entry survives the old transport's callback")
	assert.Equal(t, StateConnecting, st)
}

func TestFactoryErrorDropsQueue(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f.New, nil)
	m.Start(testStream())

	f.err = errors.New("no ice servers")
	m.HandleSignal("bob", raw(`{"n":1}`))

	assert.Equal(t, 0, m.PendingCount("bob"), "stale signals are not replayed later")
	_, ok := m.ConnectionState("bob")
	assert.False(t, ok)
}
