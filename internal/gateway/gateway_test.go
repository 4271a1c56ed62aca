package gateway

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlekit/huddle/internal/protocol"
	"github.com/huddlekit/huddle/internal/registry"
)

type recorderCall struct {
	op, room, participant string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recorderCall
}

func (r *fakeRecorder) RecordJoin(roomCode, participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recorderCall{"join", roomCode, participantID})
}

func (r *fakeRecorder) RecordLeave(roomCode, participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recorderCall{"leave", roomCode, participantID})
}

func (r *fakeRecorder) snapshot() []recorderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorderCall(nil), r.calls...)
}

func startServer(t *testing.T, rec MeetingRecorder) (*httptest.Server, *registry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := registry.New(nil)
	gw := New(reg, rec, nil)

	router := gin.New()
	router.GET("/ws", gw.Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, reg
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(protocol.NewEvent(event, payload)))
}

// readUntil skips unrelated broadcasts until the wanted event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) protocol.Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var env protocol.Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", event)
		if env.Event == event {
			return env
		}
	}
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var env protocol.Envelope
	err := conn.ReadJSON(&env)
	require.Error(t, err, "unexpected event %s", env.Event)
}

func join(t *testing.T, conn *websocket.Conn, roomID, id, name string) protocol.RoomJoined {
	t.Helper()
	var p protocol.JoinRoom
	p.RoomID = roomID
	p.Participant.ID = id
	p.Participant.Name = name
	sendEvent(t, conn, protocol.EventJoinRoom, p)

	env := readUntil(t, conn, protocol.EventRoomJoined)
	var joined protocol.RoomJoined
	require.NoError(t, json.Unmarshal(env.Data, &joined))
	return joined
}

func TestTwoPartyCallFlow(t *testing.T) {
	rec := &fakeRecorder{}
	srv, reg := startServer(t, rec)

	connA := dial(t, srv)
	roomA := join(t, connA, "abc-def-ghi", "alice", "Alice")
	require.Len(t, roomA.Room.Participants, 1)
	assert.Equal(t, "alice", roomA.Room.Participants[0].ID)

	connB := dial(t, srv)
	roomB := join(t, connB, "abc-def-ghi", "bob", "Bob")
	require.Len(t, roomB.Room.Participants, 2, "second joiner sees the full roster")

	// The side already in the room observes the newcomer.
	env := readUntil(t, connA, protocol.EventUserJoined)
	var userJoined protocol.UserJoined
	require.NoError(t, json.Unmarshal(env.Data, &userJoined))
	for userJoined.Participant.ID != "bob" {
		env = readUntil(t, connA, protocol.EventUserJoined)
		require.NoError(t, json.Unmarshal(env.Data, &userJoined))
	}
	assert.Len(t, userJoined.Participants, 2)

	// Negotiation payload is relayed verbatim, stamped with the sender.
	sendEvent(t, connA, protocol.EventSignal, protocol.Signal{
		Signal: json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
		To:     "bob",
	})
	env = readUntil(t, connB, protocol.EventSignalRelay)
	var relay protocol.SignalRelay
	require.NoError(t, json.Unmarshal(env.Data, &relay))
	assert.Equal(t, "alice", relay.From)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(relay.Signal))

	// An abrupt disconnect is indistinguishable from an explicit leave.
	connB.Close()
	env = readUntil(t, connA, protocol.EventUserLeft)
	var left protocol.UserLeft
	require.NoError(t, json.Unmarshal(env.Data, &left))
	assert.Equal(t, "bob", left.ParticipantID)
	require.Len(t, left.Participants, 1)

	sendEvent(t, connA, protocol.EventLeaveRoom, protocol.LeaveRoom{
		RoomID:        "abc-def-ghi",
		ParticipantID: "alice",
	})
	require.Eventually(t, func() bool {
		return reg.RoomCount() == 0
	}, 2*time.Second, 10*time.Millisecond, "room is deleted once it empties")

	calls := rec.snapshot()
	var joins, leaves int
	for _, c := range calls {
		assert.Equal(t, "abc-def-ghi", c.room)
		switch c.op {
		case "join":
			joins++
		case "leave":
			leaves++
		}
	}
	assert.Equal(t, 2, joins)
	assert.Equal(t, 2, leaves)
}

func TestSignalBeforeJoinIsRejected(t *testing.T) {
	srv, _ := startServer(t, nil)
	conn := dial(t, srv)

	sendEvent(t, conn, protocol.EventSignal, protocol.Signal{
		Signal: json.RawMessage(`{}`),
		To:     "bob",
	})

	env := readUntil(t, conn, protocol.EventError)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Contains(t, p.Error, "join")
}

func TestMalformedPayloadGetsErrorEvent(t *testing.T) {
	srv, _ := startServer(t, nil)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(protocol.Envelope{
		Event: protocol.EventJoinRoom,
		Data:  json.RawMessage(`{"participant":{}}`),
	}))

	env := readUntil(t, conn, protocol.EventError)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Contains(t, p.Error, protocol.EventJoinRoom)
}

func TestReconnectRebindsSignalRouting(t *testing.T) {
	srv, reg := startServer(t, nil)

	connA := dial(t, srv)
	join(t, connA, "room", "alice", "Alice")

	oldB := dial(t, srv)
	join(t, oldB, "room", "bob", "Bob")

	// bob reconnects with the same stable id on a fresh transport
	newB := dial(t, srv)
	joined := join(t, newB, "room", "bob", "Bob")
	require.Len(t, joined.Room.Participants, 2, "rejoin upserts, never duplicates")

	sendEvent(t, connA, protocol.EventSignal, protocol.Signal{
		Signal: json.RawMessage(`{"type":"answer"}`),
		To:     "bob",
	})

	env := readUntil(t, newB, protocol.EventSignalRelay)
	var relay protocol.SignalRelay
	require.NoError(t, json.Unmarshal(env.Data, &relay))
	assert.Equal(t, "alice", relay.From)

	// Closing the superseded transport must not evict the rebound bob.
	oldB.Close()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, reg.RoomCount())

	sendEvent(t, connA, protocol.EventSignal, protocol.Signal{
		Signal: json.RawMessage(`{"type":"ice"}`),
		To:     "bob",
	})
	readUntil(t, newB, protocol.EventSignalRelay)
}

func TestChatFlowNormalizesSender(t *testing.T) {
	srv, _ := startServer(t, nil)

	connA := dial(t, srv)
	join(t, connA, "room", "alice", "Alice")

	sendEvent(t, connA, protocol.EventSendMessage, protocol.SendMessage{
		RoomID: "room",
		Message: protocol.InboundMessage{
			ID:        "m1",
			Sender:    json.RawMessage(`{"id":"alice","name":"Alice"}`),
			Text:      "hello",
			Timestamp: time.Now().UnixMilli(),
		},
	})

	env := readUntil(t, connA, protocol.EventNewMessage)
	var msg protocol.ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "Alice", msg.Sender)
	assert.Equal(t, "hello", msg.Text)
}

func TestMediaUpdateReachesOthersOnly(t *testing.T) {
	srv, _ := startServer(t, nil)

	connA := dial(t, srv)
	join(t, connA, "room", "alice", "Alice")
	connB := dial(t, srv)
	join(t, connB, "room", "bob", "Bob")
	readUntil(t, connA, protocol.EventUserJoined)

	off := false
	sendEvent(t, connA, protocol.EventUpdateMedia, protocol.UpdateMedia{
		RoomID:        "room",
		ParticipantID: "alice",
		Updates:       protocol.MediaUpdate{AudioEnabled: &off},
	})

	env := readUntil(t, connB, protocol.EventMediaUpdated)
	var updated protocol.MediaUpdated
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "alice", updated.ParticipantID)
	require.NotNil(t, updated.Updates.AudioEnabled)
	assert.False(t, *updated.Updates.AudioEnabled)
	assert.Nil(t, updated.Updates.VideoEnabled)

	expectSilence(t, connA)
}
