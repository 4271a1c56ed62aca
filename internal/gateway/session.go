package gateway

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/huddlekit/huddle/internal/domain"
	"github.com/huddlekit/huddle/internal/protocol"
	"github.com/huddlekit/huddle/lib/logger/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	outBufferSize  = 64
)

// session is the server half of one live transport. The out channel is the
// single write path: once a participant is bound, the registry delivers its
// events straight into it, so broadcast delivery follows the binding, not
// the socket.
type session struct {
	gw          *Gateway
	conn        *websocket.Conn
	transportID string
	out         chan protocol.Envelope

	// set after a successful join-room
	bound         bool
	roomID        string
	participantID string
}

func newSession(gw *Gateway, conn *websocket.Conn, transportID string) *session {
	return &session{
		gw:          gw,
		conn:        conn,
		transportID: transportID,
		out:         make(chan protocol.Envelope, outBufferSize),
	}
}

func (s *session) readPump() {
	defer func() {
		s.disconnect()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env protocol.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.gw.log.Debug("transport read error",
					slog.String("transport_id", s.transportID), sl.Err(err))
			}
			return
		}
		s.handle(env)
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case env := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle routes one inbound event. Failures are contained here: a bad
// payload or a panicking handler logs, optionally answers the origin with
// an error event, and never takes down the process or another session.
func (s *session) handle(env protocol.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			s.gw.log.Error("handler panic",
				slog.String("event", env.Event),
				slog.Any("panic", rec),
			)
			s.sendError("internal error")
		}
	}()

	payload, err := protocol.DecodeClientEvent(env)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownEvent) {
			s.gw.log.Debug("unknown event", slog.String("event", env.Event))
			return
		}
		s.gw.log.Debug("malformed payload", slog.String("event", env.Event))
		s.sendError("malformed " + env.Event + " payload")
		return
	}

	switch p := payload.(type) {
	case protocol.JoinRoom:
		s.handleJoin(p)
	case protocol.LeaveRoom:
		s.handleLeave(p)
	case protocol.Signal:
		s.handleSignal(p)
	case protocol.UpdateMedia:
		s.handleUpdateMedia(p)
	case protocol.SendMessage:
		s.handleSendMessage(p)
	}
}

func (s *session) handleJoin(p protocol.JoinRoom) {
	// A transport carries one binding at a time; joining again moves it.
	if s.bound && (s.roomID != p.RoomID || s.participantID != p.Participant.ID) {
		s.gw.registry.Leave(s.roomID, s.participantID)
	}

	participant := domain.NewParticipant(p.Participant.ID, p.Participant.Name, s.transportID)
	participant.Events = s.out

	snapshot := s.gw.registry.Join(p.RoomID, participant)
	s.bound = true
	s.roomID = p.RoomID
	s.participantID = participant.ID

	if s.gw.meetings != nil {
		s.gw.meetings.RecordJoin(p.RoomID, participant.ID)
	}

	s.send(protocol.NewEvent(protocol.EventRoomJoined, protocol.RoomJoined{Room: snapshot}))
}

func (s *session) handleLeave(p protocol.LeaveRoom) {
	s.gw.registry.Leave(p.RoomID, p.ParticipantID)
	if s.gw.meetings != nil {
		s.gw.meetings.RecordLeave(p.RoomID, p.ParticipantID)
	}
	if s.bound && s.roomID == p.RoomID && s.participantID == p.ParticipantID {
		s.bound = false
	}
}

func (s *session) handleSignal(p protocol.Signal) {
	if !s.bound {
		s.sendError("join a room before signalling")
		return
	}
	s.gw.registry.RelaySignal(s.roomID, s.participantID, p.To, p.Signal)
}

func (s *session) handleUpdateMedia(p protocol.UpdateMedia) {
	roomID := p.RoomID
	if roomID == "" {
		roomID = s.roomID
	}
	s.gw.registry.UpdateMedia(roomID, p.ParticipantID, p.Updates)
}

func (s *session) handleSendMessage(p protocol.SendMessage) {
	roomID := p.RoomID
	if roomID == "" {
		roomID = s.roomID
	}
	s.gw.registry.AppendMessage(roomID, p.Message)
}

// disconnect synthesizes a leave for whatever participant is still bound to
// this transport. Resolving through the registry protects a participant that
// already rebound to a fresh transport: the stale close then finds nothing.
func (s *session) disconnect() {
	roomID, p, ok := s.gw.registry.ResolveTransport(s.transportID)
	if !ok {
		return
	}
	s.gw.log.Info("transport closed, synthesizing leave",
		slog.String("transport_id", s.transportID),
		slog.String("participant_id", p.ID),
	)
	s.gw.registry.Leave(roomID, p.ID)
	if s.gw.meetings != nil {
		s.gw.meetings.RecordLeave(roomID, p.ID)
	}
}

func (s *session) send(env protocol.Envelope) {
	select {
	case s.out <- env:
	default:
	}
}

func (s *session) sendError(msg string) {
	s.send(protocol.NewEvent(protocol.EventError, protocol.ErrorPayload{Error: msg}))
}
