package protocol

import (
	"encoding/json"
	"errors"
	"strings"
)

// Client-to-server event names.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSignal      = "signal"
	EventUpdateMedia = "update-media"
	EventSendMessage = "send-message"
)

// Server-to-client event names.
const (
	EventRoomJoined   = "room-joined"
	EventUserJoined   = "user-joined"
	EventUserLeft     = "user-left"
	EventSignalRelay  = "signal"
	EventMediaUpdated = "media-updated"
	EventNewMessage   = "new-message"
	EventError        = "error"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Envelope wraps every message on the wire in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEvent(event string, payload any) Envelope {
	data, _ := json.Marshal(payload)
	return Envelope{Event: event, Data: data}
}

type ParticipantState struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	AudioEnabled    bool   `json:"audioEnabled"`
	VideoEnabled    bool   `json:"videoEnabled"`
	IsScreenSharing bool   `json:"isScreenSharing"`
}

// MediaUpdate is a partial update; nil fields are left untouched on merge.
type MediaUpdate struct {
	AudioEnabled    *bool `json:"audioEnabled,omitempty"`
	VideoEnabled    *bool `json:"videoEnabled,omitempty"`
	IsScreenSharing *bool `json:"isScreenSharing,omitempty"`
}

func (u MediaUpdate) Empty() bool {
	return u.AudioEnabled == nil && u.VideoEnabled == nil && u.IsScreenSharing == nil
}

type ChatMessage struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type RoomSnapshot struct {
	ID           string             `json:"id"`
	Participants []ParticipantState `json:"participants"`
	Messages     []ChatMessage      `json:"messages"`
}

// --- client to server payloads ---

type JoinRoom struct {
	RoomID      string `json:"roomId"`
	Participant struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"participant"`
}

type LeaveRoom struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
}

type Signal struct {
	Signal json.RawMessage `json:"signal"`
	To     string          `json:"to"`
}

type UpdateMedia struct {
	RoomID        string      `json:"roomId"`
	ParticipantID string      `json:"participantId"`
	Updates       MediaUpdate `json:"updates"`
}

type SendMessage struct {
	RoomID  string         `json:"roomId"`
	Message InboundMessage `json:"message"`
}

// InboundMessage keeps sender raw because clients send either a plain
// display string or a structured user reference.
type InboundMessage struct {
	ID        string          `json:"id"`
	Sender    json.RawMessage `json:"sender"`
	Text      string          `json:"text"`
	Timestamp int64           `json:"timestamp"`
}

// --- server to client payloads ---

type RoomJoined struct {
	Room RoomSnapshot `json:"room"`
}

type UserJoined struct {
	Participant  ParticipantState   `json:"participant"`
	Participants []ParticipantState `json:"participants"`
}

type UserLeft struct {
	ParticipantID string             `json:"participantId"`
	Participants  []ParticipantState `json:"participants"`
}

type SignalRelay struct {
	Signal json.RawMessage `json:"signal"`
	From   string          `json:"from"`
}

type MediaUpdated struct {
	ParticipantID string      `json:"participantId"`
	Updates       MediaUpdate `json:"updates"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// DecodeClientEvent validates an inbound envelope and returns the typed
// payload. Malformed payloads are rejected here so handlers never see them.
func DecodeClientEvent(env Envelope) (any, error) {
	switch env.Event {
	case EventJoinRoom:
		var p JoinRoom
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, ErrInvalidPayload
		}
		p.RoomID = strings.TrimSpace(p.RoomID)
		p.Participant.ID = strings.TrimSpace(p.Participant.ID)
		if p.RoomID == "" || p.Participant.ID == "" {
			return nil, ErrInvalidPayload
		}
		if p.Participant.Name == "" {
			p.Participant.Name = "Guest"
		}
		return p, nil
	case EventLeaveRoom:
		var p LeaveRoom
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, ErrInvalidPayload
		}
		if p.RoomID == "" || p.ParticipantID == "" {
			return nil, ErrInvalidPayload
		}
		return p, nil
	case EventSignal:
		var p Signal
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, ErrInvalidPayload
		}
		if p.To == "" || len(p.Signal) == 0 {
			return nil, ErrInvalidPayload
		}
		return p, nil
	case EventUpdateMedia:
		var p UpdateMedia
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, ErrInvalidPayload
		}
		if p.ParticipantID == "" || p.Updates.Empty() {
			return nil, ErrInvalidPayload
		}
		return p, nil
	case EventSendMessage:
		var p SendMessage
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, ErrInvalidPayload
		}
		if strings.TrimSpace(p.Message.Text) == "" {
			return nil, ErrInvalidPayload
		}
		return p, nil
	default:
		return nil, ErrUnknownEvent
	}
}

// NormalizeSender coerces the raw sender field to a display string. Clients
// are supposed to send a plain string but some send a whole user object; in
// that case the object's name is used, and anything else collapses to
// "Unknown".
func NormalizeSender(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "Unknown"
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return "Unknown"
	}

	var ref struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &ref); err == nil {
		if name := strings.TrimSpace(ref.Name); name != "" {
			return name
		}
	}

	return "Unknown"
}
