package domain

import (
	"time"

	"github.com/huddlekit/huddle/internal/protocol"
)

const eventBufferSize = 32

// Participant is a live member of a room. ID is stable across reconnects;
// TransportID identifies the websocket currently bound to it and changes
// every time the participant reconnects.
type Participant struct {
	ID              string
	TransportID     string
	Name            string
	AudioEnabled    bool
	VideoEnabled    bool
	IsScreenSharing bool
	JoinedAt        time.Time
	Events          chan protocol.Envelope
}

func NewParticipant(id, name, transportID string) *Participant {
	return &Participant{
		ID:           id,
		Name:         name,
		TransportID:  transportID,
		AudioEnabled: true,
		VideoEnabled: true,
		JoinedAt:     time.Now().UTC(),
		Events:       make(chan protocol.Envelope, eventBufferSize),
	}
}

// Rebind swaps the participant onto a new transport, replacing its event
// channel so stale writers never see new traffic.
func (p *Participant) Rebind(transportID string, events chan protocol.Envelope) {
	p.TransportID = transportID
	p.Events = events
}

func (p *Participant) ApplyMediaUpdate(u protocol.MediaUpdate) {
	if u.AudioEnabled != nil {
		p.AudioEnabled = *u.AudioEnabled
	}
	if u.VideoEnabled != nil {
		p.VideoEnabled = *u.VideoEnabled
	}
	if u.IsScreenSharing != nil {
		p.IsScreenSharing = *u.IsScreenSharing
	}
}

func (p *Participant) State() protocol.ParticipantState {
	return protocol.ParticipantState{
		ID:              p.ID,
		Name:            p.Name,
		AudioEnabled:    p.AudioEnabled,
		VideoEnabled:    p.VideoEnabled,
		IsScreenSharing: p.IsScreenSharing,
	}
}
