package domain

import (
	"sync"
	"time"

	"github.com/huddlekit/huddle/internal/protocol"
)

// Room is an ephemeral group of participants sharing signalling and chat.
// It exists from the first join until the last member leaves. Participants
// keep join order; clients rely on it for deterministic layout.
//
// The Mutex is the room's unit of atomicity: every roster or history
// mutation happens under it. Callers of the methods below must hold it.
type Room struct {
	Mutex        sync.RWMutex
	ID           string
	Participants []*Participant
	Messages     []protocol.ChatMessage
	CreatedAt    time.Time
}

func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now().UTC(),
	}
}

// FindParticipant returns the member with the given stable id, or nil.
func (r *Room) FindParticipant(id string) *Participant {
	for _, p := range r.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// RemoveParticipant deletes the member with the given id preserving the
// order of the rest. Reports whether anything was removed.
func (r *Room) RemoveParticipant(id string) bool {
	for i, p := range r.Participants {
		if p.ID == id {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// Roster snapshots the current members in join order.
func (r *Room) Roster() []protocol.ParticipantState {
	roster := make([]protocol.ParticipantState, 0, len(r.Participants))
	for _, p := range r.Participants {
		roster = append(roster, p.State())
	}
	return roster
}

// Snapshot captures the full room state for a joining client.
func (r *Room) Snapshot() protocol.RoomSnapshot {
	messages := make([]protocol.ChatMessage, len(r.Messages))
	copy(messages, r.Messages)
	return protocol.RoomSnapshot{
		ID:           r.ID,
		Participants: r.Roster(),
		Messages:     messages,
	}
}
