package registry

import (
	"log/slog"
	"sync"

	"github.com/huddlekit/huddle/internal/domain"
	"github.com/huddlekit/huddle/internal/protocol"
)

// Registry owns all live rooms and the transport index. Each room's
// mutations are serialized on that room's mutex; the registry-level mutex
// only guards the two lookup maps. Broadcasts are fire-and-forget: a slow
// consumer loses events instead of blocking a mutation.
type Registry struct {
	log *slog.Logger

	mu         sync.RWMutex
	rooms      map[string]*domain.Room
	transports map[string]transportRef
}

type transportRef struct {
	roomID        string
	participantID string
}

// outbox is a delivery target captured under the room mutex. Snapshotting
// the channel, not the participant, keeps delivery safe against a rebind
// swapping Events on a concurrent rejoin.
type outbox struct {
	participantID string
	events        chan protocol.Envelope
}

// roomOutboxes must be called with the room mutex held.
func roomOutboxes(room *domain.Room, exclude string) []outbox {
	subs := make([]outbox, 0, len(room.Participants))
	for _, p := range room.Participants {
		if p.ID == exclude {
			continue
		}
		subs = append(subs, outbox{participantID: p.ID, events: p.Events})
	}
	return subs
}

func New(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:        log,
		rooms:      make(map[string]*domain.Room),
		transports: make(map[string]transportRef),
	}
}

// Join adds the participant to the room, creating the room on first join.
// Rejoining with an id already on the roster upserts that entry in place:
// name and transport refresh, join-order position is kept. Returns the full
// snapshot for the joiner and broadcasts user-joined with the new roster to
// every member of the room, the joiner included. The inclusive broadcast is
// deliberate: clients use their own joined-event to confirm roster state.
func (r *Registry) Join(roomID string, p *domain.Participant) protocol.RoomSnapshot {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		room = domain.NewRoom(roomID)
		r.rooms[roomID] = room
		r.log.Info("room created", slog.String("room_id", roomID))
	}

	room.Mutex.Lock()
	member := p
	if existing := room.FindParticipant(p.ID); existing != nil {
		delete(r.transports, existing.TransportID)
		existing.Rebind(p.TransportID, p.Events)
		existing.Name = p.Name
		member = existing
	} else {
		room.Participants = append(room.Participants, p)
	}
	r.transports[p.TransportID] = transportRef{roomID: roomID, participantID: member.ID}
	snapshot := room.Snapshot()
	joined := protocol.NewEvent(protocol.EventUserJoined, protocol.UserJoined{
		Participant:  member.State(),
		Participants: snapshot.Participants,
	})
	subs := roomOutboxes(room, "")
	room.Mutex.Unlock()
	r.mu.Unlock()

	for _, sub := range subs {
		r.deliver(sub, joined)
	}

	r.log.Info("participant joined",
		slog.String("room_id", roomID),
		slog.String("participant_id", member.ID),
		slog.Int("roster_size", len(snapshot.Participants)),
	)
	return snapshot
}

// Leave removes the participant and deletes the room once it is empty.
// Unknown rooms and participants are no-ops.
func (r *Registry) Leave(roomID, participantID string) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return
	}

	room.Mutex.Lock()
	p := room.FindParticipant(participantID)
	if p == nil {
		room.Mutex.Unlock()
		r.mu.Unlock()
		return
	}
	room.RemoveParticipant(participantID)
	delete(r.transports, p.TransportID)

	empty := len(room.Participants) == 0
	if empty {
		delete(r.rooms, roomID)
	}
	roster := room.Roster()
	subs := roomOutboxes(room, "")
	room.Mutex.Unlock()
	r.mu.Unlock()

	if empty {
		r.log.Info("room deleted", slog.String("room_id", roomID))
		return
	}

	left := protocol.NewEvent(protocol.EventUserLeft, protocol.UserLeft{
		ParticipantID: participantID,
		Participants:  roster,
	})
	for _, sub := range subs {
		r.deliver(sub, left)
	}
}

// UpdateMedia merges the partial update into the participant's flags and
// broadcasts only the delta, never a roster resend. No-op when the room or
// participant is unknown.
func (r *Registry) UpdateMedia(roomID, participantID string, updates protocol.MediaUpdate) {
	room := r.room(roomID)
	if room == nil || updates.Empty() {
		return
	}

	room.Mutex.Lock()
	p := room.FindParticipant(participantID)
	if p == nil {
		room.Mutex.Unlock()
		return
	}
	p.ApplyMediaUpdate(updates)
	subs := roomOutboxes(room, participantID)
	room.Mutex.Unlock()

	delta := protocol.NewEvent(protocol.EventMediaUpdated, protocol.MediaUpdated{
		ParticipantID: participantID,
		Updates:       updates,
	})
	for _, sub := range subs {
		r.deliver(sub, delta)
	}
}

// AppendMessage normalizes the sender to a display string, stores the
// message in room history and broadcasts it to every member.
func (r *Registry) AppendMessage(roomID string, msg protocol.InboundMessage) {
	room := r.room(roomID)
	if room == nil {
		return
	}

	stored := protocol.ChatMessage{
		ID:        msg.ID,
		Sender:    protocol.NormalizeSender(msg.Sender),
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	}

	room.Mutex.Lock()
	room.Messages = append(room.Messages, stored)
	subs := roomOutboxes(room, "")
	room.Mutex.Unlock()

	event := protocol.NewEvent(protocol.EventNewMessage, stored)
	for _, sub := range subs {
		r.deliver(sub, event)
	}
}

// RelaySignal forwards an opaque negotiation payload to whichever transport
// is currently bound to the target's stable id. A missing target is skipped
// silently: the peer disconnected while the signal was in flight.
func (r *Registry) RelaySignal(roomID, fromID, toID string, signal []byte) {
	room := r.room(roomID)
	if room == nil {
		return
	}

	room.Mutex.RLock()
	target := room.FindParticipant(toID)
	var sub outbox
	if target != nil {
		sub = outbox{participantID: target.ID, events: target.Events}
	}
	room.Mutex.RUnlock()
	if target == nil {
		r.log.Debug("signal target gone",
			slog.String("room_id", roomID),
			slog.String("to", toID),
		)
		return
	}

	r.deliver(sub, protocol.NewEvent(protocol.EventSignalRelay, protocol.SignalRelay{
		Signal: signal,
		From:   fromID,
	}))
}

// SnapshotRoom returns the live state of a room for read-only surfaces.
func (r *Registry) SnapshotRoom(roomID string) (protocol.RoomSnapshot, error) {
	room := r.room(roomID)
	if room == nil {
		return protocol.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	room.Mutex.RLock()
	defer room.Mutex.RUnlock()
	return room.Snapshot(), nil
}

// ParticipantState reports the current flags of one member.
func (r *Registry) ParticipantState(roomID, participantID string) (protocol.ParticipantState, error) {
	room := r.room(roomID)
	if room == nil {
		return protocol.ParticipantState{}, domain.ErrRoomNotFound
	}
	room.Mutex.RLock()
	defer room.Mutex.RUnlock()
	p := room.FindParticipant(participantID)
	if p == nil {
		return protocol.ParticipantState{}, domain.ErrParticipantNotFound
	}
	return p.State(), nil
}

// ResolveTransport maps a live transport id back to its bound participant.
// Used on disconnect so no participant record outlives its connection.
func (r *Registry) ResolveTransport(transportID string) (roomID string, p *domain.Participant, ok bool) {
	r.mu.RLock()
	ref, found := r.transports[transportID]
	room := r.rooms[ref.roomID]
	r.mu.RUnlock()
	if !found || room == nil {
		return "", nil, false
	}

	room.Mutex.RLock()
	p = room.FindParticipant(ref.participantID)
	room.Mutex.RUnlock()
	if p == nil {
		return "", nil, false
	}
	return ref.roomID, p, true
}

// RoomCount reports the number of live rooms; exposed for health reporting.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) room(roomID string) *domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

// deliver is a non-blocking send: a full channel drops the event,
// broadcasts carry no acknowledgment.
func (r *Registry) deliver(to outbox, env protocol.Envelope) {
	select {
	case to.events <- env:
	default:
		r.log.Debug("dropping event",
			slog.String("participant_id", to.participantID),
			slog.String("event", env.Event),
		)
	}
}
