package peer

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/huddlekit/huddle/internal/client/media"
	"github.com/huddlekit/huddle/lib/logger/sl"
)

// Manager owns every negotiated connection of the local client, one per
// remote participant id. All transitions happen under one mutex, which
// gives strict per-peer ordering of signal application.
//
// Signals may arrive before the local side has a connection for their
// sender; those wait in a per-peer pending queue. A connection is only
// ever created by an explicit trigger: a remote join makes the local side
// initiator, consuming a queued signal for an unknown peer makes it
// responder. Creation drains and deletes the queue in arrival order, so a
// peer never has both a live connection and queued signals.
type Manager struct {
	log     *slog.Logger
	factory Factory

	mu      sync.Mutex
	ready   bool
	stream  *media.Stream
	conns   map[string]*Connection
	pending map[string][]json.RawMessage
	joined  map[string]struct{} // remote joins observed before Start

	// transports marked terminal under mu, closed by whichever exported
	// call releases it. Closing outside the lock keeps a transport whose
	// Close reports a synchronous state change from deadlocking SetState.
	closing []Transport
}

func NewManager(factory Factory, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:     log,
		factory: factory,
		conns:   make(map[string]*Connection),
		pending: make(map[string][]json.RawMessage),
		joined:  make(map[string]struct{}),
	}
}

// Start hands the manager its local stream and makes it operational.
// Joins and signals observed before this point are replayed now: observed
// joiners get initiator connections, peers that only signalled get
// responder ones.
func (m *Manager) Start(stream *media.Stream) {
	m.mu.Lock()

	m.stream = stream
	m.ready = true

	for peerID := range m.joined {
		m.ensureLocked(peerID, true)
	}
	m.joined = make(map[string]struct{})

	for peerID := range m.pending {
		if _, live := m.conns[peerID]; live {
			continue
		}
		m.ensureLocked(peerID, false)
	}

	closing := m.takeClosingLocked()
	m.mu.Unlock()
	closeTransports(closing)
}

// HandleRemoteJoin reacts to a remote participant joining the session the
// local side is already in: the local side initiates toward it. This
// convention, not a handshake, is what keeps both sides from initiating
// at once — the newcomer only ever answers.
func (m *Manager) HandleRemoteJoin(peerID string) {
	m.mu.Lock()

	if !m.ready {
		m.joined[peerID] = struct{}{}
		m.mu.Unlock()
		return
	}
	m.ensureLocked(peerID, true)

	closing := m.takeClosingLocked()
	m.mu.Unlock()
	closeTransports(closing)
}

// HandleSignal applies one relayed signal. Live connection: applied
// immediately, in arrival order. No connection (or a terminal leftover,
// which is purged first): the signal is queued, and if the manager is
// operational the queued signal triggers responder creation, which drains
// the queue.
func (m *Manager) HandleSignal(peerID string, signal json.RawMessage) {
	m.mu.Lock()

	if c := m.conns[peerID]; c != nil {
		if !c.state.Terminal() {
			if err := c.transport.Signal(signal); err != nil {
				m.failLocked(c, err)
			}
			closing := m.takeClosingLocked()
			m.mu.Unlock()
			closeTransports(closing)
			return
		}
		delete(m.conns, peerID)
	}

	m.pending[peerID] = append(m.pending[peerID], signal)
	if m.ready {
		m.ensureLocked(peerID, false)
	}

	closing := m.takeClosingLocked()
	m.mu.Unlock()
	closeTransports(closing)
}

// HandlePeerLeft tears down the entry for a departed peer, if any.
func (m *Manager) HandlePeerLeft(peerID string) {
	m.mu.Lock()
	c := m.conns[peerID]
	if c != nil {
		c.state = StateClosed
		delete(m.conns, peerID)
	}
	delete(m.pending, peerID)
	delete(m.joined, peerID)
	m.mu.Unlock()

	if c != nil {
		_ = c.transport.Close()
	}
}

// SetState records a state transition reported by a transport. Terminal
// transitions purge the entry. Reports from a transport that is no longer
// the peer's current one — a purged entry, or a superseded connection
// firing its last callbacks while closing — are no-ops.
func (m *Manager) SetState(peerID string, from Transport, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.conns[peerID]
	if c == nil || c.state.Terminal() || c.transport != from {
		return
	}
	c.state = st
	if st.Terminal() {
		delete(m.conns, peerID)
	}
}

// ReplaceVideoTrack substitutes the outgoing video track on every live
// connection, e.g. when switching to screen share. Transports exposing
// TrackReplacer get in-place substitution; everything else is torn down
// and recreated with the same role and the new composite stream, strictly
// one peer at a time.
func (m *Manager) ReplaceVideoTrack(t media.Track) {
	m.mu.Lock()

	if m.stream != nil {
		m.stream.Video = t
	}

	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}

	for _, id := range ids {
		c := m.conns[id]
		if c == nil || c.state.Terminal() {
			continue
		}

		if replacer, ok := c.transport.(TrackReplacer); ok {
			if err := replacer.ReplaceTrack(t); err != nil {
				m.failLocked(c, err)
			}
			continue
		}

		// Mark destroyed before closing so no in-flight callback acts on
		// the half-torn-down entry, then bring up the replacement.
		c.state = StateClosed
		delete(m.conns, id)
		m.closing = append(m.closing, c.transport)
		m.ensureLocked(id, c.Initiator)
	}

	closing := m.takeClosingLocked()
	m.mu.Unlock()
	closeTransports(closing)
}

// CloseAll tears down every connection. Entries are all marked terminal
// and the maps cleared inside one critical section before any transport
// close runs, so a late asynchronous callback finds nothing to touch.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	closing := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		c.state = StateClosed
		closing = append(closing, c)
	}
	m.conns = make(map[string]*Connection)
	m.pending = make(map[string][]json.RawMessage)
	m.joined = make(map[string]struct{})
	m.ready = false
	m.mu.Unlock()

	for _, c := range closing {
		_ = c.transport.Close()
	}
}

// ConnectionState reports the state of the entry for peerID, if one exists.
func (m *Manager) ConnectionState(peerID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[peerID]
	if !ok {
		return "", false
	}
	return c.state, true
}

// Peers lists the ids with live entries.
func (m *Manager) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	return ids
}

// PendingCount reports queued signals for a peer; used by callers that
// surface connection progress.
func (m *Manager) PendingCount(peerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[peerID])
}

// ensureLocked returns the live connection for peerID, creating it with
// the given role when absent. Terminal leftovers count as absent. Creation
// replays the pending queue in original arrival order and deletes it.
func (m *Manager) ensureLocked(peerID string, initiator bool) *Connection {
	if c := m.conns[peerID]; c != nil {
		if !c.state.Terminal() {
			return c
		}
		delete(m.conns, peerID)
	}

	transport, err := m.factory(peerID, initiator, m.stream)
	if err != nil {
		delete(m.pending, peerID)
		m.log.Error("peer connection setup failed",
			slog.String("peer_id", peerID),
			sl.Err(&NegotiationError{PeerID: peerID, Err: err}),
		)
		return nil
	}

	c := &Connection{
		PeerID:    peerID,
		Initiator: initiator,
		state:     StateConnecting,
		transport: transport,
	}
	m.conns[peerID] = c

	queued := m.pending[peerID]
	delete(m.pending, peerID)
	for _, signal := range queued {
		if err := c.transport.Signal(signal); err != nil {
			m.failLocked(c, err)
			return nil
		}
	}
	return c
}

// failLocked handles a negotiation failure for one peer: the entry is
// marked errored and purged; its transport closes once the caller drops
// the lock. Other peers are unaffected.
func (m *Manager) failLocked(c *Connection, err error) {
	c.state = StateErrored
	delete(m.conns, c.PeerID)
	m.closing = append(m.closing, c.transport)
	m.log.Error("peer negotiation failed",
		slog.String("peer_id", c.PeerID),
		sl.Err(&NegotiationError{PeerID: c.PeerID, Err: err}),
	)
}

func (m *Manager) takeClosingLocked() []Transport {
	closing := m.closing
	m.closing = nil
	return closing
}

func closeTransports(transports []Transport) {
	for _, t := range transports {
		_ = t.Close()
	}
}
