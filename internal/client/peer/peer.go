package peer

import (
	"encoding/json"
	"fmt"

	"github.com/huddlekit/huddle/internal/client/media"
)

// State is the lifecycle of one negotiated connection. Terminal states are
// purged from the manager, so a peer id with a terminal entry is treated
// the same as an unknown one.
type State string

const (
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateClosed     State = "closed"
	StateErrored    State = "errored"
)

func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}

// Transport is the negotiated media path toward one remote peer. Signal
// applies one inbound negotiation payload; implementations push outbound
// signals and state transitions through callbacks supplied at creation.
type Transport interface {
	Signal(payload json.RawMessage) error
	Close() error
}

// TrackReplacer is the optional in-place substitution capability. Transports
// without it get the teardown-and-reconnect fallback on track changes.
type TrackReplacer interface {
	ReplaceTrack(t media.Track) error
}

// Factory creates the transport toward a peer. The initiator side opens
// the negotiation; the responder only ever answers.
type Factory func(peerID string, initiator bool, stream *media.Stream) (Transport, error)

// Connection is the manager's record of one peer. It is never shared
// outside the owning manager.
type Connection struct {
	PeerID    string
	Initiator bool
	state     State
	transport Transport
}

func (c *Connection) State() State {
	return c.state
}

// NegotiationError marks a handshake failure with a single peer. It is
// isolated: only that peer's entry is torn down.
type NegotiationError struct {
	PeerID string
	Err    error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation with %s failed: %v", e.PeerID, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}
