package rtc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v3"

	"github.com/huddlekit/huddle/internal/client/media"
	"github.com/huddlekit/huddle/internal/client/peer"
)

var ErrNotPionTrack = errors.New("track does not wrap a pion local track")

// SendFunc delivers an outbound negotiation payload addressed to a peer.
// The signaling client plugs in here.
type SendFunc func(peerID string, payload json.RawMessage)

// StateFunc reports connection state transitions back to the manager,
// along with the transport they came from.
type StateFunc func(peerID string, transport peer.Transport, state peer.State)

type Config struct {
	STUNServers []string
}

// Factory builds pion-backed transports satisfying peer.Factory.
type Factory struct {
	cfg     Config
	send    SendFunc
	onState StateFunc
}

func NewFactory(cfg Config, send SendFunc, onState StateFunc) *Factory {
	return &Factory{cfg: cfg, send: send, onState: onState}
}

// New creates the negotiated connection toward peerID. The initiator adds
// its tracks and opens with an offer; the responder waits for one.
func (f *Factory) New(peerID string, initiator bool, stream *media.Stream) (peer.Transport, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: f.cfg.STUNServers}},
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	t := &transport{pc: pc, peerID: peerID, send: f.send}

	if stream != nil {
		for _, track := range stream.Tracks() {
			local, err := pionTrack(track)
			if err != nil {
				pc.Close()
				return nil, err
			}
			if _, err := pc.AddTrack(local); err != nil {
				pc.Close()
				return nil, fmt.Errorf("add track: %w", err)
			}
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		t.sendSignal(signalPayload{Type: "ice-candidate", Candidate: &init})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			f.onState(peerID, t, peer.StateConnected)
		case webrtc.PeerConnectionStateFailed:
			f.onState(peerID, t, peer.StateErrored)
		case webrtc.PeerConnectionStateClosed:
			f.onState(peerID, t, peer.StateClosed)
		}
	})

	if initiator {
		if err := t.sendOffer(); err != nil {
			pc.Close()
			return nil, err
		}
	}

	return t, nil
}

// signalPayload is the opaque-to-the-server negotiation envelope exchanged
// between peers.
type signalPayload struct {
	Type      string                     `json:"type"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

type transport struct {
	pc     *webrtc.PeerConnection
	peerID string
	send   SendFunc
}

func (t *transport) Signal(payload json.RawMessage) error {
	var sig signalPayload
	if err := json.Unmarshal(payload, &sig); err != nil {
		return fmt.Errorf("parse signal: %w", err)
	}

	switch sig.Type {
	case "offer":
		if sig.SDP == nil {
			return errors.New("offer without sdp")
		}
		if err := t.pc.SetRemoteDescription(*sig.SDP); err != nil {
			return fmt.Errorf("set remote offer: %w", err)
		}
		answer, err := t.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := t.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local answer: %w", err)
		}
		t.sendSignal(signalPayload{Type: "answer", SDP: t.pc.LocalDescription()})
		return nil
	case "answer":
		if sig.SDP == nil {
			return errors.New("answer without sdp")
		}
		return t.pc.SetRemoteDescription(*sig.SDP)
	case "ice-candidate":
		if sig.Candidate == nil {
			return nil
		}
		return t.pc.AddICECandidate(*sig.Candidate)
	default:
		return fmt.Errorf("unsupported signal type %q", sig.Type)
	}
}

func (t *transport) Close() error {
	return t.pc.Close()
}

// ReplaceTrack substitutes the outgoing track of the same kind in place,
// which keeps the negotiated session alive across a screen-share switch.
func (t *transport) ReplaceTrack(track media.Track) error {
	local, err := pionTrack(track)
	if err != nil {
		return err
	}
	for _, sender := range t.pc.GetSenders() {
		current := sender.Track()
		if current == nil || current.Kind() != local.Kind() {
			continue
		}
		return sender.ReplaceTrack(local)
	}
	return fmt.Errorf("no sender for %s track", local.Kind())
}

func (t *transport) sendOffer() error {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	t.sendSignal(signalPayload{Type: "offer", SDP: t.pc.LocalDescription()})
	return nil
}

func (t *transport) sendSignal(sig signalPayload) {
	data, _ := json.Marshal(sig)
	t.send(t.peerID, data)
}

// pionTrack unwraps the pion local track behind a media.Track.
func pionTrack(t media.Track) (webrtc.TrackLocal, error) {
	type localTrack interface {
		TrackLocal() webrtc.TrackLocal
	}
	if lt, ok := t.(localTrack); ok {
		return lt.TrackLocal(), nil
	}
	return nil, ErrNotPionTrack
}
