package signaling

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/huddlekit/huddle/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the websocket connection to the session gateway.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan protocol.Envelope
	outgoing  chan protocol.Envelope
	done      chan struct{}
	closed    bool
}

func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan protocol.Envelope, 32),
		outgoing:  make(chan protocol.Envelope, 32),
		done:      make(chan struct{}),
	}
}

// Connect dials the gateway and starts the read/write pumps.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		c.incoming <- env
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Incoming returns the channel of events relayed by the gateway.
func (c *Client) Incoming() <-chan protocol.Envelope {
	return c.incoming
}

func (c *Client) Send(env protocol.Envelope) {
	select {
	case c.outgoing <- env:
	case <-c.done:
	}
}

// JoinRoom announces this participant to the room.
func (c *Client) JoinRoom(roomID, participantID, name string) {
	var p protocol.JoinRoom
	p.RoomID = roomID
	p.Participant.ID = participantID
	p.Participant.Name = name
	c.Send(protocol.NewEvent(protocol.EventJoinRoom, p))
}

func (c *Client) LeaveRoom(roomID, participantID string) {
	c.Send(protocol.NewEvent(protocol.EventLeaveRoom, protocol.LeaveRoom{
		RoomID:        roomID,
		ParticipantID: participantID,
	}))
}

// SendSignal relays an opaque negotiation payload to the peer with the
// given stable participant id.
func (c *Client) SendSignal(to string, signal json.RawMessage) {
	c.Send(protocol.NewEvent(protocol.EventSignal, protocol.Signal{
		Signal: signal,
		To:     to,
	}))
}

func (c *Client) UpdateMedia(roomID, participantID string, updates protocol.MediaUpdate) {
	c.Send(protocol.NewEvent(protocol.EventUpdateMedia, protocol.UpdateMedia{
		RoomID:        roomID,
		ParticipantID: participantID,
		Updates:       updates,
	}))
}

func (c *Client) SendChat(roomID string, msg protocol.ChatMessage) {
	sender, _ := json.Marshal(msg.Sender)
	c.Send(protocol.NewEvent(protocol.EventSendMessage, protocol.SendMessage{
		RoomID: roomID,
		Message: protocol.InboundMessage{
			ID:        msg.ID,
			Sender:    sender,
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
		},
	}))
}

// Close shuts the connection down once; safe to call after a failed dial.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
