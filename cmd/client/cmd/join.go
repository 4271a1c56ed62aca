package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/huddlekit/huddle/internal/client/media"
	"github.com/huddlekit/huddle/internal/client/peer"
	"github.com/huddlekit/huddle/internal/client/rtc"
	"github.com/huddlekit/huddle/internal/client/signaling"
	"github.com/huddlekit/huddle/internal/protocol"
)

var (
	flagServer       string
	flagName         string
	flagParticipant  string
	flagSTUN         []string
	flagMediaTimeout time.Duration
)

var joinCmd = &cobra.Command{
	Use:   "join <room-code>",
	Short: "Join a room and connect to its participants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(args[0])
	},
}

func init() {
	joinCmd.Flags().StringVar(&flagServer, "server", "ws://localhost:8080/ws", "gateway websocket URL")
	joinCmd.Flags().StringVar(&flagName, "name", "Guest", "display name")
	joinCmd.Flags().StringVar(&flagParticipant, "id", "", "stable participant id (generated when empty)")
	joinCmd.Flags().StringSliceVar(&flagSTUN, "stun", []string{"stun:stun.l.google.com:19302"}, "STUN servers")
	joinCmd.Flags().DurationVar(&flagMediaTimeout, "media-timeout", media.DefaultAcquireTimeout, "device acquisition timeout")
	rootCmd.AddCommand(joinCmd)
}

func joinRoom(roomCode string) error {
	participantID := flagParticipant
	if participantID == "" {
		participantID = uuid.New().String()
	}

	ctx := context.Background()

	stream, err := media.Acquire(ctx, rtc.NewStaticDevice(participantID), flagMediaTimeout, slog.Default())
	if err != nil {
		var aerr *media.AcquireError
		if errors.As(err, &aerr) {
			return errors.New(aerr.Guidance())
		}
		return err
	}
	if stream.AudioOnly() {
		fmt.Println("Camera unavailable, joining audio-only.")
	}

	client := signaling.NewClient(flagServer)
	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Close()

	var manager *peer.Manager
	factory := rtc.NewFactory(
		rtc.Config{STUNServers: flagSTUN},
		client.SendSignal,
		func(peerID string, tr peer.Transport, st peer.State) {
			fmt.Printf("peer %s: %s\n", peerID, st)
			manager.SetState(peerID, tr, st)
		},
	)

	manager = peer.NewManager(factory.New, slog.Default())
	manager.Start(stream)
	defer manager.CloseAll()

	client.JoinRoom(roomCode, participantID, flagName)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case env, ok := <-client.Incoming():
			if !ok {
				fmt.Println("Disconnected from gateway.")
				return nil
			}
			handleEvent(manager, participantID, env)
		case <-sigCh:
			fmt.Println("\nLeaving room.")
			client.LeaveRoom(roomCode, participantID)
			return nil
		}
	}
}

func handleEvent(manager *peer.Manager, selfID string, env protocol.Envelope) {
	switch env.Event {
	case protocol.EventRoomJoined:
		var p protocol.RoomJoined
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		fmt.Printf("Joined room %s with %d participant(s).\n",
			p.Room.ID, len(p.Room.Participants))
		for _, msg := range p.Room.Messages {
			fmt.Printf("[%s] %s\n", msg.Sender, msg.Text)
		}
	case protocol.EventUserJoined:
		var p protocol.UserJoined
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		if p.Participant.ID == selfID {
			return
		}
		fmt.Printf("%s joined.\n", p.Participant.Name)
		manager.HandleRemoteJoin(p.Participant.ID)
	case protocol.EventUserLeft:
		var p protocol.UserLeft
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		fmt.Printf("%s left, %d remaining.\n", p.ParticipantID, len(p.Participants))
		manager.HandlePeerLeft(p.ParticipantID)
	case protocol.EventSignalRelay:
		var p protocol.SignalRelay
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		manager.HandleSignal(p.From, p.Signal)
	case protocol.EventNewMessage:
		var msg protocol.ChatMessage
		if json.Unmarshal(env.Data, &msg) != nil {
			return
		}
		fmt.Printf("[%s] %s\n", msg.Sender, msg.Text)
	case protocol.EventMediaUpdated:
		var p protocol.MediaUpdated
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		fmt.Printf("%s updated media.\n", p.ParticipantID)
	case protocol.EventError:
		var p protocol.ErrorPayload
		if json.Unmarshal(env.Data, &p) != nil {
			return
		}
		fmt.Fprintf(os.Stderr, "server error: %s\n", p.Error)
	}
}
