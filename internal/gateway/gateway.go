package gateway

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/huddlekit/huddle/internal/registry"
	"github.com/huddlekit/huddle/lib/logger/sl"
)

// MeetingRecorder is the optional metadata collaborator. The realtime path
// never depends on it: a nil recorder or a failing one only loses history.
type MeetingRecorder interface {
	RecordJoin(roomCode, participantID string)
	RecordLeave(roomCode, participantID string)
}

// Gateway binds each websocket transport to at most one participant at a
// time and routes protocol events to the registry.
type Gateway struct {
	registry *registry.Registry
	meetings MeetingRecorder
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func New(reg *registry.Registry, meetings MeetingRecorder, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		registry: reg,
		meetings: meetings,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades the request and runs the session until the transport
// closes. One session = one transport = one goroutine pair.
func (g *Gateway) Handle(ctx *gin.Context) {
	conn, err := g.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		g.log.Error("websocket upgrade failed", sl.Err(err))
		return
	}

	s := newSession(g, conn, uuid.New().String())
	g.log.Debug("transport connected", slog.String("transport_id", s.transportID))

	go s.writePump()
	s.readPump()
}
