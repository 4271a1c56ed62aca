package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/huddlekit/huddle/internal/domain"
	"github.com/huddlekit/huddle/internal/registry"
)

// RoomController exposes live room state read-only. Clients use it to
// preview occupancy before connecting a transport.
type RoomController struct {
	registry *registry.Registry
}

func NewRoomController(reg *registry.Registry) *RoomController {
	return &RoomController{registry: reg}
}

func (c *RoomController) GetRoom(ctx *gin.Context) {
	snapshot, err := c.registry.SnapshotRoom(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": snapshot})
}

func (c *RoomController) GetParticipant(ctx *gin.Context) {
	state, err := c.registry.ParticipantState(ctx.Param("roomID"), ctx.Param("participantID"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case errors.Is(err, domain.ErrParticipantNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"participant": state})
}
