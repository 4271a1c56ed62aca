package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/huddlekit/huddle/internal/api/http/converter"
	"github.com/huddlekit/huddle/internal/domain"
	"github.com/huddlekit/huddle/internal/service"
)

type MeetingController struct {
	meetings service.MeetingInteractor
	users    service.UserInteractor
}

func NewMeetingController(meetings service.MeetingInteractor, users service.UserInteractor) *MeetingController {
	return &MeetingController{meetings: meetings, users: users}
}

func (c *MeetingController) CreateMeeting(ctx *gin.Context) {
	type CreateMeetingRequest struct {
		Title string `json:"title"`
		Host  string `json:"host" binding:"required"`
	}
	var req CreateMeetingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	host, err := uuid.Parse(req.Host)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid host uuid", "details": err.Error()})
		return
	}
	meeting, err := c.meetings.CreateMeeting(ctx.Request.Context(), req.Title, host)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"meeting": converter.MeetingToApi(meeting)})
}

// GetMeeting resolves a room code to its meeting record. Clients use the
// distinct not-found and ended answers to offer an anonymous join instead
// of failing hard.
func (c *MeetingController) GetMeeting(ctx *gin.Context) {
	meeting, err := c.meetings.GetMeeting(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMeetingNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "meeting not found", "anonymous_join": true})
		case errors.Is(err, domain.ErrMeetingEnded):
			ctx.JSON(http.StatusGone, gin.H{"error": "meeting already ended", "anonymous_join": true})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	host := c.users.ResolveIdentity(ctx.Request.Context(), meeting.Host, "")
	ctx.JSON(http.StatusOK, gin.H{
		"meeting":   converter.MeetingToApi(meeting),
		"host_name": host.Name,
	})
}

func (c *MeetingController) EndMeeting(ctx *gin.Context) {
	type EndMeetingRequest struct {
		By string `json:"by" binding:"required"`
	}
	var req EndMeetingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	by, err := uuid.Parse(req.By)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user uuid"})
		return
	}

	err = c.meetings.EndMeeting(ctx.Request.Context(), ctx.Param("code"), by)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMeetingNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
		case errors.Is(err, service.ErrNotHost):
			ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (c *MeetingController) ListRecent(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	meetings, err := c.meetings.ListRecent(ctx.Request.Context(), limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := make([]*converter.MeetingResponse, 0, len(meetings))
	for _, m := range meetings {
		result = append(result, converter.MeetingToApi(m))
	}
	ctx.JSON(http.StatusOK, gin.H{"meetings": result})
}
