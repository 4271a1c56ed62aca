package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/huddlekit/huddle/internal/gateway"
)

func SetupRouter(
	gw *gateway.Gateway,
	meetingController *MeetingController,
	userController *UserController,
	recordingController *RecordingController,
	roomController *RoomController,
	stunServers []string,
) *gin.Engine {
	router := gin.Default()

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/ws", gw.Handle)

	api := router.Group("/api")

	// Clients fetch their ICE configuration instead of hardcoding it.
	api.GET("/webrtc/config", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"stun_servers": stunServers})
	})

	if userController != nil {
		users := api.Group("/users")
		users.POST("/create", userController.CreateUser)
		users.POST("/resolve", userController.ResolveIdentity)
		users.GET("/:userID", userController.GetUser)
	}

	if meetingController != nil {
		meetings := api.Group("/meetings")
		meetings.POST("/create", meetingController.CreateMeeting)
		meetings.GET("/recent", meetingController.ListRecent)
		meetings.GET("/:code", meetingController.GetMeeting)
		meetings.POST("/:code/end", meetingController.EndMeeting)
	}

	if recordingController != nil {
		recordings := api.Group("/recordings")
		recordings.POST("/upload", recordingController.Upload)
	}

	if roomController != nil {
		rooms := api.Group("/rooms")
		rooms.GET("/:roomID", roomController.GetRoom)
		rooms.GET("/:roomID/participants/:participantID", roomController.GetParticipant)
	}

	return router
}
