package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/huddlekit/huddle/internal/storage"
	"github.com/huddlekit/huddle/lib/logger/sl"
)

type RecordingController struct {
	blobs storage.BlobStore
	log   *slog.Logger
}

func NewRecordingController(blobs storage.BlobStore, log *slog.Logger) *RecordingController {
	if log == nil {
		log = slog.Default()
	}
	return &RecordingController{blobs: blobs, log: log}
}

// Upload accepts a finished recording artifact as multipart form data and
// answers with its stored location.
func (c *RecordingController) Upload(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile("recording")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "recording file is required"})
		return
	}
	defer file.Close()

	location, err := c.blobs.Save(ctx.Request.Context(), header.Filename, file)
	if err != nil {
		c.log.Error("recording upload failed", sl.Err(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store recording"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"location": location})
}
