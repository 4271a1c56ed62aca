package rtc

import (
	"context"

	"github.com/pion/webrtc/v3"

	"github.com/huddlekit/huddle/internal/client/media"
)

// StaticDevice is a capture device backed by pion static sample tracks.
// It produces valid negotiable tracks without touching real hardware;
// callers feed samples in from whatever capture pipeline they run.
type StaticDevice struct {
	StreamID string
}

func NewStaticDevice(streamID string) *StaticDevice {
	if streamID == "" {
		streamID = "huddle"
	}
	return &StaticDevice{StreamID: streamID}
}

func (d *StaticDevice) CaptureAudio(ctx context.Context) (media.Track, error) {
	return d.newTrack(ctx, media.KindAudio, webrtc.MimeTypeOpus, "audio")
}

func (d *StaticDevice) CaptureVideo(ctx context.Context) (media.Track, error) {
	return d.newTrack(ctx, media.KindVideo, webrtc.MimeTypeVP8, "video")
}

func (d *StaticDevice) CaptureScreen(ctx context.Context) (media.Track, error) {
	return d.newTrack(ctx, media.KindScreen, webrtc.MimeTypeVP8, "screen")
}

func (d *StaticDevice) newTrack(ctx context.Context, kind media.Kind, mimeType, id string) (media.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	local, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mimeType}, id, d.StreamID,
	)
	if err != nil {
		return nil, media.NewAcquireError(kind, media.CauseNotFound, err)
	}
	return &sampleTrack{kind: kind, local: local}, nil
}

type sampleTrack struct {
	kind  media.Kind
	local *webrtc.TrackLocalStaticSample
}

func (t *sampleTrack) ID() string                    { return t.local.ID() }
func (t *sampleTrack) Kind() media.Kind              { return t.kind }
func (t *sampleTrack) TrackLocal() webrtc.TrackLocal { return t.local }

// Sample exposes the underlying writer for capture pipelines.
func (t *sampleTrack) Sample() *webrtc.TrackLocalStaticSample { return t.local }
