package media

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/huddlekit/huddle/lib/logger/sl"
)

const DefaultAcquireTimeout = 10 * time.Second

// CaptureDevice yields local tracks. Implementations talk to real hardware
// and can therefore hang or fail in the ways AcquireError distinguishes.
type CaptureDevice interface {
	CaptureAudio(ctx context.Context) (Track, error)
	CaptureVideo(ctx context.Context) (Track, error)
	CaptureScreen(ctx context.Context) (Track, error)
}

// Acquire opens microphone and camera with a bounded wait per device.
// A video failure of any sub-kind degrades to an audio-only stream instead
// of failing the join; an audio failure is fatal for the acquisition.
func Acquire(ctx context.Context, dev CaptureDevice, timeout time.Duration, log *slog.Logger) (*Stream, error) {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	audio, err := capture(ctx, KindAudio, dev.CaptureAudio, timeout)
	if err != nil {
		return nil, err
	}

	video, err := capture(ctx, KindVideo, dev.CaptureVideo, timeout)
	if err != nil {
		var aerr *AcquireError
		if errors.As(err, &aerr) {
			log.Warn("camera unavailable, continuing audio-only",
				slog.String("cause", string(aerr.Cause)), sl.Err(err))
		} else {
			log.Warn("camera unavailable, continuing audio-only", sl.Err(err))
		}
		return &Stream{Audio: audio}, nil
	}

	return &Stream{Audio: audio, Video: video}, nil
}

// AcquireScreen opens a screen-capture track with the same bounded wait.
func AcquireScreen(ctx context.Context, dev CaptureDevice, timeout time.Duration) (Track, error) {
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	return capture(ctx, KindScreen, dev.CaptureScreen, timeout)
}

// capture runs one device call under a deadline. Hardware acquisition can
// hang indefinitely, so the call runs in its own goroutine and an expired
// deadline is reported as a busy device rather than waited out.
func capture(ctx context.Context, kind Kind, f func(context.Context) (Track, error), timeout time.Duration) (Track, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		track Track
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		t, err := f(cctx)
		ch <- result{track: t, err: err}
	}()

	select {
	case r := <-ch:
		return r.track, r.err
	case <-cctx.Done():
		return nil, NewAcquireError(kind, CauseBusy, cctx.Err())
	}
}
