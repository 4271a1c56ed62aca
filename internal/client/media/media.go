package media

// Kind classifies a captured track.
type Kind string

const (
	KindAudio  Kind = "audio"
	KindVideo  Kind = "video"
	KindScreen Kind = "screen"
)

// Track is one captured media source. Implementations wrap whatever the
// underlying transport needs (a pion local track, a test stub).
type Track interface {
	ID() string
	Kind() Kind
}

// Stream is the composite of tracks a client publishes to its peers.
type Stream struct {
	Audio Track
	Video Track
}

func (s *Stream) Tracks() []Track {
	var tracks []Track
	if s.Audio != nil {
		tracks = append(tracks, s.Audio)
	}
	if s.Video != nil {
		tracks = append(tracks, s.Video)
	}
	return tracks
}

// AudioOnly reports whether the stream runs in degraded, camera-less mode.
func (s *Stream) AudioOnly() bool {
	return s.Audio != nil && s.Video == nil
}
