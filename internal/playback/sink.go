package playback

import (
	"context"
	"io"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusBuffering Status = "buffering"
	StatusPlaying   Status = "playing"
)

// Sink is the audio player a pipeline delivers into. Play hands the
// sink a reader of output-format PCM and returns once playback has been
// initiated; the sink consumes the reader on its own schedule. Stop
// reports whether an active playback was actually interrupted. Only the
// pipeline that owns the current attempt may call Play or Stop.
type Sink interface {
	Play(src io.Reader) error
	Stop(force bool) bool
	WaitForStatus(ctx context.Context, status Status) error
	Status() Status
}
