package synthesis

import (
	"errors"
	"io"

	"github.com/eleven-am/speech-delivery/internal/audio"
)

var ErrStreamingUnsupported = errors.New("provider does not support streaming")

// Options carries per-request synthesis parameters. Extra holds
// provider-level overrides passed through opaquely.
type Options struct {
	Voice string
	Model string
	Speed float32
	Extra map[string]string
}

// BufferedAudio is a complete synthesis artifact produced before
// playback starts.
type BufferedAudio struct {
	Provider string
	Location string
	Format   string
	// VoiceCompatible reports whether the artifact can be handed to a
	// playback sink without transcoding.
	VoiceCompatible bool
}

// StreamingAudio is an incremental PCM byte source. Chunks read from
// Stream are s16le at PCMFormat and are not necessarily frame-aligned.
type StreamingAudio struct {
	Provider  string
	Stream    io.ReadCloser
	PCMFormat audio.Format
}

type Config struct {
	OpenAIKey        string
	ElevenLabsKey    string
	ArtifactDir      string
	DefaultProvider  string
	FallbackProvider string
}
