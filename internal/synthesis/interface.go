package synthesis

import "context"

// Provider is a speech synthesis backend. Providers that do not stream
// must report so through SupportsStreaming and fail SynthesizeStreaming
// with ErrStreamingUnsupported; callers are expected to check before
// attempting a stream.
type Provider interface {
	Name() string
	SupportsStreaming() bool
	SynthesizeBuffered(ctx context.Context, text string, opts Options) (*BufferedAudio, error)
	SynthesizeStreaming(ctx context.Context, text string, opts Options) (*StreamingAudio, error)
}
